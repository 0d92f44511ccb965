// cmd/resolve.go
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/scalpel-locator/internal/browser"
	"github.com/xkilldash9x/scalpel-locator/internal/browser/static"
	"github.com/xkilldash9x/scalpel-locator/internal/config"
	"github.com/xkilldash9x/scalpel-locator/internal/observability"
)

func newResolveCmd() *cobra.Command {
	var (
		page    string
		url     string
		engine  string
		strict  bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "resolve [names...]",
		Short: "Resolve locators on a live page, healing them when needed",
		Long: `Launches the configured browser engine, navigates to --url and resolves
each named locator of --page. With no names every locator of the page is
resolved. Each success prints "name<TAB>selector".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfig(ctx)
			if err != nil {
				return err
			}
			if err := requirePage(page); err != nil {
				return err
			}
			if url == "" {
				return fmt.Errorf("--url is required")
			}
			logger := observability.GetLogger().With(zap.String("run_id", getRunID(ctx)))

			browserCfg := cfg.Browser
			if engine != "" {
				browserCfg.Engine = engine
			}
			switch browserCfg.Engine {
			case config.EngineChromedp, config.EngineRod, config.EngineStatic:
			default:
				return fmt.Errorf("unknown engine %q", browserCfg.Engine)
			}

			// 1. Launch the browser and open the stores side by side. Both are
			// bound to ctx, not to the group, so they outlive Wait.
			var (
				g           errgroup.Group
				driver      browser.Driver
				closeDriver func()
				ws          *workspace
			)
			g.Go(func() error {
				var err error
				driver, closeDriver, err = openDriver(ctx, browserCfg, logger)
				if err != nil {
					return fmt.Errorf("failed to start %s engine: %w", browserCfg.Engine, err)
				}
				return nil
			})
			g.Go(func() error {
				var err error
				ws, err = openWorkspace(ctx, cfg, logger)
				return err
			})
			err = g.Wait()
			defer closeDriver()
			if ws != nil {
				defer ws.close()
			}
			if err != nil {
				return err
			}

			// 2. Navigate and build the resolver.
			nav, ok := driver.(browser.Navigator)
			if !ok {
				return fmt.Errorf("engine %s cannot navigate", browserCfg.Engine)
			}
			if err := nav.Navigate(ctx, url); err != nil {
				return err
			}
			r, err := ws.resolver(ctx, cfg, page, driver, true, logger)
			if err != nil {
				return err
			}

			// 3. Resolve and print.
			return resolveAll(ctx, cmd.OutOrStdout(), r, args, strict, timeout, logger)
		},
	}
	cmd.Flags().StringVar(&page, "page", "", "page whose locators to resolve")
	cmd.Flags().StringVar(&url, "url", "", "URL to navigate to before resolving")
	cmd.Flags().StringVar(&engine, "engine", "", "browser engine override (chromedp, rod, static)")
	cmd.Flags().BoolVar(&strict, "strict", false, "only use declared selectors, never heal")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "per-locator timeout (default resolver.primary_timeout)")
	return cmd
}

func newCheckCmd() *cobra.Command {
	var (
		page   string
		file   string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "check [names...]",
		Short: "Resolve locators against a saved HTML snapshot",
		Long: `Loads --html into the static driver and resolves each named locator of
--page against it. Heals are persisted unless --dry-run is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfig(ctx)
			if err != nil {
				return err
			}
			if err := requirePage(page); err != nil {
				return err
			}
			if file == "" {
				return fmt.Errorf("--html is required")
			}
			logger := observability.GetLogger().With(zap.String("run_id", getRunID(ctx)))

			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("failed to open snapshot: %w", err)
			}
			defer f.Close()
			driver := static.New(logger)
			if err := driver.Load(f); err != nil {
				return err
			}

			ws, err := openWorkspace(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer ws.close()
			r, err := ws.resolver(ctx, cfg, page, driver, !dryRun, logger)
			if err != nil {
				return err
			}
			return resolveAll(ctx, cmd.OutOrStdout(), r, args, false, 0, logger)
		},
	}
	cmd.Flags().StringVar(&page, "page", "", "page whose locators to check")
	cmd.Flags().StringVar(&file, "html", "", "HTML snapshot file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "do not persist healed selectors")
	return cmd
}
