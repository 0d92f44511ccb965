// cmd/wiring.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-locator/internal/browser"
	"github.com/xkilldash9x/scalpel-locator/internal/browser/cdp"
	"github.com/xkilldash9x/scalpel-locator/internal/browser/rodriver"
	"github.com/xkilldash9x/scalpel-locator/internal/browser/static"
	"github.com/xkilldash9x/scalpel-locator/internal/config"
	"github.com/xkilldash9x/scalpel-locator/internal/heal"
	"github.com/xkilldash9x/scalpel-locator/internal/locator"
	"github.com/xkilldash9x/scalpel-locator/internal/resolver"
)

// openDriver starts the configured engine. The close func is never nil.
func openDriver(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (browser.Driver, func(), error) {
	switch cfg.Engine {
	case config.EngineRod:
		d, closeFn, err := rodriver.Launch(ctx, cfg, logger)
		if err != nil {
			return nil, closeFn, err
		}
		return d, closeFn, nil
	case config.EngineStatic:
		return static.New(logger), func() {}, nil
	default:
		d, closeFn, err := cdp.Launch(ctx, cfg, logger)
		if err != nil {
			return nil, closeFn, err
		}
		return d, closeFn, nil
	}
}

// workspace bundles the stores a command needs for one page.
type workspace struct {
	defs  *locator.Store
	heals heal.Store
	close func()
}

func openWorkspace(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*workspace, error) {
	heals, closeHeals, err := heal.Open(ctx, cfg.HealStore, cfg.Locators.HealedPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open heal store: %w", err)
	}
	return &workspace{
		defs:  locator.NewStore(cfg.Locators.Dir, heals, logger),
		heals: heals,
		close: closeHeals,
	}, nil
}

func (w *workspace) resolver(ctx context.Context, cfg *config.Config, page string, driver browser.Driver, persist bool, logger *zap.Logger) (*resolver.Resolver, error) {
	opts := resolver.OptionsFromConfig(cfg)
	opts.RunID = getRunID(ctx)
	if !persist {
		opts.PersistHealed = false
	}
	return resolver.New(ctx, page, driver, w.defs, w.heals, opts, logger)
}

// resolveAll resolves names (every known name when empty) and writes one
// "name<TAB>selector" line per success. Failures are logged and counted.
func resolveAll(ctx context.Context, out io.Writer, r *resolver.Resolver, names []string, strict bool, timeout time.Duration, logger *zap.Logger) error {
	if len(names) == 0 {
		names = r.Names()
	}

	var (
		failed   int
		firstErr error
	)
	for _, name := range names {
		var (
			sel string
			err error
		)
		switch {
		case strict:
			sel, err = r.ResolveStrict(ctx, name)
		case timeout > 0:
			sel, err = r.ResolveWithin(ctx, name, timeout)
		default:
			sel, err = r.Resolve(ctx, name)
		}
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			logger.Warn("Locator failed.", zap.String("name", name), zap.Error(err))
			failed++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if _, err := fmt.Fprintf(out, "%s\t%s\n", name, sel); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d locators failed to resolve: %w", failed, len(names), firstErr)
	}
	return nil
}

func requirePage(page string) error {
	if strings.TrimSpace(page) == "" {
		return fmt.Errorf("--page is required")
	}
	return locator.ValidatePage(page)
}
