// cmd/unheal.go
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-locator/internal/browser/static"
	"github.com/xkilldash9x/scalpel-locator/internal/observability"
)

func newUnhealCmd() *cobra.Command {
	var (
		page string
		all  bool
	)
	cmd := &cobra.Command{
		Use:   "unheal [names...]",
		Short: "Drop healed selectors so locators fall back to their declared definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfig(ctx)
			if err != nil {
				return err
			}
			if err := requirePage(page); err != nil {
				return err
			}
			if len(args) == 0 && !all {
				return errors.New("specify locator names or --all")
			}
			if len(args) > 0 && all {
				return errors.New("--all cannot be combined with locator names")
			}
			logger := observability.GetLogger().With(zap.String("run_id", getRunID(ctx)))

			ws, err := openWorkspace(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer ws.close()
			// Unhealing never queries, an empty document is enough.
			r, err := ws.resolver(ctx, cfg, page, static.New(logger), false, logger)
			if err != nil {
				return err
			}

			n := r.UnhealAll(ctx, args...)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "unhealed %d locator(s) on %s\n", n, page)
			return err
		},
	}
	cmd.Flags().StringVar(&page, "page", "", "page whose overlay to edit")
	cmd.Flags().BoolVar(&all, "all", false, "drop every healed selector of the page")
	return cmd
}
