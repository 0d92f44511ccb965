// cmd/show.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-locator/internal/locator"
	"github.com/xkilldash9x/scalpel-locator/internal/observability"
)

func newShowCmd() *cobra.Command {
	var (
		page   string
		merged bool
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the healed overlay of a page, or its merged definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfig(ctx)
			if err != nil {
				return err
			}
			if err := requirePage(page); err != nil {
				return err
			}
			logger := observability.GetLogger().With(zap.String("run_id", getRunID(ctx)))

			ws, err := openWorkspace(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer ws.close()

			var entries map[string]locator.Entry
			if merged {
				entries, err = ws.defs.LoadMerged(ctx, page)
				if err != nil {
					return err
				}
			} else {
				overlay, err := ws.heals.Load(ctx, page)
				if err != nil {
					return err
				}
				entries = overlay
			}

			data, err := locator.Encode(entries)
			if err != nil {
				return fmt.Errorf("failed to encode %s: %w", page, err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&page, "page", "", "page to show")
	cmd.Flags().BoolVar(&merged, "merged", false, "show base definitions with the overlay applied")
	return cmd
}
