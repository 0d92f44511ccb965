// cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-locator/internal/config"
	"github.com/xkilldash9x/scalpel-locator/internal/observability"
)

type contextKey int

const (
	configKey contextKey = iota
	runIDKey
)

// NewRootCmd builds the command tree. Each call returns an independent tree.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "scalpel-locator",
		Short:         "Self-healing locator resolution for browser automation.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			// 1. Read .env and the optional config file.
			if err := initializeConfig(v, cfgFile); err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "scalpel-locator"})
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			// 2. Build and validate the config.
			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "scalpel-locator"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			// 3. Logger, then hand the config and run id to subcommands.
			observability.InitializeLogger(cfg.Logger)
			runID := uuid.NewString()
			observability.GetLogger().Debug("Starting scalpel-locator.",
				zap.String("version", Version), zap.String("run_id", runID))

			ctx := context.WithValue(cmd.Context(), configKey, cfg)
			ctx = context.WithValue(ctx, runIDKey, runID)
			cmd.SetContext(ctx)
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		newResolveCmd(),
		newCheckCmd(),
		newUnhealCmd(),
		newShowCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command tree with ctx and reports a failure through the
// logger.
func Execute(ctx context.Context, args []string) error {
	root := NewRootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		observability.GetLogger().Error("Command execution failed.", zap.Error(err))
	}
	observability.Sync()
	return err
}

// initializeConfig loads .env into the environment and reads the config
// file. A missing default config.yaml is not an error.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	if err := config.LoadDotEnv(""); err != nil {
		return err
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

func getConfig(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}

func getRunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}
