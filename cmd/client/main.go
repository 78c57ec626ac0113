package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gwi.com/chat-sync/internal/app"
	"gwi.com/chat-sync/internal/config"
	"gwi.com/chat-sync/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		envFile string
		verbose bool
	)

	root := &cobra.Command{
		Use:           "chat",
		Short:         "Terminal client for the chat completion service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(envFile, verbose)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			return newREPL(ctx, a).run()
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env", "", "env file to load instead of .env")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(&cobra.Command{
		Use:   "models",
		Short: "List the configured model catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup(envFile, verbose)
			if err != nil {
				return err
			}
			catalog, err := config.LoadModelCatalog(cfg.ModelsFile, cfg.DefaultModel)
			if err != nil {
				return err
			}
			for _, m := range catalog.Models {
				marker := " "
				if m.IsDefault {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-28s %s\n", marker, m.ID, m.Description)
			}
			return nil
		},
	})
	return root
}

func setup(envFile string, verbose bool) (*config.Config, *zap.Logger, error) {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	cfg := config.Load(files...)

	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(level, true)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	if cfg.EnvFileErr != nil {
		logger.Debug("No env file loaded, relying on environment variables", zap.Error(cfg.EnvFileErr))
	}
	return cfg, logger, nil
}
