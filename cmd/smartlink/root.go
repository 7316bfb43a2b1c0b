package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/smartlink-preview/internal/config"
	"github.com/JakeFAU/smartlink-preview/internal/logging"
	"github.com/JakeFAU/smartlink-preview/internal/server"
)

// envKeyType is the key for storing the loaded environment in the context.
type envKeyType string

const envKey envKeyType = "env"

// env is what PersistentPreRunE hands to subcommands.
type env struct {
	cfg    config.Config
	logger *zap.Logger
}

// service is the application surface commands use. Tests inject fakes
// through newService.
type service interface {
	Run(ctx context.Context) error
	PublishSitemap(ctx context.Context) (string, error)
	Close(ctx context.Context) error
}

var newService = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (service, error) {
	return server.Build(ctx, cfg, logger)
}

var newLogger = logging.New

func newRootCmd() *cobra.Command {
	var (
		cfgFile string
		envFile string
	)
	cmd := &cobra.Command{
		Use:   "smartlink",
		Short: "Open Graph previews and analytics for music smart links.",
		Long: `smartlink serves server-rendered link previews to social crawlers,
records view and click analytics for smart links, and publishes the sitemap
that points search engines at every public link.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := newLogger(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("logger init failed: %w", err)
			}
			zap.ReplaceGlobals(logger)
			cmd.SetContext(context.WithValue(cmd.Context(), envKey, &env{cfg: cfg, logger: logger}))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if e, ok := cmd.Context().Value(envKey).(*env); ok && e != nil {
				_ = e.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); env vars with the SMARTLINK_ prefix override it")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file loaded before the environment is read")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSitemapCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newClassifyCmd())
	cmd.AddCommand(newTokenCmd())

	return cmd
}

func resolveEnv(ctx context.Context) (*env, error) {
	e, ok := ctx.Value(envKey).(*env)
	if !ok || e == nil {
		return nil, errors.New("configuration not loaded")
	}
	return e, nil
}
