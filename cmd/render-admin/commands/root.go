package commands

import (
	"fmt"
	"log"
	"os"

	"github.com/cuongbtq/render-queue/internal/bootstrap"
	"github.com/cuongbtq/render-queue/internal/config"
	"github.com/cuongbtq/render-queue/shared/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:          "render-admin",
		Short:        "Operate the render job pipeline",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(); err != nil {
				log.Println("No .env file found, using environment variables or flags")
			}
		},
	}

	defaultConfigPath := os.Getenv("RENDER_ADMIN_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "Path to configuration file")

	rootCmd.AddCommand(
		newSetupCommand(opts),
		newJobsCommand(opts),
		newDeadLettersCommand(opts),
		newQueueCommand(opts),
	)

	return rootCmd
}

// load reads the configuration and builds a logger for a command
func (o *rootOptions) load() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	appLogger, err := bootstrap.InitLogger(&cfg.Logging, "render-admin")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, appLogger, nil
}
