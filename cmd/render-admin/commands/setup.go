package commands

import (
	"fmt"

	"github.com/cuongbtq/render-queue/internal/bootstrap"
	"github.com/cuongbtq/render-queue/internal/storage"
	"github.com/spf13/cobra"
)

func newSetupCommand(opts *rootOptions) *cobra.Command {
	var skipBlob bool

	cmd := &cobra.Command{
		Use:   "setup",
		Args:  cobra.NoArgs,
		Short: "Create the database schema, queue topology and result bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, appLogger, err := opts.load()
			if err != nil {
				return err
			}
			defer appLogger.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			dbClient, err := bootstrap.InitPostgreSQL(&cfg.Database, appLogger.Logger)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer dbClient.Close()

			if err := storage.EnsureSchema(ctx, dbClient); err != nil {
				return err
			}
			fmt.Fprintf(out, "database: schema ready in %s\n", cfg.Database.Database)

			// connecting declares the exchange, queue and binding
			rabbitClient, err := bootstrap.InitRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
			if err != nil {
				return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
			}
			defer rabbitClient.Close()
			fmt.Fprintf(out, "rabbitmq: queue %s (%s) bound to %s\n",
				cfg.RabbitMQ.Queue.Name, cfg.RabbitMQ.Queue.Type, cfg.RabbitMQ.Exchange.Name)

			if skipBlob {
				return nil
			}

			blobStore, err := bootstrap.NewBlobStore(ctx, &cfg.Blob)
			if err != nil {
				return fmt.Errorf("failed to initialize blob store: %w", err)
			}
			if err := blobStore.Ensure(ctx); err != nil {
				return fmt.Errorf("failed to prepare blob store: %w", err)
			}
			fmt.Fprintf(out, "blob: %s store ready\n", cfg.Blob.Provider)

			return nil
		},
	}

	cmd.Flags().BoolVar(&skipBlob, "skip-blob", false, "do not create the result bucket or directory")
	return cmd
}
