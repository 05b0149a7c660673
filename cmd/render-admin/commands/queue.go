package commands

import (
	"fmt"

	"github.com/cuongbtq/render-queue/internal/bootstrap"
	"github.com/spf13/cobra"
)

func newQueueCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Args:  cobra.NoArgs,
		Short: "Show the render queue depth and consumer count",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, appLogger, err := opts.load()
			if err != nil {
				return err
			}
			defer appLogger.Close()

			rabbitClient, err := bootstrap.InitRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
			if err != nil {
				return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
			}
			defer rabbitClient.Close()

			messages, consumers, err := rabbitClient.Inspect()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "queue: %s\nready messages: %d\nconsumers: %d\n",
				rabbitClient.QueueName(), messages, consumers)
			return nil
		},
	}
}
