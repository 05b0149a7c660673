package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cuongbtq/render-queue/internal/bootstrap"
	"github.com/cuongbtq/render-queue/internal/storage"
	"github.com/spf13/cobra"
)

func newDeadLettersCommand(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "dead-letters",
		Args:    cobra.NoArgs,
		Aliases: []string{"dlq"},
		Short:   "List queue messages the worker gave up on",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, appLogger, err := opts.load()
			if err != nil {
				return err
			}
			defer appLogger.Close()

			dbClient, err := bootstrap.InitPostgreSQL(&cfg.Database, appLogger.Logger)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer dbClient.Close()

			store := storage.NewPostgresStore(dbClient, appLogger.Logger)
			letters, err := store.ListDeadLetters(cmd.Context(), limit)
			if err != nil {
				return err
			}

			return printDeadLetters(cmd.OutOrStdout(), letters)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of entries")
	return cmd
}

func printDeadLetters(w io.Writer, letters []storage.DeadLetter) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDEDUP ID\tRECEIVES\tRECORDED\tREASON\tBODY")
	for _, dl := range letters {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\n",
			dl.ID,
			dl.DedupID,
			dl.ReceiveCount,
			dl.CreatedAt.Format(time.RFC3339),
			dl.Reason,
			preview(string(dl.Body), 60),
		)
	}
	return tw.Flush()
}

// preview flattens a message body onto one bounded line
func preview(body string, n int) string {
	body = strings.Join(strings.Fields(body), " ")
	if len(body) > n {
		return body[:n] + "..."
	}
	return body
}
