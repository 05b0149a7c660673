package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/cuongbtq/render-queue/internal/bootstrap"
	"github.com/cuongbtq/render-queue/internal/domain"
	"github.com/cuongbtq/render-queue/internal/service"
	"github.com/cuongbtq/render-queue/internal/storage"
	"github.com/spf13/cobra"
)

func newJobsCommand(opts *rootOptions) *cobra.Command {
	var (
		userID string
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:     "jobs",
		Args:    cobra.NoArgs,
		Aliases: []string{"j"},
		Short:   "List render jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}

			statusService, closeFn, err := opts.openStatusService()
			if err != nil {
				return err
			}
			defer closeFn()

			jobs, err := statusService.List(cmd.Context(), storage.JobFilter{
				UserID:   userID,
				Status:   domain.Status(status),
				PageSize: limit,
			})
			if err != nil {
				return err
			}
			if len(jobs) > limit {
				jobs = jobs[:limit]
			}

			return printJobs(cmd.OutOrStdout(), jobs)
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "only jobs of this user")
	cmd.Flags().StringVarP(&status, "status", "s", "", "only jobs in this status")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of jobs")

	cmd.AddCommand(newJobGetCommand(opts))
	return cmd
}

func newJobGetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <job-id>",
		Args:  cobra.ExactArgs(1),
		Short: "Show one job record as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			statusService, closeFn, err := opts.openStatusService()
			if err != nil {
				return err
			}
			defer closeFn()

			job, err := statusService.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(job)
		},
	}
}

// openStatusService connects to the record store for read-only commands
func (o *rootOptions) openStatusService() (*service.StatusService, func(), error) {
	cfg, appLogger, err := o.load()
	if err != nil {
		return nil, nil, err
	}

	dbClient, err := bootstrap.InitPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		appLogger.Close()
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	closeFn := func() {
		dbClient.Close()
		appLogger.Close()
	}
	return service.NewStatusService(storage.NewPostgresStore(dbClient, appLogger.Logger)), closeFn, nil
}

func printJobs(w io.Writer, jobs []domain.Job) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB ID\tSTATUS\tUSER\tDESIGN\tCREATED\tUPDATED\tRESULT")
	for _, j := range jobs {
		result := j.ResultURL
		if j.Status == domain.JobStatusFailed {
			result = j.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			j.JobID,
			j.Status,
			j.UserID,
			j.DesignID,
			j.CreatedAt.Format(time.RFC3339),
			j.UpdatedAt.Format(time.RFC3339),
			result,
		)
	}
	return tw.Flush()
}
