package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"shelfpair/internal/jobs"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [job-id]",
		Short: "Show job status, or list all jobs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(func(rt *runtime) error {
				out := cmd.OutOrStdout()
				if len(args) == 1 {
					job, err := rt.store.Get(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					if job == nil {
						return fmt.Errorf("job %s not found", args[0])
					}
					printJobDetail(out, job)
					return nil
				}

				jobList, err := rt.store.List(cmd.Context())
				if err != nil {
					return err
				}
				if len(jobList) == 0 {
					fmt.Fprintln(out, "No jobs.")
					return nil
				}
				printJobTable(out, jobList)
				return nil
			})
		},
	}
	return cmd
}

func printJobTable(out io.Writer, jobList []*jobs.Job) {
	colorize := shouldColorize(out)
	rows := make([][]string, 0, len(jobList))
	for _, job := range jobList {
		state := string(job.State)
		if colorize {
			state = colorizeState(job.State)
		}
		rows = append(rows, []string{
			job.ID,
			state,
			fmt.Sprintf("%d/%d", job.ProcessedCount, job.TotalImages),
			job.Owner,
			job.CreatedAt.Local().Format(time.DateTime),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "State", "Progress", "Owner", "Created"},
		rows,
		2,
	))
}

func printJobDetail(out io.Writer, job *jobs.Job) {
	fmt.Fprintf(out, "ID:        %s\n", job.ID)
	fmt.Fprintf(out, "State:     %s\n", job.State)
	fmt.Fprintf(out, "Progress:  %d/%d images\n", job.ProcessedCount, job.TotalImages)
	if job.Owner != "" {
		fmt.Fprintf(out, "Owner:     %s\n", job.Owner)
	}
	fmt.Fprintf(out, "Created:   %s\n", job.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(out, "Updated:   %s\n", job.UpdatedAt.Local().Format(time.DateTime))
	if !job.ExpiresAt.IsZero() {
		fmt.Fprintf(out, "Expires:   %s\n", job.ExpiresAt.Local().Format(time.DateTime))
	}
	if job.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:     %s\n", job.ErrorMessage)
	}
	if job.State == jobs.StateCompleted {
		fmt.Fprintf(out, "Result:    available via `shelfpair result %s`\n", job.ID)
	}
}

const (
	ansiReset  = "\x1b[0m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiRed    = "\x1b[31m"
)

func colorizeState(state jobs.State) string {
	switch state {
	case jobs.StateCompleted:
		return ansiGreen + string(state) + ansiReset
	case jobs.StateFailed:
		return ansiRed + string(state) + ansiReset
	case jobs.StateProcessing:
		return ansiYellow + string(state) + ansiReset
	default:
		return string(state)
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
