package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "run <job-id>",
		Short: "Process one bounded slice of a job, or follow it to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := args[0]
			return ctx.withRuntime(func(rt *runtime) error {
				for {
					needMore, err := rt.orch.ProcessInvocation(cmd.Context(), jobID)
					if err != nil {
						return err
					}

					job, getErr := rt.store.Get(cmd.Context(), jobID)
					if getErr != nil {
						return getErr
					}
					if job != nil {
						fmt.Fprintf(cmd.OutOrStdout(), "job %s: %s (%d/%d images)\n",
							job.ID, job.State, job.ProcessedCount, job.TotalImages)
					}

					if !needMore {
						return nil
					}
					if !follow {
						fmt.Fprintln(cmd.OutOrStdout(), "More work remains; re-run or use --follow.")
						return nil
					}
					select {
					case <-cmd.Context().Done():
						return cmd.Context().Err()
					case <-time.After(time.Second):
					}
				}
			})
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep invoking until the job reaches a terminal state")
	return cmd
}
