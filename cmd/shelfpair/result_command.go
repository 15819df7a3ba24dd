package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"shelfpair/internal/jobs"
)

func newResultCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "result <job-id>",
		Short: "Print the pairing result of a completed job as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(func(rt *runtime) error {
				job, err := rt.store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %s not found", args[0])
				}
				switch job.State {
				case jobs.StateCompleted:
				case jobs.StateFailed:
					return fmt.Errorf("job %s failed: %s", job.ID, job.ErrorMessage)
				default:
					return fmt.Errorf("job %s is %s; result not available yet", job.ID, job.State)
				}

				var pretty bytes.Buffer
				if err := json.Indent(&pretty, []byte(job.ResultJSON), "", "  "); err != nil {
					return fmt.Errorf("format result: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), pretty.String())
				return nil
			})
		},
	}
	return cmd
}
