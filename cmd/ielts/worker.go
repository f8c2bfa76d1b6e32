package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-ielts/internal/worker"
)

func newWorkerCmd(c *cli) *cobra.Command {
	var taskQueue string
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run a Temporal worker for durable practice sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := c.loadConfig()
			if err != nil {
				return err
			}
			m, err := c.manager(ctx, true)
			if err != nil {
				return err
			}
			tc, err := worker.Dial(ctx, app.Temporal.HostPort, app.Temporal.Namespace, c.logger)
			if err != nil {
				return err
			}
			defer tc.Close()

			if taskQueue == "" {
				taskQueue = app.Temporal.TaskQueue
			}
			w := worker.New(tc, taskQueue, worker.NewActivities(m, nil, c.logger))
			if err := w.Start(); err != nil {
				return fmt.Errorf("start worker: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Worker listening on %s (%s). Press Ctrl-C to stop.\n",
				bold(taskQueue), app.Temporal.HostPort)

			<-ctx.Done()
			w.Stop()
			return nil
		},
	}
	cmd.Flags().StringVar(&taskQueue, "task-queue", "", "override the configured task queue")
	return cmd
}
