package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewRunsCmd создаёт группу команд для истории runs через API.
func NewRunsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect and trigger runs via the API",
	}

	cmd.AddCommand(
		newRunsListCmd(clientFn, outputFn),
		newRunsShowCmd(clientFn, outputFn),
		newRunsTasksCmd(clientFn, outputFn),
		newRunsTriggerCmd(clientFn, outputFn),
	)

	return cmd
}

var runHeaders = []string{"ID", "STATUS", "PHASE", "TRIGGER", "DURATION", "CREATED"}

func runRow(r RunResponse) []string {
	return []string{r.ID, r.Status, r.Phase, r.Trigger, formatMs(r.DurationMs), r.CreatedAt}
}

var taskHeaders = []string{"STEP_ID", "TYPE", "STATUS", "NEXT", "DURATION", "ERROR"}

func taskRow(t TaskResponse) []string {
	return []string{t.StepID, t.Type, t.Status, t.Next, formatMs(t.DurationMs), t.Error}
}

func formatMs(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return strconv.FormatInt(ms, 10) + "ms"
}

func newRunsListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListRunsOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.ListRuns(opts)
			if err != nil {
				return err
			}

			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = runRow(r)
			}

			out.Print(runHeaders, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status (PENDING, RUNNING, SUCCEEDED, FAILED)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of results")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "Number of results to skip")

	return cmd
}

func newRunsShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.GetRun(args[0])
			if err != nil {
				return err
			}

			out.Print(
				append(runHeaders, "ERROR"),
				[][]string{append(runRow(*run), run.Error)},
				run,
			)
			return nil
		},
	}
}

func newRunsTasksCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks RUN_ID",
		Short: "List tasks in a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tasks, err := client.ListTasks(args[0])
			if err != nil {
				return err
			}

			rows := make([][]string, len(tasks))
			for i, t := range tasks {
				rows[i] = taskRow(t)
			}

			out.Print(taskHeaders, rows, tasks)
			return nil
		},
	}
}

func newRunsTriggerCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "trigger",
		Short: "Trigger a manual run and wait for it to finish",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			resp, err := client.TriggerRun()
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run %s finished: %s", resp.Run.ID, resp.Run.Status))

			rows := make([][]string, len(resp.Tasks))
			for i, t := range resp.Tasks {
				rows[i] = taskRow(t)
			}
			out.Print(taskHeaders, rows, resp)

			if resp.Run.Status == "FAILED" {
				return fmt.Errorf("run failed: %s", resp.Run.Error)
			}
			return nil
		},
	}
}
