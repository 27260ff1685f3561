package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewScheduleCmd создаёт группу команд для расписания.
func NewScheduleCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Inspect or toggle the pipeline schedule",
	}

	cmd.AddCommand(
		newScheduleShowCmd(clientFn, outputFn),
		newScheduleToggleCmd("enable", "Enable the schedule", true, clientFn, outputFn),
		newScheduleToggleCmd("disable", "Disable the schedule", false, clientFn, outputFn),
	)

	return cmd
}

var scheduleHeaders = []string{"CRON", "TIMEZONE", "ENABLED", "CATCHUP", "NEXT_DUE", "LAST_RUN", "LAST_RUN_ID"}

func scheduleRow(s *ScheduleResponse) []string {
	return []string{
		s.CronExpr,
		s.Timezone,
		strconv.FormatBool(s.Enabled),
		strconv.FormatBool(s.Catchup),
		orDash(s.NextDueAt),
		orDash(s.LastRunAt),
		orDash(s.LastRunID),
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newScheduleShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			schedule, err := client.GetSchedule()
			if err != nil {
				return err
			}

			out.Print(scheduleHeaders, [][]string{scheduleRow(schedule)}, schedule)
			return nil
		},
	}
}

func newScheduleToggleCmd(use, short string, enabled bool, clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			schedule, err := client.SetScheduleEnabled(enabled)
			if err != nil {
				return err
			}

			if enabled {
				out.Success("Schedule enabled")
			} else {
				out.Success("Schedule disabled")
			}
			out.Print(scheduleHeaders, [][]string{scheduleRow(schedule)}, schedule)
			return nil
		},
	}
}
