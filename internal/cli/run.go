package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shaiso/spaicer/internal/config"
	"github.com/shaiso/spaicer/internal/domain"
	"github.com/shaiso/spaicer/internal/pipeline"
	"github.com/shaiso/spaicer/internal/telemetry"
)

// NewRunCmd создаёт команду однократного локального запуска pipeline.
//
// Запуск не требует API: шаги обращаются к endpoints напрямую,
// история никуда не сохраняется.
func NewRunCmd(outputFn func() *Output) *cobra.Command {
	var fault string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the pipeline once locally and print its tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("fault") {
				cfg.Fault = fault
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			logger := telemetry.NewLogger(out.errW, telemetry.ParseLevel(cfg.LogLevel), cfg.LogFormat)

			report, err := RunOnce(cmd.Context(), cfg, logger)
			if report == nil {
				return err
			}

			tasks := make([]TaskResponse, len(report.Tasks))
			rows := make([][]string, len(report.Tasks))
			for i, t := range report.Tasks {
				tasks[i] = taskFromDomain(t)
				rows[i] = taskRow(tasks[i])
			}

			out.Success(fmt.Sprintf("Run %s finished: %s", report.Run.ID, report.Run.Status))
			out.Print(taskHeaders, rows, TriggerRunResponse{
				Run:   runFromDomain(report.Run),
				Tasks: tasks,
			})
			return err
		},
	}

	cmd.Flags().StringVar(&fault, "fault", "", "Override SPAICER_FAULT (second-window, none, probability:<p>)")

	return cmd
}

// RunOnce выполняет pipeline один раз по конфигурации cfg.
func RunOnce(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline.Report, error) {
	stepsCfg, err := cfg.StepsConfig()
	if err != nil {
		return nil, err
	}

	runner, err := pipeline.New(pipeline.Config{
		Registry: pipeline.NewRegistry(stepsCfg),
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	return runner.Execute(ctx, domain.TriggerManual, nil)
}

func runFromDomain(r *domain.Run) RunResponse {
	return RunResponse{
		ID:           r.ID.String(),
		Pipeline:     r.Pipeline,
		Status:       string(r.Status),
		Phase:        string(r.Phase),
		Trigger:      string(r.Trigger),
		ScheduledFor: formatTime(r.ScheduledFor),
		StartedAt:    formatTime(r.StartedAt),
		FinishedAt:   formatTime(r.FinishedAt),
		DurationMs:   r.Duration().Milliseconds(),
		Error:        r.Error,
		CreatedAt:    r.CreatedAt.Format(timeLayout),
	}
}

func taskFromDomain(t *domain.Task) TaskResponse {
	return TaskResponse{
		ID:         t.ID.String(),
		RunID:      t.RunID.String(),
		StepID:     t.StepID,
		Type:       t.Type,
		Status:     string(t.Status),
		Output:     t.Output,
		Next:       t.Next,
		StartedAt:  formatTime(t.StartedAt),
		FinishedAt: formatTime(t.FinishedAt),
		DurationMs: t.Duration().Milliseconds(),
		Error:      t.Error,
		CreatedAt:  t.CreatedAt.Format(timeLayout),
	}
}
