package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/cobra"

	"github.com/shaiso/spaicer/internal/mq"
	"github.com/shaiso/spaicer/internal/telemetry"
)

// NewWatchCmd создаёт команду просмотра событий pipeline из RabbitMQ.
func NewWatchCmd(outputFn func() *Output) *cobra.Command {
	var (
		amqpURL string
		key     string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream run and step events from RabbitMQ",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			ctx := cmd.Context()

			logger := telemetry.NewLogger(out.errW, telemetry.LogLevel(), os.Getenv("LOG_FORMAT"))

			conn, err := mq.NewConnection(ctx, amqpURL, logger)
			if err != nil {
				return fmt.Errorf("connect to RabbitMQ: %w", err)
			}
			defer conn.Close()

			consumer := mq.NewConsumer(conn, logger, mq.ConsumerConfig{
				Declare: func(ch *amqp.Channel) (string, error) {
					return mq.DeclareWatchQueue(ch, mq.RoutingKey(key))
				},
				Handler: func(_ context.Context, d *mq.Delivery) error {
					if out.jsonMode {
						out.JSON(d.Message)
						return nil
					}
					out.Line("%s", FormatEvent(&d.Message))
					return nil
				},
				Prefetch: 16,
			})

			out.Success(fmt.Sprintf("Watching %q on %s (Ctrl+C to stop)", key, mq.ExchangeEvents))

			err = consumer.Start(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	defaultURL := os.Getenv("RABBITMQ_URL")
	if defaultURL == "" {
		defaultURL = mq.DefaultURL()
	}
	cmd.Flags().StringVar(&amqpURL, "rabbitmq-url", defaultURL, "RabbitMQ URL")
	cmd.Flags().StringVar(&key, "key", string(mq.RoutingKeyAll), "Routing key pattern (run.*, step.finished, #)")

	return cmd
}

// FormatEvent превращает событие в одну строку для терминала.
func FormatEvent(msg *mq.Message) string {
	ts := msg.Timestamp.Format("15:04:05")

	switch msg.Type {
	case mq.MessageTypeRunStarted, mq.MessageTypeRunFinished:
		p, err := mq.ParsePayload[mq.RunEventPayload](msg)
		if err != nil {
			break
		}
		line := fmt.Sprintf("%s %-13s run=%s status=%s trigger=%s", ts, msg.Type, p.RunID, p.Status, p.Trigger)
		if p.DurationMs > 0 {
			line += fmt.Sprintf(" duration=%dms", p.DurationMs)
		}
		if p.Error != "" {
			line += fmt.Sprintf(" error=%q", p.Error)
		}
		return line

	case mq.MessageTypeStepFinished:
		p, err := mq.ParsePayload[mq.StepEventPayload](msg)
		if err != nil {
			break
		}
		line := fmt.Sprintf("%s %-13s run=%s step=%s status=%s", ts, msg.Type, p.RunID, p.StepID, p.Status)
		if p.Next != "" {
			line += " next=" + p.Next
		}
		if p.Error != "" {
			line += fmt.Sprintf(" error=%q", p.Error)
		}
		return line
	}

	return fmt.Sprintf("%s %-13s %v", ts, msg.Type, msg.Payload)
}
