package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// ExchangeEvents — topic-обменник событий выполнения pipeline.
const ExchangeEvents Exchange = "spaicer.events"

// QueueRunsFinished — очередь итогов runs для внешних потребителей.
const QueueRunsFinished Queue = "spaicer.runs.finished"

// Routing keys.
const (
	RoutingKeyRunStarted   RoutingKey = "run.started"
	RoutingKeyRunFinished  RoutingKey = "run.finished"
	RoutingKeyStepFinished RoutingKey = "step.finished"

	// RoutingKeyAll — все события.
	RoutingKeyAll RoutingKey = "#"
)

// maxQueueLength — ограничение очереди итогов, если её никто не читает.
const maxQueueLength = 10000

// SetupTopology объявляет обменник событий и очередь итогов runs.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchange(ch); err != nil {
			return err
		}

		_, err := ch.QueueDeclare(
			string(QueueRunsFinished), // name
			true,                      // durable
			false,                     // delete when unused
			false,                     // exclusive
			false,                     // no-wait
			amqp.Table{"x-max-length": int32(maxQueueLength)},
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", QueueRunsFinished, err)
		}

		err = ch.QueueBind(
			string(QueueRunsFinished),
			string(RoutingKeyRunFinished),
			string(ExchangeEvents),
			false,
			nil,
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", QueueRunsFinished, ExchangeEvents, err)
		}

		return nil
	})
}

// DeclareWatchQueue объявляет временную эксклюзивную очередь,
// получающую события по routingKey (например, "#" или "run.*").
// Возвращает сгенерированное имя очереди.
func DeclareWatchQueue(ch *amqp.Channel, routingKey RoutingKey) (string, error) {
	if err := declareExchange(ch); err != nil {
		return "", err
	}

	q, err := ch.QueueDeclare(
		"",    // имя генерирует брокер
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("declare watch queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, string(routingKey), string(ExchangeEvents), false, nil); err != nil {
		return "", fmt.Errorf("bind watch queue: %w", err)
	}

	return q.Name, nil
}

func declareExchange(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		string(ExchangeEvents), // name
		"topic",                // type
		true,                   // durable
		false,                  // auto-deleted
		false,                  // internal
		false,                  // no-wait
		nil,                    // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", ExchangeEvents, err)
	}
	return nil
}
