package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип события; он же routing key в ExchangeEvents.
type MessageType string

const (
	MessageTypeRunStarted   MessageType = "run.started"
	MessageTypeRunFinished  MessageType = "run.finished"
	MessageTypeStepFinished MessageType = "step.finished"
)

// Message — конверт события на проводе (JSON).
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewMessage заворачивает payload в конверт с новым ID и текущим временем.
func NewMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// publishing кодирует сообщение в persistent AMQP-публикацию.
func (m *Message) publishing() (amqp.Publishing, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal message: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    m.ID,
		Type:         string(m.Type),
		Timestamp:    m.Timestamp,
		Body:         body,
	}, nil
}

// Publisher отправляет сообщения через Connection.
// Пока соединение восстанавливается, Publish возвращает ErrNoChannel.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger}
}

// Publish отправляет msg в exchange с ключом key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, key RoutingKey, msg *Message) error {
	pub, err := msg.publishing()
	if err != nil {
		return err
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := ch.PublishWithContext(ctx, string(exchange), string(key), false, false, pub); err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, key, err)
		}
		p.logger.Debug("published message", "exchange", exchange, "routing_key", key, "message_id", msg.ID)
		return nil
	})
}

// PublishEvent публикует payload в ExchangeEvents с ключом msgType.
func (p *Publisher) PublishEvent(ctx context.Context, msgType MessageType, payload any) error {
	return p.Publish(ctx, ExchangeEvents, RoutingKey(msgType), NewMessage(msgType, payload))
}
