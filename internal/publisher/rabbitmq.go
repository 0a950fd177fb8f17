package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"notion_sync/internal/domain"
)

// RabbitMQ announces written posts on a durable direct exchange.
type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *slog.Logger
}

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger.With("component", "publisher"),
	}, nil
}

// declareTopology makes sure the exchange and the rebuild queue exist, so
// messages published before any consumer starts are kept.
func declareTopology(ch *amqp.Channel, cfg Config) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// ContentMessage tells downstream consumers (a site rebuild, a search indexer)
// that a post file changed.
type ContentMessage struct {
	Action         string    `json:"action"` // "create" or "update"
	ExternalID     string    `json:"external_id"`
	Title          string    `json:"title"`
	Slug           string    `json:"slug"`
	Path           string    `json:"path"`
	Categories     []string  `json:"categories"`
	Tags           []string  `json:"tags"`
	LastEditedTime time.Time `json:"last_edited_time"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewContentMessage(doc *domain.ConvertedDocument, path string, isNew bool) ContentMessage {
	action := "update"
	if isNew {
		action = "create"
	}

	tags := doc.Tags
	if tags == nil {
		tags = []string{}
	}

	return ContentMessage{
		Action:         action,
		ExternalID:     doc.ExternalID,
		Title:          doc.Title,
		Slug:           doc.Slug,
		Path:           path,
		Categories:     []string{doc.Taxonomy.Primary, doc.Taxonomy.Secondary},
		Tags:           tags,
		LastEditedTime: doc.LastEditedTime,
		Timestamp:      time.Now().UTC(),
	}
}

func (r *RabbitMQ) Publish(ctx context.Context, doc *domain.ConvertedDocument, path string, isNew bool) error {
	msg := NewContentMessage(doc, path, isNew)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		r.exchange,
		r.routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    doc.ExternalID,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	r.logger.Debug("published content change",
		"external_id", doc.ExternalID,
		"path", path,
		"action", msg.Action,
	)

	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
