// Package events publishes storefront activity (cart changes, confirmed
// orders) for downstream analytics. Publishing is best effort.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const Topic = "storefront-activity"

type Type string

const (
	CartItemAdded   Type = "cart.item_added"
	CartItemUpdated Type = "cart.item_updated"
	CartItemRemoved Type = "cart.item_removed"
	OrderConfirmed  Type = "order.confirmed"
)

type Event struct {
	Type Type `json:"type"`
	// Owner is the cache scope of the customer, never the raw token.
	Owner     string    `json:"owner"`
	ProductID int64     `json:"product_id,omitempty"`
	ItemID    string    `json:"item_id,omitempty"`
	Quantity  int       `json:"quantity,omitempty"`
	OrderID   string    `json:"order_id,omitempty"`
	At        time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event)
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	log    *zap.Logger
}

func NewKafkaPublisher(log *zap.Logger, brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		Async:                  false,
		WriteTimeout:           5 * time.Second,
	}
	return &KafkaPublisher{writer: w, log: log}
}

// Publish writes e keyed by owner so a customer's events stay ordered.
// Failures are logged and swallowed.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) {
	if err := p.publish(ctx, e); err != nil {
		p.log.Warn("publish activity event failed", zap.String("type", string(e.Type)), zap.Error(err))
	}
}

func (p *KafkaPublisher) publish(ctx context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(e.Owner),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Nop is used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

func (Nop) Close() error { return nil }
