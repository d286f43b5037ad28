package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// envelope is the wire shape of every event body.
type envelope struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

func encode(routingKey string, payload any, now time.Time) ([]byte, error) {
	return json.Marshal(envelope{Type: routingKey, Timestamp: now.UTC(), Payload: payload})
}

// Rabbit publishes JSON envelopes to a durable topic exchange.
type Rabbit struct {
	exchange string
	conn     *amqp.Connection

	mu sync.Mutex // amqp channels are not safe for concurrent publishes
	ch *amqp.Channel
}

func NewRabbit(url, exchange string) (*Rabbit, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Rabbit{exchange: exchange, conn: conn, ch: ch}, nil
}

// Connect returns a Rabbit publisher, or Nop when url is empty or the
// broker cannot be reached.
func Connect(url, exchange string) Publisher {
	if url == "" {
		log.Info().Msg("RABBIT_URL not set, events disabled")
		return Nop{}
	}
	r, err := NewRabbit(url, exchange)
	if err != nil {
		log.Warn().Err(err).Msg("rabbitmq unavailable, events disabled")
		return Nop{}
	}
	log.Info().Str("exchange", exchange).Msg("rabbitmq publisher ready")
	return r
}

func (r *Rabbit) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := encode(routingKey, payload, time.Now())
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	log.Debug().Str("event", routingKey).Msg("publish")
	return r.ch.PublishWithContext(ctx, r.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

func (r *Rabbit) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ch != nil {
		_ = r.ch.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
