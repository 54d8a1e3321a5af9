package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/grepdeck/authgate/internal/audit"
	"github.com/grepdeck/authgate/internal/logger"
)

const (
	DefaultExchange = "authgate.audit"

	publishTimeout = 2 * time.Second
)

// Sink publishes audit events to a durable topic exchange. It satisfies
// audit.Sink: Record returns immediately and the publish happens in the
// background, with failures logged and dropped. The auth path never waits
// on the broker.
type Sink struct {
	url      string
	exchange string

	mu sync.Mutex

	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewSink(url, exchange string) (*Sink, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	s := &Sink{
		url:      url,
		exchange: exchange,
	}
	if err := s.connect(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ch != nil {
		_ = s.ch.Close()
		s.ch = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	return nil
}

// ---- audit.Sink ----

func (s *Sink) Record(ctx context.Context, e audit.Event) {
	log := logger.WithCtx(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		if err := s.publishJSON(ctx, "audit."+e.Action, e); err != nil {
			log.Warn().Err(err).Str("action", e.Action).Msg("audit publish dropped")
		}
	}()
}

// ---- internal ----

func (s *Sink) connect() error {
	conn, err := amqp.Dial(s.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}

	// Declare topic exchange (idempotent).
	if err := ch.ExchangeDeclare(
		s.exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false,
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("exchange declare: %w", err)
	}

	s.conn = conn
	s.ch = ch
	return nil
}

func (s *Sink) ensureConnected() error {
	if s.conn != nil && !s.conn.IsClosed() && s.ch != nil {
		return nil
	}
	return s.connect()
}

func (s *Sink) publishJSON(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureConnected(); err != nil {
		return err
	}

	if err := s.ch.PublishWithContext(
		ctx,
		s.exchange,
		routingKey,
		false, // mandatory; nobody listening is not an auth problem
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	); err != nil {
		// force a reconnect on the next event
		s.resetConn()
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

func (s *Sink) resetConn() {
	if s.ch != nil {
		_ = s.ch.Close()
		s.ch = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}
