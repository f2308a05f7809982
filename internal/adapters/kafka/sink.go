package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/alejandrodnm/energymatch/internal/adapters/wire"
	"github.com/alejandrodnm/energymatch/internal/domain"
	"github.com/alejandrodnm/energymatch/internal/ports"
)

var _ ports.SettlementSink = (*Sink)(nil)

// messageWriter es la parte de *kafka.Writer que usa el sink.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sink publica cada match set como un mensaje, con el market id como key
// para que los ciclos de un mercado queden en la misma partición.
type Sink struct {
	writer messageWriter
}

// NewSink crea un writer síncrono con acks de todas las réplicas.
func NewSink(brokers []string, topic string) *Sink {
	return NewSinkWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
	})
}

// NewSinkWithWriter envuelve un writer ya configurado.
func NewSinkWithWriter(w messageWriter) *Sink {
	return &Sink{writer: w}
}

func (s *Sink) Submit(ctx context.Context, matches []domain.BidOfferMatch) error {
	payload, err := wire.EncodeRecommendations(matches)
	if err != nil {
		return fmt.Errorf("kafka.Submit: %w", err)
	}
	var key []byte
	if len(matches) > 0 {
		key = []byte(matches[0].MarketID)
	}
	if err := s.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: payload}); err != nil {
		return fmt.Errorf("kafka.Submit: %w: %v", domain.ErrSink, err)
	}
	return nil
}

func (s *Sink) Close() error {
	return s.writer.Close()
}
