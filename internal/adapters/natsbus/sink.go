package natsbus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/alejandrodnm/energymatch/internal/adapters/wire"
	"github.com/alejandrodnm/energymatch/internal/domain"
	"github.com/alejandrodnm/energymatch/internal/ports"
)

var _ ports.SettlementSink = (*Sink)(nil)

// publisher es la parte de *nats.Conn que usa el sink.
type publisher interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// Sink publica los matches de cada ciclo en un subject de NATS.
type Sink struct {
	conn    publisher
	subject string
	close   func()
}

// Connect abre la conexión a url y devuelve un Sink sobre subject.
func Connect(url, subject string) (*Sink, error) {
	conn, err := nats.Connect(url,
		nats.Name("energymatch"),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(10),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("natsbus.Connect: %w", err)
	}
	s := NewSink(conn, subject)
	s.close = func() {
		_ = conn.Drain()
		conn.Close()
	}
	return s, nil
}

// NewSink envuelve una conexión existente.
func NewSink(conn publisher, subject string) *Sink {
	return &Sink{conn: conn, subject: subject}
}

// Submit publica el match set y espera el flush al servidor, que hace de ack.
func (s *Sink) Submit(ctx context.Context, matches []domain.BidOfferMatch) error {
	payload, err := wire.EncodeRecommendations(matches)
	if err != nil {
		return fmt.Errorf("natsbus.Submit: %w", err)
	}
	if err := s.conn.Publish(s.subject, payload); err != nil {
		return fmt.Errorf("natsbus.Submit: %w: publish: %v", domain.ErrSink, err)
	}
	if err := s.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("natsbus.Submit: %w: flush: %v", domain.ErrSink, err)
	}
	return nil
}

// Close drena y cierra la conexión si la abrió Connect.
func (s *Sink) Close() {
	if s.close != nil {
		s.close()
	}
}
