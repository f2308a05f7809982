package clock

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/energymatch/internal/domain"
	"github.com/alejandrodnm/energymatch/internal/ports"
)

var _ ports.TriggerSource = (*Ticker)(nil)

// Ticker emite eventos de contador a intervalo fijo, para despliegues sin un
// contador externo (bloques de cadena). El contador empieza en 1.
type Ticker struct {
	interval time.Duration
	limit    uint64 // 0 = sin límite
}

// NewTicker crea un Ticker. limit > 0 cierra el canal tras limit eventos.
func NewTicker(interval time.Duration, limit uint64) (*Ticker, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("clock.NewTicker: %w: interval must be > 0", domain.ErrConfiguration)
	}
	return &Ticker{interval: interval, limit: limit}, nil
}

func (t *Ticker) Triggers(ctx context.Context) (<-chan domain.TriggerEvent, error) {
	out := make(chan domain.TriggerEvent)
	go func() {
		defer close(out)
		tk := time.NewTicker(t.interval)
		defer tk.Stop()

		var n uint64
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-tk.C:
				n++
				ev := domain.TriggerEvent{Kind: domain.TriggerCounter, Counter: n, ReceivedAt: now}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
				if t.limit > 0 && n >= t.limit {
					return
				}
			}
		}
	}()
	return out, nil
}
