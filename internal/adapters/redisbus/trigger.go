package redisbus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/energymatch/internal/adapters/wire"
	"github.com/alejandrodnm/energymatch/internal/domain"
	"github.com/alejandrodnm/energymatch/internal/ports"
)

var _ ports.TriggerSource = (*Client)(nil)

const triggerBuffer = 64

// Triggers se suscribe al canal de eventos y traduce cada tick a un
// domain.TriggerEvent. Los mensajes ilegibles se loguean y se descartan.
func (c *Client) Triggers(ctx context.Context) (<-chan domain.TriggerEvent, error) {
	sub, err := c.subscribe(ctx, c.channels.Events)
	if err != nil {
		return nil, fmt.Errorf("redisbus.Triggers: %w", err)
	}

	out := make(chan domain.TriggerEvent, triggerBuffer)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					slog.Warn("events subscription closed", "channel", c.channels.Events)
					return
				}
				ev, err := wire.DecodeTickEvent([]byte(msg.Payload), time.Now())
				if err != nil {
					slog.Warn("event dropped", "channel", msg.Channel, "err", err)
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
