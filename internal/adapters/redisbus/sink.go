package redisbus

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/energymatch/internal/adapters/wire"
	"github.com/alejandrodnm/energymatch/internal/domain"
	"github.com/alejandrodnm/energymatch/internal/ports"
)

var _ ports.SettlementSink = (*Client)(nil)

// Submit publica el match set en el canal de recomendaciones.
func (c *Client) Submit(ctx context.Context, matches []domain.BidOfferMatch) error {
	payload, err := wire.EncodeRecommendations(matches)
	if err != nil {
		return fmt.Errorf("redisbus.Submit: %w", err)
	}
	if err := c.publish(ctx, c.channels.Recommendations, payload); err != nil {
		return fmt.Errorf("redisbus.Submit: %w: %v", domain.ErrSink, err)
	}
	return nil
}
