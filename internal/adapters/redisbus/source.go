package redisbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/energymatch/internal/adapters/wire"
	"github.com/alejandrodnm/energymatch/internal/domain"
	"github.com/alejandrodnm/energymatch/internal/ports"
)

var _ ports.OrderSource = (*Client)(nil)

// FetchOpenOrders publica un pedido y espera la primera respuesta que traiga
// órdenes de ref.MarketID. Las respuestas para otros mercados se ignoran.
// El plazo lo pone ctx.
func (c *Client) FetchOpenOrders(ctx context.Context, ref domain.MarketRef) ([]domain.OrderBookSnapshot, error) {
	sub, err := c.subscribe(ctx, c.channels.Response)
	if err != nil {
		return nil, fmt.Errorf("redisbus.FetchOpenOrders: %w: %v", domain.ErrSourceUnavailable, err)
	}
	defer sub.Close()

	req, err := wire.EncodeOrdersRequest(ref)
	if err != nil {
		return nil, fmt.Errorf("redisbus.FetchOpenOrders: encode request: %w", err)
	}
	if err := c.publish(ctx, c.channels.Request, req); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("redisbus.FetchOpenOrders: %w", ctx.Err())
		}
		return nil, fmt.Errorf("redisbus.FetchOpenOrders: %w: %v", domain.ErrSourceUnavailable, err)
	}

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("redisbus.FetchOpenOrders: %s: waiting for response: %w", ref, ctx.Err())
		case msg, ok := <-msgs:
			if !ok {
				return nil, fmt.Errorf("redisbus.FetchOpenOrders: %w: subscription closed", domain.ErrSourceUnavailable)
			}
			payload := []byte(msg.Payload)
			if !wire.ContainsMarket(payload, ref.MarketID) {
				slog.Debug("response for another market ignored", "market", ref.MarketID)
				continue
			}
			snaps, err := wire.DecodeOrdersResponse(payload)
			if err != nil {
				return nil, fmt.Errorf("redisbus.FetchOpenOrders: %w", err)
			}
			return wire.FilterSnapshots(snaps, ref), nil
		}
	}
}
