package redisbus

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Channels son los canales pub/sub del protocolo de la exchange.
type Channels struct {
	Request         string // pedidos de órdenes abiertas
	Response        string // respuestas con bids_offers
	Events          string // ticks de slot_completion o contador
	Recommendations string // matches propuestos
}

// Client habla el protocolo pub/sub de la exchange sobre Redis. Implementa
// OrderSource, TriggerSource y SettlementSink.
type Client struct {
	rdb      *redis.Client
	channels Channels
	limiter  *rate.Limiter
}

// NewClient abre un cliente contra url (redis://host:port/db).
// requestsPerSecond <= 0 desactiva el rate limiting de publicaciones.
func NewClient(url string, channels Channels, requestsPerSecond float64) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redisbus.NewClient: parse url: %w", err)
	}
	return NewClientFrom(redis.NewClient(opts), channels, requestsPerSecond), nil
}

// NewClientFrom envuelve un *redis.Client ya configurado.
func NewClientFrom(rdb *redis.Client, channels Channels, requestsPerSecond float64) *Client {
	limit := rate.Inf
	burst := 1
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
		burst = max(1, int(requestsPerSecond/4))
	}
	return &Client{
		rdb:      rdb,
		channels: channels,
		limiter:  rate.NewLimiter(limit, burst),
	}
}

// Ping verifica la conexión.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redisbus.Ping: %w", err)
	}
	return nil
}

// Close cierra el pool de conexiones.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// publish espera turno en el limiter y publica payload en channel.
func (c *Client) publish(ctx context.Context, channel string, payload []byte) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	if err := c.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// subscribe abre una suscripción y espera la confirmación del servidor, así
// ningún mensaje publicado después de volver se pierde.
func (c *Client) subscribe(ctx context.Context, channel string) (*redis.PubSub, error) {
	sub := c.rdb.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	return sub, nil
}
