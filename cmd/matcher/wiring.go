package main

// wiring.go: construcción de los adapters según la config.

import (
	"context"
	"errors"
	"log/slog"

	"github.com/alejandrodnm/energymatch/config"
	"github.com/alejandrodnm/energymatch/internal/adapters/clock"
	"github.com/alejandrodnm/energymatch/internal/adapters/fixture"
	kafkasink "github.com/alejandrodnm/energymatch/internal/adapters/kafka"
	"github.com/alejandrodnm/energymatch/internal/adapters/natsbus"
	"github.com/alejandrodnm/energymatch/internal/adapters/notify"
	"github.com/alejandrodnm/energymatch/internal/adapters/redisbus"
	"github.com/alejandrodnm/energymatch/internal/ports"
)

type deps struct {
	source   ports.OrderSource
	sink     ports.SettlementSink
	triggers ports.TriggerSource
	markets  []string
	closers  []func() error
}

// Close libera las conexiones en orden inverso a su apertura.
func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			slog.Warn("close adapter", "err", err)
		}
	}
}

// applyDryRun redirige el binario a la fixture local y a la consola.
func applyDryRun(cfg *config.Config) {
	cfg.Source.Kind = "fixture"
	if cfg.Source.FixturePath == "" {
		cfg.Source.FixturePath = "testdata/fixtures/orders.json"
	}
	cfg.Settlement.Transport = "console"
	cfg.Trigger.Mode = "ticker"
}

func buildDeps(ctx context.Context, cfg *config.Config, table bool) (*deps, error) {
	d := &deps{markets: cfg.Matcher.Markets}

	var rdb *redisbus.Client
	if cfg.UsesRedis() {
		c, err := redisbus.NewClient(cfg.Redis.URL, redisbus.Channels{
			Request:         cfg.Redis.RequestChannel,
			Response:        cfg.Redis.ResponseChannel,
			Events:          cfg.Redis.EventsChannel,
			Recommendations: cfg.Redis.RecommendationsChannel,
		}, cfg.Redis.RequestsPerSecond)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, c.Close)
		if err := c.Ping(ctx); err != nil {
			d.Close()
			return nil, err
		}
		rdb = c
	}

	switch cfg.Source.Kind {
	case "fixture":
		src, err := fixture.NewSource(cfg.Source.FixturePath)
		if err != nil {
			d.Close()
			return nil, err
		}
		if len(d.markets) == 0 {
			if d.markets, err = src.Markets(); err != nil {
				d.Close()
				return nil, err
			}
		}
		d.source = src
	default:
		d.source = rdb
	}

	switch cfg.Trigger.Mode {
	case "ticker":
		t, err := clock.NewTicker(cfg.TickInterval(), 0)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.triggers = t
	default:
		d.triggers = rdb
	}

	switch cfg.Settlement.Transport {
	case "console":
		d.sink = notify.NewConsole(table)
	case "nats":
		s, err := natsbus.Connect(cfg.Settlement.NATSURL, cfg.Settlement.NATSSubject)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.closers = append(d.closers, func() error { s.Close(); return nil })
		d.sink = s
	case "kafka":
		s := kafkasink.NewSink(cfg.Settlement.KafkaBrokers, cfg.Settlement.KafkaTopic)
		d.closers = append(d.closers, s.Close)
		d.sink = s
	default:
		d.sink = rdb
	}

	if len(d.markets) == 0 && cfg.Trigger.Mode == "ticker" {
		d.Close()
		return nil, errors.New("main.buildDeps: ticker mode without markets")
	}
	return d, nil
}
