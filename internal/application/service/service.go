package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/energymatch/internal/application/orchestrator"
	"github.com/alejandrodnm/energymatch/internal/application/scheduler"
	"github.com/alejandrodnm/energymatch/internal/domain"
	"github.com/alejandrodnm/energymatch/internal/ports"
)

// Config is everything the service needs besides its collaborators.
type Config struct {
	Cycle          orchestrator.Config
	TriggerMode    string
	TriggerModulus uint64
	SlotThreshold  float64
	Markets        []string // markets served when a trigger carries no market id
	Workers        int      // RunOnce parallelism; <= 0 means NumCPU
}

// DefaultConfig returns a counter-triggered service with production budgets.
func DefaultConfig() Config {
	return Config{
		Cycle:          orchestrator.DefaultConfig(),
		TriggerMode:    scheduler.ModeCounter,
		TriggerModulus: scheduler.DefaultModulus,
		SlotThreshold:  scheduler.DefaultThresholdPercent,
	}
}

// Validate checks the cycle budget and the trigger model.
func (c Config) Validate() error {
	_, err := c.validate()
	return err
}

// validate returns the trigger policy built while checking the config.
func (c Config) validate() (scheduler.Policy, error) {
	if err := c.Cycle.Validate(); err != nil {
		return nil, err
	}
	policy, err := scheduler.NewPolicy(c.TriggerMode, c.TriggerModulus, c.SlotThreshold)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(c.Markets))
	for _, m := range c.Markets {
		if m == "" {
			return nil, fmt.Errorf("%w: empty market id", domain.ErrConfiguration)
		}
		if seen[m] {
			return nil, fmt.Errorf("%w: duplicated market %q", domain.ErrConfiguration, m)
		}
		seen[m] = true
	}
	return policy, nil
}

// Service listens for triggers and dispatches one cycle per triggered market.
type Service struct {
	cfg      Config
	triggers ports.TriggerSource
	policy   scheduler.Policy
	leases   *scheduler.Leases
	orch     *orchestrator.Orchestrator
}

// New validates cfg and wires the orchestrator. Configuration problems are
// returned wrapped in domain.ErrConfiguration.
func New(
	cfg Config,
	source ports.OrderSource,
	sink ports.SettlementSink,
	triggers ports.TriggerSource,
	opts ...orchestrator.Option,
) (*Service, error) {
	policy, err := cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("service.New: %w", err)
	}
	leases := scheduler.NewLeases()

	return &Service{
		cfg:      cfg,
		triggers: triggers,
		policy:   policy,
		leases:   leases,
		orch:     orchestrator.New(cfg.Cycle, source, sink, leases, opts...),
	}, nil
}

// Run consumes triggers until ctx is cancelled or the trigger stream ends.
// The listener never waits on a cycle; on exit it waits for in-flight cycles.
func (s *Service) Run(ctx context.Context) error {
	events, err := s.triggers.Triggers(ctx)
	if err != nil {
		return fmt.Errorf("service.Run: subscribe triggers: %w", err)
	}
	defer s.orch.Wait()

	slog.Info("matching service starting",
		"trigger_mode", s.cfg.TriggerMode,
		"modulus", s.cfg.TriggerModulus,
		"slot_threshold", s.cfg.SlotThreshold,
		"markets", s.cfg.Markets,
		"max_fetch_attempts", s.cfg.Cycle.MaxFetchAttempts,
		"retry_delay", s.cfg.Cycle.RetryDelay,
	)

	for {
		select {
		case <-ctx.Done():
			slog.Info("matching service stopping", "in_flight", s.leases.Count())
			return nil
		case ev, ok := <-events:
			if !ok {
				slog.Info("trigger stream closed", "in_flight", s.leases.Count())
				return nil
			}
			s.handle(ctx, ev)
		}
	}
}

// RunOnce runs one cycle per configured market, ignoring the trigger policy,
// and returns when all of them finished. Results follow s.cfg.Markets order;
// the error is the first failure in that order.
func (s *Service) RunOnce(ctx context.Context) ([]domain.CycleResult, error) {
	ev := domain.TriggerEvent{Kind: domain.TriggerCounter, ReceivedAt: time.Now()}
	refs := scheduler.Resolve(ev, s.cfg.Markets)
	if len(refs) == 0 {
		return nil, nil
	}

	results, errs := runCyclesConcurrent(ctx, refs, s.cfg.Workers,
		func(ctx context.Context, ref domain.MarketRef) (domain.CycleResult, error) {
			return s.orch.RunCycle(ctx, ref, ev)
		})
	for i, err := range errs {
		if err != nil {
			return results, fmt.Errorf("service.RunOnce: %s: %w", refs[i], err)
		}
	}
	return results, nil
}

func (s *Service) handle(ctx context.Context, ev domain.TriggerEvent) {
	if !s.policy.Fire(ev) {
		return
	}
	refs := scheduler.Resolve(ev, s.cfg.Markets)
	if len(refs) == 0 {
		slog.Warn("trigger ignored: no market id and no configured markets", "kind", ev.Kind)
		return
	}
	for _, ref := range refs {
		s.orch.Dispatch(ctx, ref, ev)
	}
}

// Run is the service entry point: validate, then serve until ctx ends.
func Run(
	ctx context.Context,
	source ports.OrderSource,
	sink ports.SettlementSink,
	triggers ports.TriggerSource,
	cfg Config,
	opts ...orchestrator.Option,
) error {
	s, err := New(cfg, source, sink, triggers, opts...)
	if err != nil {
		return err
	}
	return s.Run(ctx)
}
