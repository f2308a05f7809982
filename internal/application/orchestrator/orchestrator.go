package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/energymatch/internal/application/scheduler"
	"github.com/alejandrodnm/energymatch/internal/domain"
	"github.com/alejandrodnm/energymatch/internal/domain/matching"
	"github.com/alejandrodnm/energymatch/internal/ports"
)

const (
	DefaultMaxFetchAttempts = 3
	DefaultRetryDelay       = 2000 * time.Millisecond
	DefaultFetchTimeout     = 10 * time.Second
	DefaultSubmitTimeout    = 10 * time.Second

	maxFetchAttemptsLimit = 10
)

// Config holds the retry and timeout budget of a single cycle.
type Config struct {
	MaxFetchAttempts int
	RetryDelay       time.Duration
	FetchTimeout     time.Duration
	SubmitTimeout    time.Duration
	Tolerance        float64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxFetchAttempts: DefaultMaxFetchAttempts,
		RetryDelay:       DefaultRetryDelay,
		FetchTimeout:     DefaultFetchTimeout,
		SubmitTimeout:    DefaultSubmitTimeout,
		Tolerance:        domain.DefaultTolerance,
	}
}

// Validate rejects budgets that would make a cycle unbounded or meaningless.
func (c Config) Validate() error {
	switch {
	case c.MaxFetchAttempts < 1 || c.MaxFetchAttempts > maxFetchAttemptsLimit:
		return fmt.Errorf("%w: max_fetch_attempts must be in [1,%d], got %d",
			domain.ErrConfiguration, maxFetchAttemptsLimit, c.MaxFetchAttempts)
	case c.RetryDelay < 0:
		return fmt.Errorf("%w: retry_delay must be >= 0, got %s", domain.ErrConfiguration, c.RetryDelay)
	case c.FetchTimeout <= 0:
		return fmt.Errorf("%w: fetch_timeout must be > 0", domain.ErrConfiguration)
	case c.SubmitTimeout <= 0:
		return fmt.Errorf("%w: submit_timeout must be > 0", domain.ErrConfiguration)
	case c.Tolerance <= 0 || c.Tolerance >= 1:
		return fmt.Errorf("%w: float_tolerance must be in (0,1), got %g", domain.ErrConfiguration, c.Tolerance)
	}
	return nil
}

// Orchestrator drives fetch → match → submit for one market at a time,
// guarded by the market's lease.
type Orchestrator struct {
	cfg      Config
	source   ports.OrderSource
	sink     ports.SettlementSink
	leases   *scheduler.Leases
	matcher  matching.Matcher
	observer ports.CycleObserver
	journal  ports.CycleJournal

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	wg sync.WaitGroup
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithObserver replaces the default slog observer.
func WithObserver(obs ports.CycleObserver) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// WithJournal records every finished cycle.
func WithJournal(j ports.CycleJournal) Option {
	return func(o *Orchestrator) { o.journal = j }
}

// WithMatcher swaps the clearing algorithm (pay-as-bid by default).
func WithMatcher(m matching.Matcher) Option {
	return func(o *Orchestrator) { o.matcher = m }
}

// WithSleep replaces the inter-attempt wait. Used by tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = fn }
}

// New creates an Orchestrator. cfg is expected to be validated by the caller.
func New(
	cfg Config,
	source ports.OrderSource,
	sink ports.SettlementSink,
	leases *scheduler.Leases,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		source:   source,
		sink:     sink,
		leases:   leases,
		matcher:  matching.NewPayAsBid(cfg.Tolerance),
		observer: LogObserver{},
		sleep:    sleepCtx,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.leases == nil {
		o.leases = scheduler.NewLeases()
	}
	return o
}

// RunCycle runs one cycle synchronously. If the market is busy it returns
// domain.ErrMarketBusy without touching the source or the sink.
func (o *Orchestrator) RunCycle(ctx context.Context, ref domain.MarketRef, trigger domain.TriggerEvent) (domain.CycleResult, error) {
	release, ok := o.leases.TryAcquire(ref.MarketID)
	if !ok {
		o.dropped(ctx, ref)
		return domain.CycleResult{Market: ref, Trigger: trigger, State: domain.StateIdle}, domain.ErrMarketBusy
	}
	defer release()

	res := o.run(ctx, ref, trigger)
	return res, res.Err
}

// Dispatch takes the market's lease on the caller's goroutine and runs the
// cycle on its own goroutine. It returns false when the trigger is dropped
// because a cycle for the market is already running.
func (o *Orchestrator) Dispatch(ctx context.Context, ref domain.MarketRef, trigger domain.TriggerEvent) bool {
	release, ok := o.leases.TryAcquire(ref.MarketID)
	if !ok {
		o.dropped(ctx, ref)
		return false
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer release()
		o.run(ctx, ref, trigger)
	}()
	return true
}

// Wait blocks until every dispatched cycle has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// run walks the state machine. The caller owns the lease.
func (o *Orchestrator) run(ctx context.Context, ref domain.MarketRef, trigger domain.TriggerEvent) (res domain.CycleResult) {
	res = domain.CycleResult{
		ID:        uuid.NewString(),
		Market:    ref,
		Trigger:   trigger,
		State:     domain.StateIdle,
		StartedAt: o.now(),
	}
	o.emit(ctx, domain.CycleEvent{Kind: domain.EventCycleStarted, CycleID: res.ID, MarketID: ref.MarketID, State: res.State})
	defer o.finish(ctx, &res)

	res.State = domain.StateFetching
	snaps, attempts, err := o.fetch(ctx, ref, res.ID)
	res.Attempts = attempts
	if err != nil {
		o.fail(&res, err)
		return res
	}
	res.Snapshots = len(snaps)

	res.State = domain.StateMatching
	for _, snap := range snaps {
		matches, err := o.matcher.Match(snap)
		if err != nil {
			if errors.Is(err, domain.ErrInvariantViolation) {
				slog.Error("matching invariant violated",
					"cycle_id", res.ID,
					"market", snap.MarketID,
					"time_slot", snap.TimeSlot.Format(domain.TimeSlotLayout),
					"bid_ids", snap.BidIDs(),
					"offer_ids", snap.OfferIDs(),
					"err", err,
				)
			}
			res.Matches = nil
			o.fail(&res, err)
			return res
		}
		res.Matches = append(res.Matches, matches...)
	}
	res.MatchCount = len(res.Matches)
	res.Energy = domain.TotalEnergy(res.Matches)

	res.State = domain.StateSettling
	if len(res.Matches) > 0 {
		if err := o.submit(ctx, res.Matches); err != nil {
			o.emit(ctx, domain.CycleEvent{
				Kind:     domain.EventSubmitFailed,
				CycleID:  res.ID,
				MarketID: ref.MarketID,
				State:    res.State,
				Matches:  len(res.Matches),
				Energy:   res.Energy,
				Err:      err,
			})
			o.fail(&res, err)
			return res
		}
	}

	res.State = domain.StateCompleted
	return res
}

// fetch retries the order source up to MaxFetchAttempts with a fixed delay.
func (o *Orchestrator) fetch(ctx context.Context, ref domain.MarketRef, cycleID string) ([]domain.OrderBookSnapshot, int, error) {
	var lastErr error
	for attempt := 1; attempt <= o.cfg.MaxFetchAttempts; attempt++ {
		fctx, cancel := context.WithTimeout(ctx, o.cfg.FetchTimeout)
		snaps, err := o.source.FetchOpenOrders(fctx, ref)
		cancel()
		if err == nil {
			return snaps, attempt, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, attempt, fmt.Errorf("orchestrator.fetch: %s: %w", ref, ctx.Err())
		}

		// El último intento no se reintenta: su error viaja en cycle_failed.
		if attempt == o.cfg.MaxFetchAttempts {
			break
		}
		o.emit(ctx, domain.CycleEvent{
			Kind:     domain.EventFetchRetry,
			CycleID:  cycleID,
			MarketID: ref.MarketID,
			State:    domain.StateFetching,
			Attempt:  attempt,
			Err:      err,
		})

		if err := o.sleep(ctx, o.cfg.RetryDelay); err != nil {
			return nil, attempt, fmt.Errorf("orchestrator.fetch: %s: %w", ref, err)
		}
	}
	return nil, o.cfg.MaxFetchAttempts, fmt.Errorf("orchestrator.fetch: %s: %d attempts exhausted: %w",
		ref, o.cfg.MaxFetchAttempts, lastErr)
}

// submit hands the matches to the sink once. A failure is reported, the
// match set is never recomputed.
func (o *Orchestrator) submit(ctx context.Context, matches []domain.BidOfferMatch) error {
	sctx, cancel := context.WithTimeout(ctx, o.cfg.SubmitTimeout)
	defer cancel()
	if err := o.sink.Submit(sctx, matches); err != nil {
		return fmt.Errorf("orchestrator.submit: %w", err)
	}
	return nil
}

func (o *Orchestrator) fail(res *domain.CycleResult, err error) {
	res.FailedIn = res.State
	res.State = domain.StateFailed
	res.Err = err
}

// finish closes the cycle: duration, terminal event and journal entry.
func (o *Orchestrator) finish(ctx context.Context, res *domain.CycleResult) {
	res.Duration = o.now().Sub(res.StartedAt)

	kind := domain.EventCycleCompleted
	if res.Failed() {
		kind = domain.EventCycleFailed
	}
	o.emit(ctx, domain.CycleEvent{
		Kind:     kind,
		CycleID:  res.ID,
		MarketID: res.Market.MarketID,
		State:    res.State,
		Attempt:  res.Attempts,
		Matches:  len(res.Matches),
		Energy:   res.Energy,
		Duration: res.Duration,
		Err:      res.Err,
	})

	if o.journal != nil {
		// El lease sigue tomado: el journal tiene el mismo plazo que el submit.
		jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.SubmitTimeout)
		defer cancel()
		if err := o.journal.RecordCycle(jctx, *res); err != nil {
			slog.Warn("journal error", "cycle_id", res.ID, "err", err)
		}
	}
}

func (o *Orchestrator) dropped(ctx context.Context, ref domain.MarketRef) {
	o.emit(ctx, domain.CycleEvent{
		Kind:     domain.EventTriggerDropped,
		MarketID: ref.MarketID,
		Err:      domain.ErrMarketBusy,
	})
}

func (o *Orchestrator) emit(ctx context.Context, ev domain.CycleEvent) {
	if o.observer == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = o.now()
	}
	o.observer.OnEvent(ctx, ev)
}

// sleepCtx waits d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
