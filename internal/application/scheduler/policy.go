package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/alejandrodnm/energymatch/internal/domain"
)

const (
	ModeCounter        = "counter"
	ModeSlotCompletion = "slot_completion"

	DefaultModulus          = 4
	DefaultThresholdPercent = 33.0
)

// Policy decides whether a trigger event starts a matching cycle.
type Policy interface {
	Fire(ev domain.TriggerEvent) bool
}

// NewPolicy builds the single trigger model used by a deployment.
func NewPolicy(mode string, modulus uint64, thresholdPercent float64) (Policy, error) {
	switch mode {
	case ModeCounter:
		if modulus == 0 {
			return nil, fmt.Errorf("scheduler.NewPolicy: %w: trigger_modulus must be > 0", domain.ErrConfiguration)
		}
		return &PeriodicPolicy{Modulus: modulus}, nil
	case ModeSlotCompletion:
		if thresholdPercent < 0 || thresholdPercent >= 100 {
			return nil, fmt.Errorf("scheduler.NewPolicy: %w: slot threshold %.1f outside [0,100)",
				domain.ErrConfiguration, thresholdPercent)
		}
		return NewSlotCompletionPolicy(thresholdPercent), nil
	default:
		return nil, fmt.Errorf("scheduler.NewPolicy: %w: unknown trigger mode %q", domain.ErrConfiguration, mode)
	}
}

// PeriodicPolicy fires every Modulus-th counter value (counter % N == 0).
type PeriodicPolicy struct {
	Modulus uint64
}

func (p *PeriodicPolicy) Fire(ev domain.TriggerEvent) bool {
	if ev.Kind != domain.TriggerCounter || p.Modulus == 0 {
		return false
	}
	return ev.Counter%p.Modulus == 0
}

// SlotCompletionPolicy fires once per crossing of the threshold for a given
// market and time slot. Dropping back to or below the threshold re-arms it.
// Only the newest slot of each market is tracked: a newer slot replaces it
// and events for older slots never fire.
type SlotCompletionPolicy struct {
	threshold float64

	mu      sync.Mutex
	markets map[string]slotState
}

type slotState struct {
	slot  time.Time
	above bool
}

func NewSlotCompletionPolicy(thresholdPercent float64) *SlotCompletionPolicy {
	return &SlotCompletionPolicy{
		threshold: thresholdPercent,
		markets:   make(map[string]slotState),
	}
}

func (p *SlotCompletionPolicy) Fire(ev domain.TriggerEvent) bool {
	if ev.Kind != domain.TriggerSlotCompletion {
		return false
	}
	slot := ev.TimeSlot.UTC()

	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.markets[ev.MarketID]
	switch {
	case !ok || slot.After(st.slot):
		st = slotState{slot: slot}
	case slot.Before(st.slot):
		return false
	}

	fire := ev.CompletionPercent > p.threshold && !st.above
	st.above = ev.CompletionPercent > p.threshold
	p.markets[ev.MarketID] = st
	return fire
}

// Tracked returns how many markets currently hold slot state.
func (p *SlotCompletionPolicy) Tracked() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.markets)
}

// Resolve expands an event into the market refs it applies to. Events with no
// market id (a chain block, a global tick) apply to every configured market.
func Resolve(ev domain.TriggerEvent, markets []string) []domain.MarketRef {
	if ev.MarketID != "" {
		return []domain.MarketRef{{MarketID: ev.MarketID, TimeSlot: ev.TimeSlot}}
	}
	refs := make([]domain.MarketRef, 0, len(markets))
	for _, m := range markets {
		refs = append(refs, domain.MarketRef{MarketID: m, TimeSlot: ev.TimeSlot})
	}
	return refs
}
