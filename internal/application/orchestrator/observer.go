package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/energymatch/internal/domain"
)

// LogObserver writes every cycle event to the default slog logger.
type LogObserver struct{}

func (LogObserver) OnEvent(_ context.Context, ev domain.CycleEvent) {
	attrs := []any{
		"event", string(ev.Kind),
		"market", ev.MarketID,
	}
	if ev.CycleID != "" {
		attrs = append(attrs, "cycle_id", ev.CycleID)
	}

	switch ev.Kind {
	case domain.EventCycleStarted:
		slog.Debug("cycle started", attrs...)
	case domain.EventFetchRetry:
		slog.Warn("fetch failed, retrying", append(attrs, "attempt", ev.Attempt, "err", ev.Err)...)
	case domain.EventSubmitFailed:
		slog.Error("settlement submit failed", append(attrs,
			"matches", ev.Matches,
			"energy", fmt.Sprintf("%.4f", ev.Energy),
			"err", ev.Err,
		)...)
	case domain.EventCycleFailed:
		slog.Error("cycle failed", append(attrs,
			"attempts", ev.Attempt,
			"duration", ev.Duration,
			"err", ev.Err,
		)...)
	case domain.EventCycleCompleted:
		slog.Info("cycle complete", append(attrs,
			"matches", ev.Matches,
			"energy", fmt.Sprintf("%.4f", ev.Energy),
			"attempts", ev.Attempt,
			"duration", ev.Duration,
		)...)
	case domain.EventTriggerDropped:
		slog.Info("trigger dropped, cycle already running", attrs...)
	}
}
