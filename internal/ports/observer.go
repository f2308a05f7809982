package ports

import (
	"context"

	"github.com/alejandrodnm/energymatch/internal/domain"
)

// CycleObserver recibe los eventos estructurados del orquestador.
// Las implementaciones no deben bloquear.
type CycleObserver interface {
	OnEvent(ctx context.Context, ev domain.CycleEvent)
}

// Observers reparte cada evento a todos los observers.
type Observers []CycleObserver

func (o Observers) OnEvent(ctx context.Context, ev domain.CycleEvent) {
	for _, obs := range o {
		if obs != nil {
			obs.OnEvent(ctx, ev)
		}
	}
}
