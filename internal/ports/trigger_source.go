package ports

import (
	"context"

	"github.com/alejandrodnm/energymatch/internal/domain"
)

// TriggerSource emite eventos de contador o de completitud de slot.
type TriggerSource interface {
	// Triggers empieza a emitir eventos. El canal se cierra cuando ctx se
	// cancela o la fuente se agota.
	Triggers(ctx context.Context) (<-chan domain.TriggerEvent, error)
}
