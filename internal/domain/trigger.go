package domain

import "time"

// TriggerKind es el modelo de disparo de ciclos.
type TriggerKind string

const (
	// TriggerCounter: contador monotónico externo (p.ej. número de bloque).
	TriggerCounter TriggerKind = "counter"
	// TriggerSlotCompletion: porcentaje completado del time slot (0–100).
	TriggerSlotCompletion TriggerKind = "slot_completion"
)

// TriggerEvent llega del trigger source. MarketID vacío aplica a todos los
// mercados configurados.
type TriggerEvent struct {
	Kind              TriggerKind
	MarketID          string
	TimeSlot          time.Time
	Counter           uint64
	CompletionPercent float64
	ReceivedAt        time.Time
}
