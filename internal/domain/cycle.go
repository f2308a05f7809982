package domain

import "time"

// CycleState es el estado de un ciclo de matching.
// IDLE → FETCHING → MATCHING → SETTLING → {COMPLETED, FAILED}
type CycleState string

const (
	StateIdle      CycleState = "IDLE"
	StateFetching  CycleState = "FETCHING"
	StateMatching  CycleState = "MATCHING"
	StateSettling  CycleState = "SETTLING"
	StateCompleted CycleState = "COMPLETED"
	StateFailed    CycleState = "FAILED"
)

// Terminal indica si el estado cierra el ciclo.
func (s CycleState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// CycleResult es lo que produce un ciclo de punta a punta.
type CycleResult struct {
	ID         string // UUID
	Market     MarketRef
	Trigger    TriggerEvent
	State      CycleState
	FailedIn   CycleState // fase en la que falló, si State == FAILED
	Attempts   int        // intentos de fetch usados
	Snapshots  int
	Matches    []BidOfferMatch
	MatchCount int // len(Matches); es lo único que sobrevive en el journal
	Energy     float64
	StartedAt  time.Time
	Duration   time.Duration
	Err        error
}

// Failed indica si el ciclo terminó en FAILED.
func (r CycleResult) Failed() bool { return r.State == StateFailed }

// ErrString devuelve el error como texto o "" si no hay.
func (r CycleResult) ErrString() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// EventKind clasifica los eventos estructurados del orquestador.
type EventKind string

const (
	EventCycleStarted   EventKind = "cycle_started"
	EventFetchRetry     EventKind = "fetch_retry"
	EventCycleFailed    EventKind = "cycle_failed"
	EventCycleCompleted EventKind = "cycle_completed"
	EventSubmitFailed   EventKind = "submit_failed"
	EventTriggerDropped EventKind = "trigger_dropped"
)

// CycleEvent es un evento observable del servicio: reintentos, ciclos
// abortados, fallos de settlement y triggers descartados.
type CycleEvent struct {
	Kind     EventKind
	CycleID  string
	MarketID string
	State    CycleState
	Attempt  int
	Matches  int
	Energy   float64
	Duration time.Duration
	Err      error
	At       time.Time
}
