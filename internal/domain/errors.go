package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrPrecondition: snapshot malformado (volumen o rate negativo). Aborta solo el ciclo.
	ErrPrecondition = errors.New("precondition failed")

	// ErrInvariantViolation: fallo de consistencia interna durante el matching.
	// Nunca se reintenta: un bug determinista se reproduciría igual.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrTransient agrupa fallos externos recuperables (timeouts, conectividad).
	ErrTransient = errors.New("transient external error")

	ErrSourceUnavailable = fmt.Errorf("order source unavailable: %w", ErrTransient)
	ErrMalformedResponse = errors.New("malformed order source response")
	ErrSink              = fmt.Errorf("settlement sink error: %w", ErrTransient)

	// ErrConfiguration: tunables inválidos al arrancar. El servicio no empieza a servir.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrMarketBusy: ya hay un ciclo corriendo para el mercado; el trigger se descarta.
	ErrMarketBusy = errors.New("market busy")
)

// LedgerUnderflowError indica que la energía residual de una orden quedó por
// debajo de -tolerancia.
type LedgerUnderflowError struct {
	Side      string // "bid" | "offer"
	OrderID   string
	Remaining float64
}

func (e *LedgerUnderflowError) Error() string {
	return fmt.Sprintf("ledger underflow on %s %s: remaining %.8f", e.Side, e.OrderID, e.Remaining)
}

func (e *LedgerUnderflowError) Unwrap() error { return ErrInvariantViolation }

// IsTransient indica si vale la pena reintentar err.
// Los deadlines del contexto cuentan como fallo transitorio.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded)
}
