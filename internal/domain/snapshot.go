package domain

import (
	"fmt"
	"math"
	"time"
)

// TimeSlotLayout es el formato de time slot del protocolo original.
const TimeSlotLayout = "2006-01-02T15:04"

// MarketRef identifica qué pedirle al order source.
// Un TimeSlot cero significa "todos los slots abiertos del mercado".
type MarketRef struct {
	MarketID string
	TimeSlot time.Time
}

// String devuelve "market" o "market@slot".
func (r MarketRef) String() string {
	if r.TimeSlot.IsZero() {
		return r.MarketID
	}
	return r.MarketID + "@" + r.TimeSlot.Format(TimeSlotLayout)
}

// OrderBookSnapshot es la vista inmutable de bids y offers de un mercado y
// time slot para un único ciclo. El orden de inserción importa: desempata
// precios iguales en el matching.
type OrderBookSnapshot struct {
	MarketID string
	TimeSlot time.Time
	Bids     []Bid
	Offers   []Offer
}

// IsEmpty indica si no hay nada que cruzar.
func (s OrderBookSnapshot) IsEmpty() bool {
	return len(s.Bids) == 0 || len(s.Offers) == 0
}

// Validate rechaza snapshots con volumen o precio negativo (o no finito),
// órdenes sin id e ids repetidos dentro de un mismo lado. Un bid y un offer
// sí pueden compartir id. Nunca corrige valores en silencio.
func (s OrderBookSnapshot) Validate() error {
	seen := make(map[string]bool, len(s.Bids))
	for i, b := range s.Bids {
		if err := validateOrder(b); err != nil {
			return fmt.Errorf("%w: market %s bid[%d]: %v", ErrPrecondition, s.MarketID, i, err)
		}
		if seen[b.ID] {
			return fmt.Errorf("%w: market %s bid[%d]: duplicated id %s", ErrPrecondition, s.MarketID, i, b.ID)
		}
		seen[b.ID] = true
	}
	clear(seen)
	for i, o := range s.Offers {
		if err := validateOrder(o); err != nil {
			return fmt.Errorf("%w: market %s offer[%d]: %v", ErrPrecondition, s.MarketID, i, err)
		}
		if seen[o.ID] {
			return fmt.Errorf("%w: market %s offer[%d]: duplicated id %s", ErrPrecondition, s.MarketID, i, o.ID)
		}
		seen[o.ID] = true
	}
	return nil
}

// BidIDs devuelve los ids de bids en orden de inserción (para logs de contexto).
func (s OrderBookSnapshot) BidIDs() []string {
	ids := make([]string, len(s.Bids))
	for i, b := range s.Bids {
		ids[i] = b.ID
	}
	return ids
}

// OfferIDs devuelve los ids de offers en orden de inserción.
func (s OrderBookSnapshot) OfferIDs() []string {
	ids := make([]string, len(s.Offers))
	for i, o := range s.Offers {
		ids[i] = o.ID
	}
	return ids
}

func validateOrder(o Order) error {
	if o.OrderID() == "" {
		return fmt.Errorf("missing id")
	}
	if !finite(o.Volume()) || o.Volume() < 0 {
		return fmt.Errorf("order %s: invalid energy %v", o.OrderID(), o.Volume())
	}
	if !finite(o.Rate()) || o.Rate() < 0 {
		return fmt.Errorf("order %s: invalid energy_rate %v", o.OrderID(), o.Rate())
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
