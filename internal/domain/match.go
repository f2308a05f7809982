package domain

import (
	"math"
	"time"
)

// DefaultTolerance absorbe el error de representación en comparaciones de
// energía y precio.
const DefaultTolerance = 1e-5

// BidOfferMatch es una porción de energía cruzada entre un bid y un offer.
// Un mismo bid u offer puede aparecer en varios matches (fills parciales).
type BidOfferMatch struct {
	MarketID       string
	TimeSlot       time.Time
	Bid            Bid
	Offer          Offer
	SelectedEnergy float64
	TradeRate      float64 // pay-as-bid: siempre el rate del bid
}

// Value devuelve el importe del trade (energía × rate).
func (m BidOfferMatch) Value() float64 {
	return m.SelectedEnergy * m.TradeRate
}

// AlmostZero indica si |v| <= tol.
func AlmostZero(v, tol float64) bool {
	return math.Abs(v) <= tol
}

// TotalEnergy suma la energía seleccionada de todos los matches.
func TotalEnergy(matches []BidOfferMatch) float64 {
	var total float64
	for _, m := range matches {
		total += m.SelectedEnergy
	}
	return total
}

// ConsumedByOrder devuelve, por id de orden, la energía total que consumieron
// los matches. Bids y offers van en mapas separados: los ids de un lado no
// colisionan con los del otro.
func ConsumedByOrder(matches []BidOfferMatch) (bids, offers map[string]float64) {
	bids = make(map[string]float64)
	offers = make(map[string]float64)
	for _, m := range matches {
		bids[m.Bid.ID] += m.SelectedEnergy
		offers[m.Offer.ID] += m.SelectedEnergy
	}
	return bids, offers
}
