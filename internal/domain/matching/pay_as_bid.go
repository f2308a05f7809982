package matching

// pay_as_bid.go: clearing pay-as-bid con ledger de energía residual.
//
// Barrido greedy doble: offers por fuera, bids por dentro, ambos ordenados por
// rate descendente (sort estable). Cada trade liquida al rate del bid, así que
// no hace falta descubrir un precio uniforme. El ledger permite que una orden
// grande se llene contra varias contrapartes más chicas en el mismo ciclo.

import (
	"fmt"
	"math"
	"sort"

	"github.com/alejandrodnm/energymatch/internal/domain"
)

// PayAsBid implementa Matcher.
type PayAsBid struct {
	Tolerance float64
}

// NewPayAsBid crea el matcher. Si tol <= 0 usa domain.DefaultTolerance.
func NewPayAsBid(tol float64) *PayAsBid {
	if tol <= 0 {
		tol = domain.DefaultTolerance
	}
	return &PayAsBid{Tolerance: tol}
}

// ledger mapea id de orden → energía residual. Vive solo durante un Match.
// Hay uno por lado: un bid y un offer pueden compartir id.
type ledger struct {
	side      string
	remaining map[string]float64
}

func newLedger(side string, size int) *ledger {
	return &ledger{side: side, remaining: make(map[string]float64, size)}
}

// left siembra la orden con su volumen original la primera vez y devuelve
// su residual.
func (l *ledger) left(o domain.Order) float64 {
	v, ok := l.remaining[o.OrderID()]
	if !ok {
		v = o.Volume()
		l.remaining[o.OrderID()] = v
	}
	return v
}

// consume descuenta energy de la orden y verifica que no haya underflow.
func (l *ledger) consume(id string, energy, tol float64) error {
	l.remaining[id] -= energy
	if l.remaining[id] < -tol {
		return &domain.LedgerUnderflowError{Side: l.side, OrderID: id, Remaining: l.remaining[id]}
	}
	return nil
}

// Match ejecuta el clearing sobre una copia ordenada de las órdenes.
func (p *PayAsBid) Match(snap domain.OrderBookSnapshot) ([]domain.BidOfferMatch, error) {
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("matching.PayAsBid: %w", err)
	}
	if snap.IsEmpty() {
		return nil, nil
	}

	tol := p.Tolerance
	if tol <= 0 {
		tol = domain.DefaultTolerance
	}

	bids := sortedBids(snap.Bids)
	offers := sortedOffers(snap.Offers)
	bidLeft := newLedger("bid", len(bids))
	offerLeft := newLedger("offer", len(offers))

	var matches []domain.BidOfferMatch
	for _, offer := range offers {
		for _, bid := range bids {
			if offer.Seller == bid.Buyer {
				continue // self-trade
			}
			if offer.EnergyRate-bid.EnergyRate > tol {
				continue // el offer pide más de lo que el bid paga
			}

			selected := math.Min(bidLeft.left(bid), offerLeft.left(offer))
			if selected <= tol {
				continue
			}

			if err := bidLeft.consume(bid.ID, selected, tol); err != nil {
				return nil, fmt.Errorf("matching.PayAsBid: market %s: %w", snap.MarketID, err)
			}
			if err := offerLeft.consume(offer.ID, selected, tol); err != nil {
				return nil, fmt.Errorf("matching.PayAsBid: market %s: %w", snap.MarketID, err)
			}

			matches = append(matches, domain.BidOfferMatch{
				MarketID:       snap.MarketID,
				TimeSlot:       offer.TimeSlot,
				Bid:            bid,
				Offer:          offer,
				SelectedEnergy: selected,
				TradeRate:      bid.EnergyRate,
			})

			// Solo el agotamiento del offer corta el barrido de bids: un bid
			// agotado se salta arriba con selected <= tol.
			if offerLeft.remaining[offer.ID] <= tol {
				break
			}
		}
	}
	return matches, nil
}

// sortedBids devuelve una copia ordenada por rate descendente, estable ante empates.
func sortedBids(in []domain.Bid) []domain.Bid {
	out := make([]domain.Bid, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EnergyRate > out[j].EnergyRate
	})
	return out
}

func sortedOffers(in []domain.Offer) []domain.Offer {
	out := make([]domain.Offer, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EnergyRate > out[j].EnergyRate
	})
	return out
}
