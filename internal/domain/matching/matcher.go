package matching

import (
	"fmt"

	"github.com/alejandrodnm/energymatch/internal/domain"
)

// Matcher define el contrato de un algoritmo de clearing.
// Una implementación no hace I/O, es determinista y no muta el snapshot.
type Matcher interface {
	// Match cruza bids y offers del snapshot y devuelve los matches en orden
	// de emisión. Devuelve error si el snapshot es inválido o si se rompe un
	// invariante interno.
	Match(snap domain.OrderBookSnapshot) ([]domain.BidOfferMatch, error)
}

// MatchAll corre m sobre cada snapshot y concatena los matches en el orden
// de entrada. Se detiene en el primer error.
func MatchAll(m Matcher, snaps []domain.OrderBookSnapshot) ([]domain.BidOfferMatch, error) {
	var out []domain.BidOfferMatch
	for _, snap := range snaps {
		matches, err := m.Match(snap)
		if err != nil {
			return nil, fmt.Errorf("matching.MatchAll: %s@%s: %w",
				snap.MarketID, snap.TimeSlot.Format(domain.TimeSlotLayout), err)
		}
		out = append(out, matches...)
	}
	return out, nil
}
