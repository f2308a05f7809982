package matching_test

import (
	"fmt"
	"testing"

	"github.com/alejandrodnm/energymatch/internal/domain"
	"github.com/alejandrodnm/energymatch/internal/domain/matching"
	"pgregory.net/rapid"
)

const tol = domain.DefaultTolerance

var owners = []string{"alice", "bob", "carol", "dave", "erin"}

// drawSnapshot numera bids y offers desde 0 en ambos lados, así que los ids
// se repiten entre lados.
func drawSnapshot(t *rapid.T) domain.OrderBookSnapshot {
	nBids := rapid.IntRange(0, 8).Draw(t, "nBids")
	nOffers := rapid.IntRange(0, 8).Draw(t, "nOffers")

	snap := domain.OrderBookSnapshot{MarketID: "prop", TimeSlot: slot}
	for i := 0; i < nBids; i++ {
		snap.Bids = append(snap.Bids, domain.Bid{
			ID:         fmt.Sprintf("%d", i),
			Buyer:      rapid.SampledFrom(owners).Draw(t, "buyer"),
			Energy:     rapid.Float64Range(0, 50).Draw(t, "bidEnergy"),
			EnergyRate: rapid.Float64Range(0, 30).Draw(t, "bidRate"),
			TimeSlot:   slot,
		})
	}
	for i := 0; i < nOffers; i++ {
		snap.Offers = append(snap.Offers, domain.Offer{
			ID:         fmt.Sprintf("%d", i),
			Seller:     rapid.SampledFrom(owners).Draw(t, "seller"),
			Energy:     rapid.Float64Range(0, 50).Draw(t, "offerEnergy"),
			EnergyRate: rapid.Float64Range(0, 30).Draw(t, "offerRate"),
			TimeSlot:   slot,
		})
	}
	return snap
}

func TestProperty_TradeRateIsBidRate(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		matches, err := matching.NewPayAsBid(tol).Match(drawSnapshot(t))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, m := range matches {
			if m.TradeRate != m.Bid.EnergyRate {
				t.Fatalf("trade rate %v != bid rate %v", m.TradeRate, m.Bid.EnergyRate)
			}
			if m.Offer.EnergyRate > m.TradeRate+tol {
				t.Fatalf("offer rate %v above trade rate %v", m.Offer.EnergyRate, m.TradeRate)
			}
			if m.SelectedEnergy <= tol {
				t.Fatalf("match with empty energy %v", m.SelectedEnergy)
			}
		}
	})
}

func TestProperty_NoSelfTrades(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		matches, err := matching.NewPayAsBid(tol).Match(drawSnapshot(t))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, m := range matches {
			if m.Bid.Buyer == m.Offer.Seller {
				t.Fatalf("self trade for %q between %s and %s", m.Bid.Buyer, m.Bid.ID, m.Offer.ID)
			}
		}
	})
}

func TestProperty_EnergyConservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		snap := drawSnapshot(t)
		matches, err := matching.NewPayAsBid(tol).Match(snap)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		bidsUsed, offersUsed := domain.ConsumedByOrder(matches)
		for _, b := range snap.Bids {
			if bidsUsed[b.ID] > b.Energy+tol {
				t.Fatalf("bid %s consumed %v of %v", b.ID, bidsUsed[b.ID], b.Energy)
			}
		}
		for _, o := range snap.Offers {
			if offersUsed[o.ID] > o.Energy+tol {
				t.Fatalf("offer %s consumed %v of %v", o.ID, offersUsed[o.ID], o.Energy)
			}
		}
	})
}

func TestProperty_Deterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		snap := drawSnapshot(t)
		m := matching.NewPayAsBid(tol)

		first, err := m.Match(snap)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := m.Match(snap)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(first) != len(second) {
			t.Fatalf("len %d != %d", len(first), len(second))
		}
		for i := range first {
			if first[i] != second[i] {
				t.Fatalf("match %d differs: %+v vs %+v", i, first[i], second[i])
			}
		}
	})
}

func TestProperty_NoMatchWhenOffersAboveBids(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		snap := drawSnapshot(t)
		// desplaza todos los offers por encima del mejor bid
		maxBid := 0.0
		for _, b := range snap.Bids {
			if b.EnergyRate > maxBid {
				maxBid = b.EnergyRate
			}
		}
		for i := range snap.Offers {
			snap.Offers[i].EnergyRate = maxBid + 1 + snap.Offers[i].EnergyRate
		}

		matches, err := matching.NewPayAsBid(tol).Match(snap)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(matches) != 0 {
			t.Fatalf("expected no matches, got %d", len(matches))
		}
	})
}
