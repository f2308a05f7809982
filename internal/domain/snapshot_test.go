package domain_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/alejandrodnm/energymatch/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestSnapshot_Validate(t *testing.T) {
	ok := domain.OrderBookSnapshot{
		MarketID: "m1",
		Bids:     []domain.Bid{{ID: "b", Buyer: "x", Energy: 1, EnergyRate: 0}},
		Offers:   []domain.Offer{{ID: "o", Seller: "y", Energy: 0, EnergyRate: 2}},
	}
	assert.NoError(t, ok.Validate())

	nan := ok
	nan.Offers = []domain.Offer{{ID: "o", Seller: "y", Energy: 1, EnergyRate: math.NaN()}}
	assert.ErrorIs(t, nan.Validate(), domain.ErrPrecondition)

	neg := ok
	neg.Bids = []domain.Bid{{ID: "b", Buyer: "x", Energy: -0.5, EnergyRate: 1}}
	assert.ErrorIs(t, neg.Validate(), domain.ErrPrecondition)

	dupBid := ok
	dupBid.Bids = []domain.Bid{{ID: "b", Buyer: "x", Energy: 1}, {ID: "b", Buyer: "z", Energy: 2}}
	assert.ErrorIs(t, dupBid.Validate(), domain.ErrPrecondition)

	dupOffer := ok
	dupOffer.Offers = []domain.Offer{{ID: "o", Seller: "y", Energy: 1}, {ID: "o", Seller: "w", Energy: 2}}
	assert.ErrorIs(t, dupOffer.Validate(), domain.ErrPrecondition)

	// Un bid y un offer con el mismo id son válidos
	shared := ok
	shared.Offers = []domain.Offer{{ID: "b", Seller: "y", Energy: 1, EnergyRate: 2}}
	assert.NoError(t, shared.Validate())
}

func TestSnapshot_IDsKeepInsertionOrder(t *testing.T) {
	s := domain.OrderBookSnapshot{
		Bids:   []domain.Bid{{ID: "b2"}, {ID: "b1"}},
		Offers: []domain.Offer{{ID: "o9"}},
	}
	assert.Equal(t, []string{"b2", "b1"}, s.BidIDs())
	assert.Equal(t, []string{"o9"}, s.OfferIDs())
}

func TestMarketRef_String(t *testing.T) {
	assert.Equal(t, "m1", domain.MarketRef{MarketID: "m1"}.String())

	slot := time.Date(2022, 3, 14, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, "m1@2022-03-14T15:30", domain.MarketRef{MarketID: "m1", TimeSlot: slot}.String())
}

func TestIsTransient(t *testing.T) {
	assert.True(t, domain.IsTransient(fmt.Errorf("fetch: %w", domain.ErrSourceUnavailable)))
	assert.True(t, domain.IsTransient(fmt.Errorf("submit: %w", domain.ErrSink)))
	assert.True(t, domain.IsTransient(context.DeadlineExceeded))
	assert.False(t, domain.IsTransient(domain.ErrMalformedResponse))
	assert.False(t, domain.IsTransient(domain.ErrPrecondition))
}

func TestLedgerUnderflowError_IsInvariantViolation(t *testing.T) {
	var err error = &domain.LedgerUnderflowError{Side: "bid", OrderID: "b1", Remaining: -0.1}
	assert.True(t, errors.Is(err, domain.ErrInvariantViolation))
	assert.Contains(t, err.Error(), "bid b1")
}

func TestConsumedByOrder(t *testing.T) {
	matches := []domain.BidOfferMatch{
		{Bid: domain.Bid{ID: "1"}, Offer: domain.Offer{ID: "1"}, SelectedEnergy: 2, TradeRate: 3},
		{Bid: domain.Bid{ID: "1"}, Offer: domain.Offer{ID: "2"}, SelectedEnergy: 1.5, TradeRate: 3},
	}

	bids, offers := domain.ConsumedByOrder(matches)
	assert.InDelta(t, 3.5, bids["1"], 1e-9)
	assert.InDelta(t, 2.0, offers["1"], 1e-9)
	assert.InDelta(t, 1.5, offers["2"], 1e-9)
	assert.InDelta(t, 3.5, domain.TotalEnergy(matches), 1e-9)
	assert.InDelta(t, 6.0, matches[0].Value(), 1e-9)
}
