package wire_test

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/energymatch/internal/adapters/wire"
	"github.com/alejandrodnm/energymatch/internal/domain"
	"github.com/alejandrodnm/energymatch/internal/domain/matching"
)

var slot1500 = time.Date(2022, 3, 14, 15, 0, 0, 0, time.UTC)

func loadFixture(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile("../../../testdata/fixtures/orders.json")
	require.NoError(t, err)
	return data
}

func TestDecodeOrdersResponse_Fixture(t *testing.T) {
	snaps, err := wire.DecodeOrdersResponse(loadFixture(t))
	require.NoError(t, err)
	require.Len(t, snaps, 3)

	// Ordenados por mercado y slot
	assert.Equal(t, "community-1", snaps[0].MarketID)
	assert.Equal(t, slot1500, snaps[0].TimeSlot)
	assert.Equal(t, "community-1", snaps[1].MarketID)
	assert.Equal(t, slot1500.Add(15*time.Minute), snaps[1].TimeSlot)
	assert.Equal(t, "community-2", snaps[2].MarketID)

	// El orden del payload se conserva
	assert.Equal(t, []string{"B1", "B2"}, snaps[0].BidIDs())
	assert.Equal(t, []string{"O1", "O2"}, snaps[0].OfferIDs())

	b1 := snaps[0].Bids[0]
	assert.Equal(t, "house-1", b1.Buyer)
	assert.Equal(t, "h1-uuid", b1.BuyerID)
	assert.Equal(t, "Bid", b1.Type)
	assert.InDelta(t, 10.0, b1.Energy, 1e-9)
	assert.InDelta(t, 30.0, b1.EnergyRate, 1e-9)
	assert.Equal(t, slot1500, b1.TimeSlot)
	assert.Equal(t, time.Date(2022, 3, 14, 14, 52, 10, 0, time.UTC), b1.CreationTime)
	assert.Empty(t, b1.Attributes)

	assert.Equal(t, "green", snaps[2].Bids[0].Attributes)
	assert.Equal(t, "pv-3", snaps[2].Offers[0].Seller)
}

func TestDecodeOrdersResponse_FixtureMatches(t *testing.T) {
	snaps, err := wire.DecodeOrdersResponse(loadFixture(t))
	require.NoError(t, err)

	all, err := matching.MatchAll(matching.NewPayAsBid(domain.DefaultTolerance), snaps)
	require.NoError(t, err)

	// house-1 no puede comprarse a sí mismo (B1/O2)
	require.Len(t, all, 3)
	assert.Equal(t, "B2", all[0].Bid.ID)
	assert.Equal(t, "O2", all[0].Offer.ID)
	assert.InDelta(t, 5.0, all[0].SelectedEnergy, 1e-9)
	assert.InDelta(t, 20.0, all[0].TradeRate, 1e-9)
	assert.Equal(t, "B1", all[1].Bid.ID)
	assert.Equal(t, "O1", all[1].Offer.ID)
	assert.InDelta(t, 8.0, all[1].SelectedEnergy, 1e-9)
	assert.Equal(t, "community-2", all[2].MarketID)
	assert.InDelta(t, 15.0, domain.TotalEnergy(all), 1e-9)
}

func TestDecodeOrdersResponse_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":         `{"bids_offers":`,
		"missing root key": `{"orders": {}}`,
		"unknown slot key": `{"bids_offers": {"m": {"2022-03-14T15:00": {"bids": [], "asks": []}}}}`,
		"bad slot":         `{"bids_offers": {"m": {"yesterday": {"bids": [], "offers": []}}}}`,
		"bad order time":   `{"bids_offers": {"m": {"2022-03-14T15:00": {"bids": [{"id": "B1", "time_slot": "soon"}], "offers": []}}}}`,
		"energy as string": `{"bids_offers": {"m": {"2022-03-14T15:00": {"bids": [{"id": "B1", "energy": "10"}], "offers": []}}}}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := wire.DecodeOrdersResponse([]byte(payload))
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrMalformedResponse)
		})
	}
}

func TestDecodeOrdersResponse_EmptyMarket(t *testing.T) {
	snaps, err := wire.DecodeOrdersResponse([]byte(`{"bids_offers": {}}`))
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestContainsAndFilter(t *testing.T) {
	payload := loadFixture(t)
	assert.True(t, wire.ContainsMarket(payload, "community-2"))
	assert.False(t, wire.ContainsMarket(payload, "community-9"))
	assert.False(t, wire.ContainsMarket([]byte("garbage"), "community-1"))

	snaps, err := wire.DecodeOrdersResponse(payload)
	require.NoError(t, err)

	all := wire.FilterSnapshots(snaps, domain.MarketRef{MarketID: "community-1"})
	assert.Len(t, all, 2)

	one := wire.FilterSnapshots(snaps, domain.MarketRef{MarketID: "community-1", TimeSlot: slot1500})
	require.Len(t, one, 1)
	assert.Equal(t, []string{"B1", "B2"}, one[0].BidIDs())
}

func TestParseTimeSlot(t *testing.T) {
	for _, s := range []string{"2022-03-14T15:00", "2022-03-14T15:00:00", "2022-03-14T15:00:00Z"} {
		got, err := wire.ParseTimeSlot(s)
		require.NoError(t, err, s)
		assert.Equal(t, slot1500, got, s)
	}

	zero, err := wire.ParseTimeSlot("")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	_, err = wire.ParseTimeSlot("14/03/2022")
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)

	assert.Nil(t, wire.FormatTimeSlot(time.Time{}))
	assert.Equal(t, "2022-03-14T15:00", *wire.FormatTimeSlot(slot1500))
}

func TestEncodeOrdersRequest(t *testing.T) {
	data, err := wire.EncodeOrdersRequest(domain.MarketRef{MarketID: "m1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"market_id": "m1"}`, string(data))

	data, err = wire.EncodeOrdersRequest(domain.MarketRef{MarketID: "m1", TimeSlot: slot1500})
	require.NoError(t, err)
	assert.JSONEq(t, `{"market_id": "m1", "time_slot": "2022-03-14T15:00"}`, string(data))
}

func TestEncodeRecommendations(t *testing.T) {
	match := domain.BidOfferMatch{
		MarketID: "community-1",
		TimeSlot: slot1500,
		Bid: domain.Bid{
			ID: "B1", Type: "Bid", Buyer: "house-1", Energy: 10, EnergyRate: 30,
			TimeSlot: slot1500, CreationTime: time.Date(2022, 3, 14, 14, 52, 10, 0, time.UTC),
		},
		Offer: domain.Offer{
			ID: "O1", Type: "Offer", Seller: "pv-1", Energy: 8, EnergyRate: 15,
			TimeSlot: slot1500, Attributes: "green",
		},
		SelectedEnergy: 8,
		TradeRate:      30,
	}

	data, err := wire.EncodeRecommendations([]domain.BidOfferMatch{match})
	require.NoError(t, err)

	var raw map[string][]map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw["recommended_matches"], 1)
	rec := raw["recommended_matches"][0]
	assert.Equal(t, "community-1", rec["market_id"])
	assert.Equal(t, "2022-03-14T15:00", rec["time_slot"])
	assert.InDelta(t, 8.0, rec["selected_energy"], 1e-9)
	assert.InDelta(t, 30.0, rec["trade_rate"], 1e-9)

	bid := rec["bid"].(map[string]any)
	assert.Equal(t, "2022-03-14T14:52:10", bid["creation_time"])
	assert.Nil(t, bid["attributes"])
	offer := rec["offer"].(map[string]any)
	assert.Equal(t, "green", offer["attributes"])
	assert.Nil(t, offer["creation_time"])

	back, err := wire.DecodeRecommendations(data)
	require.NoError(t, err)
	require.Len(t, back, 1)
	assert.Equal(t, match, back[0])
}

func TestEncodeRecommendations_EmptyIsList(t *testing.T) {
	data, err := wire.EncodeRecommendations(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"recommended_matches": []}`, string(data))
}

func TestDecodeTickEvent(t *testing.T) {
	now := time.Date(2022, 3, 14, 15, 5, 0, 0, time.UTC)

	ev, err := wire.DecodeTickEvent([]byte(`{"slot_completion": "40%"}`), now)
	require.NoError(t, err)
	assert.Equal(t, domain.TriggerSlotCompletion, ev.Kind)
	assert.InDelta(t, 40.0, ev.CompletionPercent, 1e-9)
	assert.Empty(t, ev.MarketID)
	assert.Equal(t, now, ev.ReceivedAt)

	ev, err = wire.DecodeTickEvent([]byte(`{"slot_completion": 12.5, "market_id": "m1", "time_slot": "2022-03-14T15:00"}`), now)
	require.NoError(t, err)
	assert.InDelta(t, 12.5, ev.CompletionPercent, 1e-9)
	assert.Equal(t, "m1", ev.MarketID)
	assert.Equal(t, slot1500, ev.TimeSlot)

	ev, err = wire.DecodeTickEvent([]byte(`{"counter": 8}`), now)
	require.NoError(t, err)
	assert.Equal(t, domain.TriggerCounter, ev.Kind)
	assert.Equal(t, uint64(8), ev.Counter)

	for _, bad := range []string{`{}`, `{"slot_completion": "many"}`, `{"slot_completion": true}`, `[1]`} {
		_, err := wire.DecodeTickEvent([]byte(bad), now)
		assert.ErrorIs(t, err, domain.ErrMalformedResponse, bad)
	}
}
