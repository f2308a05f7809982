package wire

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/energymatch/internal/domain"
)

// creationTimeLayout es el formato con segundos que usa la exchange para
// creation_time.
const creationTimeLayout = "2006-01-02T15:04:05"

// ParseTimeSlot acepta los formatos que aparecen en el bus: minutos,
// segundos o RFC3339. Un valor vacío es el instante cero.
func ParseTimeSlot(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{
		domain.TimeSlotLayout,
		creationTimeLayout,
		time.RFC3339,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable time %q", domain.ErrMalformedResponse, s)
}

// FormatTimeSlot es la inversa de ParseTimeSlot. El instante cero es null.
func FormatTimeSlot(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(domain.TimeSlotLayout)
	return &s
}

// EncodeOrdersRequest arma el pedido de órdenes abiertas para ref.
func EncodeOrdersRequest(ref domain.MarketRef) ([]byte, error) {
	req := OrdersRequest{MarketID: ref.MarketID}
	if s := FormatTimeSlot(ref.TimeSlot); s != nil {
		req.TimeSlot = *s
	}
	return json.Marshal(req)
}

// DecodeOrdersResponse parsea una respuesta de órdenes abiertas y devuelve un
// snapshot por mercado y time slot, ordenados por mercado y slot. Las órdenes
// conservan el orden del payload.
func DecodeOrdersResponse(payload []byte) ([]domain.OrderBookSnapshot, error) {
	var resp OrdersResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("wire.DecodeOrdersResponse: %w: %v", domain.ErrMalformedResponse, err)
	}
	if resp.BidsOffers == nil {
		return nil, fmt.Errorf("wire.DecodeOrdersResponse: %w: missing bids_offers", domain.ErrMalformedResponse)
	}

	var snaps []domain.OrderBookSnapshot
	for _, marketID := range sortedKeys(resp.BidsOffers) {
		slots := resp.BidsOffers[marketID]
		for _, slotKey := range sortedKeys(slots) {
			snap, err := mapSlotOrders(marketID, slotKey, slots[slotKey])
			if err != nil {
				return nil, fmt.Errorf("wire.DecodeOrdersResponse: market %s slot %s: %w", marketID, slotKey, err)
			}
			snaps = append(snaps, snap)
		}
	}
	return snaps, nil
}

// ContainsMarket indica si un payload de respuesta trae órdenes de marketID.
// Sirve para descartar respuestas dirigidas a otros mercados sin mapearlas.
func ContainsMarket(payload []byte, marketID string) bool {
	var resp struct {
		BidsOffers map[string]json.RawMessage `json:"bids_offers"`
	}
	if err := json.Unmarshal(payload, &resp); err != nil {
		return false
	}
	_, ok := resp.BidsOffers[marketID]
	return ok
}

// FilterSnapshots se queda con los snapshots de ref. Un TimeSlot cero acepta
// todos los slots del mercado.
func FilterSnapshots(snaps []domain.OrderBookSnapshot, ref domain.MarketRef) []domain.OrderBookSnapshot {
	out := make([]domain.OrderBookSnapshot, 0, len(snaps))
	for _, s := range snaps {
		if s.MarketID != ref.MarketID {
			continue
		}
		if !ref.TimeSlot.IsZero() && !s.TimeSlot.Equal(ref.TimeSlot) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func mapSlotOrders(marketID, slotKey string, raw SlotOrders) (domain.OrderBookSnapshot, error) {
	slot, err := ParseTimeSlot(slotKey)
	if err != nil {
		return domain.OrderBookSnapshot{}, err
	}
	snap := domain.OrderBookSnapshot{
		MarketID: marketID,
		TimeSlot: slot,
		Bids:     make([]domain.Bid, 0, len(raw.Bids)),
		Offers:   make([]domain.Offer, 0, len(raw.Offers)),
	}
	for _, b := range raw.Bids {
		bid, err := mapBid(b)
		if err != nil {
			return domain.OrderBookSnapshot{}, err
		}
		snap.Bids = append(snap.Bids, bid)
	}
	for _, o := range raw.Offers {
		offer, err := mapOffer(o)
		if err != nil {
			return domain.OrderBookSnapshot{}, err
		}
		snap.Offers = append(snap.Offers, offer)
	}
	return snap, nil
}

func mapBid(r BidDTO) (domain.Bid, error) {
	slot, err := ParseTimeSlot(deref(r.TimeSlot))
	if err != nil {
		return domain.Bid{}, fmt.Errorf("bid %s: %w", r.ID, err)
	}
	created, err := ParseTimeSlot(deref(r.CreationTime))
	if err != nil {
		return domain.Bid{}, fmt.Errorf("bid %s: %w", r.ID, err)
	}
	return domain.Bid{
		ID:            r.ID,
		Type:          r.Type,
		Buyer:         r.Buyer,
		BuyerID:       r.BuyerID,
		BuyerOrigin:   r.BuyerOrigin,
		BuyerOriginID: r.BuyerOriginID,
		Energy:        r.Energy,
		EnergyRate:    r.EnergyRate,
		OriginalPrice: r.OriginalPrice,
		TimeSlot:      slot,
		CreationTime:  created,
		Attributes:    deref(r.Attributes),
		Requirements:  deref(r.Requirements),
	}, nil
}

func mapOffer(r OfferDTO) (domain.Offer, error) {
	slot, err := ParseTimeSlot(deref(r.TimeSlot))
	if err != nil {
		return domain.Offer{}, fmt.Errorf("offer %s: %w", r.ID, err)
	}
	created, err := ParseTimeSlot(deref(r.CreationTime))
	if err != nil {
		return domain.Offer{}, fmt.Errorf("offer %s: %w", r.ID, err)
	}
	return domain.Offer{
		ID:             r.ID,
		Type:           r.Type,
		Seller:         r.Seller,
		SellerID:       r.SellerID,
		SellerOrigin:   r.SellerOrigin,
		SellerOriginID: r.SellerOriginID,
		Energy:         r.Energy,
		EnergyRate:     r.EnergyRate,
		OriginalPrice:  r.OriginalPrice,
		TimeSlot:       slot,
		CreationTime:   created,
		Attributes:     deref(r.Attributes),
		Requirements:   deref(r.Requirements),
	}, nil
}

// EncodeRecommendations serializa un match set como {"recommended_matches": [...]}.
// Un set vacío se serializa como lista vacía, nunca null.
func EncodeRecommendations(matches []domain.BidOfferMatch) ([]byte, error) {
	rec := Recommendations{RecommendedMatches: make([]MatchDTO, 0, len(matches))}
	for _, m := range matches {
		rec.RecommendedMatches = append(rec.RecommendedMatches, MatchDTO{
			MarketID:       m.MarketID,
			TimeSlot:       FormatTimeSlot(m.TimeSlot),
			Bid:            bidDTO(m.Bid),
			SelectedEnergy: m.SelectedEnergy,
			Offer:          offerDTO(m.Offer),
			TradeRate:      m.TradeRate,
		})
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("wire.EncodeRecommendations: %w", err)
	}
	return data, nil
}

// DecodeRecommendations es la inversa de EncodeRecommendations.
func DecodeRecommendations(payload []byte) ([]domain.BidOfferMatch, error) {
	var rec Recommendations
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("wire.DecodeRecommendations: %w: %v", domain.ErrMalformedResponse, err)
	}
	matches := make([]domain.BidOfferMatch, 0, len(rec.RecommendedMatches))
	for _, r := range rec.RecommendedMatches {
		slot, err := ParseTimeSlot(deref(r.TimeSlot))
		if err != nil {
			return nil, fmt.Errorf("wire.DecodeRecommendations: %w", err)
		}
		bid, err := mapBid(r.Bid)
		if err != nil {
			return nil, fmt.Errorf("wire.DecodeRecommendations: %w", err)
		}
		offer, err := mapOffer(r.Offer)
		if err != nil {
			return nil, fmt.Errorf("wire.DecodeRecommendations: %w", err)
		}
		matches = append(matches, domain.BidOfferMatch{
			MarketID:       r.MarketID,
			TimeSlot:       slot,
			Bid:            bid,
			Offer:          offer,
			SelectedEnergy: r.SelectedEnergy,
			TradeRate:      r.TradeRate,
		})
	}
	return matches, nil
}

// DecodeTickEvent convierte un mensaje del canal de eventos en un trigger.
// Un counter presente gana sobre slot_completion.
func DecodeTickEvent(payload []byte, receivedAt time.Time) (domain.TriggerEvent, error) {
	var tick TickEvent
	if err := json.Unmarshal(payload, &tick); err != nil {
		return domain.TriggerEvent{}, fmt.Errorf("wire.DecodeTickEvent: %w: %v", domain.ErrMalformedResponse, err)
	}
	slot, err := ParseTimeSlot(tick.TimeSlot)
	if err != nil {
		return domain.TriggerEvent{}, fmt.Errorf("wire.DecodeTickEvent: %w", err)
	}

	ev := domain.TriggerEvent{
		MarketID:   tick.MarketID,
		TimeSlot:   slot,
		ReceivedAt: receivedAt,
	}
	switch {
	case tick.Counter != nil:
		ev.Kind = domain.TriggerCounter
		ev.Counter = *tick.Counter
	case len(tick.SlotCompletion) > 0:
		pct, err := parsePercent(tick.SlotCompletion)
		if err != nil {
			return domain.TriggerEvent{}, fmt.Errorf("wire.DecodeTickEvent: %w", err)
		}
		ev.Kind = domain.TriggerSlotCompletion
		ev.CompletionPercent = pct
	default:
		return domain.TriggerEvent{}, fmt.Errorf("wire.DecodeTickEvent: %w: neither counter nor slot_completion",
			domain.ErrMalformedResponse)
	}
	return ev, nil
}

// parsePercent acepta "40%", "40" o 40.
func parsePercent(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return 0, fmt.Errorf("%w: slot_completion %s", domain.ErrMalformedResponse, raw)
		}
		return f, nil
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: slot_completion %q", domain.ErrMalformedResponse, s)
	}
	return f, nil
}

func bidDTO(b domain.Bid) BidDTO {
	return BidDTO{
		Type:          b.Type,
		ID:            b.ID,
		Energy:        b.Energy,
		EnergyRate:    b.EnergyRate,
		OriginalPrice: b.OriginalPrice,
		Attributes:    optional(b.Attributes),
		Requirements:  optional(b.Requirements),
		BuyerOrigin:   b.BuyerOrigin,
		BuyerOriginID: b.BuyerOriginID,
		BuyerID:       b.BuyerID,
		Buyer:         b.Buyer,
		TimeSlot:      FormatTimeSlot(b.TimeSlot),
		CreationTime:  formatCreation(b.CreationTime),
	}
}

func offerDTO(o domain.Offer) OfferDTO {
	return OfferDTO{
		Type:           o.Type,
		ID:             o.ID,
		Energy:         o.Energy,
		EnergyRate:     o.EnergyRate,
		OriginalPrice:  o.OriginalPrice,
		Attributes:     optional(o.Attributes),
		Requirements:   optional(o.Requirements),
		SellerOrigin:   o.SellerOrigin,
		SellerOriginID: o.SellerOriginID,
		SellerID:       o.SellerID,
		Seller:         o.Seller,
		TimeSlot:       FormatTimeSlot(o.TimeSlot),
		CreationTime:   formatCreation(o.CreationTime),
	}
}

func formatCreation(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(creationTimeLayout)
	return &s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
