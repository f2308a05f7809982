package wire

import (
	"encoding/json"
	"fmt"

	"github.com/alejandrodnm/energymatch/internal/domain"
)

// DTOs del protocolo pub/sub de la exchange. La conversión a entidades de
// dominio se hace en mapping.go.

// OrdersRequest es el payload publicado en el canal de pedidos. La exchange
// original envía "{}"; los campos son opcionales.
type OrdersRequest struct {
	MarketID string `json:"market_id,omitempty"`
	TimeSlot string `json:"time_slot,omitempty"`
}

// OrdersResponse es la respuesta a un pedido de órdenes abiertas:
// bids_offers → market id → time slot → {bids, offers}.
type OrdersResponse struct {
	BidsOffers map[string]map[string]SlotOrders `json:"bids_offers"`
}

// SlotOrders son las órdenes abiertas de un mercado para un time slot.
type SlotOrders struct {
	Bids   []BidDTO   `json:"bids"`
	Offers []OfferDTO `json:"offers"`
}

// UnmarshalJSON rechaza claves distintas de "bids" y "offers".
func (s *SlotOrders) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key, v := range raw {
		switch key {
		case "bids":
			if err := json.Unmarshal(v, &s.Bids); err != nil {
				return fmt.Errorf("bids: %w", err)
			}
		case "offers":
			if err := json.Unmarshal(v, &s.Offers); err != nil {
				return fmt.Errorf("offers: %w", err)
			}
		default:
			return fmt.Errorf("%w: unexpected key %q, want bids or offers", domain.ErrMalformedResponse, key)
		}
	}
	return nil
}

// BidDTO es un bid tal como viaja por el bus.
type BidDTO struct {
	Type          string  `json:"type"`
	ID            string  `json:"id"`
	Energy        float64 `json:"energy"`
	EnergyRate    float64 `json:"energy_rate"`
	OriginalPrice float64 `json:"original_price"`
	Attributes    *string `json:"attributes"`
	Requirements  *string `json:"requirements"`
	BuyerOrigin   string  `json:"buyer_origin"`
	BuyerOriginID string  `json:"buyer_origin_id"`
	BuyerID       string  `json:"buyer_id"`
	Buyer         string  `json:"buyer"`
	TimeSlot      *string `json:"time_slot"`
	CreationTime  *string `json:"creation_time"`
}

// OfferDTO es un offer tal como viaja por el bus.
type OfferDTO struct {
	Type           string  `json:"type"`
	ID             string  `json:"id"`
	Energy         float64 `json:"energy"`
	EnergyRate     float64 `json:"energy_rate"`
	OriginalPrice  float64 `json:"original_price"`
	Attributes     *string `json:"attributes"`
	Requirements   *string `json:"requirements"`
	SellerOrigin   string  `json:"seller_origin"`
	SellerOriginID string  `json:"seller_origin_id"`
	SellerID       string  `json:"seller_id"`
	Seller         string  `json:"seller"`
	TimeSlot       *string `json:"time_slot"`
	CreationTime   *string `json:"creation_time"`
}

// MatchDTO es una recomendación de trade.
type MatchDTO struct {
	MarketID       string   `json:"market_id"`
	TimeSlot       *string  `json:"time_slot"`
	Bid            BidDTO   `json:"bid"`
	SelectedEnergy float64  `json:"selected_energy"`
	Offer          OfferDTO `json:"offer"`
	TradeRate      float64  `json:"trade_rate"`
}

// Recommendations es el payload publicado en el canal de recomendaciones.
type Recommendations struct {
	RecommendedMatches []MatchDTO `json:"recommended_matches"`
}

// TickEvent es un mensaje del canal de eventos. slot_completion llega como
// "40%" en el protocolo original; counter es el número de bloque o tick.
type TickEvent struct {
	SlotCompletion json.RawMessage `json:"slot_completion,omitempty"`
	MarketID       string          `json:"market_id,omitempty"`
	TimeSlot       string          `json:"time_slot,omitempty"`
	Counter        *uint64         `json:"counter,omitempty"`
}
