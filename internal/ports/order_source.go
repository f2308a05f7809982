package ports

import (
	"context"

	"github.com/alejandrodnm/energymatch/internal/domain"
)

// OrderSource obtiene los bids y offers abiertos de un mercado.
type OrderSource interface {
	// FetchOpenOrders devuelve un snapshot por time slot abierto del mercado
	// (o solo el del slot pedido si ref.TimeSlot no es cero).
	// El timeout lo pone el llamador vía ctx. Los fallos de red envuelven
	// domain.ErrSourceUnavailable; los payloads ilegibles domain.ErrMalformedResponse.
	FetchOpenOrders(ctx context.Context, ref domain.MarketRef) ([]domain.OrderBookSnapshot, error)
}
