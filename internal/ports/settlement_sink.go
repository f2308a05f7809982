package ports

import (
	"context"

	"github.com/alejandrodnm/energymatch/internal/domain"
)

// SettlementSink recibe los matches propuestos de un ciclo.
type SettlementSink interface {
	// Submit entrega los matches. Un nil equivale al ack del sink; los errores
	// envuelven domain.ErrSink.
	Submit(ctx context.Context, matches []domain.BidOfferMatch) error
}
