package fixture

import (
	"context"
	"fmt"
	"os"

	"github.com/alejandrodnm/energymatch/internal/adapters/wire"
	"github.com/alejandrodnm/energymatch/internal/domain"
	"github.com/alejandrodnm/energymatch/internal/ports"
)

var _ ports.OrderSource = (*Source)(nil)

// Source sirve órdenes desde un archivo JSON con el mismo formato que la
// respuesta de la exchange. Se relee en cada fetch para poder editarlo en
// caliente durante un dry-run.
type Source struct {
	path string
}

// NewSource verifica que path se pueda leer y parsear.
func NewSource(path string) (*Source, error) {
	s := &Source{path: path}
	if _, err := s.load(); err != nil {
		return nil, fmt.Errorf("fixture.NewSource: %w", err)
	}
	return s, nil
}

func (s *Source) FetchOpenOrders(ctx context.Context, ref domain.MarketRef) ([]domain.OrderBookSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fixture.FetchOpenOrders: %w", err)
	}
	snaps, err := s.load()
	if err != nil {
		return nil, fmt.Errorf("fixture.FetchOpenOrders: %w", err)
	}
	return wire.FilterSnapshots(snaps, ref), nil
}

// Markets devuelve los mercados presentes en el archivo.
func (s *Source) Markets() ([]string, error) {
	snaps, err := s.load()
	if err != nil {
		return nil, fmt.Errorf("fixture.Markets: %w", err)
	}
	var out []string
	for _, snap := range snaps {
		if len(out) == 0 || out[len(out)-1] != snap.MarketID {
			out = append(out, snap.MarketID)
		}
	}
	return out, nil
}

func (s *Source) load() ([]domain.OrderBookSnapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w: %v", s.path, domain.ErrSourceUnavailable, err)
	}
	return wire.DecodeOrdersResponse(data)
}
