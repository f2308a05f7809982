package ports

import (
	"context"

	"github.com/alejandrodnm/energymatch/internal/domain"
)

// CycleJournal registra el resultado de cada ciclo (estado, intentos,
// volumen). No guarda los matches en sí.
type CycleJournal interface {
	// RecordCycle persiste el resumen de un ciclo terminado.
	RecordCycle(ctx context.Context, result domain.CycleResult) error

	// RecentCycles devuelve los últimos ciclos, más recientes primero.
	RecentCycles(ctx context.Context, limit int) ([]domain.CycleResult, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
