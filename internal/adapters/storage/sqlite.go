package storage

// sqlite.go: journal de ciclos de matching.
//
// Estrategia:
//   - `cycles`: una fila por ciclo terminado (estado, fase de fallo, intentos,
//     cantidad de matches, energía). Los matches en sí no se guardan: ya
//     viajaron al sink.
//   - Tiempos como unix millis para no depender del formato de DATETIME del driver.
//   - Prune automático al arrancar: ciclos de más de 30 días.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/energymatch/internal/domain"
	"github.com/alejandrodnm/energymatch/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS cycles (
    id              TEXT PRIMARY KEY,
    market_id       TEXT    NOT NULL,
    time_slot       TEXT    NOT NULL DEFAULT '',
    trigger_kind    TEXT    NOT NULL DEFAULT '',
    trigger_counter INTEGER NOT NULL DEFAULT 0,
    completion_pct  REAL    NOT NULL DEFAULT 0,
    state           TEXT    NOT NULL,
    failed_in       TEXT    NOT NULL DEFAULT '',
    attempts        INTEGER NOT NULL DEFAULT 0,
    snapshots       INTEGER NOT NULL DEFAULT 0,
    match_count     INTEGER NOT NULL DEFAULT 0,
    energy          REAL    NOT NULL DEFAULT 0,
    started_at_ms   INTEGER NOT NULL,
    duration_ms     INTEGER NOT NULL DEFAULT 0,
    error           TEXT    NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_cycles_started ON cycles(started_at_ms DESC);
CREATE INDEX IF NOT EXISTS idx_cycles_market  ON cycles(market_id, started_at_ms DESC);
`

const retentionCycles = 30 * 24 * time.Hour

var _ ports.CycleJournal = (*SQLiteJournal)(nil)

// SQLiteJournal implementa ports.CycleJournal usando SQLite (pure Go, sin CGo).
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal abre (o crea) la base de datos en la ruta dada, aplica el
// schema y limpia ciclos antiguos.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteJournal: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteJournal: apply schema: %w", err)
	}

	j := &SQLiteJournal{db: db}
	if _, err := j.Prune(context.Background(), time.Now().Add(-retentionCycles)); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteJournal: %w", err)
	}
	return j, nil
}

// RecordCycle persiste el resumen de un ciclo terminado. Reescribir el mismo
// id reemplaza la fila.
func (j *SQLiteJournal) RecordCycle(ctx context.Context, r domain.CycleResult) error {
	if r.ID == "" {
		return errors.New("storage.RecordCycle: cycle without id")
	}
	var slot string
	if !r.Market.TimeSlot.IsZero() {
		slot = r.Market.TimeSlot.UTC().Format(domain.TimeSlotLayout)
	}
	matchCount := r.MatchCount
	if matchCount == 0 {
		matchCount = len(r.Matches)
	}

	if _, err := j.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO cycles
			(id, market_id, time_slot, trigger_kind, trigger_counter, completion_pct,
			 state, failed_in, attempts, snapshots, match_count, energy,
			 started_at_ms, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.Market.MarketID,
		slot,
		string(r.Trigger.Kind),
		int64(r.Trigger.Counter),
		r.Trigger.CompletionPercent,
		string(r.State),
		string(r.FailedIn),
		r.Attempts,
		r.Snapshots,
		matchCount,
		r.Energy,
		r.StartedAt.UnixMilli(),
		r.Duration.Milliseconds(),
		r.ErrString(),
	); err != nil {
		return fmt.Errorf("storage.RecordCycle: insert %s: %w", r.ID, err)
	}
	return nil
}

// RecentCycles devuelve los últimos limit ciclos, más recientes primero.
// Err se reconstruye como texto plano: el tipo original no sobrevive.
func (j *SQLiteJournal) RecentCycles(ctx context.Context, limit int) ([]domain.CycleResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, market_id, time_slot, trigger_kind, trigger_counter, completion_pct,
		       state, failed_in, attempts, snapshots, match_count, energy,
		       started_at_ms, duration_ms, error
		FROM cycles
		ORDER BY started_at_ms DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.RecentCycles: query: %w", err)
	}
	defer rows.Close()

	var out []domain.CycleResult
	for rows.Next() {
		var (
			r                       domain.CycleResult
			slot, kind, state, fail string
			errText                 string
			counter                 int64
			startedMS, durationMS   int64
		)
		if err := rows.Scan(
			&r.ID,
			&r.Market.MarketID,
			&slot,
			&kind,
			&counter,
			&r.Trigger.CompletionPercent,
			&state,
			&fail,
			&r.Attempts,
			&r.Snapshots,
			&r.MatchCount,
			&r.Energy,
			&startedMS,
			&durationMS,
			&errText,
		); err != nil {
			return nil, fmt.Errorf("storage.RecentCycles: scan row: %w", err)
		}

		if slot != "" {
			r.Market.TimeSlot, _ = time.Parse(domain.TimeSlotLayout, slot)
		}
		r.Trigger.Kind = domain.TriggerKind(kind)
		r.Trigger.Counter = uint64(counter)
		r.Trigger.MarketID = r.Market.MarketID
		r.State = domain.CycleState(state)
		r.FailedIn = domain.CycleState(fail)
		r.StartedAt = time.UnixMilli(startedMS).UTC()
		r.Duration = time.Duration(durationMS) * time.Millisecond
		if errText != "" {
			r.Err = errors.New(errText)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Prune borra los ciclos que empezaron antes de cutoff.
func (j *SQLiteJournal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, `DELETE FROM cycles WHERE started_at_ms < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("storage.Prune: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Close cierra la conexión a la base de datos.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
