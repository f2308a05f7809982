package service

// concurrent.go: worker pool para correr un ciclo por mercado en paralelo.
//
// Los mercados son independientes (cada uno tiene su lease), así que RunOnce
// no tiene por qué esperar a que termine community-1 para empezar community-2.

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/alejandrodnm/energymatch/internal/domain"
)

type cycleOutcome struct {
	idx int
	res domain.CycleResult
	err error
}

// runCyclesConcurrent corre run una vez por ref usando un pool de workers.
// Los resultados vuelven en el mismo orden que refs.
//
// Si workers <= 0 usa runtime.NumCPU().
func runCyclesConcurrent(
	ctx context.Context,
	refs []domain.MarketRef,
	workers int,
	run func(ctx context.Context, ref domain.MarketRef) (domain.CycleResult, error),
) ([]domain.CycleResult, []error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(refs))

	workCh := make(chan int, len(refs))
	outCh := make(chan cycleOutcome, len(refs))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range workCh {
				res, err := run(ctx, refs[idx])
				outCh <- cycleOutcome{idx: idx, res: res, err: err}
			}
		}()
	}

	for i := range refs {
		workCh <- i
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(outCh)
	}()

	results := make([]domain.CycleResult, len(refs))
	errs := make([]error, len(refs))
	for out := range outCh {
		results[out.idx] = out.res
		errs[out.idx] = out.err
	}

	slog.Debug("concurrent cycles complete", "markets", len(refs), "workers", workers)
	return results, errs
}
