package scheduler

import "sync"

// Leases hands out one exclusivity token per market. A market's token is held
// by at most one cycle; acquisition never blocks.
type Leases struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLeases() *Leases {
	return &Leases{held: make(map[string]struct{})}
}

// TryAcquire takes the market's token if it is free. The returned release
// func is safe to call more than once.
func (l *Leases) TryAcquire(marketID string) (release func(), ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[marketID]; busy {
		return nil, false
	}
	l.held[marketID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, marketID)
			l.mu.Unlock()
		})
	}, true
}

// Held reports whether a cycle currently owns the market.
func (l *Leases) Held(marketID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, busy := l.held[marketID]
	return busy
}

// Count returns how many markets are currently leased.
func (l *Leases) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}
