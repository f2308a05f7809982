package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/energymatch/internal/domain"
	"github.com/alejandrodnm/energymatch/internal/ports"
)

var _ ports.SettlementSink = (*Console)(nil)

// Console implementa ports.SettlementSink imprimiendo los matches. Es el sink
// del modo dry-run: nada sale del proceso.
type Console struct {
	mu    sync.Mutex // los ciclos de distintos mercados escriben en paralelo
	out   io.Writer
	table bool
	now   func() time.Time
}

// NewConsole crea un sink que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table, now: time.Now}
}

// NewConsoleWriter crea un sink para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table, now: time.Now}
}

// Submit imprime el match set. Nunca falla salvo que ctx ya esté cancelado.
func (c *Console) Submit(ctx context.Context, matches []domain.BidOfferMatch) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("notify.Submit: %w: %v", domain.ErrSink, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	stamp := c.now().Format("15:04:05")
	if len(matches) == 0 {
		fmt.Fprintf(c.out, "[%s] no matches\n", stamp)
		return nil
	}

	fmt.Fprintf(c.out, "[%s] %s → %d matches, %.4f kWh, %.4f value\n",
		stamp, matches[0].MarketID, len(matches), domain.TotalEnergy(matches), totalValue(matches))

	if c.table {
		c.printMatches(matches)
	}
	return nil
}

// printMatches imprime una fila por trade.
func (c *Console) printMatches(matches []domain.BidOfferMatch) {
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Slot", "Bid", "Buyer", "Offer", "Seller", "Energy", "Rate", "Value")

	for i, m := range matches {
		table.Append(
			fmt.Sprintf("%d", i+1),
			slotLabel(m.TimeSlot),
			m.Bid.ID,
			m.Bid.Buyer,
			m.Offer.ID,
			m.Offer.Seller,
			fmt.Sprintf("%.4f", m.SelectedEnergy),
			fmt.Sprintf("%.4f", m.TradeRate),
			fmt.Sprintf("%.4f", m.Value()),
		)
	}
	table.Render()
}

// PrintCycles imprime el resumen de una tanda de ciclos (modo -once).
func (c *Console) PrintCycles(results []domain.CycleResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	table := tablewriter.NewWriter(c.out)
	table.Header("Market", "State", "Failed in", "Attempts", "Snapshots", "Matches", "Energy", "Duration", "Error")

	for _, r := range results {
		table.Append(
			r.Market.String(),
			string(r.State),
			string(r.FailedIn),
			fmt.Sprintf("%d", r.Attempts),
			fmt.Sprintf("%d", r.Snapshots),
			fmt.Sprintf("%d", r.MatchCount),
			fmt.Sprintf("%.4f", r.Energy),
			r.Duration.Round(time.Millisecond).String(),
			truncate(r.ErrString(), 60),
		)
	}
	table.Render()
}

func totalValue(matches []domain.BidOfferMatch) float64 {
	var v float64
	for _, m := range matches {
		v += m.Value()
	}
	return v
}

func slotLabel(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(domain.TimeSlotLayout)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
