package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alejandrodnm/energymatch/internal/domain"
	"github.com/alejandrodnm/energymatch/internal/ports"
)

const (
	defaultCyclesLimit = 50
	maxCyclesLimit     = 500
)

// Server expone /healthz, /metrics y /cycles.
type Server struct {
	journal  ports.CycleJournal // puede ser nil
	gatherer prometheus.Gatherer
	engine   *gin.Engine
}

// NewServer arma el router. journal nil hace que /cycles responda 404.
func NewServer(journal ports.CycleJournal, gatherer prometheus.Gatherer) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{journal: journal, gatherer: gatherer, engine: gin.New()}
	s.engine.Use(gin.Recovery(), requestLogger())

	s.engine.GET("/healthz", s.health)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	s.engine.GET("/cycles", s.cycles)
	return s
}

// Handler devuelve el http.Handler (para tests con httptest).
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run sirve en addr hasta que ctx se cancela.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("admin server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("httpapi.Run: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("httpapi.Run: shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// cycleDTO es la vista JSON de un ciclo del journal.
type cycleDTO struct {
	ID         string  `json:"id"`
	Market     string  `json:"market_id"`
	TimeSlot   string  `json:"time_slot,omitempty"`
	Trigger    string  `json:"trigger"`
	State      string  `json:"state"`
	FailedIn   string  `json:"failed_in,omitempty"`
	Attempts   int     `json:"attempts"`
	Snapshots  int     `json:"snapshots"`
	Matches    int     `json:"matches"`
	Energy     float64 `json:"energy"`
	StartedAt  string  `json:"started_at"`
	DurationMS int64   `json:"duration_ms"`
	Error      string  `json:"error,omitempty"`
}

func (s *Server) cycles(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "cycle journal disabled"})
		return
	}

	limit := defaultCyclesLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxCyclesLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("limit must be in [1,%d]", maxCyclesLimit)})
			return
		}
		limit = n
	}

	results, err := s.journal.RecentCycles(c.Request.Context(), limit)
	if err != nil {
		slog.Error("list cycles", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read cycle journal"})
		return
	}

	out := make([]cycleDTO, 0, len(results))
	for _, r := range results {
		dto := cycleDTO{
			ID:         r.ID,
			Market:     r.Market.MarketID,
			Trigger:    string(r.Trigger.Kind),
			State:      string(r.State),
			FailedIn:   string(r.FailedIn),
			Attempts:   r.Attempts,
			Snapshots:  r.Snapshots,
			Matches:    r.MatchCount,
			Energy:     r.Energy,
			StartedAt:  r.StartedAt.UTC().Format(time.RFC3339Nano),
			DurationMS: r.Duration.Milliseconds(),
			Error:      r.ErrString(),
		}
		if !r.Market.TimeSlot.IsZero() {
			dto.TimeSlot = r.Market.TimeSlot.UTC().Format(domain.TimeSlotLayout)
		}
		out = append(out, dto)
	}
	c.JSON(http.StatusOK, gin.H{"cycles": out})
}

// requestLogger loguea cada request con slog en lugar del logger de gin.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("admin request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
