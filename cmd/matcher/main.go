package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/alejandrodnm/energymatch/config"
	"github.com/alejandrodnm/energymatch/internal/adapters/httpapi"
	"github.com/alejandrodnm/energymatch/internal/adapters/metrics"
	"github.com/alejandrodnm/energymatch/internal/adapters/notify"
	"github.com/alejandrodnm/energymatch/internal/adapters/storage"
	"github.com/alejandrodnm/energymatch/internal/application/orchestrator"
	"github.com/alejandrodnm/energymatch/internal/application/service"
	"github.com/alejandrodnm/energymatch/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one cycle per configured market and exit")
	dryRun := flag.Bool("dry-run", false, "read orders from the fixture and print matches instead of settling")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print every match as a table (console sink)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *dryRun {
		applyDryRun(cfg)
	}
	setupLogger(cfg.Log)

	slog.Info("energymatch starting",
		"config", *configPath,
		"source", cfg.Source.Kind,
		"settlement", cfg.Settlement.Transport,
		"trigger", cfg.Trigger.Mode,
		"dry_run", *dryRun,
		"once", *once,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	deps, err := buildDeps(ctx, cfg, *table)
	if err != nil {
		slog.Error("failed to wire adapters", "err", err)
		os.Exit(1)
	}
	defer deps.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	observers := ports.Observers{orchestrator.LogObserver{}, metrics.NewObserver(reg)}
	opts := []orchestrator.Option{orchestrator.WithObserver(observers)}

	var journal *storage.SQLiteJournal
	if !*dryRun {
		journal, err = storage.NewSQLiteJournal(cfg.Storage.DSN)
		if err != nil {
			slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
			os.Exit(1)
		}
		defer journal.Close()
		opts = append(opts, orchestrator.WithJournal(journal))
	}

	svcCfg := serviceConfig(cfg, deps.markets)
	svc, err := service.New(svcCfg, deps.source, deps.sink, deps.triggers, opts...)
	if err != nil {
		slog.Error("invalid service config", "err", err)
		os.Exit(1)
	}

	if *once {
		runOnce(ctx, svc)
		return
	}

	if cfg.Admin.Addr != "" {
		var j ports.CycleJournal
		if journal != nil {
			j = journal
		}
		admin := httpapi.NewServer(j, reg)
		go func() {
			if err := admin.Run(ctx, cfg.Admin.Addr); err != nil {
				slog.Error("admin server exited with error", "err", err)
			}
		}()
	}

	if err := svc.Run(ctx); err != nil {
		slog.Error("matching service exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("energymatch stopped cleanly")
}

func runOnce(ctx context.Context, svc *service.Service) {
	results, err := svc.RunOnce(ctx)
	notify.NewConsole(false).PrintCycles(results)
	if err != nil {
		slog.Error("cycle failed", "err", err)
		os.Exit(1)
	}
}

// serviceConfig traduce la config de archivo a la del servicio.
func serviceConfig(cfg *config.Config, markets []string) service.Config {
	sc := service.DefaultConfig()
	sc.Cycle.MaxFetchAttempts = cfg.Matcher.MaxFetchAttempts
	sc.Cycle.RetryDelay = cfg.RetryDelay()
	sc.Cycle.FetchTimeout = cfg.FetchTimeout()
	sc.Cycle.SubmitTimeout = cfg.SubmitTimeout()
	sc.Cycle.Tolerance = cfg.Matcher.FloatTolerance
	sc.TriggerMode = cfg.PolicyMode()
	sc.TriggerModulus = cfg.Trigger.Modulus
	sc.SlotThreshold = cfg.Trigger.SlotCompletionThresholdPercent
	sc.Markets = markets
	sc.Workers = cfg.Matcher.Workers
	return sc
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
