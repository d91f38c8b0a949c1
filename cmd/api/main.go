package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/fastprodman/duxbank/internal/api"
	"github.com/fastprodman/duxbank/internal/events"
	"github.com/fastprodman/duxbank/internal/gacha"
	"github.com/fastprodman/duxbank/internal/games"
	"github.com/fastprodman/duxbank/internal/infra/logging"
	"github.com/fastprodman/duxbank/internal/infra/tracing"
	"github.com/fastprodman/duxbank/internal/repos/journal"
	pgjournal "github.com/fastprodman/duxbank/internal/repos/journal/postgres"
	"github.com/fastprodman/duxbank/internal/scheduler"
	"github.com/fastprodman/duxbank/internal/services/bank"
	"github.com/fastprodman/duxbank/pkg/envconf"
	"github.com/fastprodman/duxbank/pkg/shutdownqueue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v\n", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

//nolint:funlen
func run(ctx context.Context) (retErr error) {
	cfg := new(apiConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	logging.SetupJSON(cfg.LogLevel)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := shutdownqueue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Infra ---
	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	shutdownqueue.AddNamed("flush traces", shutdownTracing)

	tuning, err := gacha.Load(cfg.TuningPath)
	if err != nil {
		return fmt.Errorf("load tuning: %w", err)
	}

	store, db, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}

	hub := events.NewHub()
	shutdownqueue.AddNamed("close event hub", func(context.Context) error {
		hub.Close()
		return nil
	})

	// --- Engine ---
	b, err := bank.New(tuning, bank.WithPublisher(hub))
	if err != nil {
		return fmt.Errorf("init bank: %w", err)
	}

	err = restore(ctx, store, b)
	if err != nil {
		return err
	}

	save := func(ctx context.Context) error {
		ctx, span := tracing.Tracer().Start(ctx, "bank.save")
		defer span.End()

		return store.Save(ctx, b.Snapshot())
	}

	shutdownqueue.AddNamed("final save", save)

	g, gctx := errgroup.WithContext(ctx)

	deps := api.Deps{
		Bank:   b,
		Games:  games.Default(),
		Hub:    hub,
		Save:   save,
		Limits: api.RateLimit{PerSecond: cfg.RatePerSecond, Burst: cfg.RateBurst},
	}

	// --- Journal ---
	if cfg.JournalEnabled {
		if db == nil {
			db, err = openPostgres(ctx, cfg.Postgres)
			if err != nil {
				return fmt.Errorf("journal: %w", err)
			}
		}

		repo := pgjournal.New(db)
		deps.History = repo

		evs, cancel := hub.Subscribe(1024)
		shutdownqueue.AddNamed("stop journal", func(context.Context) error {
			cancel()
			return nil
		})

		g.Go(func() error { return journal.Run(gctx, repo, evs) })
	}

	// --- Scheduler ---
	sched := scheduler.New(scheduler.Config{
		DailyAt:    cfg.DailyResetAt,
		RegenEvery: cfg.RegenInterval,
		SaveEvery:  cfg.SaveInterval,
	}, b, save)

	g.Go(func() error { return sched.Run(gctx) })

	// --- HTTP server ---
	srv := api.NewServer(cfg.Port, deps)

	g.Go(func() error {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	})

	shutdownqueue.AddNamed("background loops", func(context.Context) error {
		return g.Wait()
	})

	shutdownqueue.AddNamed("http server", func(c context.Context) error {
		slog.Info("Shut down server")
		return srv.Shutdown(c)
	})

	slog.Info("API started", "port", cfg.Port, "backend", cfg.Backend, "journal", cfg.JournalEnabled)

	// --- Wait until either context cancels or a loop errors out ---
	<-gctx.Done()

	if ctx.Err() != nil {
		// graceful path; deferred shutdownqueue.Shutdown will run
		return nil
	}

	return fmt.Errorf("background loop stopped: %w", context.Cause(gctx))
}
