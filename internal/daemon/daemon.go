package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kaizen-app/kaizen/internal/api"
	"github.com/kaizen-app/kaizen/internal/app/ledger"
	"github.com/kaizen-app/kaizen/internal/app/reward"
	"github.com/kaizen-app/kaizen/internal/app/tracker"
	"github.com/kaizen-app/kaizen/internal/domain"
	"github.com/kaizen-app/kaizen/internal/infra/postgres"
	"github.com/kaizen-app/kaizen/internal/infra/sqlite"
)

// closableStore is what both storage backends provide.
type closableStore interface {
	domain.Store
	Close() error
}

// openStore opens the configured storage backend.
func openStore(ctx context.Context, cfg StorageConfig) (closableStore, error) {
	switch cfg.Driver {
	case "sqlite", "":
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		return sqlite.Open(cfg.Path)
	case "postgres":
		if cfg.DSN == "" {
			return nil, errors.New("postgres driver needs storage.dsn or DATABASE_URL")
		}
		return postgres.Connect(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Services is the wired application, shared by the server and the CLI
// one-shot commands.
type Services struct {
	Store   closableStore
	Ledger  *ledger.Service
	Tracker *tracker.Service
}

// Build opens the store and wires the services.
func Build(ctx context.Context, cfg Config) (*Services, error) {
	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	led := ledger.New(store)
	trk := tracker.New(store, reward.New(store, led))
	return &Services{Store: store, Ledger: led, Tracker: trk}, nil
}

// Close releases the store.
func (s *Services) Close() error { return s.Store.Close() }

// Run starts the HTTP server and the scheduled ledger audit, and blocks
// until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	svc, err := Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	server := api.NewServer(svc.Tracker, svc.Ledger)
	if cfg.API.Metrics {
		server.EnableMetrics()
	}
	if cfg.API.CORS {
		server.EnableCORS()
	}

	var sched *cron.Cron
	if cfg.Audit.Enabled {
		sched = cron.New()
		_, err := sched.AddFunc(cfg.Audit.Schedule, func() {
			runAudit(context.Background(), svc.Ledger)
		})
		if err != nil {
			return fmt.Errorf("audit schedule %q: %w", cfg.Audit.Schedule, err)
		}
		sched.Start()
		defer sched.Stop()
		log.Printf("[daemon] ledger audit scheduled: %s", cfg.Audit.Schedule)
	}

	httpServer := &http.Server{
		Addr:    cfg.API.Addr(),
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[daemon] listening on %s (driver=%s)", cfg.API.Addr(), cfg.Storage.Driver)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// runAudit sweeps the ledger and logs any balance drift. Drift is reported,
// never auto-corrected; a human decides what a broken ledger means.
func runAudit(ctx context.Context, led *ledger.Service) {
	drifts, err := led.Audit(ctx)
	if err != nil {
		log.Printf("[audit] sweep failed: %v", err)
		return
	}
	if len(drifts) == 0 {
		log.Printf("[audit] ledger clean")
		return
	}
	for _, d := range drifts {
		log.Printf("[audit] DRIFT user=%s balance=%s sum=%s", d.UserID, d.Balance, d.Sum)
	}
}
