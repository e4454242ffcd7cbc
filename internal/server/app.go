// Package server wires the whole application together: configuration, the
// store backend, the read cache, the directory, the recurrence engine and
// the ledger facade, plus the headless run loop with signal-driven shutdown.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ycchuang/sheetbook/internal/cache"
	"github.com/ycchuang/sheetbook/internal/logging"
	"github.com/ycchuang/sheetbook/internal/mailer"
	"github.com/ycchuang/sheetbook/internal/rates"
	"github.com/ycchuang/sheetbook/internal/server/config"
	"github.com/ycchuang/sheetbook/internal/server/directory"
	"github.com/ycchuang/sheetbook/internal/server/ledger"
	"github.com/ycchuang/sheetbook/internal/server/models"
	"github.com/ycchuang/sheetbook/internal/server/recurring"
	"github.com/ycchuang/sheetbook/internal/store"
	"github.com/ycchuang/sheetbook/internal/store/sheets"
	"github.com/ycchuang/sheetbook/internal/store/sqlite"
)

// sweepInterval is how often the headless server re-evaluates recurring
// rules across all known books.
const sweepInterval = time.Hour

type App struct {
	config *config.Config
	logger logging.Logger
	store  store.Client
	engine *recurring.Engine
	ledger *ledger.Service
}

func NewApp(c *config.Config) (*App, error) {
	zl, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}
	logger := logging.NewZapLogger(zl)

	backend, err := newBackend(c, logger)
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}
	cached := cache.New(backend, cache.TTLs{Short: c.CacheShortTTL, Long: c.CacheLongTTL})

	notifier := mailer.NewLogNotifier(logger)
	dir := directory.NewService(cached, notifier, c.DirectoryBookRef, c.TrialDays, logger)

	provider := rates.NewProvider(rates.Config{
		Endpoint: c.RatesEndpoint,
		Base:     c.BaseCurrency,
		TTL:      c.RatesTTL,
	}, logger)

	engine := recurring.NewEngine(cached, provider, logger)
	lg := ledger.NewService(cached, dir, engine, provider, []byte(c.SecretKey), c.SessionValidity, logger)

	return &App{config: c, logger: logger, store: cached, engine: engine, ledger: lg}, nil
}

func newBackend(c *config.Config, logger logging.Logger) (store.Client, error) {
	switch c.Backend {
	case config.BackendSheets:
		return sheets.New(sheets.Config{
			BaseURL: c.SheetsBaseURL,
			Token:   c.SheetsToken,
			Timeout: c.StoreTimeout,
		}, logger), nil
	case config.BackendSQLite:
		return sqlite.New(context.Background(), c.LocalDBPath)
	default:
		return nil, fmt.Errorf("unknown backend %q", c.Backend)
	}
}

// Ledger exposes the facade for in-process front ends.
func (app *App) Ledger() *ledger.Service {
	return app.ledger
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// sweepRecurring posts due rules for every book that appears in the
// directory's bindings table. Per-book failures are logged and do not stop
// the sweep.
func (app *App) sweepRecurring(ctx context.Context) {
	rows, err := app.store.Read(ctx, app.config.DirectoryBookRef, store.TableBindings)
	if err != nil {
		app.logger.Error(ctx, "recurring sweep: reading bindings failed", "err", err)
		return
	}
	seen := make(map[string]bool)
	for _, r := range rows {
		book := models.BindingFromRow(r).BookRef
		if book == "" || seen[book] {
			continue
		}
		seen[book] = true
		n, err := app.engine.RunDue(ctx, book, time.Now())
		if err != nil {
			app.logger.Error(ctx, "recurring sweep: book failed", "book", book, "err", err)
			continue
		}
		if n > 0 {
			app.logger.Info(ctx, "recurring sweep: rules posted", "book", book, "count", n)
		}
	}
}

// Run sweeps recurring rules on an interval until the context is cancelled
// or a termination signal arrives.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	app.sweepRecurring(ctx)
	for {
		select {
		case <-ctx.Done():
			app.logger.Info(ctx, "Shutting down...")
			return
		case <-ticker.C:
			app.sweepRecurring(ctx)
		}
	}
}
