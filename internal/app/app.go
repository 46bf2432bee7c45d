// Package app assembles the relay hub: infrastructure bootstrap and the
// Telegram runtime wiring.
package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/samrelay/relayhub/config"
	"github.com/samrelay/relayhub/internal/bot"
	"github.com/samrelay/relayhub/internal/broadcast"
	"github.com/samrelay/relayhub/internal/database"
	"github.com/samrelay/relayhub/internal/gateway"
	"github.com/samrelay/relayhub/internal/logger"
	"github.com/samrelay/relayhub/internal/provision"
	"github.com/samrelay/relayhub/internal/relay"
	"github.com/samrelay/relayhub/internal/storage"
	"github.com/samrelay/relayhub/internal/telegram"
)

// App holds the bootstrapped infrastructure of the hub.
type App struct {
	cfg   *config.Config
	db    *sqlx.DB
	store storage.Store
}

// Bootstrap initializes the logger, connects to Postgres and applies
// migrations.
func Bootstrap(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config provided")
	}

	if err := logger.InitLogger(cfg); err != nil {
		return nil, fmt.Errorf("app: logger init failed: %w", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("app: database initialization failed: %w", err)
	}

	if err := database.RunMigrations(cfg.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("app: migrations failed: %w", err)
	}

	return &App{
		cfg:   cfg,
		db:    db,
		store: storage.NewStore(db),
	}, nil
}

// Close releases the app's infrastructure.
func (a *App) Close() error {
	return a.db.Close()
}

// TelegramRunOptions builds the Telegram runtime options. Services are
// wired inside Bind since the gateway needs the connected bot.
func (a *App) TelegramRunOptions() telegram.RunOptions {
	reg := telegram.NewRegistry()
	return telegram.RunOptions{
		Config:   a.cfg,
		Registry: reg,
		Bind: func(ctx context.Context, rt telegram.Runtime) ([]telegram.Middleware, []telegram.Route, error) {
			gw := gateway.NewTelegram(rt.Bot)
			operatorID := a.cfg.Telegram.OperatorID

			relaySvc := relay.NewService(a.store, gw, operatorID)
			provSvc := provision.NewService(a.store, gw, operatorID, a.cfg.Payments)
			castSvc := broadcast.NewService(a.store, gw, a.cfg.Broadcast.Concurrency)

			hub := bot.New(a.cfg, a.store, gw, relaySvc, provSvc, castSvc)
			middlewares, routes := hub.Bind(rt.Registry)
			return middlewares, routes, nil
		},
	}
}
