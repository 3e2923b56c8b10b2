package cli

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/auth"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/billing"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/cache"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/catalog"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/config"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/demand"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/ledger"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/logger"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/mirror"
	mirrorpg "github.com/rjniknt7-dev/dairy-manager-sub001/internal/mirror/postgres"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/store"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/store/memory"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/store/sqlite"
	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/syncer"
)

// App wires configuration into the running object graph. Every command
// builds one, uses the pieces it needs, and closes it.
type App struct {
	Cfg     config.Config
	Logg    *logrus.Logger
	Repo    store.Repository
	Remote  mirror.Mirror
	Gate    auth.Gate
	Engine  *syncer.Engine
	Catalog *catalog.Service
	Billing *billing.Service
	Demand  *demand.Service
	Ledger  *ledger.Calculator

	session *auth.SessionGate
	closers []func() error
}

func NewApp(ctx context.Context) (*App, error) {
	cfg := config.Load()
	logg := logger.New(cfg.LogLevel)

	app := &App{Cfg: cfg, Logg: logg}

	if cfg.DatabasePath == "" || cfg.DatabasePath == "memory" {
		app.Repo = memory.New()
		logg.Info("store: in-memory, data is lost on exit")
	} else {
		db, err := sqlite.Open(cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		app.Repo = db
		app.closers = append(app.closers, db.Close)
		logg.WithField("path", cfg.DatabasePath).Info("store: sqlite")
	}

	balances := cache.BalanceCache(cache.NoopBalanceCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisBalanceCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			logg.WithField("err", err).Warn("redis unavailable, using noop balance cache")
		} else {
			balances = redisCache
			app.closers = append(app.closers, redisCache.Close)
			logg.Info("balance cache: redis")
		}
	}

	if cfg.SyncPasscodeHash != "" {
		session := auth.NewSessionGate(cfg.AuthSecret,
			time.Duration(cfg.SessionTTLMinutes)*time.Minute, cfg.SyncPasscodeHash)
		if token, err := os.ReadFile(app.sessionPath()); err == nil {
			if err := session.Resume(string(token)); err != nil {
				logg.Info("stored session expired, unlock required")
			}
		}
		app.session = session
		app.Gate = session
	} else {
		// No passcode configured: single-device setup, sync always allowed.
		app.Gate = auth.StaticGate{Open: true}
	}

	if cfg.SyncConfigured() {
		remote, err := mirrorpg.New(ctx, cfg.MirrorURL)
		if err != nil {
			// Local work must not depend on the mirror being up.
			logg.WithField("err", err).Warn("mirror unreachable at startup, sync deferred")
			app.Remote = unreachableMirror()
		} else {
			app.Remote = remote
			app.closers = append(app.closers, remote.Close)
			logg.Info("mirror: postgres")
		}
	} else {
		app.Remote = unreachableMirror()
		logg.Info("mirror: none configured, running purely local")
	}

	app.Catalog = catalog.New(app.Repo, logg)
	app.Ledger = ledger.New(app.Repo, balances, logg)
	app.Billing = billing.New(app.Repo, app.Ledger, logg)
	app.Demand = demand.New(app.Repo, logg)
	app.Engine = syncer.New(app.Repo, app.Remote, app.Gate, app.Ledger, logg)
	return app, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logg.WithField("err", err).Warn("close failed")
		}
	}
}

// sessionPath is where the unlock token persists between runs.
func (a *App) sessionPath() string {
	return a.Cfg.DatabasePath + ".session"
}

// SaveSession persists an unlock token next to the database file.
func (a *App) SaveSession(token string) error {
	return os.WriteFile(a.sessionPath(), []byte(token), 0o600)
}

// Unlock verifies the passcode and starts a sync session.
func (a *App) Unlock(passcode string) (string, error) {
	if a.session == nil {
		return "", nil
	}
	return a.session.Unlock(passcode, a.Cfg.DeviceName)
}

func unreachableMirror() mirror.Mirror {
	m := mirror.NewMemory()
	m.SetDown(true)
	return m
}
