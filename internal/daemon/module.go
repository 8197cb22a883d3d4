package daemon

import (
	"context"

	"github.com/matheus3301/hangouts/internal/api"
	"github.com/matheus3301/hangouts/internal/bus"
	"github.com/matheus3301/hangouts/internal/config"
	"github.com/matheus3301/hangouts/internal/hangout"
	"github.com/matheus3301/hangouts/internal/lock"
	"github.com/matheus3301/hangouts/internal/logging"
	"github.com/matheus3301/hangouts/internal/outbox"
	"github.com/matheus3301/hangouts/internal/profile"
	"github.com/matheus3301/hangouts/internal/search"
	"github.com/matheus3301/hangouts/internal/session"
	"github.com/matheus3301/hangouts/internal/socket"
	"github.com/matheus3301/hangouts/internal/state"
	"github.com/matheus3301/hangouts/internal/status"
	"github.com/matheus3301/hangouts/internal/store"
	intsync "github.com/matheus3301/hangouts/internal/sync"
	"github.com/matheus3301/hangouts/internal/unread"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved user configuration passed to the fx module.
type Params struct {
	User       string
	Config     *config.Config
	SocketPath string // optional override for testing; empty = use default
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	if p.Config == nil {
		p.Config = config.Default()
	}
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideRepository,
			provideState,
			provideChannel,
			provideTracker,
			provideNavigator,
			provideEngine,
			provideReconciler,
			provideSender,
			provideController,
			provideFinder,
			api.NewControl,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.User), p.User, p.Config.LogLevel)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.User); err != nil {
		return nil, err
	}
	logger.Info("acquiring user lock", zap.String("user", p.User))
	l, err := lock.Acquire(profile.Dir(p.User))
	if err != nil {
		return nil, err
	}
	logger.Info("user lock acquired", zap.Int("pid", l.Holder().PID), zap.Time("since", l.Holder().Since))
	return l, nil
}

// provideStore depends on the lock so that the database is only opened by
// the process owning the user directory.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.DBPath(p.User)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	schema, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if schema.Changed() {
		logger.Info("schema migrated", zap.Uint("from", schema.From), zap.Uint("to", schema.To))
	} else {
		logger.Debug("schema up to date", zap.Uint("version", schema.To))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideRepository(p Params, db *store.DB) *store.Repository {
	return store.NewRepository(db, p.User)
}

func provideState(b *bus.Bus) *state.Store {
	return state.NewStore(b)
}

func provideChannel(p Params, m *status.Machine, st *state.Store, b *bus.Bus, logger *zap.Logger) *socket.Channel {
	rc := p.Config.Reconnect
	return socket.NewChannel(socket.Config{
		URL:      p.Config.ServerURL,
		Username: p.User,
		Reconnect: socket.ReconnectConfig{
			Enabled:     rc.Enabled,
			BaseDelay:   rc.BaseDelay,
			MaxDelay:    rc.MaxDelay,
			MaxAttempts: rc.MaxAttempts,
		},
	}, m, st, b, logger.Named("socket"))
}

func provideTracker(repo *store.Repository, st *state.Store, b *bus.Bus) *unread.Tracker {
	return unread.NewTracker(repo, st, b)
}

// provideNavigator publishes feature routes on the bus, where control API
// watchers pick them up.
func provideNavigator(b *bus.Bus) intsync.Navigator {
	return intsync.NavigatorFunc(func(route hangout.State) {
		b.Publish(bus.NewEvent(bus.KindNavigate, route))
	})
}

func provideEngine(repo *store.Repository, tracker *unread.Tracker, st *state.Store, nav intsync.Navigator, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(repo, tracker, st, nav, b, logger.Named("dispatcher"))
}

func provideReconciler(repo *store.Repository, st *state.Store, logger *zap.Logger) *intsync.Reconciler {
	return intsync.NewReconciler(repo, st, logger)
}

func provideSender(repo *store.Repository, ch *socket.Channel, m *status.Machine, st *state.Store, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(repo, ch, m, st, b, logger.Named("outbox"))
}

func provideController(repo *store.Repository, st *state.Store, tracker *unread.Tracker, rec *intsync.Reconciler, m *status.Machine, logger *zap.Logger) *session.Controller {
	return session.NewController(repo, st, tracker, rec, m, logger)
}

func provideFinder(p Params, st *state.Store, logger *zap.Logger) *search.Finder {
	return search.NewFinder(p.Config.SearchURL, p.User, st, logger.Named("search"))
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, db *store.DB, ch *socket.Channel, engine *intsync.Engine, sender *outbox.Sender, controller *session.Controller, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Rebuild the working state before any frame is applied.
			if err := controller.Load(); err != nil {
				return err
			}

			engine.Start(ctx, ch.Frames())
			sender.Start(ctx)

			// Start gRPC server in background.
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			go func() {
				if err := ch.Connect(ctx); err != nil {
					logger.Warn("initial connect failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			if err := ch.Close(); err != nil {
				logger.Debug("socket close", zap.Error(err))
			}
			sender.Stop()
			engine.Stop()
			srv.Stop(stopCtx)
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
