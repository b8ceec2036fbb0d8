package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/structmail/structmail/internal/action"
	"github.com/structmail/structmail/internal/compose"
	"github.com/structmail/structmail/internal/config"
	"github.com/structmail/structmail/internal/db"
	"github.com/structmail/structmail/internal/delivery"
	"github.com/structmail/structmail/internal/folders"
	"github.com/structmail/structmail/internal/handlers"
	"github.com/structmail/structmail/internal/identity"
	"github.com/structmail/structmail/internal/live"
	"github.com/structmail/structmail/internal/logger"
	"github.com/structmail/structmail/internal/mailstore"
	"github.com/structmail/structmail/internal/records"
	"github.com/structmail/structmail/internal/render"
	"github.com/structmail/structmail/internal/server"
	"github.com/structmail/structmail/internal/structured"
	"github.com/structmail/structmail/internal/trust"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			fx.Annotate(provideTrustStore, fx.As(new(trust.Store)), fx.As(new(trust.Lookup))),
			fx.Annotate(provideRecordsStore, fx.As(new(records.Store))),
			fx.Annotate(provideIdentityStore, fx.As(new(identity.Store))),
			fx.Annotate(provideMailStore, fx.As(new(mailstore.Store))),
			provideSender,
			provideExtractor,
			render.NewRenderer,
			provideFolders,
			providePresenter,
			provideDispatcher,
			provideEmbedder,
			provideRefresher,
			handlers.NewPingHandler,
			provideAuthHandler,
			provideMessagesHandler,
			handlers.NewActionsHandler,
			handlers.NewComposeHandler,
			handlers.NewTrustHandler,
			handlers.NewIdentityHandler,
			handlers.NewLiveHandler,
			provideServer,
		),
		fx.Invoke(
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { conn.Close(); return nil }})
	return conn, nil
}

func provideTrustStore(log *slog.Logger, conn *pgxpool.Pool) *trust.PGStore {
	return trust.NewPGStore(log, conn)
}

func provideRecordsStore(conn *pgxpool.Pool) *records.PGStore {
	return records.NewPGStore(conn)
}

func provideIdentityStore(log *slog.Logger, conn *pgxpool.Pool) *identity.PGStore {
	return identity.NewPGStore(log, conn)
}

func provideMailStore(log *slog.Logger, cfg config.Config) *mailstore.IMAPStore {
	return mailstore.NewIMAPStore(log, cfg.IMAP)
}

func provideSender(log *slog.Logger, cfg config.Config) (delivery.Sender, error) {
	return delivery.NewSender(log, cfg.Delivery)
}

func provideExtractor(log *slog.Logger, cfg config.Config) *structured.Extractor {
	return structured.NewExtractor(log, cfg.Extractor)
}

func provideFolders(cfg config.Config) *folders.Service {
	return folders.NewService(cfg.Folders.Special)
}

func providePresenter(log *slog.Logger, trustLookup trust.Lookup, folderSvc *folders.Service, recordStore records.Store) *action.Presenter {
	return action.NewPresenter(log, trustLookup, folderSvc, recordStore)
}

func provideDispatcher(log *slog.Logger, sender delivery.Sender, recordStore records.Store, cfg config.Config) *action.Dispatcher {
	return action.NewDispatcher(log, sender, recordStore, cfg.Dispatch.Timeout())
}

func provideEmbedder(log *slog.Logger, renderer *render.Renderer, cfg config.Config) *compose.Embedder {
	return compose.NewEmbedder(log, renderer, cfg.Structured.AllowRemoteURLExtraction)
}

func provideRefresher(log *slog.Logger, cfg config.Config) *live.Refresher {
	return live.NewRefresher(log, cfg.Live.Interval())
}

func provideAuthHandler(log *slog.Logger, cfg config.Config) *handlers.AuthHandler {
	return handlers.NewAuthHandler(log, cfg.Admin, cfg.Auth, cfg.Delivery.From)
}

func provideMessagesHandler(log *slog.Logger, store mailstore.Store, extractor *structured.Extractor, renderer *render.Renderer, presenter *action.Presenter, trustLookup trust.Lookup, cfg config.Config) *handlers.MessagesHandler {
	return handlers.NewMessagesHandler(log, store, extractor, renderer, presenter, trustLookup, cfg.Structured.ShowForTrustedSenders)
}

func provideServer(cfg config.Config, log *slog.Logger, pingHandler *handlers.PingHandler, authHandler *handlers.AuthHandler, messagesHandler *handlers.MessagesHandler, actionsHandler *handlers.ActionsHandler, composeHandler *handlers.ComposeHandler, trustHandler *handlers.TrustHandler, identityHandler *handlers.IdentityHandler, liveHandler *handlers.LiveHandler) *server.Server {
	return server.NewServer(cfg.Server.Addr, cfg.Auth.JWTSecret, log, pingHandler, authHandler, messagesHandler, actionsHandler, composeHandler, trustHandler, identityHandler, liveHandler)
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner, cfg config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := db.Migrate(cfg.Postgres); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
