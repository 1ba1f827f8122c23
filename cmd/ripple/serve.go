package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/ripplechat/ripple/internal/ai"
	"github.com/ripplechat/ripple/internal/bot"
	"github.com/ripplechat/ripple/internal/config"
	"github.com/ripplechat/ripple/internal/conversation"
	"github.com/ripplechat/ripple/internal/db"
	"github.com/ripplechat/ripple/internal/handlers"
	"github.com/ripplechat/ripple/internal/logger"
	"github.com/ripplechat/ripple/internal/media"
	"github.com/ripplechat/ripple/internal/media/providers/localfs"
	"github.com/ripplechat/ripple/internal/message"
	"github.com/ripplechat/ripple/internal/message/event"
	"github.com/ripplechat/ripple/internal/server"
	"github.com/ripplechat/ripple/internal/users"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			event.NewHub,
			provideUserService,
			provideConversationService,
			provideMediaService,
			provideMessageService,
			provideAIClient,
			provideQueueClient,
			provideBotDispatcher,
			provideBotWorker,
			provideServerHandler(providePingHandler),
			provideServerHandler(provideAuthHandler),
			provideServerHandler(provideUsersHandler),
			provideServerHandler(provideConversationsHandler),
			provideServerHandler(provideMessagesHandler),
			provideServerHandler(provideMediaHandler),
			provideServer,
		),
		fx.Invoke(
			startBotWorker,
			startHandlePurge,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (*config.Config, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

func provideLogger(cfg *config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg *config.Config) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { conn.Close(); return nil }})
	return conn, nil
}

func provideUserService(log *slog.Logger, conn *pgxpool.Pool) *users.Service {
	return users.NewService(log, users.NewPgStore(conn))
}

func provideMediaService(log *slog.Logger, cfg *config.Config, conn *pgxpool.Pool) (*media.Service, error) {
	provider, err := localfs.New(cfg.Media.DataRoot)
	if err != nil {
		return nil, fmt.Errorf("init media provider: %w", err)
	}
	return media.NewService(log, provider, media.NewPgHandleStore(conn), cfg.Server.PublicBaseURL, cfg.Media.HandleTTL()), nil
}

func provideConversationService(log *slog.Logger, conn *pgxpool.Pool, userService *users.Service, mediaService *media.Service, hub *event.Hub) *conversation.Service {
	return conversation.NewService(log, conversation.NewPgStore(conn), userService, mediaService, hub)
}

func provideMessageService(log *slog.Logger, conn *pgxpool.Pool, userService *users.Service, convService *conversation.Service, mediaService *media.Service, dispatcher *bot.Dispatcher, hub *event.Hub) *message.Service {
	return message.NewService(log, message.NewPgStore(conn), userService, convService, mediaService, dispatcher, hub)
}

func provideAIClient(log *slog.Logger, cfg *config.Config) ai.Client {
	return ai.NewOpenAIClient(log, cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout())
}

func provideQueueClient(lc fx.Lifecycle, cfg *config.Config) *asynq.Client {
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return client.Close() }})
	return client
}

func provideBotDispatcher(log *slog.Logger, client *asynq.Client) *bot.Dispatcher {
	return bot.NewDispatcher(log, client)
}

func provideBotWorker(log *slog.Logger, client ai.Client, msgService *message.Service) *bot.Worker {
	return bot.NewWorker(log, client, msgService)
}

func providePingHandler() *handlers.PingHandler {
	return handlers.NewPingHandler()
}

func provideAuthHandler(log *slog.Logger, userService *users.Service, cfg *config.Config) (*handlers.AuthHandler, error) {
	expiry, err := cfg.Auth.JWTExpiry()
	if err != nil {
		return nil, err
	}
	return handlers.NewAuthHandler(log, userService, cfg.Auth.JWTSecret, expiry), nil
}

func provideUsersHandler(log *slog.Logger, userService *users.Service) *handlers.UsersHandler {
	return handlers.NewUsersHandler(log, userService)
}

func provideConversationsHandler(log *slog.Logger, convService *conversation.Service, userService *users.Service, hub *event.Hub) *handlers.ConversationsHandler {
	return handlers.NewConversationsHandler(log, convService, userService, hub)
}

func provideMessagesHandler(log *slog.Logger, msgService *message.Service, hub *event.Hub) *handlers.MessagesHandler {
	return handlers.NewMessagesHandler(log, msgService, hub)
}

func provideMediaHandler(log *slog.Logger, mediaService *media.Service) *handlers.MediaHandler {
	return handlers.NewMediaHandler(log, mediaService)
}

type serverParams struct {
	fx.In
	Logger   *slog.Logger
	Config   *config.Config
	Handlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.New(params.Logger, params.Config, params.Handlers)
}

func startBotWorker(lc fx.Lifecycle, log *slog.Logger, cfg *config.Config, worker *bot.Worker) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{Concurrency: 4},
	)
	mux := asynq.NewServeMux()
	worker.Register(mux)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Run(mux); err != nil {
					log.Error("bot worker stopped", slog.Any("error", err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			srv.Shutdown()
			return nil
		},
	})
}

func startHandlePurge(lc fx.Lifecycle, log *slog.Logger, mediaService *media.Service) {
	c := cron.New()
	if _, err := c.AddFunc("@hourly", func() {
		if err := mediaService.PurgeExpiredHandles(context.Background()); err != nil {
			log.Error("upload handle purge failed", slog.Any("error", err))
		}
	}); err != nil {
		log.Error("schedule handle purge", slog.Any("error", err))
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { c.Start(); return nil },
		OnStop:  func(ctx context.Context) error { <-c.Stop().Done(); return nil },
	})
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
