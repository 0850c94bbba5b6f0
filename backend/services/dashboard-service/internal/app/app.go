package app

import (
	"context"
	"database/sql"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	libdb "greenlens/backend/libs/db"
	libmqtt "greenlens/backend/libs/mqtt"
	libredis "greenlens/backend/libs/redis"
	"greenlens/backend/services/dashboard-service/internal/auth"
	"greenlens/backend/services/dashboard-service/internal/chat"
	"greenlens/backend/services/dashboard-service/internal/clients"
	"greenlens/backend/services/dashboard-service/internal/config"
	"greenlens/backend/services/dashboard-service/internal/dashboard"
	httpserver "greenlens/backend/services/dashboard-service/internal/http"
	"greenlens/backend/services/dashboard-service/internal/http/handlers"
	"greenlens/backend/services/dashboard-service/internal/http/middleware"
	"greenlens/backend/services/dashboard-service/internal/inbox"
	"greenlens/backend/services/dashboard-service/internal/publisher"
	redisstore "greenlens/backend/services/dashboard-service/internal/redis"
	"greenlens/backend/services/dashboard-service/internal/repository"
	"greenlens/backend/services/dashboard-service/internal/upload"
	"greenlens/backend/services/dashboard-service/internal/ws"
)

const wsWriteTimeout = 10 * time.Second

// App wires dashboard-service dependencies.
type App struct {
	server      *httpserver.Server
	board       *dashboard.Dashboard
	inbox       *inbox.Watcher
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *libmqtt.Client
	logger      *zap.Logger
}

// New constructs the application graph. History, Redis, MQTT and the upload inbox are optional.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}

	httpClient := clients.NewDefaultHTTPClient(cfg.BackendTimeout())
	greenlens := clients.NewGreenLensClient(cfg.Backend.URL, httpClient)

	a.board = dashboard.New(greenlens, dashboard.Options{
		Interval:    cfg.Dashboard.PollInterval,
		Tolerance:   cfg.Dashboard.Tolerance,
		Window:      cfg.Dashboard.Window,
		ThresholdKW: cfg.Dashboard.ThresholdKW,
		Company:     cfg.Backend.Company,
	}, logger.Named("dashboard"))

	history, err := a.openHistory(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var transcripts chat.TranscriptStore = chat.NewMemoryStore(cfg.TranscriptTTL())
	if cfg.Redis.Addr != "" {
		redisClient, err := libredis.NewRedisClient(ctx, libredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redisClient = redisClient
		transcripts = redisstore.NewTranscriptStore(redisClient, cfg.TranscriptTTL())
	}

	if cfg.MQTT.ServerURL != "" {
		mqttClient, err := libmqtt.Connect(ctx, libmqtt.Config{
			ServerURL: cfg.MQTT.ServerURL,
			ClientID:  cfg.MQTT.ClientID,
			Username:  cfg.MQTT.Username,
			Password:  cfg.MQTT.Password,
			KeepAlive: cfg.MQTT.KeepAlive,
		}, logger.Named("mqtt"))
		if err != nil {
			a.Close()
			return nil, err
		}
		a.mqttClient = mqttClient
		a.board.AddSink(publisher.NewTelemetrySink(mqttClient, cfg.MQTT.Topic, logger.Named("publisher")))
	}

	hub := ws.NewHub(logger.Named("ws"))
	a.board.OnUpdate(hub.Broadcast)

	uploads := upload.NewService(greenlens, logger)
	if cfg.Upload.WatchDir != "" {
		a.inbox = inbox.New(cfg.Upload.WatchDir, cfg.Upload.SettleDelay, uploads, logger.Named("inbox"))
	}

	deps := httpserver.RouterDeps{
		DashboardHandlers: handlers.NewDashboardHandlers(a.board, history, logger),
		UploadHandlers:    handlers.NewUploadHandlers(uploads, cfg.UploadLimit(), logger),
		ChatHandlers:      handlers.NewChatHandlers(chat.NewService(greenlens, transcripts, logger.Named("chat")), logger),
		DashboardWS:       ws.NewServer(hub, a.board, wsWriteTimeout, logger.Named("ws")).HandleWS,
		ShellHandler:      handlers.NewShellHandler(),
		HealthHandler:     handlers.NewHealthHandler(),
	}

	authMiddleware := middleware.NoAuth
	if cfg.Auth.Enabled {
		hasher := auth.NewBcryptHasher(0)
		if err := hasher.CheckHash(cfg.Auth.PasswordHash); err != nil {
			a.Close()
			return nil, err
		}
		tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
		authService := auth.NewService(cfg.Auth.Operator, cfg.Auth.PasswordHash, hasher, tokens, logger.Named("auth"))
		deps.AuthHandlers = handlers.NewAuthHandlers(authService, logger)
		authMiddleware = middleware.AuthMiddleware(tokens)
	}

	router := httpserver.NewRouter(deps, authMiddleware)
	a.server = httpserver.NewServer(
		cfg.HTTPAddress(),
		router,
		httpserver.Options{
			RequestTimeout:  cfg.HTTP.RequestTimeout,
			ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		},
		logger,
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
	)

	logger.Info("dashboard service configured",
		zap.String("backend_url", cfg.Backend.URL),
		zap.Bool("auth", cfg.Auth.Enabled),
		zap.Bool("history", a.db != nil),
		zap.Bool("redis_transcripts", a.redisClient != nil),
		zap.Bool("mqtt", a.mqttClient != nil),
		zap.Bool("inbox", a.inbox != nil),
	)
	return a, nil
}

// openHistory opens Postgres when a DSN is set and SQLite when only a path is set.
// It returns a nil reader when history is disabled.
func (a *App) openHistory(ctx context.Context, cfg *config.Config) (handlers.HistoryReader, error) {
	var dialect repository.Dialect
	switch {
	case cfg.Database.DSN != "":
		sqlDB, err := libdb.NewPostgresDB(ctx, cfg.Database.DSN, libdb.PoolOptions{})
		if err != nil {
			return nil, err
		}
		a.db, dialect = sqlDB, repository.DialectPostgres
	case cfg.Database.SQLitePath != "":
		sqlDB, err := libdb.NewSQLiteDB(ctx, cfg.Database.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.db, dialect = sqlDB, repository.DialectSQLite
	default:
		return nil, nil
	}

	repo := repository.NewPredictionRepository(a.db, dialect)
	if err := repo.EnsureSchema(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.board.AddSink(repo)
	a.logger.Info("prediction history enabled", zap.String("dialect", string(dialect)))
	return repo, nil
}

// Run polls the backend and serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.board.Start(gctx)
		return nil
	})
	g.Go(func() error {
		return a.server.Run(gctx)
	})
	if a.inbox != nil {
		g.Go(func() error {
			return a.inbox.Run(gctx)
		})
	}
	return g.Wait()
}

// Close releases resources.
func (a *App) Close() {
	if a.mqttClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.mqttClient.Disconnect(ctx); err != nil {
			a.logger.Warn("failed to disconnect mqtt", zap.Error(err))
		}
		cancel()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
