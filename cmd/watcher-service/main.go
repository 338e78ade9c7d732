package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cuongbtq/workorder-watcher/internal/api/handler"
	"github.com/cuongbtq/workorder-watcher/internal/api/router"
	"github.com/cuongbtq/workorder-watcher/internal/audit"
	"github.com/cuongbtq/workorder-watcher/internal/config"
	"github.com/cuongbtq/workorder-watcher/internal/confirm"
	"github.com/cuongbtq/workorder-watcher/internal/events"
	"github.com/cuongbtq/workorder-watcher/internal/extractor"
	"github.com/cuongbtq/workorder-watcher/internal/pipeline"
	"github.com/cuongbtq/workorder-watcher/internal/reconcile"
	"github.com/cuongbtq/workorder-watcher/internal/remote"
	"github.com/cuongbtq/workorder-watcher/internal/status"
	"github.com/cuongbtq/workorder-watcher/internal/watcher"
	"github.com/cuongbtq/workorder-watcher/shared/logger"
	"github.com/cuongbtq/workorder-watcher/shared/postgresql"
	"github.com/cuongbtq/workorder-watcher/shared/rabbitmq"
	"github.com/cuongbtq/workorder-watcher/shared/telegram"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		logger.NewDefault().Error("Watcher service stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	// Credentials live in config.env next to the binary; .env is also honoured
	if err := godotenv.Load("config.env"); err != nil {
		log.Println("No config.env file found, using environment variables")
	}
	_ = godotenv.Load()

	// Parse command-line flags
	defaultConfigPath := os.Getenv("WATCHER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/watcher-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	folders := flag.String("folders", "", "Comma-separated folders to watch (overrides WATCH_FOLDERS)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyEnv()
	if *folders != "" {
		cfg.Watcher.Folders = config.SplitList(*folders)
	}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting watcher service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.Any("folders", cfg.Watcher.Folders),
	)

	// Optional PostgreSQL audit storage
	var dbClient *postgresql.Client
	var storage *audit.Storage
	if cfg.Database.Enabled {
		dbClient, err = initPostgreSQL(&cfg.Database, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		storage = audit.NewStorage(dbClient.GetDB(), appLogger.Logger)
		if err := storage.EnsureSchema(context.Background()); err != nil {
			dbClient.Close()
			return err
		}
		appLogger.Info("Database connection established")
	}

	// Optional RabbitMQ event publishing
	var rabbitClient *rabbitmq.Client
	if cfg.RabbitMQ.Enabled {
		rabbitClient, err = initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
		if err != nil {
			closeClients(dbClient, nil)
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		appLogger.Info("RabbitMQ connection established")
	}

	// Remote file store
	ftpClient := remote.NewClient(&remote.Config{
		Host:          cfg.FTP.Host,
		Port:          cfg.FTP.Port,
		User:          cfg.FTP.User,
		Password:      cfg.FTP.Password,
		RemoteDir:     cfg.FTP.RemoteDir,
		Timeout:       cfg.FTP.Timeout,
		RetryAttempts: cfg.FTP.RetryAttempts,
		RetryWait:     cfg.FTP.RetryWait,
	}, nil, appLogger.Logger)
	counterStore := remote.NewCounterStore(ftpClient, cfg.FTP.RemoteFile, appLogger.Logger)

	// Chat channel
	bot := telegram.NewClient(&telegram.Config{
		BaseURL:        cfg.Telegram.BaseURL,
		BotToken:       cfg.Telegram.BotToken,
		RequestTimeout: cfg.Telegram.RequestTimeout,
	}, appLogger.Logger)
	channel := confirm.NewTelegram(bot, cfg.Telegram.ChatID, cfg.Telegram.PollTimeout, appLogger.Logger)

	engine := reconcile.NewEngine(counterStore, channel, reconcile.Config{
		Timeout:      cfg.Confirmation.Timeout,
		PollInterval: cfg.Confirmation.PollInterval,
		Affirmative:  cfg.Confirmation.Affirmative,
		Negative:     cfg.Confirmation.Negative,
		OperatorID:   channel.ChatID(),
	}, nil, appLogger.Logger)

	tracker := status.NewTracker(100)
	localState := pipeline.NewLocalState(filepath.Join(cfg.State.WorkDir, cfg.State.CounterFile))

	processorCfg := &pipeline.Config{
		Logger:      appLogger.Logger,
		Extractor:   initExtractor(&cfg.Extractor, appLogger.Logger),
		Reconciler:  engine,
		Publisher:   remote.NewPublisher(ftpClient, appLogger.Logger),
		Counter:     counterStore,
		Notifier:    channel,
		Audit:       initAudit(&cfg.Audit, storage, appLogger.Logger),
		Tracker:     tracker,
		LocalState:  localState,
		WorkDir:     cfg.State.WorkDir,
		DetailsFile: cfg.FTP.DetailsFile,
	}
	if rabbitClient != nil {
		processorCfg.Events = events.NewPublisher(rabbitClient, appLogger.Logger)
	}

	watcherInstance := watcher.NewWatcher(&watcher.Config{
		Logger:         appLogger.Logger,
		Handler:        pipeline.NewProcessor(processorCfg),
		Folders:        cfg.Watcher.Folders,
		Extensions:     cfg.Watcher.Extensions,
		IgnorePrefixes: cfg.Watcher.IgnorePrefixes,
		Concurrency:    cfg.Watcher.Concurrency,
		QueueSize:      cfg.Watcher.QueueSize,
	})

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := watcherInstance.Start(ctx); err != nil {
		closeClients(dbClient, rabbitClient)
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	// Optional status API
	var srv *http.Server
	serverErr := make(chan error, 1)
	if cfg.Server.Port > 0 {
		deps := &handler.Dependencies{
			Logger:       appLogger.Logger,
			Tracker:      tracker,
			LocalCounter: localState,
			ServiceName:  cfg.App.Name,
		}
		if storage != nil {
			deps.Storage = storage
			deps.DB = dbClient
		}
		srv = initServer(&cfg.Server, cfg.App.Environment, deps)

		appLogger.Info("Starting HTTP server",
			slog.String("address", srv.Addr),
			slog.Duration("read_timeout", cfg.Server.ReadTimeout),
			slog.Duration("write_timeout", cfg.Server.WriteTimeout),
		)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	appLogger.Info("Watcher service started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-serverErr:
		appLogger.Error("HTTP server failed", slog.Any("error", err))
		runErr = err
	}

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("Server forced to shutdown", slog.Any("error", err))
		}
		shutdownCancel()
	}

	// Stop accepting new files; in-flight tasks keep running to completion
	cancel()

	done := make(chan struct{})
	go func() {
		watcherInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Watcher stopped gracefully")
	case <-time.After(cfg.Watcher.ShutdownTimeout):
		appLogger.Warn("Watcher shutdown timeout exceeded, forcing exit",
			slog.Duration("timeout", cfg.Watcher.ShutdownTimeout),
		)
	}

	closeClients(dbClient, rabbitClient)

	appLogger.Info("Watcher service shutdown complete")
	return runErr
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initExtractor maps the configured cell layout onto the extractor
func initExtractor(cfg *config.ExtractorConfig, logger *slog.Logger) *extractor.Extractor {
	return extractor.New(extractor.Config{
		Cells: extractor.Cells{
			ID:               cfg.Cells.ID,
			Partner:          cfg.Cells.Partner,
			Device:           cfg.Cells.Device,
			SerialNumber:     cfg.Cells.SerialNumber,
			DeviceCode:       cfg.Cells.DeviceCode,
			FaultDescription: cfg.Cells.FaultDescription,
			WorkDescription:  cfg.Cells.WorkDescription,
			Date:             cfg.Cells.Date,
		},
		LockRetryAttempts: cfg.LockRetryAttempts,
		LockRetryWait:     cfg.LockRetryWait,
	}, logger)
}

// initAudit builds the enabled audit sinks
func initAudit(cfg *config.AuditConfig, storage *audit.Storage, logger *slog.Logger) *audit.Multi {
	var sinks []audit.Sink
	if cfg.Text {
		sinks = append(sinks, audit.NewTextSink(cfg.Dir))
	}
	if cfg.CSV {
		sinks = append(sinks, audit.NewCSVSink(cfg.Dir))
	}
	if cfg.Workbook {
		sinks = append(sinks, audit.NewWorkbookSink(cfg.Dir))
	}
	if storage != nil {
		sinks = append(sinks, storage)
	}

	multi := audit.NewMulti(logger, sinks...)
	logger.Info("Audit sinks configured", slog.Int("sinks", multi.Len()))
	return multi
}

// initServer creates the status API server
func initServer(cfg *config.ServerConfig, environment string, deps *handler.Dependencies) *http.Server {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router.SetupRouter(deps),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		RetryAttempts:   cfg.RetryAttempts,
		RetryInterval:   cfg.RetryInterval,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

func closeClients(dbClient *postgresql.Client, rabbitClient *rabbitmq.Client) {
	if dbClient != nil {
		dbClient.Close()
	}
	if rabbitClient != nil {
		rabbitClient.Close()
	}
}
