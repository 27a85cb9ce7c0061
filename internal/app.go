package internal

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"estate-parser-service/internal/adapters/fanout"
	logger_adapter "estate-parser-service/internal/adapters/logger"
	"estate-parser-service/internal/adapters/portalfetcher"
	postgres_adapter "estate-parser-service/internal/adapters/postgres"
	rabbitmq_adapter "estate-parser-service/internal/adapters/rabbitmq"
	"estate-parser-service/internal/adapters/rest"
	"estate-parser-service/internal/configs"
	"estate-parser-service/internal/constants"
	"estate-parser-service/internal/contextkeys"
	"estate-parser-service/internal/core/domain"
	"estate-parser-service/internal/core/port"
	usecases_port "estate-parser-service/internal/core/port/usecases"
	"estate-parser-service/internal/core/usecase"
	fluentlogger "estate-parser-service/pkg/fluent_logger"
	"estate-parser-service/pkg/postgres"
	"estate-parser-service/pkg/rabbitmq/rabbitmq_common"
	"estate-parser-service/pkg/rabbitmq/rabbitmq_consumer"
	"estate-parser-service/pkg/rabbitmq/rabbitmq_producer"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
)

type App struct {
	config    *configs.AppConfig
	apiServer *rest.Server

	dbPool        *pgxpool.Pool
	connManager   *rabbitmq_common.ConnectionManager
	eventProducer *rabbitmq_producer.Publisher
	tasksListener port.EventListenerPort

	orchestrateUC usecases_port.OrchestrateScrapePort
	runReporter   port.RunReporterPort

	logger       port.LoggerPort
	baseLogger   port.LoggerPort
	fluentClient *fluent.Fluent
}

func NewApp() (*App, error) {
	appConfig, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading application configuration: %w", err)
	}

	var activeLoggers []port.LoggerPort

	slogCfg := logger_adapter.SlogConfig{
		Level:    parseLogLevel(appConfig.StdoutLogger.Level),
		IsJSON:   false,
		UseColor: true,
	}
	stdoutLogger := logger_adapter.NewSlogAdapter(slogCfg)
	activeLoggers = append(activeLoggers, stdoutLogger)

	var fluentClient *fluent.Fluent
	if appConfig.FluentBit.Enabled {
		fluentClient, err = fluentlogger.NewClient(fluentlogger.Config{
			Host:      appConfig.FluentBit.Host,
			Port:      appConfig.FluentBit.Port,
			TagPrefix: appConfig.AppName,
		})
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit client", err, nil)
			return nil, fmt.Errorf("failed to create fluentbit client: %w", err)
		}

		fluentAdapter, err := logger_adapter.NewFluentLoggerAdapter(fluentClient, parseLogLevel(appConfig.FluentBit.Level))
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit adapter", err, nil)
			fluentClient.Close()
			return nil, err
		}
		activeLoggers = append(activeLoggers, fluentAdapter)
	}

	multiLogger, err := logger_adapter.NewMultiloggerAdapter(activeLoggers...)
	if err != nil {
		return nil, fmt.Errorf("failed to create multi-logger: %w", err)
	}

	baseLogger := multiLogger.WithFields(port.Fields{
		"service_name": appConfig.AppName,
	})

	appLogger := baseLogger.WithFields(port.Fields{"component": "app"})
	appLogger.Info("Logger system initialized", port.Fields{
		"active_loggers": len(activeLoggers), "fluent_enabled": appConfig.FluentBit.Enabled,
	})

	connManagerLogger := baseLogger.WithFields(port.Fields{"component": "rabbitmq_conn_manager"})
	connManagerBridge := rabbitmq_adapter.NewPkgLoggerBridge(connManagerLogger)
	connManager, err := rabbitmq_common.GetManager(appConfig.RabbitMQ.URL, connManagerBridge)
	if err != nil {
		appLogger.Error("Failed to create connection manager", err, nil)
		return nil, fmt.Errorf("failed to create connection manager: %w", err)
	}
	appLogger.Info("RabbitMQ Connection Manager initialized.", nil)

	dbPool, err := postgres.NewClient(context.Background(), postgres.Config{DatabaseURL: appConfig.Database.URL})
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", err, nil)
		connManager.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	appLogger.Info("PostgreSQL pool initialized.", nil)

	producerLogger := baseLogger.WithFields(port.Fields{"component": "rabbitmq_producer"})
	producerCfg := rabbitmq_producer.PublisherConfig{
		Config:                   rabbitmq_common.Config{URL: appConfig.RabbitMQ.URL},
		ExchangeName:             constants.MainExchange,
		ExchangeType:             "direct",
		DurableExchange:          true,
		DeclareExchangeIfMissing: true,
		Logger:                   rabbitmq_adapter.NewPkgLoggerBridge(producerLogger),
	}
	eventProducer, err := rabbitmq_producer.NewPublisher(producerCfg, connManager)
	if err != nil {
		appLogger.Error("Failed to create event producer", err, nil)
		dbPool.Close()
		connManager.Close()
		return nil, fmt.Errorf("failed to create event producer: %w", err)
	}
	appLogger.Info("RabbitMQ Event Producer initialized.", nil)

	// Outgoing adapters. Properties go to postgres and the processed
	// queue, reports go to the reports queue and the scrape_runs table.
	propertyStore, err := postgres_adapter.NewPropertyStorageAdapter(dbPool)
	if err != nil {
		eventProducer.Close()
		dbPool.Close()
		connManager.Close()
		return nil, err
	}
	runRepo, err := postgres_adapter.NewPostgresRunRepository(dbPool)
	if err != nil {
		eventProducer.Close()
		dbPool.Close()
		connManager.Close()
		return nil, err
	}
	propertyQueue, err := rabbitmq_adapter.NewPropertyQueueAdapter(eventProducer, constants.RoutingKeyProcessedProperties)
	if err != nil {
		eventProducer.Close()
		dbPool.Close()
		connManager.Close()
		return nil, err
	}
	reportQueue, err := rabbitmq_adapter.NewRunReporterAdapter(eventProducer, constants.RoutingKeyRunReports)
	if err != nil {
		eventProducer.Close()
		dbPool.Close()
		connManager.Close()
		return nil, err
	}

	propertySink, err := fanout.NewMultiSink(propertyStore, propertyQueue)
	if err != nil {
		eventProducer.Close()
		dbPool.Close()
		connManager.Close()
		return nil, err
	}
	runReporter, err := fanout.NewMultiReporter(reportQueue, runRepo)
	if err != nil {
		eventProducer.Close()
		dbPool.Close()
		connManager.Close()
		return nil, err
	}

	portalAdapter, err := portalfetcher.NewPortalFetcherAdapter(portalfetcher.Config{
		Parallelism: appConfig.Scrape.Concurrency,
		RandomDelay: appConfig.Scrape.RequestDelay,
	})
	if err != nil {
		appLogger.Error("Failed to initialize portal fetcher", err, nil)
		eventProducer.Close()
		dbPool.Close()
		connManager.Close()
		return nil, err
	}

	orchestrateScrapeUseCase := usecase.NewOrchestrateScrapeUseCase(
		portalAdapter.Strategies(),
		portalAdapter,
		propertySink,
	)
	appLogger.Info("All use cases initialized", nil)

	tasksConsumerCfg := rabbitmq_consumer.ConsumerConfig{
		Config:              rabbitmq_common.Config{URL: appConfig.RabbitMQ.URL},
		QueueName:           constants.QueueScrapeTasks,
		RoutingKeyForBind:   constants.RoutingKeyScrapeTasks,
		ExchangeNameForBind: constants.MainExchange,
		PrefetchCount:       1,
		DurableQueue:        true,
		ConsumerTag:         "scrape-tasks-processor-adapter",
		DeclareQueue:        true,
		QueueArgs: amqp.Table{
			"x-max-priority": int32(constants.TaskPriorityLevels),
		},

		EnableRetryMechanism: true,
		RetryExchange:        constants.QueueScrapeTasks + "_retry_ex",
		RetryQueue:           constants.QueueScrapeTasks + "_retry_wait_10s",
		RetryTTL:             constants.RetryTTL,

		FinalDLXExchange:   constants.FinalDLXExchange,
		FinalDLQ:           constants.FinalDLQ,
		FinalDLQRoutingKey: constants.FinalDLQRoutingKey,

		MaxRetries: constants.MaxRetries,
	}
	tasksListener, err := rabbitmq_adapter.NewTasksConsumerAdapter(tasksConsumerCfg, orchestrateScrapeUseCase, runReporter, baseLogger, connManager)
	if err != nil {
		appLogger.Error("Failed to initialize Scrape Tasks Listener", err, nil)
		eventProducer.Close()
		dbPool.Close()
		connManager.Close()
		return nil, err
	}
	appLogger.Info("Scrape Tasks Listener initialized.", nil)

	opsHandlers := rest.NewOpsHandlers(runRepo, appConfig.AppName)
	apiServer := rest.NewServer(appConfig.Rest.Port, opsHandlers, baseLogger)

	application := &App{
		config:        appConfig,
		apiServer:     apiServer,
		dbPool:        dbPool,
		connManager:   connManager,
		eventProducer: eventProducer,
		tasksListener: tasksListener,
		orchestrateUC: orchestrateScrapeUseCase,
		runReporter:   runReporter,
		logger:        appLogger,
		baseLogger:    baseLogger,
		fluentClient:  fluentClient,
	}

	return application, nil
}

// Run starts all components and manages their lifecycle until a
// shutdown signal or a critical component failure.
func (a *App) Run() error {
	appCtx, cancelApp := context.WithCancel(context.Background())

	var wg sync.WaitGroup

	defer func() {
		a.logger.Info("Shutdown sequence initiated...", nil)

		a.logger.Info("Waiting for background processes to finish...", nil)
		wg.Wait()
		a.logger.Info("All background processes finished.", nil)

		if a.tasksListener != nil {
			if err := a.tasksListener.Close(); err != nil {
				a.logger.Error("Error closing scrape tasks listener", err, nil)
			}
		}
		if a.apiServer != nil {
			if err := a.apiServer.Stop(context.Background()); err != nil {
				a.logger.Error("Error during API server shutdown", err, nil)
			}
		}
		if a.eventProducer != nil {
			if err := a.eventProducer.Close(); err != nil {
				a.logger.Error("Error closing event producer", err, nil)
			}
		}
		if a.connManager != nil {
			if err := a.connManager.Close(); err != nil {
				a.logger.Error("Error closing RabbitMQ connection manager", err, nil)
			}
		}
		if a.dbPool != nil {
			a.dbPool.Close()
			a.logger.Info("PostgreSQL pool closed.", nil)
		}

		a.logger.Info("Application shut down gracefully.", nil)

		if a.fluentClient != nil {
			if err := a.fluentClient.Close(); err != nil {
				log.Printf("App: Error closing fluent client: %v\n", err)
			}
		}
	}()

	a.logger.Info("Application is starting...", nil)

	consumerErrors := make(chan error, 1)
	serverErrors := make(chan error, 1)

	startListener := func(name string, listener port.EventListenerPort) {
		defer wg.Done()
		listenerLogger := a.logger.WithFields(port.Fields{"listener_name": name})
		listenerLogger.Info("Starting listener...", nil)

		if err := listener.Start(appCtx); err != nil {
			listenerLogger.Error("Listener stopped with an unexpected error", err, nil)
			consumerErrors <- fmt.Errorf("%s error: %w", name, err)
		} else {
			listenerLogger.Info("Listener stopped gracefully due to context cancellation.", nil)
		}
	}

	wg.Add(1)
	go startListener("Scrape Tasks Listener", a.tasksListener)

	go func() {
		a.logger.Info("Starting HTTP server...", port.Fields{"port": a.config.Rest.Port})
		if err := a.apiServer.Start(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}()

	if a.config.Scrape.RunOnStart {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.runStartupTask(appCtx)
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	a.logger.Info("Application running. Waiting for signals or component error...", nil)
	select {
	case receivedSignal := <-quit:
		a.logger.Warn("Received signal, shutting down", port.Fields{"signal": receivedSignal.String()})
	case err := <-consumerErrors:
		a.logger.Error("A critical component failed, shutting down", err, nil)
	case err := <-serverErrors:
		a.logger.Error("HTTP server failed to start, shutting down", err, nil)
	case <-appCtx.Done():
		a.logger.Warn("Context was cancelled unexpectedly, shutting down", nil)
	}

	cancelApp()

	return nil
}

// runStartupTask executes the env-configured scrape once, without a
// broker round-trip. Failures are logged, never fatal: the listener
// and the API server keep running.
func (a *App) runStartupTask(ctx context.Context) {
	task := domain.ScrapeTask{
		Name:         "startup",
		Targets:      a.config.Scrape.TargetURLs,
		Quota:        a.config.Scrape.Quota,
		MaxPages:     a.config.Scrape.MaxPages,
		FetchDetails: a.config.Scrape.FetchDetails,
		Concurrency:  a.config.Scrape.Concurrency,
	}
	taskID := uuid.New()
	traceID := uuid.New().String()

	runLogger := a.baseLogger.WithFields(port.Fields{
		"component": "startup_runner",
		"task_id":   taskID.String(),
		"trace_id":  traceID,
	})
	runCtx := contextkeys.ContextWithLogger(ctx, runLogger)
	runCtx = contextkeys.ContextWithTraceID(runCtx, traceID)

	runLogger.Info("Executing startup scrape task", port.Fields{
		"targets": len(task.Targets),
		"quota":   task.Quota,
	})

	summary, err := a.orchestrateUC.Execute(runCtx, task, taskID)
	if err != nil {
		runLogger.Error("Startup scrape task failed", err, nil)
		return
	}

	if summary != nil {
		if err := a.runReporter.ReportRun(runCtx, taskID, summary); err != nil {
			runLogger.Error("Failed to report startup run", err, nil)
		}
		runLogger.Info("Startup scrape task finished", port.Fields{
			"saved":          summary.ListingsSaved,
			"blocked":        summary.Blocked,
			"likely_blocked": summary.LikelyBlocked,
		})
	}
}

func parseLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		log.Printf("Warning: Unknown log level '%s'. Defaulting to 'info'.", levelStr)
		return slog.LevelInfo
	}
}
