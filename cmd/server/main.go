package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/ahmetcoskunkizilkaya/logbook/internal/buffer"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/capture"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/config"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/database"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/dto"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/entry"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/importer"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/logging"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/query"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/reqctx"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/retention"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/routes"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/store"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/writer"
)

func main() {
	// Structured logging (JSON to stdout) until the capture handler is ready
	logging.Setup("info")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// Sentry error tracking; capture-path diagnostics are forwarded here too
	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.Sentry.Environment,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(database.DB, cfg.Tables); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	entries := store.NewEntries(database.DB, cfg.Tables.Entries)
	presets := store.NewPresets(database.DB, cfg.Tables.Presets)
	builder := entry.NewBuilder(entry.Limits(cfg.Limits))
	exit := buffer.NewExitHooks()

	sup := suture.New("logbook", suture.Spec{
		EventHook: (&sutureslog.Handler{Logger: slog.Default()}).MustHook(),
		Timeout:   10 * time.Second,
	})

	// Write strategy
	deps := writer.Deps{Store: entries, Exit: exit}
	var pubsub writer.PubSub
	switch cfg.Write.Mode {
	case writer.ModeQueue:
		pubsub, err = writer.NewPubSub(cfg.Queue.Connection, cfg.Queue.Buffer, slog.Default())
		if err != nil {
			slog.Error("queue setup failed", "error", err)
			os.Exit(1)
		}
		opts := writer.DefaultQueueOptions(cfg.Queue.Name)
		opts.MaxRetries = cfg.Queue.MaxRetries
		opts.InitialInterval = cfg.Queue.RetryInterval
		opts.CloseTimeout = cfg.Queue.CloseTimeout
		opts.Logger = slog.Default()
		deps.PubSub, deps.Queue = pubsub, opts
	case writer.ModeBatch:
		deps.Fallback = buffer.New(entries.Create, buffer.Triggers{Exit: exit})
		sup.Add(buffer.NewFlusher(deps.Fallback, cfg.Write.FlushInterval))
	}
	logWriter, err := writer.New(cfg.Write.Mode, deps)
	if err != nil {
		slog.Error("writer setup failed", "error", err)
		os.Exit(1)
	}
	queue, _ := logWriter.(*writer.Queue)
	if queue != nil {
		sup.Add(queue)
	}

	// Capture every slog record alongside stdout
	logging.Setup(cfg.Server.LogLevel, capture.NewHandler(logWriter, builder, capture.Options{
		Mode:               cfg.Capture.Mode,
		MinLevel:           logging.ParseLevel(cfg.Capture.MinLevel),
		IgnoreDeprecations: cfg.Ignore.Deprecations,
		IgnoreNullChannel:  cfg.Ignore.NullChannel,
	}))
	slog.Info("log capture installed", "write_mode", cfg.Write.Mode, "capture_mode", cfg.Capture.Mode)

	// Retention
	pruner := retention.NewPruner(entries, cfg.Retention)
	if cfg.Retention.Enabled {
		sup.Add(retention.NewScheduler(pruner, cfg.Retention.Interval))
	}

	ctx, stopServices := context.WithCancel(context.Background())
	supErr := sup.ServeBackground(ctx)

	// Handlers
	var breaker handlers.BreakerStater
	if sw, ok := logWriter.(*writer.SyncWriter); ok {
		breaker = sw
	}
	healthHandler := handlers.NewHealthHandler(database.Ping, cfg.Write.Mode, breaker)
	logHandler := handlers.NewLogHandler(
		entries,
		query.NewEngine(database.DB, cfg.Tables.Entries, cfg.Pagination.PerPage, cfg.Pagination.MaxPerPage),
		pruner,
		importer.New(entries, builder),
		nil,
	)
	presetHandler := handlers.NewPresetHandler(presets)

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    cfg.Server.BodyLimit,
		ErrorHandler: customErrorHandler,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg.Server))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		return c.Next()
	})

	reqOpts := reqctx.Options{}
	if cfg.Write.Mode == writer.ModeBatch {
		reqOpts.Persist, reqOpts.Exit = entries.Create, exit
	}
	app.Use(reqctx.Middleware(reqOpts))

	// Routes
	routes.Setup(app, cfg, routes.Handlers{
		Health:  healthHandler,
		Logs:    logHandler,
		Presets: presetHandler,
	}, nil)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			stopServices()
			exit.Exit(1)
		}
	}()

	supervisorDone := false
	select {
	case <-quit:
	case err := <-supErr:
		supervisorDone = true
		slog.Error("supervisor stopped", "error", err)
	}
	slog.Info("shutting down server...")

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// Persist queued entries before the router and its subscription stop.
	if queue != nil {
		drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.Queue.CloseTimeout)
		if err := queue.Drain(drainCtx); err != nil {
			slog.Error("queue drain incomplete", "error", err)
		}
		cancelDrain()
	}

	stopServices()
	if !supervisorDone {
		if err := <-supErr; err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("supervisor shutdown error", "error", err)
		}
	}
	exit.Run()
	if pubsub != nil {
		if err := pubsub.Close(); err != nil {
			slog.Error("queue close error", "error", err)
		}
	}
	sentry.Flush(2 * time.Second)

	// Close database connections
	if sqlDB, err := database.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.ErrorContext(c.UserContext(), "unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(dto.ErrorResponse{
		Error:   true,
		Message: message,
	})
}
