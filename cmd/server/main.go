package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/dayflow/api/handler"
	"github.com/fastygo/dayflow/internal/config"
	"github.com/fastygo/dayflow/internal/infrastructure/monitor"
	"github.com/fastygo/dayflow/internal/middleware"
	"github.com/fastygo/dayflow/internal/router"
	"github.com/fastygo/dayflow/internal/services/lifecycle"
	"github.com/fastygo/dayflow/internal/services/reminder"
	"github.com/fastygo/dayflow/pkg/httpcontext"
	"github.com/fastygo/dayflow/pkg/logger"
	authUC "github.com/fastygo/dayflow/usecase/auth"
	taskUC "github.com/fastygo/dayflow/usecase/task"
	templateUC "github.com/fastygo/dayflow/usecase/template"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	appCtx := manager.Context()

	mon := monitor.New(cfg.Store.Backend, 10*time.Second, zapLogger)

	st, err := openStores(appCtx, cfg, manager, mon, zapLogger)
	if err != nil {
		zapLogger.Fatal("store setup failed", zap.String("backend", cfg.Store.Backend), zap.Error(err))
	}

	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	taskUseCase := taskUC.New(st.tasks, zapLogger)
	templateUseCase := templateUC.New(st.templates, taskUseCase, zapLogger)
	authUseCase := authUC.New(st.sessions, cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.SessionTTL, zapLogger)

	var reminders apiHandler.ReminderTracker
	if cfg.Reminder.Enabled {
		dispatcher := reminder.New(cfg.Reminder.Lead, zapLogger,
			reminder.WithObserver(reminder.LogNotifier(zapLogger)))
		dispatcher.Start()
		manager.Register("reminders", func(ctx context.Context) error {
			dispatcher.Stop(ctx)
			return nil
		})
		reminders = dispatcher
	}

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)
	streamHandler := apiHandler.NewStreamHandler(taskUseCase, reminders, cfg.Context.StreamKeepAlive, ctxAdapter, zapLogger)

	authHandler := apiHandler.NewAuthHandler(authUseCase, ctxAdapter, zapLogger)
	authHandler.OnLogout(streamHandler.EndSession)

	handlers := router.Handlers{
		Auth:     authHandler,
		Task:     apiHandler.NewTaskHandler(taskUseCase, ctxAdapter, zapLogger),
		Stream:   streamHandler,
		Template: apiHandler.NewTemplateHandler(templateUseCase, ctxAdapter, zapLogger),
		Health:   apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	authMiddleware := middleware.JWTAuth(authUseCase, cfg.Context.RequestTimeout, zapLogger)
	r := router.New(handlers, authMiddleware)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}

	manager.Go("http_server", func(ctx context.Context) error {
		zapLogger.Info("server started",
			zap.String("address", cfg.Address()),
			zap.String("backend", cfg.Store.Backend))
		return server.ListenAndServe(cfg.Address())
	})
	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})
	// Streams hold their connections open, so they end before the server drains.
	manager.Register("task_streams", streamHandler.Close)

	manager.Wait()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
	if err := manager.Err(); err != nil {
		zapLogger.Fatal("server stopped with error", zap.Error(err))
	}
}
