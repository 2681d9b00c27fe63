package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"focusflow/backend/internal/db"
	"focusflow/backend/internal/handler"
	"focusflow/backend/internal/repository"
	"focusflow/backend/internal/router"
	"focusflow/backend/internal/service"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  serve,
}

func serve(cmd *cobra.Command, args []string) error {
	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	if _, err := db.RunMigrations(cmd.Context(), database, migrationSource(cfg), logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	userRepo := repository.NewUserRepository(database)
	historyRepo := repository.NewHistoryRepository(database)

	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.TokenTTL, cfg.SignInDelay, logger.Named("auth"))
	timerService := service.NewTimerService(historyRepo, logger.Named("timer"), service.TimerOptions{
		Defaults:     cfg.Session,
		TickInterval: cfg.TickInterval,
	})

	if !cfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := router.New(authService, router.Handlers{
		Auth:      handler.NewAuthHandler(authService),
		Pomodoro:  handler.NewPomodoroHandler(timerService),
		Stopwatch: handler.NewStopwatchHandler(timerService),
	}, cfg.CORSOrigins, logger.Named("http"))

	// No WriteTimeout: the event stream stays open.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("backend listening",
			zap.String("addr", srv.Addr),
			zap.Duration("tick_interval", cfg.TickInterval))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		// Closing the timers ends open event streams so Shutdown can drain.
		timerService.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
