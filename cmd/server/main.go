package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"github.com/hibiken/asynq"
	"golang.org/x/time/rate"

	"podcast-curator/internal/app"
	"podcast-curator/internal/config"
	"podcast-curator/internal/handlers"
	"podcast-curator/internal/logging"
	"podcast-curator/internal/middleware"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("could not load config", "err", err)
	}
	logger := logging.New(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer client.Close()

	a, err := app.New(ctx, cfg, logger, client)
	if err != nil {
		logger.Fatal("could not start", "err", err)
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(a, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "err", err)
		}
	}()

	logger.Infof("Server starting on :%s (commit: %s)", cfg.Port, CommitSHA)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("could not run server", "err", err)
	}
}

func newRouter(a *app.App, logger *log.Logger) *mux.Router {
	limiter := middleware.NewRateLimiterMiddleware(rate.Limit(a.Config.API.RateLimit), a.Config.API.RateBurst, logger)
	h := handlers.New(handlers.Deps{
		Runner:     a.Runner,
		Dispatcher: a.Dispatcher,
		Searcher:   a.Client,
		Store:      a.Store,
		Logger:     logger.WithPrefix("http"),
	})
	return h.Router(limiter.Middleware)
}
