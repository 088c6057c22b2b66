package main

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/hibiken/asynq"

	"podcast-curator/internal/app"
	"podcast-curator/internal/config"
	"podcast-curator/internal/logging"
	"podcast-curator/internal/worker"
	"podcast-curator/pkg/tasks"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("could not load config", "err", err)
	}
	logger := logging.New(os.Stderr, cfg.LogLevel)

	redis := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	client := asynq.NewClient(redis)
	defer client.Close()

	a, err := app.New(context.Background(), cfg, logger, client)
	if err != nil {
		logger.Fatal("could not start", "err", err)
	}
	defer a.Close()

	srv := asynq.NewServer(
		redis,
		asynq.Config{
			// Every job hits the directory API, which rate limits per key.
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				tasks.QueueHigh:    2,
				tasks.QueueDefault: 1,
			},
			RetryDelayFunc: worker.RetryDelay(logger),
			Logger:         worker.NewAsynqLogger(logger.WithPrefix("asynq")),
		},
	)

	mux := asynq.NewServeMux()
	worker.NewTaskHandler(a.Runner, logger.WithPrefix("worker")).Register(mux)

	logger.Infof("Worker starting (commit: %s)", CommitSHA)
	if err := srv.Run(mux); err != nil {
		logger.Fatalf("could not run server: %v", err)
	}
}
