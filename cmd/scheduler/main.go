package main

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/hibiken/asynq"

	"podcast-curator/internal/config"
	"podcast-curator/internal/logging"
	"podcast-curator/internal/worker"
	"podcast-curator/pkg/tasks"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

type entry struct {
	spec string
	task func() (*asynq.Task, error)
}

// entries lists the periodic jobs. Scheduled tasks carry no ledger row; the
// worker opens one when it picks them up. An empty spec disables a job.
func entries(cfg *config.Config) []entry {
	return []entry{
		{cfg.Schedule.RecentSync, func() (*asynq.Task, error) {
			return tasks.NewSyncRecentTask(tasks.SyncRecentTaskPayload{})
		}},
		{cfg.Schedule.SyncAll, func() (*asynq.Task, error) {
			return tasks.NewSyncAllPodcastsTask(0)
		}},
		{cfg.Schedule.Quality, func() (*asynq.Task, error) {
			return tasks.NewEvaluateQualityTask(0)
		}},
	}
}

func register(scheduler *asynq.Scheduler, cfg *config.Config, logger *log.Logger) error {
	for _, e := range entries(cfg) {
		if e.spec == "" {
			continue
		}
		task, err := e.task()
		if err != nil {
			return err
		}
		id, err := scheduler.Register(e.spec, task)
		if err != nil {
			return err
		}
		logger.Info("registered periodic task", "type", task.Type(), "spec", e.spec, "entry", id)
	}
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("could not load config", "err", err)
	}
	logger := logging.New(os.Stderr, cfg.LogLevel)

	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		&asynq.SchedulerOpts{
			Logger: worker.NewAsynqLogger(logger.WithPrefix("asynq")),
			PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
				if err != nil {
					logger.Error("could not enqueue periodic task", "err", err)
				}
			},
		},
	)

	if err := register(scheduler, cfg, logger); err != nil {
		logger.Fatalf("could not register task: %v", err)
	}

	logger.Infof("Scheduler starting (commit: %s)", CommitSHA)
	if err := scheduler.Run(); err != nil {
		logger.Fatalf("could not run scheduler: %v", err)
	}
}
