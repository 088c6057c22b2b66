package worker

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/hibiken/asynq"
)

const (
	retryBaseDelay = 30 * time.Second
	retryMaxDelay  = time.Hour
)

// RetryDelay backs off exponentially: 30s, 1m, 2m, 4m and so on, capped at an hour.
func RetryDelay(logger *log.Logger) asynq.RetryDelayFunc {
	return func(n int, err error, task *asynq.Task) time.Duration {
		delay := retryBaseDelay
		for i := 0; i < n; i++ {
			delay *= 2
			if delay > retryMaxDelay {
				delay = retryMaxDelay
				break
			}
		}

		logger.Warnf("Task %s failed %d times, retrying in %v: %v", task.Type(), n+1, delay, err)
		return delay
	}
}
