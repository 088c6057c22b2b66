package main

import (
	"context"
	"os"

	"github.com/hibiken/asynq"

	"podcast-curator/internal/app"
	"podcast-curator/internal/config"
	"podcast-curator/internal/logging"
)

// opener builds the pipeline for one command run. The returned func releases it.
type opener func(ctx context.Context) (*app.App, func(), error)

type commandContext struct {
	jsonOutput bool
	open       opener
}

// newCommandContext uses open when given, otherwise the configured database,
// directory client and queue.
func newCommandContext(open opener) *commandContext {
	if open == nil {
		open = openFromConfig
	}
	return &commandContext{open: open}
}

func openFromConfig(ctx context.Context) (*app.App, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(os.Stderr, cfg.LogLevel)

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	a, err := app.New(ctx, cfg, logger, client)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return a, func() {
		a.Close()
		client.Close()
	}, nil
}

func (c *commandContext) withApp(ctx context.Context, fn func(*app.App) error) error {
	a, release, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(a)
}
