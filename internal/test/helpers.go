package test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"

	"podcast-curator/internal/db"
)

// MockTaskEnqueuer is a mock implementation of tasks.TaskEnqueuer for testing.
type MockTaskEnqueuer struct {
	EnqueuedTasks []*asynq.Task
	Options       [][]asynq.Option
	Err           error
}

func (m *MockTaskEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.EnqueuedTasks = append(m.EnqueuedTasks, task)
	m.Options = append(m.Options, opts)
	return &asynq.TaskInfo{ID: "test-task-id", Queue: "default", Type: task.Type()}, nil
}

// TaskID returns the asynq.TaskID option passed with the i-th enqueued task.
func (m *MockTaskEnqueuer) TaskID(i int) string {
	for _, opt := range m.Options[i] {
		if opt.Type() == asynq.TaskIDOpt {
			if id, ok := opt.Value().(string); ok {
				return id
			}
		}
	}
	return ""
}

// NewMockDB returns a store backed by sqlmock. The connection is closed when
// the test ends.
func NewMockDB(t *testing.T) (*db.Store, sqlmock.Sqlmock) {
	mockDb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() {
		mockDb.Close()
	})

	return db.New(sqlx.NewDb(mockDb, "sqlmock")), mock
}
