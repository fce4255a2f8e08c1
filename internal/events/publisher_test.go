package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/listing-report/internal/runs"
)

// MockRedisClient is a mock for Redis client
type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	mockArgs := m.Called(ctx, args)
	cmd := redis.NewStringCmd(ctx)
	if mockArgs.Get(0) != nil {
		cmd.SetErr(mockArgs.Error(0))
	} else {
		cmd.SetVal("1234567890-0") // Mock stream ID
	}
	return cmd
}

func (m *MockRedisClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

func finishedRun(status runs.Status) *runs.Run {
	run := runs.NewRun("phones", 2)
	finished := run.StartedAt.Add(2 * time.Second)
	run.FinishedAt = &finished
	run.Status = status
	return run
}

func TestPublisher_RunFinished(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("completed run", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		publisher := NewPublisher(mockRedis, "", logger)
		run := finishedRun(runs.StatusCompleted)
		run.Records = 5

		mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
			values := args.Values.(map[string]interface{})
			if args.Stream != DefaultStream || values["event_type"] != "RUN_COMPLETED" {
				return false
			}
			if values["run_id"] != run.ID.String() || values["registry"] != "phones" {
				return false
			}

			var data map[string]interface{}
			if err := json.Unmarshal([]byte(values["data"].(string)), &data); err != nil {
				return false
			}
			payload := data["payload"].(map[string]interface{})
			return data["type"] == "RUN_COMPLETED" && payload["records"] == float64(5)
		})).Return(nil)

		require.NoError(t, publisher.RunFinished(ctx, run))
		mockRedis.AssertExpectations(t)
	})

	t.Run("failed run", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		publisher := NewPublisher(mockRedis, "stream:custom", logger)
		run := finishedRun(runs.StatusFailed)
		run.Error = "source B: navigation goto http://b: timeout"
		run.FailedSource = "B"

		mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
			values := args.Values.(map[string]interface{})
			return args.Stream == "stream:custom" && values["type"] == "RUN_FAILED"
		})).Return(nil)

		require.NoError(t, publisher.RunFinished(ctx, run))
		mockRedis.AssertExpectations(t)
	})

	t.Run("redis error", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		publisher := NewPublisher(mockRedis, "", logger)

		mockRedis.On("XAdd", ctx, mock.Anything).Return(errors.New("redis connection failed"))

		err := publisher.RunFinished(ctx, finishedRun(runs.StatusCompleted))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to publish to redis")
	})
}

func TestPublisher_Close(t *testing.T) {
	mockRedis := new(MockRedisClient)
	mockRedis.On("Close").Return(nil)

	publisher := NewPublisher(mockRedis, "", slog.Default())
	assert.NoError(t, publisher.Close())
	mockRedis.AssertExpectations(t)
}

func TestPublisherIsNotifier(t *testing.T) {
	var _ runs.Notifier = NewPublisher(new(MockRedisClient), "", slog.Default())
}
