package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ouredu/request-tracker/internal/domain/tracking"
	"github.com/ouredu/request-tracker/pkg/logger"
)

var log = logger.NewLogger()

// TaskStatus represents the status of a queued tracking task
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "PENDING"
	TaskStatusStarted TaskStatus = "STARTED"
	TaskStatusSuccess TaskStatus = "SUCCESS"
	TaskStatusFailure TaskStatus = "FAILURE"
	TaskStatusRetry   TaskStatus = "RETRY"
)

// TaskTrackAccess is the only task the tracker queue carries.
const TaskTrackAccess = "tracker.track_access"

// Task is the serialized unit of work: a fully-resolved request snapshot
// plus retry bookkeeping. No live framework objects cross this boundary.
type Task struct {
	ID         string                   `json:"id"`
	Name       string                   `json:"task"`
	Snapshot   tracking.RequestSnapshot `json:"snapshot"`
	Retries    int                      `json:"retries"`
	EnqueuedAt time.Time                `json:"enqueued_at"`
	LastError  string                   `json:"last_error,omitempty"`
}

// TaskResult tracks a task's lifecycle in redis, expiring after ResultsTTL.
type TaskResult struct {
	ID        string     `json:"id"`
	Status    TaskStatus `json:"status"`
	Error     string     `json:"error,omitempty"`
	Attempts  int        `json:"attempts"`
	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// TaskBroker handles tracking task queue operations. Failed tasks that
// exhaust their retry budget land on the dead-letter list, never dropped.
type TaskBroker struct {
	redis      *redis.Client
	queueName  string
	resultsTTL time.Duration
}

// NewTaskBroker creates a broker on an existing redis client.
func NewTaskBroker(client *redis.Client, queueName string, resultsTTL time.Duration) *TaskBroker {
	return &TaskBroker{
		redis:      client,
		queueName:  queueName,
		resultsTTL: resultsTTL,
	}
}

func (b *TaskBroker) deadLetterKey() string {
	return b.queueName + ":failed"
}

func (b *TaskBroker) resultKey(taskID string) string {
	return fmt.Sprintf("tracker-task-meta-%s", taskID)
}

// EnqueueSnapshot pushes one request snapshot onto the queue.
func (b *TaskBroker) EnqueueSnapshot(ctx context.Context, snap tracking.RequestSnapshot) (string, error) {
	task := Task{
		ID:         uuid.New().String(),
		Name:       TaskTrackAccess,
		Snapshot:   snap,
		EnqueuedAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("failed to serialize task: %w", err)
	}

	if err := b.setResult(ctx, TaskResult{
		ID:        task.ID,
		Status:    TaskStatusPending,
		CreatedAt: task.EnqueuedAt,
	}); err != nil {
		return "", err
	}

	if err := b.redis.LPush(ctx, b.queueName, payload).Err(); err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}

	log.Debug("Tracking task enqueued",
		zap.String("task_id", task.ID),
		zap.String("queue", b.queueName))

	return task.ID, nil
}

// Dequeue blocks up to timeout waiting for the next task.
func (b *TaskBroker) Dequeue(ctx context.Context, timeout time.Duration) (*Task, error) {
	res, err := b.redis.BRPop(ctx, timeout, b.queueName).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	// BRPop returns [key, value]
	if len(res) < 2 {
		return nil, nil
	}

	var task Task
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		return nil, fmt.Errorf("failed to deserialize task: %w", err)
	}
	return &task, nil
}

// Requeue puts a failed task back with its retry count advanced.
func (b *TaskBroker) Requeue(ctx context.Context, task Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to serialize task: %w", err)
	}
	return b.redis.LPush(ctx, b.queueName, payload).Err()
}

// DeadLetter parks a task that exhausted its retry budget.
func (b *TaskBroker) DeadLetter(ctx context.Context, task Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to serialize task: %w", err)
	}
	return b.redis.LPush(ctx, b.deadLetterKey(), payload).Err()
}

func (b *TaskBroker) setResult(ctx context.Context, result TaskResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to serialize task result: %w", err)
	}
	if err := b.redis.Set(ctx, b.resultKey(result.ID), data, b.resultsTTL).Err(); err != nil {
		return fmt.Errorf("failed to store task result: %w", err)
	}
	return nil
}

// UpdateResult transitions a task's stored lifecycle record.
func (b *TaskBroker) UpdateResult(ctx context.Context, taskID string, status TaskStatus, attempts int, taskErr string) error {
	result := TaskResult{
		ID:       taskID,
		Status:   status,
		Error:    taskErr,
		Attempts: attempts,
	}
	now := time.Now().UTC()
	switch status {
	case TaskStatusStarted:
		result.StartedAt = &now
	case TaskStatusSuccess, TaskStatusFailure:
		result.EndedAt = &now
	}
	return b.setResult(ctx, result)
}

// GetTaskResult retrieves the lifecycle record of a task.
func (b *TaskBroker) GetTaskResult(ctx context.Context, taskID string) (*TaskResult, error) {
	data, err := b.redis.Get(ctx, b.resultKey(taskID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("task result not found")
		}
		return nil, fmt.Errorf("failed to get task result: %w", err)
	}

	var result TaskResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to deserialize task result: %w", err)
	}
	return &result, nil
}

// QueueLength reports pending tasks.
func (b *TaskBroker) QueueLength(ctx context.Context) (int64, error) {
	return b.redis.LLen(ctx, b.queueName).Result()
}

// DeadLetterLength reports tasks that exhausted their retries.
func (b *TaskBroker) DeadLetterLength(ctx context.Context) (int64, error) {
	return b.redis.LLen(ctx, b.deadLetterKey()).Result()
}
