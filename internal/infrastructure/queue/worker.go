package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ouredu/request-tracker/internal/domain/tracking"
	"github.com/ouredu/request-tracker/pkg/config"
)

const dequeueWait = 2 * time.Second

// Worker drains the tracking queue and replays each snapshot through the
// tracking service. Attempts are bounded by TaskTimeout; a task that fails
// MaxRetries times moves to the dead-letter list.
type Worker struct {
	broker  *TaskBroker
	tracker tracking.Service
	cfg     config.QueueConfig
	logger  *logrus.Logger
	observe func(tracking.Outcome)
	done    chan struct{}
}

// NewWorker creates a queue worker. observe is called with the outcome of
// every processed snapshot so queued traffic feeds the same counters as
// inline traffic; it may be nil.
func NewWorker(broker *TaskBroker, tracker tracking.Service, cfg config.QueueConfig, logger *logrus.Logger, observe func(tracking.Outcome)) *Worker {
	if logger == nil {
		logger = logrus.New()
	}
	return &Worker{
		broker:  broker,
		tracker: tracker,
		cfg:     cfg,
		logger:  logger,
		observe: observe,
		done:    make(chan struct{}),
	}
}

// Start runs the consume loop until the context is cancelled.
func (w *Worker) Start(ctx context.Context) {
	defer close(w.done)

	w.logger.WithFields(logrus.Fields{
		"queue":       w.cfg.Name,
		"max_retries": w.cfg.MaxRetries,
	}).Info("Tracking worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Tracking worker stopped")
			return
		default:
		}

		task, err := w.broker.Dequeue(ctx, dequeueWait)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				continue
			}
			w.logger.WithError(err).Error("Failed to dequeue tracking task")
			time.Sleep(time.Second)
			continue
		}
		if task == nil {
			continue
		}

		w.handle(ctx, *task)
	}
}

// Done is closed when the worker loop exits.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) handle(ctx context.Context, task Task) {
	attempt := task.Retries + 1

	if err := w.broker.UpdateResult(ctx, task.ID, TaskStatusStarted, attempt, ""); err != nil {
		w.logger.WithError(err).Warn("Failed to record task start")
	}

	err := w.process(ctx, task)
	if err == nil {
		if uerr := w.broker.UpdateResult(ctx, task.ID, TaskStatusSuccess, attempt, ""); uerr != nil {
			w.logger.WithError(uerr).Warn("Failed to record task success")
		}
		return
	}

	w.logger.WithFields(logrus.Fields{
		"task_id": task.ID,
		"attempt": attempt,
	}).WithError(err).Warn("Tracking task failed")

	task.Retries++
	task.LastError = err.Error()

	if task.Retries >= w.cfg.MaxRetries {
		if dlErr := w.broker.DeadLetter(ctx, task); dlErr != nil {
			w.logger.WithError(dlErr).Error("Failed to move task to dead-letter list")
		}
		if uerr := w.broker.UpdateResult(ctx, task.ID, TaskStatusFailure, attempt, err.Error()); uerr != nil {
			w.logger.WithError(uerr).Warn("Failed to record task failure")
		}
		w.logger.WithField("task_id", task.ID).Error("Tracking task exhausted retries")
		return
	}

	if rqErr := w.broker.Requeue(ctx, task); rqErr != nil {
		w.logger.WithError(rqErr).Error("Failed to requeue tracking task")
		return
	}
	if uerr := w.broker.UpdateResult(ctx, task.ID, TaskStatusRetry, attempt, err.Error()); uerr != nil {
		w.logger.WithError(uerr).Warn("Failed to record task retry")
	}
}

func (w *Worker) process(ctx context.Context, task Task) error {
	if task.Name != TaskTrackAccess {
		return fmt.Errorf("unknown task %q", task.Name)
	}

	timeout := w.cfg.TaskTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outcome := w.tracker.Track(attemptCtx, task.Snapshot)
	if w.observe != nil {
		w.observe(outcome)
	}
	if outcome.Failed() {
		return outcome.Err
	}
	return nil
}
