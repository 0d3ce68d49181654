package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ouredu/request-tracker/internal/domain/tracking"
	"github.com/ouredu/request-tracker/pkg/logger"
)

type stubTracker struct {
	cleanups atomic.Int32
}

func (s *stubTracker) Track(context.Context, tracking.RequestSnapshot) tracking.Outcome {
	return tracking.Outcome{Status: tracking.OutcomeSkipped}
}

func (s *stubTracker) RecordAccess(context.Context, tracking.SummaryEvent) (*tracking.AccessSummary, error) {
	return nil, nil
}

func (s *stubTracker) RecordVisit(context.Context, *tracking.AccessSummary, tracking.RequestSnapshot, tracking.Classification) (*tracking.AccessDetail, error) {
	return nil, nil
}

func (s *stubTracker) TrackAccess(context.Context, uuid.UUID, uuid.UUID, string, string, string, time.Time) (*tracking.AccessSummary, error) {
	return nil, nil
}

func (s *stubTracker) TrackModuleAccess(context.Context, uuid.UUID, uuid.UUID, string, string, string, string, string, time.Time) (*tracking.AccessDetail, error) {
	return nil, nil
}

func (s *stubTracker) Cleanup(context.Context) (int64, int64, error) {
	s.cleanups.Add(1)
	return 0, 0, nil
}

func (s *stubTracker) CleanupPreview(context.Context) (int64, int64, error) { return 0, 0, nil }
func (s *stubTracker) RemoveRange(context.Context, time.Time, time.Time) (int64, int64, error) {
	return 0, 0, nil
}

func TestSchedulerRunsSweepAtStartup(t *testing.T) {
	stub := &stubTracker{}
	sched := NewScheduler(stub, logger.NewLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)

	assert.Equal(t, int32(1), stub.cleanups.Load())
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	stub := &stubTracker{}
	sched := NewScheduler(stub, logger.NewLogger())

	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)
	cancel()

	select {
	case <-sched.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler loop kept running after cancellation")
	}

	// Only the startup sweep ran; the midnight loop exited before ticking.
	assert.Equal(t, int32(1), stub.cleanups.Load())
}
