package queue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ouredu/request-tracker/internal/domain/tracking"
	"github.com/ouredu/request-tracker/pkg/config"
)

type stubTracker struct {
	outcome tracking.Outcome
	calls   int
}

func (s *stubTracker) Track(_ context.Context, _ tracking.RequestSnapshot) tracking.Outcome {
	s.calls++
	return s.outcome
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

func (s *stubTracker) Cleanup(context.Context) (int64, int64, error)        { return 0, 0, nil }
func (s *stubTracker) CleanupPreview(context.Context) (int64, int64, error) { return 0, 0, nil }
func (s *stubTracker) RemoveRange(context.Context, time.Time, time.Time) (int64, int64, error) {
	return 0, 0, nil
}

func trackTask(userID uuid.UUID) Task {
	return Task{
		ID:   uuid.NewString(),
		Name: TaskTrackAccess,
		Snapshot: tracking.RequestSnapshot{
			Method:    "GET",
			Path:      "api/v1/students",
			UserID:    &userID,
			Timestamp: time.Now().UTC(),
		},
	}
}

func TestProcessObservesOutcome(t *testing.T) {
	tracker := &stubTracker{outcome: tracking.Outcome{Status: tracking.OutcomeSummarized}}

	var observed []tracking.Outcome
	w := NewWorker(nil, tracker, config.QueueConfig{}, nil, func(o tracking.Outcome) {
		observed = append(observed, o)
	})

	err := w.process(context.Background(), trackTask(uuid.New()))
	require.NoError(t, err)
	assert.Equal(t, 1, tracker.calls)
	require.Len(t, observed, 1)
	assert.Equal(t, tracking.OutcomeSummarized, observed[0].Status)
}

func TestProcessObservesFailedOutcome(t *testing.T) {
	tracker := &stubTracker{outcome: tracking.Outcome{
		Status: tracking.OutcomeFailed,
		Err:    assert.AnError,
	}}

	var observed []tracking.Outcome
	w := NewWorker(nil, tracker, config.QueueConfig{}, nil, func(o tracking.Outcome) {
		observed = append(observed, o)
	})

	err := w.process(context.Background(), trackTask(uuid.New()))
	require.ErrorIs(t, err, assert.AnError)
	require.Len(t, observed, 1)
	assert.Equal(t, tracking.OutcomeFailed, observed[0].Status)
}

func TestProcessRejectsUnknownTask(t *testing.T) {
	tracker := &stubTracker{}
	w := NewWorker(nil, tracker, config.QueueConfig{}, nil, nil)

	err := w.process(context.Background(), Task{ID: uuid.NewString(), Name: "tracker.unknown"})
	require.Error(t, err)
	assert.Zero(t, tracker.calls)
}
