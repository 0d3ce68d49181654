package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ouredu/request-tracker/internal/domain/tracking"
	"github.com/ouredu/request-tracker/pkg/config"
)

// stubTracker records the snapshots fed into the pipeline.
type stubTracker struct {
	snapshots []tracking.RequestSnapshot
	outcome   tracking.Outcome
}

func (s *stubTracker) Track(_ context.Context, snap tracking.RequestSnapshot) tracking.Outcome {
	s.snapshots = append(s.snapshots, snap)
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

func newTestRouter(tracker tracking.Service, cfg config.TrackingConfig, userID *uuid.UUID, roleID *uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	// Stand-in for the auth middleware.
	router.Use(func(c *gin.Context) {
		if userID != nil {
			c.Set(ContextUserID, *userID)
		}
		if roleID != nil {
			c.Set(ContextRoleID, *roleID)
		}
		c.Set(ContextRoleName, "teacher")
		c.Next()
	})

	tm := NewTrackingMiddleware(tracker, nil, nil, cfg)
	router.Use(tm.Handle())

	router.GET("/api/v1/students/:id/grades", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	router.GET("/reports/export", TrackModule("reporting.exports|Export Reports"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func TestTrackingMiddlewareCapturesSnapshot(t *testing.T) {
	userID := uuid.New()
	roleID := uuid.New()
	tracker := &stubTracker{outcome: tracking.Outcome{Status: tracking.OutcomeSummarized}}

	router := newTestRouter(tracker, config.TrackingConfig{Enabled: true, Silent: true}, &userID, &roleID)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/students/42/grades", nil)
	req.Header.Set("User-Agent", "test-agent")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, tracker.snapshots, 1)

	snap := tracker.snapshots[0]
	assert.Equal(t, http.MethodGet, snap.Method)
	assert.Equal(t, "/api/v1/students/42/grades", snap.Path)
	assert.Equal(t, "/api/v1/students/:id/grades", snap.RouteName)
	require.NotNil(t, snap.UserID)
	assert.Equal(t, userID, *snap.UserID)
	require.NotNil(t, snap.RoleID)
	assert.Equal(t, roleID, *snap.RoleID)
	assert.Equal(t, "teacher", snap.RoleName)
	assert.Equal(t, "test-agent", snap.UserAgent)
	assert.False(t, snap.TrackDetail)
	assert.False(t, snap.Timestamp.IsZero())
}

func TestTrackingMiddlewareAnnotation(t *testing.T) {
	userID := uuid.New()
	tracker := &stubTracker{outcome: tracking.Outcome{Status: tracking.OutcomeComplete}}

	router := newTestRouter(tracker, config.TrackingConfig{Enabled: true, Silent: true}, &userID, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reports/export", nil))

	require.Len(t, tracker.snapshots, 1)
	snap := tracker.snapshots[0]
	assert.Equal(t, "reporting.exports|Export Reports", snap.Annotation)
	assert.True(t, snap.TrackDetail)
	assert.Nil(t, snap.RoleID)
}

func TestTrackingMiddlewareSkipsUnauthenticated(t *testing.T) {
	tracker := &stubTracker{}
	router := newTestRouter(tracker, config.TrackingConfig{Enabled: true, Silent: true}, nil, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/students/42/grades", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, tracker.snapshots)
}

func TestTrackingMiddlewareDisabled(t *testing.T) {
	userID := uuid.New()
	tracker := &stubTracker{}
	router := newTestRouter(tracker, config.TrackingConfig{Enabled: false}, &userID, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/students/42/grades", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, tracker.snapshots)
}

func TestTrackingMiddlewareNeverChangesResponse(t *testing.T) {
	userID := uuid.New()
	tracker := &stubTracker{outcome: tracking.Outcome{
		Status: tracking.OutcomeFailed,
		Err:    assert.AnError,
	}}
	router := newTestRouter(tracker, config.TrackingConfig{Enabled: true, Silent: true}, &userID, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/students/42/grades", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok": true}`, w.Body.String())
}
