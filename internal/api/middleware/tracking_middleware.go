package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ouredu/request-tracker/internal/domain/session"
	"github.com/ouredu/request-tracker/internal/domain/tracking"
	"github.com/ouredu/request-tracker/internal/infrastructure/queue"
	"github.com/ouredu/request-tracker/pkg/config"
)

const (
	// Per-route keys set by TrackModule before the handler runs.
	contextAnnotation  = "tracking_annotation"
	contextTrackDetail = "tracking_detail"

	asyncEnqueueTimeout = 2 * time.Second
	syncTrackTimeout    = 10 * time.Second
)

// TrackModule annotates a route group or handler with an explicit module
// mapping ("module.submodule|Label") and opts it in to endpoint detail rows.
func TrackModule(mapping string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(contextAnnotation, mapping)
		c.Set(contextTrackDetail, true)
		c.Next()
	}
}

// TrackingMiddleware observes every request after its handler has finished
// and feeds a snapshot to the tracking pipeline, inline or via the queue.
// It never changes the response; tracking failures are logged, not returned,
// unless silent mode is off.
type TrackingMiddleware struct {
	tracker  tracking.Service
	broker   *queue.TaskBroker
	sessions session.Resolver
	cfg      config.TrackingConfig
}

// NewTrackingMiddleware wires the pipeline into gin. broker may be nil when
// async mode is off; sessions may be nil when tokens always carry a role.
func NewTrackingMiddleware(tracker tracking.Service, broker *queue.TaskBroker, sessions session.Resolver, cfg config.TrackingConfig) *TrackingMiddleware {
	return &TrackingMiddleware{
		tracker:  tracker,
		broker:   broker,
		sessions: sessions,
		cfg:      cfg,
	}
}

// Handle returns the gin middleware function.
func (m *TrackingMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if !m.cfg.Enabled {
			return
		}

		snap := m.snapshot(c)
		if snap.UserID == nil {
			// Unauthenticated traffic never reaches the pipeline.
			return
		}

		if m.cfg.Async && m.broker != nil {
			ctx, cancel := context.WithTimeout(context.Background(), asyncEnqueueTimeout)
			defer cancel()
			if _, err := m.broker.EnqueueSnapshot(ctx, snap); err != nil {
				m.report(c, "failed to enqueue tracking task", err, snap)
			}
			return
		}

		// Inline tracking runs on a detached context so client disconnects
		// cannot abort the write after the response was already sent.
		ctx, cancel := context.WithTimeout(context.Background(), syncTrackTimeout)
		defer cancel()
		outcome := m.tracker.Track(ctx, snap)
		ObserveOutcome(outcome)
		if outcome.Failed() {
			m.report(c, "tracking failed", outcome.Err, snap)
		}
	}
}

// snapshot captures everything the pipeline needs from the request and the
// context keys the auth middleware populated.
func (m *TrackingMiddleware) snapshot(c *gin.Context) tracking.RequestSnapshot {
	snap := tracking.RequestSnapshot{
		Method:           c.Request.Method,
		Path:             c.Request.URL.Path,
		RouteName:        routeName(c),
		ControllerAction: c.HandlerName(),
		IPAddress:        c.ClientIP(),
		UserAgent:        c.Request.UserAgent(),
		Timestamp:        time.Now().UTC(),
	}

	if v, ok := c.Get(contextAnnotation); ok {
		if s, ok := v.(string); ok {
			snap.Annotation = s
		}
	}
	if v, ok := c.Get(contextTrackDetail); ok {
		if b, ok := v.(bool); ok {
			snap.TrackDetail = b
		}
	}

	if id, ok := GetUserID(c); ok {
		snap.UserID = &id
	}
	if v, ok := c.Get(ContextRoleID); ok {
		if id, ok := v.(uuid.UUID); ok {
			snap.RoleID = &id
		}
	}
	snap.RoleName = c.GetString(ContextRoleName)
	if v, ok := c.Get(ContextSessionID); ok {
		if id, ok := v.(uuid.UUID); ok {
			snap.SessionID = &id
		}
	}

	// Tokens issued before roles were embedded carry no role claim; fall
	// back to the session store.
	if snap.UserID != nil && snap.RoleID == nil && m.sessions != nil {
		if token := c.GetString(ContextToken); token != "" {
			m.resolveRole(c.Request.Context(), token, &snap)
		}
	}

	return snap
}

func (m *TrackingMiddleware) resolveRole(ctx context.Context, token string, snap *tracking.RequestSnapshot) {
	sess, err := m.sessions.Resolve(ctx, token)
	if err != nil {
		if !errors.Is(err, session.ErrSessionNotFound) {
			log.Warn("session role lookup failed", zap.Error(err))
		}
		return
	}
	if sess.RoleID != uuid.Nil {
		roleID := sess.RoleID
		snap.RoleID = &roleID
		if snap.RoleName == "" {
			snap.RoleName = sess.RoleName
		}
	}
	if snap.SessionID == nil {
		sessionID := sess.ID
		snap.SessionID = &sessionID
	}
}

// routeName prefers the registered route pattern over the raw path so
// "/users/42" classifies as "/users/:id".
func routeName(c *gin.Context) string {
	return c.FullPath()
}

func (m *TrackingMiddleware) report(c *gin.Context, msg string, err error, snap tracking.RequestSnapshot) {
	log.Error(msg,
		zap.Error(err),
		zap.String("path", snap.Path),
		zap.String("method", snap.Method),
	)
	if !m.cfg.Silent {
		// Loud mode attaches the failure to the request so gin's error log
		// surfaces it; the response itself has already been written.
		_ = c.Error(err)
	}
}
