package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ouredu/request-tracker/pkg/config"
	"github.com/ouredu/request-tracker/pkg/logger"
)

var log = logger.NewLogger()

// RequestSnapshot is the fully-resolved, serializable view of one completed
// request. It carries no live framework objects, so the same pipeline runs
// identically inline and from a queued task.
type RequestSnapshot struct {
	Method           string     `json:"method"`
	Path             string     `json:"path"`
	RouteName        string     `json:"route_name,omitempty"`
	ControllerAction string     `json:"controller_action,omitempty"`
	Annotation       string     `json:"annotation,omitempty"`
	UserID           *uuid.UUID `json:"user_id,omitempty"`
	RoleID           *uuid.UUID `json:"role_id,omitempty"`
	RoleName         string     `json:"role_name,omitempty"`
	SessionID        *uuid.UUID `json:"session_id,omitempty"`
	IPAddress        string     `json:"ip_address,omitempty"`
	UserAgent        string     `json:"user_agent,omitempty"`
	Timestamp        time.Time  `json:"timestamp"`
	// TrackDetail marks a handler that opted in to endpoint detail rows.
	TrackDetail bool `json:"track_detail,omitempty"`
}

type OutcomeStatus string

const (
	OutcomeSkipped    OutcomeStatus = "skipped"
	OutcomeSummarized OutcomeStatus = "summarized"
	OutcomeComplete   OutcomeStatus = "complete"
	OutcomeFailed     OutcomeStatus = "failed"
)

type SkipReason string

const (
	SkipDisabled        SkipReason = "disabled"
	SkipExcluded        SkipReason = "excluded"
	SkipUnauthenticated SkipReason = "unauthenticated"
	SkipRoleUnresolved  SkipReason = "role_unresolved"
)

// Outcome is the explicit result of one pipeline invocation. Skips are not
// errors; the host boundary decides what to do with failures.
type Outcome struct {
	Status     OutcomeStatus
	SkipReason SkipReason
	Summary    *AccessSummary
	Detail     *AccessDetail
	Err        error
}

func (o Outcome) Skipped() bool { return o.Status == OutcomeSkipped }
func (o Outcome) Failed() bool  { return o.Status == OutcomeFailed }

func skipped(reason SkipReason) Outcome {
	return Outcome{Status: OutcomeSkipped, SkipReason: reason}
}

// Service is the tracking pipeline plus the manual instrumentation entry
// points. It holds no per-request state and is safe for concurrent use; all
// shared mutation happens in the repository's atomic upserts.
type Service interface {
	Track(ctx context.Context, snap RequestSnapshot) Outcome
	RecordAccess(ctx context.Context, event SummaryEvent) (*AccessSummary, error)
	RecordVisit(ctx context.Context, summary *AccessSummary, snap RequestSnapshot, cls Classification) (*AccessDetail, error)

	TrackAccess(ctx context.Context, userID, roleID uuid.UUID, roleName, module, label string, at time.Time) (*AccessSummary, error)
	TrackModuleAccess(ctx context.Context, userID, roleID uuid.UUID, roleName, module, submodule, label, endpoint string, at time.Time) (*AccessDetail, error)

	Cleanup(ctx context.Context) (summaries, details int64, err error)
	CleanupPreview(ctx context.Context) (summaries, details int64, err error)
	RemoveRange(ctx context.Context, from, to time.Time) (summaries, details int64, err error)
}

type service struct {
	repo       Repository
	cfg        config.TrackingConfig
	classifier *ClassifierConfig
	exclusions PatternSet
}

// NewService compiles the exclusion and mapping patterns once; the returned
// service treats its configuration as immutable.
func NewService(repo Repository, cfg config.TrackingConfig, registry *Registry) (Service, error) {
	exclusions, err := CompilePatterns(cfg.Exclude)
	if err != nil {
		return nil, fmt.Errorf("invalid exclusion pattern: %w", err)
	}

	classifier, err := NewClassifierConfig(cfg.Mapping, registry)
	if err != nil {
		return nil, fmt.Errorf("invalid module mapping: %w", err)
	}

	return &service{
		repo:       repo,
		cfg:        cfg,
		classifier: classifier,
		exclusions: exclusions,
	}, nil
}

// Track runs the full pipeline for one request snapshot:
// exclusion filter -> identity checks -> classification -> summary upsert ->
// optional detail upsert. It never panics across the boundary; the caller
// inspects the Outcome.
func (s *service) Track(ctx context.Context, snap RequestSnapshot) Outcome {
	if !s.cfg.Enabled {
		return skipped(SkipDisabled)
	}
	if s.exclusions.Matches(snap.Path) {
		log.Debug("tracking skipped, path excluded", zap.String("path", snap.Path))
		return skipped(SkipExcluded)
	}
	if snap.UserID == nil {
		return skipped(SkipUnauthenticated)
	}

	roleID := NoRole
	if snap.RoleID != nil {
		roleID = *snap.RoleID
	}
	if s.cfg.RequireRole && roleID == NoRole {
		log.Debug("tracking skipped, role unresolved", zap.String("user_id", snap.UserID.String()))
		return skipped(SkipRoleUnresolved)
	}

	ts := snap.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	cls := Classify(ClassifyInput{
		Path:             snap.Path,
		RouteName:        snap.RouteName,
		ControllerAction: snap.ControllerAction,
		Annotation:       snap.Annotation,
	}, s.classifier)

	summary, err := s.repo.UpsertSummary(ctx, SummaryEvent{
		UserID:    *snap.UserID,
		RoleID:    roleID,
		RoleName:  snap.RoleName,
		Date:      DateOf(ts),
		Timestamp: ts,
		SessionID: snap.SessionID,
		IPAddress: snap.IPAddress,
		UserAgent: snap.UserAgent,
		Device:    ParseUserAgent(snap.UserAgent),
	})
	if err != nil {
		return Outcome{Status: OutcomeFailed, Err: fmt.Errorf("summary upsert: %w", err)}
	}

	if !s.shouldTrackDetail(snap) {
		return Outcome{Status: OutcomeSummarized, Summary: summary}
	}

	snap.Timestamp = ts
	detail, err := s.RecordVisit(ctx, summary, snap, cls)
	if err != nil {
		return Outcome{Status: OutcomeFailed, Summary: summary, Err: fmt.Errorf("detail upsert: %w", err)}
	}

	return Outcome{Status: OutcomeComplete, Summary: summary, Detail: detail}
}

func (s *service) shouldTrackDetail(snap RequestSnapshot) bool {
	switch s.cfg.Detail.Mode {
	case config.DetailModeAll:
		return true
	case config.DetailModeOptIn:
		return snap.TrackDetail
	default:
		return false
	}
}

// RecordAccess exposes the summary aggregator directly.
func (s *service) RecordAccess(ctx context.Context, event SummaryEvent) (*AccessSummary, error) {
	return s.repo.UpsertSummary(ctx, event)
}

// RecordVisit writes the endpoint detail row for a classified visit, tagged
// with the owning summary. Deduplicated mode increments; append mode
// inserts a fresh row per visit.
func (s *service) RecordVisit(ctx context.Context, summary *AccessSummary, snap RequestSnapshot, cls Classification) (*AccessDetail, error) {
	event := DetailEvent{
		SummaryID:        summary.ID,
		UserID:           summary.UserID,
		RoleID:           summary.RoleID,
		RoleName:         summary.RoleName,
		Date:             summary.Date,
		Timestamp:        snap.Timestamp,
		Method:           snap.Method,
		Endpoint:         normalizePath(snap.Path),
		RouteName:        snap.RouteName,
		ControllerAction: snap.ControllerAction,
		Classification:   cls,
	}

	return s.writeDetail(ctx, event)
}

// writeDetail is the single switch between the two detail modes; every
// detail write, pipeline or manual, goes through it so append-mode
// deployments never hit the dedup upsert path.
func (s *service) writeDetail(ctx context.Context, event DetailEvent) (*AccessDetail, error) {
	if s.cfg.Detail.Dedup {
		return s.repo.UpsertDetail(ctx, event)
	}
	return s.repo.AppendDetail(ctx, event)
}

// TrackAccess is the manual instrumentation hook for events that do not
// come through the HTTP pipeline (login tracking and the like).
func (s *service) TrackAccess(ctx context.Context, userID, roleID uuid.UUID, roleName, module, label string, at time.Time) (*AccessSummary, error) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	summary, err := s.repo.UpsertSummary(ctx, SummaryEvent{
		UserID:    userID,
		RoleID:    roleID,
		RoleName:  roleName,
		Date:      DateOf(at),
		Timestamp: at,
	})
	if err != nil {
		return nil, err
	}

	if module != "" {
		if label == "" {
			label = ucfirst(module)
		}
		_, err = s.writeDetail(ctx, DetailEvent{
			SummaryID:      summary.ID,
			UserID:         userID,
			RoleID:         roleID,
			RoleName:       roleName,
			Date:           summary.Date,
			Timestamp:      at,
			Method:         "MANUAL",
			Endpoint:       module,
			Classification: Classification{Module: module, Label: label},
		})
		if err != nil {
			return nil, err
		}
	}

	return summary, nil
}

// TrackModuleAccess records a manual module visit, creating the day's
// summary first so the detail row always has an owner.
func (s *service) TrackModuleAccess(ctx context.Context, userID, roleID uuid.UUID, roleName, module, submodule, label, endpoint string, at time.Time) (*AccessDetail, error) {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	if endpoint == "" {
		endpoint = module
		if submodule != "" {
			endpoint = module + "/" + submodule
		}
	}

	summary, err := s.TrackAccess(ctx, userID, roleID, roleName, "", "", at)
	if err != nil {
		return nil, err
	}

	return s.writeDetail(ctx, DetailEvent{
		SummaryID:      summary.ID,
		UserID:         userID,
		RoleID:         roleID,
		RoleName:       roleName,
		Date:           summary.Date,
		Timestamp:      at,
		Method:         "MANUAL",
		Endpoint:       endpoint,
		Classification: Classification{Module: module, Submodule: submodule, Label: label},
	})
}

func (s *service) retentionCutoffs() (summaryCutoff, detailCutoff time.Time) {
	now := time.Now().UTC()
	return now.AddDate(0, 0, -s.cfg.Retention.SummaryDays),
		now.AddDate(0, 0, -s.cfg.Retention.DetailDays)
}

// Cleanup applies the configured retention windows.
func (s *service) Cleanup(ctx context.Context) (int64, int64, error) {
	summaryCutoff, detailCutoff := s.retentionCutoffs()
	return s.repo.DeleteOlderThan(ctx, DateOf(summaryCutoff), DateOf(detailCutoff))
}

// CleanupPreview counts what Cleanup would delete, without deleting.
func (s *service) CleanupPreview(ctx context.Context) (int64, int64, error) {
	summaryCutoff, detailCutoff := s.retentionCutoffs()
	return s.repo.CountOlderThan(ctx, DateOf(summaryCutoff), DateOf(detailCutoff))
}

// RemoveRange deletes both tables for an explicit date range, details
// following their parent summaries.
func (s *service) RemoveRange(ctx context.Context, from, to time.Time) (int64, int64, error) {
	return s.repo.DeleteRange(ctx, DateOf(from), DateOf(to))
}
