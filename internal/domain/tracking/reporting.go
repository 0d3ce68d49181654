package tracking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// TodayActivity is a user's aggregated activity for the current day.
type TodayActivity struct {
	Active         bool          `json:"active"`
	AccessCount    int64         `json:"access_count"`
	FirstAccess    *time.Time    `json:"first_access,omitempty"`
	LastAccess     *time.Time    `json:"last_access,omitempty"`
	ModulesVisited []ModuleUsage `json:"modules_visited"`
}

// ActivitySummary aggregates a user's summaries over a date range.
type ActivitySummary struct {
	TotalDays     int64      `json:"total_days"`
	TotalRequests int64      `json:"total_requests"`
	FirstAccess   *time.Time `json:"first_access,omitempty"`
	LastAccess    *time.Time `json:"last_access,omitempty"`
	DailyAverage  float64    `json:"daily_average"`
}

// ReportingService is the thin read-only layer over the aggregated rows;
// the HTTP report API and the CLI both sit on top of it.
type ReportingService interface {
	LastAccess(ctx context.Context, userID uuid.UUID, roleID *uuid.UUID) (*time.Time, error)
	FirstAccess(ctx context.Context, userID uuid.UUID, roleID *uuid.UUID) (*time.Time, error)
	IsActive(ctx context.Context, userID uuid.UUID, threshold time.Duration, roleID *uuid.UUID) (bool, error)
	TodayActivity(ctx context.Context, userID uuid.UUID, roleID *uuid.UUID) (*TodayActivity, error)
	ActivitySummary(ctx context.Context, userID uuid.UUID, roleID *uuid.UUID, from, to time.Time) (*ActivitySummary, error)
	ModulesAccessed(ctx context.Context, userID uuid.UUID, roleID *uuid.UUID, from, to *time.Time) ([]ModuleUsage, error)
	UsersWhoAccessedModule(ctx context.Context, module string, submodule *string, roleID *uuid.UUID, from, to time.Time, limit int) ([]ModuleVisitor, error)
	UserJourney(ctx context.Context, userID uuid.UUID, roleID *uuid.UUID, day time.Time) ([]AccessDetail, error)
}

type reportingService struct {
	repo Repository
}

func NewReportingService(repo Repository) ReportingService {
	return &reportingService{repo: repo}
}

func (s *reportingService) LastAccess(ctx context.Context, userID uuid.UUID, roleID *uuid.UUID) (*time.Time, error) {
	return s.repo.LastAccess(ctx, userID, roleID)
}

func (s *reportingService) FirstAccess(ctx context.Context, userID uuid.UUID, roleID *uuid.UUID) (*time.Time, error) {
	return s.repo.FirstAccess(ctx, userID, roleID)
}

// IsActive reports whether the user's most recent access falls within the
// threshold window.
func (s *reportingService) IsActive(ctx context.Context, userID uuid.UUID, threshold time.Duration, roleID *uuid.UUID) (bool, error) {
	last, err := s.repo.LastAccess(ctx, userID, roleID)
	if err != nil {
		return false, err
	}
	if last == nil {
		return false, nil
	}
	return time.Since(*last) <= threshold, nil
}

func (s *reportingService) TodayActivity(ctx context.Context, userID uuid.UUID, roleID *uuid.UUID) (*TodayActivity, error) {
	today := DateOf(time.Now().UTC())

	role := NoRole
	if roleID != nil {
		role = *roleID
	}

	summary, err := s.repo.FindSummary(ctx, userID, role, today)
	if err != nil {
		if errors.Is(err, ErrSummaryNotFound) {
			return &TodayActivity{Active: false, ModulesVisited: []ModuleUsage{}}, nil
		}
		return nil, err
	}

	modules, err := s.repo.ModuleBreakdown(ctx, userID, roleID, &today, &today)
	if err != nil {
		return nil, err
	}

	return &TodayActivity{
		Active:         true,
		AccessCount:    summary.AccessCount,
		FirstAccess:    &summary.FirstAccess,
		LastAccess:     &summary.LastAccess,
		ModulesVisited: modules,
	}, nil
}

func (s *reportingService) ActivitySummary(ctx context.Context, userID uuid.UUID, roleID *uuid.UUID, from, to time.Time) (*ActivitySummary, error) {
	summaries, err := s.repo.SummariesInRange(ctx, userID, roleID, DateOf(from), DateOf(to))
	if err != nil {
		return nil, err
	}

	result := &ActivitySummary{TotalDays: int64(len(summaries))}
	for i := range summaries {
		s := &summaries[i]
		result.TotalRequests += s.AccessCount
		if result.FirstAccess == nil || s.FirstAccess.Before(*result.FirstAccess) {
			result.FirstAccess = &s.FirstAccess
		}
		if result.LastAccess == nil || s.LastAccess.After(*result.LastAccess) {
			result.LastAccess = &s.LastAccess
		}
	}
	if result.TotalDays > 0 {
		result.DailyAverage = float64(result.TotalRequests) / float64(result.TotalDays)
	}

	return result, nil
}

func (s *reportingService) ModulesAccessed(ctx context.Context, userID uuid.UUID, roleID *uuid.UUID, from, to *time.Time) ([]ModuleUsage, error) {
	if from != nil && to != nil {
		f, t := DateOf(*from), DateOf(*to)
		return s.repo.ModuleBreakdown(ctx, userID, roleID, &f, &t)
	}
	return s.repo.ModuleBreakdown(ctx, userID, roleID, nil, nil)
}

func (s *reportingService) UsersWhoAccessedModule(ctx context.Context, module string, submodule *string, roleID *uuid.UUID, from, to time.Time, limit int) ([]ModuleVisitor, error) {
	return s.repo.UsersByModule(ctx, module, submodule, roleID, DateOf(from), DateOf(to), limit)
}

// UserJourney lists a user's endpoint visits for one day in chronological
// order of first visit.
func (s *reportingService) UserJourney(ctx context.Context, userID uuid.UUID, roleID *uuid.UUID, day time.Time) ([]AccessDetail, error) {
	return s.repo.DetailsForUser(ctx, userID, roleID, DateOf(day))
}
