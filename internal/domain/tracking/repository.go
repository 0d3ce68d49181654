package tracking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ouredu/request-tracker/internal/infrastructure/persistence/postgres/connection"
)

var (
	ErrSummaryNotFound = errors.New("access summary not found")
	ErrDetailNotFound  = errors.New("access detail not found")
)

// SummaryEvent is one qualifying request collapsed onto its daily identity.
type SummaryEvent struct {
	UserID    uuid.UUID
	RoleID    uuid.UUID
	RoleName  string
	Date      datatypes.Date
	Timestamp time.Time
	SessionID *uuid.UUID
	IPAddress string
	UserAgent string
	Device    DeviceInfo
}

// DetailEvent is one classified endpoint visit.
type DetailEvent struct {
	SummaryID        uuid.UUID
	UserID           uuid.UUID
	RoleID           uuid.UUID
	RoleName         string
	Date             datatypes.Date
	Timestamp        time.Time
	Method           string
	Endpoint         string
	RouteName        string
	ControllerAction string
	Classification   Classification
}

// ModuleUsage aggregates detail rows per module.
type ModuleUsage struct {
	Module          string `json:"module"`
	UniqueEndpoints int64  `json:"unique_endpoints"`
	TotalVisits     int64  `json:"total_visits"`
}

// ModuleVisitor aggregates one identity's activity within a module.
type ModuleVisitor struct {
	UserID          uuid.UUID `json:"user_id"`
	RoleID          uuid.UUID `json:"role_id"`
	UniqueEndpoints int64     `json:"unique_endpoints"`
	TotalVisits     int64     `json:"total_visits"`
	FirstAccess     time.Time `json:"first_access"`
	LastAccess      time.Time `json:"last_access"`
}

// Repository defines persistence for access summaries and details. All
// counter mutation goes through the Upsert methods, which are atomic
// insert-or-increment operations backed by unique indexes; callers never
// read-modify-write counters themselves.
type Repository interface {
	UpsertSummary(ctx context.Context, event SummaryEvent) (*AccessSummary, error)
	UpsertDetail(ctx context.Context, event DetailEvent) (*AccessDetail, error)
	AppendDetail(ctx context.Context, event DetailEvent) (*AccessDetail, error)

	FindSummary(ctx context.Context, userID, roleID uuid.UUID, date datatypes.Date) (*AccessSummary, error)
	LastAccess(ctx context.Context, userID uuid.UUID, roleID *uuid.UUID) (*time.Time, error)
	FirstAccess(ctx context.Context, userID uuid.UUID, roleID *uuid.UUID) (*time.Time, error)
	SummariesInRange(ctx context.Context, userID uuid.UUID, roleID *uuid.UUID, from, to datatypes.Date) ([]AccessSummary, error)
	ModuleBreakdown(ctx context.Context, userID uuid.UUID, roleID *uuid.UUID, from, to *datatypes.Date) ([]ModuleUsage, error)
	UsersByModule(ctx context.Context, module string, submodule *string, roleID *uuid.UUID, from, to datatypes.Date, limit int) ([]ModuleVisitor, error)
	DetailsForUser(ctx context.Context, userID uuid.UUID, roleID *uuid.UUID, date datatypes.Date) ([]AccessDetail, error)

	CountOlderThan(ctx context.Context, summaryCutoff, detailCutoff datatypes.Date) (summaries, details int64, err error)
	DeleteOlderThan(ctx context.Context, summaryCutoff, detailCutoff datatypes.Date) (summaries, details int64, err error)
	DeleteRange(ctx context.Context, from, to datatypes.Date) (summaries, details int64, err error)
}

type repository struct {
	db *connection.Database
}

func NewRepository(db *connection.Database) Repository {
	return &repository{db: db}
}

// UpsertSummary inserts the first summary row for an identity+day or
// atomically increments the existing one. first_access and the creation
// context fields are written only by the inserting event; last_access is
// advanced to the latest event timestamp even when events arrive out of
// order. The row is re-read afterwards so the caller sees current state.
func (r *repository) UpsertSummary(ctx context.Context, event SummaryEvent) (*AccessSummary, error) {
	row := &AccessSummary{
		ID:          uuid.New(),
		UserID:      event.UserID,
		RoleID:      event.RoleID,
		RoleName:    event.RoleName,
		Date:        event.Date,
		AccessCount: 1,
		FirstAccess: event.Timestamp,
		LastAccess:  event.Timestamp,
		SessionID:   event.SessionID,
		IPAddress:   event.IPAddress,
		UserAgent:   event.UserAgent,
		DeviceType:  event.Device.DeviceType,
		Browser:     event.Device.Browser,
		Platform:    event.Device.Platform,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "role_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"access_count": gorm.Expr("access_summaries.access_count + 1"),
			"last_access":  gorm.Expr("CASE WHEN excluded.last_access > access_summaries.last_access THEN excluded.last_access ELSE access_summaries.last_access END"),
			"updated_at":   time.Now().UTC(),
		}),
	}).Create(row).Error
	if err != nil {
		return nil, err
	}

	return r.FindSummary(ctx, event.UserID, event.RoleID, event.Date)
}

// UpsertDetail is the deduplicated-mode write: one row per
// (user, role, endpoint, day), with the same atomic increment obligation
// as UpsertSummary.
func (r *repository) UpsertDetail(ctx context.Context, event DetailEvent) (*AccessDetail, error) {
	row := newDetailRow(event)

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "role_id"}, {Name: "endpoint"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"visit_count": gorm.Expr("access_details.visit_count + 1"),
			"last_visit":  gorm.Expr("CASE WHEN excluded.last_visit > access_details.last_visit THEN excluded.last_visit ELSE access_details.last_visit END"),
			"updated_at":  time.Now().UTC(),
		}),
	}).Create(row).Error
	if err != nil {
		return nil, err
	}

	var detail AccessDetail
	err = r.db.WithContext(ctx).
		Where("user_id = ? AND role_id = ? AND endpoint = ? AND date = ?",
			event.UserID, event.RoleID, event.Endpoint, event.Date).
		First(&detail).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDetailNotFound
		}
		return nil, err
	}
	return &detail, nil
}

// AppendDetail is the append-mode write: every qualifying request gets its
// own row with visit_count fixed at 1.
func (r *repository) AppendDetail(ctx context.Context, event DetailEvent) (*AccessDetail, error) {
	row := newDetailRow(event)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func newDetailRow(event DetailEvent) *AccessDetail {
	return &AccessDetail{
		ID:               uuid.New(),
		SummaryID:        event.SummaryID,
		UserID:           event.UserID,
		RoleID:           event.RoleID,
		RoleName:         event.RoleName,
		Date:             event.Date,
		Method:           event.Method,
		Endpoint:         event.Endpoint,
		RouteName:        strPtr(event.RouteName),
		ControllerAction: strPtr(event.ControllerAction),
		Module:           strPtr(event.Classification.Module),
		Submodule:        strPtr(event.Classification.Submodule),
		Label:            strPtr(event.Classification.Label),
		VisitCount:       1,
		FirstVisit:       event.Timestamp,
		LastVisit:        event.Timestamp,
	}
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *repository) FindSummary(ctx context.Context, userID, roleID uuid.UUID, date datatypes.Date) (*AccessSummary, error) {
	var summary AccessSummary
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND role_id = ? AND date = ?", userID, roleID, date).
		First(&summary).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSummaryNotFound
		}
		return nil, err
	}
	return &summary, nil
}

func (r *repository) LastAccess(ctx context.Context, userID uuid.UUID, roleID *uuid.UUID) (*time.Time, error) {
	var summary AccessSummary
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if roleID != nil {
		query = query.Where("role_id = ?", *roleID)
	}
	err := query.Order("last_access DESC").First(&summary).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &summary.LastAccess, nil
}

func (r *repository) FirstAccess(ctx context.Context, userID uuid.UUID, roleID *uuid.UUID) (*time.Time, error) {
	var summary AccessSummary
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if roleID != nil {
		query = query.Where("role_id = ?", *roleID)
	}
	err := query.Order("first_access ASC").First(&summary).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &summary.FirstAccess, nil
}

func (r *repository) SummariesInRange(ctx context.Context, userID uuid.UUID, roleID *uuid.UUID, from, to datatypes.Date) ([]AccessSummary, error) {
	var summaries []AccessSummary
	query := r.db.WithContext(ctx).
		Where("user_id = ? AND date BETWEEN ? AND ?", userID, from, to)
	if roleID != nil {
		query = query.Where("role_id = ?", *roleID)
	}
	err := query.Order("date ASC").Find(&summaries).Error
	return summaries, err
}

func (r *repository) ModuleBreakdown(ctx context.Context, userID uuid.UUID, roleID *uuid.UUID, from, to *datatypes.Date) ([]ModuleUsage, error) {
	var usages []ModuleUsage
	query := r.db.WithContext(ctx).Model(&AccessDetail{}).
		Where("user_id = ?", userID)
	if roleID != nil {
		query = query.Where("role_id = ?", *roleID)
	}
	if from != nil && to != nil {
		query = query.Where("date BETWEEN ? AND ?", *from, *to)
	}
	err := query.
		Select("module, COUNT(DISTINCT endpoint) AS unique_endpoints, SUM(visit_count) AS total_visits").
		Group("module").
		Order("total_visits DESC").
		Scan(&usages).Error
	return usages, err
}

func (r *repository) UsersByModule(ctx context.Context, module string, submodule *string, roleID *uuid.UUID, from, to datatypes.Date, limit int) ([]ModuleVisitor, error) {
	var visitors []ModuleVisitor
	query := r.db.WithContext(ctx).Model(&AccessDetail{}).
		Where("module = ? AND date BETWEEN ? AND ?", module, from, to)
	if submodule != nil {
		query = query.Where("submodule = ?", *submodule)
	}
	if roleID != nil {
		query = query.Where("role_id = ?", *roleID)
	}
	query = query.
		Select("user_id, role_id, COUNT(DISTINCT endpoint) AS unique_endpoints, SUM(visit_count) AS total_visits, MIN(first_visit) AS first_access, MAX(last_visit) AS last_access").
		Group("user_id, role_id").
		Order("total_visits DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Scan(&visitors).Error
	return visitors, err
}

func (r *repository) DetailsForUser(ctx context.Context, userID uuid.UUID, roleID *uuid.UUID, date datatypes.Date) ([]AccessDetail, error) {
	var details []AccessDetail
	query := r.db.WithContext(ctx).
		Where("user_id = ? AND date = ?", userID, date)
	if roleID != nil {
		query = query.Where("role_id = ?", *roleID)
	}
	err := query.Order("first_visit ASC").Find(&details).Error
	return details, err
}

func (r *repository) CountOlderThan(ctx context.Context, summaryCutoff, detailCutoff datatypes.Date) (int64, int64, error) {
	var summaries, details int64

	err := r.db.WithContext(ctx).Model(&AccessSummary{}).
		Where("date < ?", summaryCutoff).Count(&summaries).Error
	if err != nil {
		return 0, 0, err
	}

	err = r.db.WithContext(ctx).Model(&AccessDetail{}).
		Where("date < ?", laterDate(summaryCutoff, detailCutoff)).Count(&details).Error
	if err != nil {
		return 0, 0, err
	}

	return summaries, details, nil
}

// DeleteOlderThan is the retention sweep. Detail rows go first so no detail
// can outlive its summary even on stores where the FK cascade is not
// enforced; a detail is removed when it exceeds its own retention window or
// when its parent summary is about to be removed.
func (r *repository) DeleteOlderThan(ctx context.Context, summaryCutoff, detailCutoff datatypes.Date) (int64, int64, error) {
	var summaries, details int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("date < ?", laterDate(summaryCutoff, detailCutoff)).Delete(&AccessDetail{})
		if result.Error != nil {
			return result.Error
		}
		details = result.RowsAffected

		result = tx.Where("date < ?", summaryCutoff).Delete(&AccessSummary{})
		if result.Error != nil {
			return result.Error
		}
		summaries = result.RowsAffected
		return nil
	})

	return summaries, details, err
}

// DeleteRange removes both tables for a date range, details first.
func (r *repository) DeleteRange(ctx context.Context, from, to datatypes.Date) (int64, int64, error) {
	var summaries, details int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("date BETWEEN ? AND ?", from, to).Delete(&AccessDetail{})
		if result.Error != nil {
			return result.Error
		}
		details = result.RowsAffected

		result = tx.Where("date BETWEEN ? AND ?", from, to).Delete(&AccessSummary{})
		if result.Error != nil {
			return result.Error
		}
		summaries = result.RowsAffected
		return nil
	})

	return summaries, details, err
}

func laterDate(a, b datatypes.Date) datatypes.Date {
	if time.Time(a).After(time.Time(b)) {
		return a
	}
	return b
}
