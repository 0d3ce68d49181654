package tracking

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AccessSummary is the aggregate root for one identity's activity on one
// calendar day: at most one row exists per (user_id, role_id, date). The
// uniqueness is enforced by idx_summary_identity and every write goes
// through an atomic insert-or-increment, so concurrent requests for the
// same identity collapse into a single counter.
type AccessSummary struct {
	ID       uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	UserID   uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_summary_identity,priority:1;index" json:"user_id"`
	RoleID   uuid.UUID      `gorm:"type:uuid;not null;default:'00000000-0000-0000-0000-000000000000';uniqueIndex:idx_summary_identity,priority:2" json:"role_id"`
	RoleName string         `gorm:"size:255;index" json:"role_name,omitempty"`
	Date     datatypes.Date `gorm:"not null;uniqueIndex:idx_summary_identity,priority:3;index" json:"date"`

	AccessCount int64     `gorm:"not null;default:1" json:"access_count"`
	FirstAccess time.Time `gorm:"not null" json:"first_access"`
	LastAccess  time.Time `gorm:"not null" json:"last_access"`

	// Context captured from the first qualifying event of the day.
	SessionID  *uuid.UUID `gorm:"type:uuid;index" json:"session_id,omitempty"`
	IPAddress  string     `gorm:"size:45" json:"ip_address,omitempty"`
	UserAgent  string     `gorm:"type:text" json:"user_agent,omitempty"`
	DeviceType string     `gorm:"size:32" json:"device_type,omitempty"`
	Browser    string     `gorm:"size:64" json:"browser,omitempty"`
	Platform   string     `gorm:"size:64" json:"platform,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:current_timestamp;autoUpdateTime" json:"updated_at"`

	Details []AccessDetail `gorm:"foreignKey:SummaryID;constraint:OnDelete:CASCADE" json:"details,omitempty"`
}

// TableName specifies the table name for the AccessSummary model
func (AccessSummary) TableName() string {
	return "access_summaries"
}

// BeforeCreate is called before creating a new summary record
func (s *AccessSummary) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// AccessDetail records visits to one endpoint by one identity on one day.
// In deduplicated mode repeat visits increment visit_count under the
// idx_detail_identity unique index; in append mode each qualifying request
// inserts its own row with visit_count fixed at 1. Rows are owned by their
// summary and are cascade-deleted with it.
type AccessDetail struct {
	ID        uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	SummaryID uuid.UUID      `gorm:"type:uuid;not null;index" json:"summary_id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index:idx_user_endpoint_date,priority:1" json:"user_id"`
	RoleID    uuid.UUID      `gorm:"type:uuid;not null;default:'00000000-0000-0000-0000-000000000000';index:idx_user_endpoint_date,priority:2" json:"role_id"`
	RoleName  string         `gorm:"size:255;index" json:"role_name,omitempty"`
	Date      datatypes.Date `gorm:"not null;index:idx_user_endpoint_date,priority:4;index:idx_module_date,priority:3" json:"date"`

	Method           string  `gorm:"size:10;not null" json:"method"`
	Endpoint         string  `gorm:"size:512;not null;index:idx_user_endpoint_date,priority:3" json:"endpoint"`
	RouteName        *string `gorm:"size:255;index" json:"route_name,omitempty"`
	ControllerAction *string `gorm:"size:255" json:"controller_action,omitempty"`

	// Module is never the empty string: unclassifiable endpoints carry the
	// "unknown" sentinel instead.
	Module    *string `gorm:"size:255;index:idx_module_date,priority:1" json:"module,omitempty"`
	Submodule *string `gorm:"size:255;index:idx_module_date,priority:2" json:"submodule,omitempty"`
	Label     *string `gorm:"size:255" json:"label,omitempty"`

	VisitCount int64     `gorm:"not null;default:1" json:"visit_count"`
	FirstVisit time.Time `gorm:"not null" json:"first_visit"`
	LastVisit  time.Time `gorm:"not null" json:"last_visit"`

	CreatedAt time.Time `gorm:"not null;default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:current_timestamp;autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for the AccessDetail model
func (AccessDetail) TableName() string {
	return "access_details"
}

// BeforeCreate is called before creating a new detail record
func (d *AccessDetail) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// ModuleUnknown is the classification sentinel for endpoints no rule matched.
const ModuleUnknown = "unknown"

// NoRole stands in for an absent role so the identity tuple stays part of
// the unique index (NULLs never collide in a unique constraint).
var NoRole = uuid.Nil

// DateOf truncates a timestamp to its UTC calendar day.
func DateOf(t time.Time) datatypes.Date {
	t = t.UTC()
	return datatypes.Date(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC))
}

// DeviceInfo is derived from the user-agent string at summary creation.
type DeviceInfo struct {
	DeviceType string `json:"device_type"`
	Browser    string `json:"browser"`
	Platform   string `json:"platform"`
}
