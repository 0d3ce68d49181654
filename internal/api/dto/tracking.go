package dto

import (
	"time"

	"github.com/google/uuid"
)

// TrackAccessRequest records a manual access event outside the HTTP pipeline
type TrackAccessRequest struct {
	UserID   uuid.UUID  `json:"user_id" binding:"required"`
	RoleID   *uuid.UUID `json:"role_id,omitempty"`
	RoleName string     `json:"role_name,omitempty"`
	Module   string     `json:"module,omitempty"`
	Label    string     `json:"label,omitempty"`
	At       *time.Time `json:"at,omitempty"`
}

// TrackModuleAccessRequest records a manual module visit
type TrackModuleAccessRequest struct {
	UserID    uuid.UUID  `json:"user_id" binding:"required"`
	RoleID    *uuid.UUID `json:"role_id,omitempty"`
	RoleName  string     `json:"role_name,omitempty"`
	Module    string     `json:"module" binding:"required"`
	Submodule string     `json:"submodule,omitempty"`
	Label     string     `json:"label,omitempty"`
	Endpoint  string     `json:"endpoint,omitempty"`
	At        *time.Time `json:"at,omitempty"`
}

// AccessSummaryResponse represents a daily access summary in API responses
type AccessSummaryResponse struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	RoleID      uuid.UUID  `json:"role_id"`
	RoleName    string     `json:"role_name,omitempty"`
	Date        string     `json:"date"`
	AccessCount int64      `json:"access_count"`
	FirstAccess time.Time  `json:"first_access"`
	LastAccess  time.Time  `json:"last_access"`
	SessionID   *uuid.UUID `json:"session_id,omitempty"`
	IPAddress   string     `json:"ip_address,omitempty"`
	DeviceType  string     `json:"device_type,omitempty"`
	Browser     string     `json:"browser,omitempty"`
	Platform    string     `json:"platform,omitempty"`
}

// AccessDetailResponse represents an endpoint visit record in API responses
type AccessDetailResponse struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	RoleID     uuid.UUID `json:"role_id"`
	Date       string    `json:"date"`
	Method     string    `json:"method"`
	Endpoint   string    `json:"endpoint"`
	Module     *string   `json:"module,omitempty"`
	Submodule  *string   `json:"submodule,omitempty"`
	Label      *string   `json:"label,omitempty"`
	VisitCount int64     `json:"visit_count"`
	FirstVisit time.Time `json:"first_visit"`
	LastVisit  time.Time `json:"last_visit"`
}

// ActivityStatusResponse reports whether a user has been seen recently
type ActivityStatusResponse struct {
	UserID     uuid.UUID  `json:"user_id"`
	Active     bool       `json:"active"`
	LastAccess *time.Time `json:"last_access,omitempty"`
}

// CleanupRequest scopes an explicit tracking data removal
type CleanupRequest struct {
	From time.Time `json:"from" binding:"required"`
	To   time.Time `json:"to" binding:"required"`
}

// CleanupResponse reports how many rows a cleanup removed
type CleanupResponse struct {
	SummariesDeleted int64 `json:"summaries_deleted"`
	DetailsDeleted   int64 `json:"details_deleted"`
}
