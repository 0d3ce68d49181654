package session

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserSession links an opaque bearer token to a user and the role it was
// issued for. The tracker only reads this table; the authentication
// subsystem owns its lifecycle.
type UserSession struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	RoleID    uuid.UUID  `gorm:"type:uuid" json:"role_id"`
	RoleName  string     `gorm:"size:255" json:"role_name"`
	Token     string     `gorm:"size:512;not null;uniqueIndex" json:"-"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `gorm:"not null;default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null;default:current_timestamp;autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for the UserSession model
func (UserSession) TableName() string {
	return "user_sessions"
}

// BeforeCreate is called before creating a new session record
func (s *UserSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Expired reports whether the session is past its expiry, when one is set.
func (s *UserSession) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}
