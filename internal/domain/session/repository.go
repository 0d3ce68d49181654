package session

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ouredu/request-tracker/internal/infrastructure/persistence/postgres/connection"
)

var ErrSessionNotFound = errors.New("session not found")

// Repository defines read access to user sessions.
type Repository interface {
	FindByToken(ctx context.Context, token string) (*UserSession, error)
}

type repository struct {
	db *connection.Database
}

func NewRepository(db *connection.Database) Repository {
	return &repository{db: db}
}

func (r *repository) FindByToken(ctx context.Context, token string) (*UserSession, error) {
	var sess UserSession
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&sess).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &sess, nil
}
