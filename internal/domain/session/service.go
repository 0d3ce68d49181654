package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ouredu/request-tracker/internal/infrastructure/cache"
	"github.com/ouredu/request-tracker/pkg/logger"
)

var log = logger.NewLogger()

const cacheTTL = 5 * time.Minute

// Resolver resolves a bearer token to its session, and with it the role the
// tracker keys summaries by. Lookups go through a redis read-through cache
// so the hot path stays off the sessions table; the summary and detail
// tables themselves are never cached.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*UserSession, error)
}

type resolver struct {
	repo  Repository
	cache *cache.RedisClient
}

// NewResolver builds a resolver; cache may be nil, in which case every
// lookup hits the database.
func NewResolver(repo Repository, cacheClient *cache.RedisClient) Resolver {
	return &resolver{repo: repo, cache: cacheClient}
}

func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "session:" + hex.EncodeToString(sum[:16])
}

func (r *resolver) Resolve(ctx context.Context, token string) (*UserSession, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}

	key := cacheKey(token)

	if r.cache != nil {
		var cached UserSession
		err := r.cache.GetJSON(ctx, key, &cached)
		if err == nil {
			if cached.Expired(time.Now().UTC()) {
				return nil, ErrSessionNotFound
			}
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrCacheNotFound) {
			log.Warn("session cache lookup failed", zap.Error(err))
		}
	}

	sess, err := r.repo.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess.Expired(time.Now().UTC()) {
		return nil, ErrSessionNotFound
	}

	if r.cache != nil {
		if err := r.cache.SetJSON(ctx, key, sess, cacheTTL); err != nil {
			log.Warn("session cache store failed", zap.Error(err))
		}
	}

	return sess, nil
}
