package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ouredu/request-tracker/internal/infrastructure/cache"
)

// CacheMiddleware caches GET report responses for a short TTL. The tracking
// write path never goes through it; only the read API does, so a slightly
// stale report is acceptable while the counters themselves stay exact.
type CacheMiddleware struct {
	cache  *cache.RedisClient
	prefix string
	ttl    time.Duration
}

func NewCacheMiddleware(cacheClient *cache.RedisClient, prefix string, ttl time.Duration) *CacheMiddleware {
	return &CacheMiddleware{
		cache:  cacheClient,
		prefix: prefix,
		ttl:    ttl,
	}
}

// responseBuffer is a custom ResponseWriter that stores the response
type responseBuffer struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func newResponseBuffer(original gin.ResponseWriter) *responseBuffer {
	return &responseBuffer{
		ResponseWriter: original,
		body:           bytes.NewBufferString(""),
	}
}

func (r *responseBuffer) Write(b []byte) (int, error) {
	r.ResponseWriter.Write(b)
	return r.body.Write(b)
}

func (r *responseBuffer) WriteString(s string) (int, error) {
	r.ResponseWriter.WriteString(s)
	return r.body.WriteString(s)
}

// CacheResponse caches the response of a GET endpoint. With no redis client
// configured it is a no-op pass-through.
func (m *CacheMiddleware) CacheResponse() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.cache == nil || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := m.generateCacheKey(c)

		var cached json.RawMessage
		err := m.cache.GetJSON(c.Request.Context(), key, &cached)
		if err == nil {
			c.Data(http.StatusOK, "application/json; charset=utf-8", cached)
			c.Abort()
			return
		}
		if !errors.Is(err, cache.ErrCacheNotFound) {
			log.Warn("Report cache lookup failed", zap.Error(err))
		}

		writer := c.Writer
		buff := newResponseBuffer(writer)
		c.Writer = buff

		c.Next()

		if c.Writer.Status() == http.StatusOK {
			body := json.RawMessage(buff.body.Bytes())
			if err := m.cache.SetJSON(c.Request.Context(), key, body, m.ttl); err != nil {
				log.Warn("Failed to cache report response", zap.Error(err))
			}
		}

		c.Writer = writer
	}
}

// generateCacheKey hashes path + query so role and range filters get their
// own entries.
func (m *CacheMiddleware) generateCacheKey(c *gin.Context) string {
	sum := sha256.Sum256([]byte(c.Request.URL.Path + "?" + c.Request.URL.RawQuery))
	return m.prefix + ":" + hex.EncodeToString(sum[:16])
}
