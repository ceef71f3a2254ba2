package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bakate/aeroreserve/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	// IdempotencyKeyHeader carries the client-chosen idempotency key
	IdempotencyKeyHeader = "X-Idempotency-Key"
	// ContextKeyIdempotencyKey is where the key lands in the gin context
	ContextKeyIdempotencyKey = "idempotency_key"
	// DefaultIdempotencyTTL is how long completed responses stay replayable
	DefaultIdempotencyTTL = 24 * time.Hour

	recordKeyPrefix = "idempotency:"

	recordProcessing = "processing"
	recordCompleted  = "completed"
)

// RedisClient is the subset of redis commands the middleware needs
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// IdempotencyConfig holds configuration for the idempotency middleware
type IdempotencyConfig struct {
	// Redis stores the per-key records
	Redis RedisClient
	// TTL keeps completed records replayable (default: 24h)
	TTL time.Duration
	// ProcessingTTL bounds how long an in-flight claim blocks retries, so
	// a crashed handler cannot wedge the key forever (default: 60s)
	ProcessingTTL time.Duration
	// KeyExtractor pulls the key out of the request (default: header)
	KeyExtractor func(*gin.Context) string
	// SkipPaths bypass the middleware entirely; trailing * matches a prefix
	SkipPaths []string
	// RequiredMethods are the guarded methods (default: POST, PUT, PATCH, DELETE)
	RequiredMethods []string
	// IncludeBodyInHash mixes the request body into the fingerprint
	IncludeBodyInHash bool
	// IncludePathInHash mixes method and path into the fingerprint
	IncludePathInHash bool
}

// DefaultIdempotencyConfig returns default configuration
func DefaultIdempotencyConfig(redis RedisClient) *IdempotencyConfig {
	return &IdempotencyConfig{
		Redis:             redis,
		TTL:               DefaultIdempotencyTTL,
		ProcessingTTL:     60 * time.Second,
		KeyExtractor:      headerKeyExtractor,
		RequiredMethods:   []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		IncludeBodyInHash: true,
		IncludePathInHash: true,
	}
}

func headerKeyExtractor(c *gin.Context) string {
	return c.GetHeader(IdempotencyKeyHeader)
}

// record is the state stored per key. Two TTLs cover its two phases: a
// short one while processing, a long one once the response is cached.
type record struct {
	Hash        string     `json:"hash"`
	Status      string     `json:"status"`
	Code        int        `json:"code,omitempty"`
	Body        string     `json:"body,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// recordStore persists idempotency records in Redis
type recordStore struct {
	redis RedisClient
}

func (s *recordStore) load(ctx context.Context, key string) (*record, error) {
	raw, err := s.redis.Get(ctx, recordKeyPrefix+key).Result()
	if err != nil {
		return nil, err
	}

	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// claim atomically installs a processing record. Returns false when
// another request already holds the key.
func (s *recordStore) claim(ctx context.Context, key string, rec *record, ttl time.Duration) bool {
	data, err := json.Marshal(rec)
	if err != nil {
		return false
	}

	ok, err := s.redis.SetNX(ctx, recordKeyPrefix+key, string(data), ttl).Result()
	return err == nil && ok
}

func (s *recordStore) complete(ctx context.Context, key string, rec *record, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, recordKeyPrefix+key, string(data), ttl).Err()
}

// IdempotencyMiddleware makes guarded endpoints safe to retry: the first
// request with a key runs the handler and caches its response, retries
// with the same key and payload replay the cached response, and reusing
// a key with a different payload is rejected.
func IdempotencyMiddleware(config *IdempotencyConfig) gin.HandlerFunc {
	if config.ProcessingTTL <= 0 {
		config.ProcessingTTL = 60 * time.Second
	}
	store := &recordStore{redis: config.Redis}

	return func(c *gin.Context) {
		if bypass(c, config) {
			c.Next()
			return
		}

		key := config.KeyExtractor(c)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, response.NewError("MISSING_IDEMPOTENCY_KEY", "X-Idempotency-Key header is required"))
			return
		}
		c.Set(ContextKeyIdempotencyKey, key)

		var body []byte
		if c.Request.Body != nil && config.IncludeBodyInHash {
			body, _ = io.ReadAll(c.Request.Body)
			// Hand the body back to the handler
			c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
		}
		hash := fingerprint(c, body, config)

		ctx := c.Request.Context()

		existing, err := store.load(ctx, key)
		if err != nil && !errors.Is(err, redis.Nil) {
			// Redis unavailable: fail open rather than block bookings
			c.Next()
			return
		}
		if existing != nil {
			resolve(c, existing, hash)
			return
		}

		rec := &record{Hash: hash, Status: recordProcessing, CreatedAt: time.Now()}
		if !store.claim(ctx, key, rec, config.ProcessingTTL) {
			// Lost the race; whoever won owns the key now
			if existing, _ = store.load(ctx, key); existing != nil {
				resolve(c, existing, hash)
				return
			}
		}

		w := &captureWriter{ResponseWriter: c.Writer, body: bytes.NewBuffer(nil)}
		c.Writer = w

		c.Next()

		now := time.Now()
		rec.Status = recordCompleted
		rec.Code = w.status
		rec.Body = w.body.String()
		rec.CompletedAt = &now
		store.complete(ctx, key, rec, config.TTL)
	}
}

// resolve answers a request whose key already has a record
func resolve(c *gin.Context, rec *record, hash string) {
	if rec.Hash != hash {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, response.NewError("IDEMPOTENCY_KEY_REUSED", "Idempotency key already used with different request"))
		return
	}
	if rec.Status == recordProcessing {
		c.AbortWithStatusJSON(http.StatusConflict, response.NewError("REQUEST_IN_PROGRESS", "A request with this idempotency key is already being processed"))
		return
	}
	c.Data(rec.Code, "application/json", []byte(rec.Body))
	c.Abort()
}

// bypass reports whether the request is outside the guarded surface
func bypass(c *gin.Context, config *IdempotencyConfig) bool {
	for _, pattern := range config.SkipPaths {
		if matchPath(c.Request.URL.Path, pattern) {
			return true
		}
	}
	for _, m := range config.RequiredMethods {
		if c.Request.Method == m {
			return false
		}
	}
	return true
}

// fingerprint hashes what makes two requests "the same request"
func fingerprint(c *gin.Context, body []byte, config *IdempotencyConfig) string {
	h := sha256.New()
	if config.IncludePathInHash {
		h.Write([]byte(c.Request.Method))
		h.Write([]byte(c.Request.URL.Path))
	}
	if config.IncludeBodyInHash && len(body) > 0 {
		h.Write(body)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// matchPath supports exact paths and trailing-wildcard patterns
func matchPath(path, pattern string) bool {
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(path, strings.TrimSuffix(pattern, "*"))
	}
	return path == pattern
}

// captureWriter tees the response body so it can be replayed later
type captureWriter struct {
	gin.ResponseWriter
	body   *bytes.Buffer
	status int
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
