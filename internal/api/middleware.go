package api

import (
	"crypto/subtle"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/foxzi/hyperdrive/internal/access"
	"github.com/foxzi/hyperdrive/internal/apperr"
	"github.com/foxzi/hyperdrive/internal/ratelimit"
)

// Actor headers read when no token verifier is configured
const (
	headerActorID      = "X-Actor-ID"
	headerOrganization = "X-Organization-ID"
	headerActorRole    = "X-Actor-Role"
)

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"bytes", ww.BytesWritten(),
			"remote_addr", r.RemoteAddr,
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// authMiddleware checks API key authentication. With a token verifier the
// key travels in X-API-Key only, leaving Authorization for the bearer token.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.config.RequiresAPIKey() {
			// No API key configured, allow all
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get("X-API-Key")
		if key == "" && s.verifier == nil {
			key = bearerToken(r)
		}

		if !s.validAPIKey(key) {
			s.logger.Warn("unauthorized API request",
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			s.sendAppError(w, r, apperr.Unauthorized("Unauthorized"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// keyCache remembers the last key that matched api_key_hash, so bcrypt runs
// once per distinct key instead of once per request
type keyCache struct {
	mu  sync.RWMutex
	key string
}

func (c *keyCache) matches(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.key != "" && subtle.ConstantTimeCompare([]byte(c.key), []byte(key)) == 1
}

func (c *keyCache) store(key string) {
	c.mu.Lock()
	c.key = key
	c.mu.Unlock()
}

func (s *Server) validAPIKey(key string) bool {
	if key == "" {
		return false
	}
	if s.config.APIKeyHash == "" {
		return subtle.ConstantTimeCompare([]byte(key), []byte(s.config.APIKey)) == 1
	}
	if s.keyCache.matches(key) {
		return true
	}
	if bcrypt.CompareHashAndPassword([]byte(s.config.APIKeyHash), []byte(key)) != nil {
		return false
	}
	s.keyCache.store(key)
	return true
}

// actorMiddleware resolves the calling actor and stores it in the context
func (s *Server) actorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := s.resolveActor(r)
		if err != nil {
			s.logger.Warn("actor resolution failed",
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
				"error", err,
			)
			s.sendAppError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(access.WithActor(r.Context(), actor)))
	})
}

func (s *Server) resolveActor(r *http.Request) (access.Actor, error) {
	if s.verifier != nil {
		token := bearerToken(r)
		if token == "" {
			return access.Actor{}, apperr.Unauthorized("bearer token required")
		}
		actor, err := s.verifier.Verify(token)
		if err != nil {
			return access.Actor{}, apperr.Unauthorized("invalid token")
		}
		return actor, nil
	}

	id := strings.TrimSpace(r.Header.Get(headerActorID))
	if id == "" {
		return access.Actor{}, apperr.Unauthorized(headerActorID + " header required")
	}
	role, err := access.ParseRole(r.Header.Get(headerActorRole))
	if err != nil {
		return access.Actor{}, apperr.Unauthorized("invalid " + headerActorRole + " header")
	}
	return access.Actor{
		ID:             id,
		OrganizationID: strings.TrimSpace(r.Header.Get(headerOrganization)),
		Role:           role,
	}, nil
}

// rateLimitMiddleware throttles mutating requests per organization, or per
// actor when the actor has none
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil || !mutating(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		actor, _ := access.FromContext(r.Context())
		level, key := ratelimit.LevelOrganization, actor.OrganizationID
		if key == "" {
			level, key = ratelimit.LevelActor, actor.ID
		}

		res := s.limiter.Allow(level, key)
		if !res.Allowed {
			if s.metrics != nil {
				s.metrics.IncRateLimitExceeded()
			}
			s.logger.Warn("rate limit exceeded", "level", level, "key", key, "path", r.URL.Path)
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			s.sendAppError(w, r, apperr.RateLimited("Too many requests"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// bodyLimitMiddleware caps request bodies at api.max_body_bytes
func (s *Server) bodyLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.MaxBodyBytes > 0 && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
