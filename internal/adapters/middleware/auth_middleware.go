package middleware

import (
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Roles carried in the "role" claim
const (
	RoleASHA       = "ASHA"
	RoleSupervisor = "SUPERVISOR"
)

// cacheEntry stores verified claims until the token expires
type cacheEntry struct {
	identity Identity
	exp      time.Time
}

// Identity is the authenticated worker behind a request
type Identity struct {
	WorkerID string
	Role     string
	Name     string
	Village  string
}

// AuthMiddleware validates RS256 tokens issued by the identity provider and enforces roles.
// Verified tokens are cached by digest until they expire.
type AuthMiddleware struct {
	publicKey   *rsa.PublicKey
	cache       sync.Map
	logger      *zap.Logger
	now         func() time.Time
	janitorStop chan struct{}
	stopOnce    sync.Once
}

const CacheCleanupInterval = 10 * time.Minute

func NewAuthMiddleware(publicKey *rsa.PublicKey, logger *zap.Logger) *AuthMiddleware {
	m := &AuthMiddleware{
		publicKey:   publicKey,
		logger:      logger,
		now:         time.Now,
		janitorStop: make(chan struct{}),
	}
	go m.startJanitor(CacheCleanupInterval)
	return m
}

type contextKey string

const identityKey contextKey = "identity"

var (
	errMissingToken = errors.New("missing token")
	errMissingClaim = errors.New("missing sub or role claim")
)

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Verify checks the token signature and expiry and returns the identity it carries
func (m *AuthMiddleware) Verify(tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, errMissingToken
	}
	key := tokenDigest(tokenString)
	if entry, ok := m.cache.Load(key); ok {
		cached := entry.(cacheEntry)
		if m.now().Before(cached.exp) {
			return cached.identity, nil
		}
		m.cache.Delete(key)
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.publicKey, nil
	}, jwt.WithExpirationRequired(), jwt.WithTimeFunc(m.now))
	if err != nil {
		return Identity{}, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, jwt.ErrSignatureInvalid
	}

	id := Identity{}
	id.WorkerID, _ = claims["sub"].(string)
	id.Role, _ = claims["role"].(string)
	id.Name, _ = claims["name"].(string)
	id.Village, _ = claims["village"].(string)
	if id.WorkerID == "" || id.Role == "" {
		return Identity{}, errMissingClaim
	}

	exp, err := claims.GetExpirationTime()
	if err == nil && exp != nil {
		m.cache.Store(key, cacheEntry{identity: id, exp: exp.Time})
	}
	return id, nil
}

// bearerToken reads the Authorization header, falling back to the token query
// parameter for websocket upgrades
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if parts := strings.SplitN(h, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// Authenticate rejects requests without a valid token and stores the identity in the context
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := m.Verify(bearerToken(r))
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("path", r.URL.Path),
				zap.Error(err))
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequireRole allows only the listed roles; it must run after Authenticate
func (m *AuthMiddleware) RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := GetIdentity(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthenticated")
				return
			}
			for _, role := range roles {
				if id.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			m.logger.Warn("role not allowed",
				zap.String("worker_id", id.WorkerID),
				zap.String("role", id.Role),
				zap.Strings("allowed", roles))
			writeError(w, http.StatusForbidden, "forbidden")
		})
	}
}

func (m *AuthMiddleware) startJanitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := m.now()
			deleted := 0
			m.cache.Range(func(key, value interface{}) bool {
				if entry, ok := value.(cacheEntry); ok && !now.Before(entry.exp) {
					m.cache.Delete(key)
					deleted++
				}
				return true
			})
			if deleted > 0 {
				m.logger.Debug("token cache purged", zap.Int("deleted", deleted))
			}
		case <-m.janitorStop:
			return
		}
	}
}

// Stop stops the background janitor
func (m *AuthMiddleware) Stop() {
	m.stopOnce.Do(func() { close(m.janitorStop) })
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func GetIdentity(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// GetWorkerID extracts the worker id from request context
func GetWorkerID(ctx context.Context) (string, bool) {
	id, ok := GetIdentity(ctx)
	return id.WorkerID, ok && id.WorkerID != ""
}

func IsSupervisor(ctx context.Context) bool {
	id, ok := GetIdentity(ctx)
	return ok && id.Role == RoleSupervisor
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + message + `"}`))
}
