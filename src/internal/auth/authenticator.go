// FILE: src/internal/auth/authenticator.go
package auth

import (
	"crypto/subtle"
	"fmt"
	"net"
	"sync"
	"time"

	"logrelay/src/internal/config"
	"logrelay/src/internal/core"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lixenwraith/log"
	"golang.org/x/time/rate"
)

// Prevent unbounded map growth
const maxAuthTrackedIPs = 10000

// Failed-attempt budget per IP. One slot refills per window, so the
// refill cannot keep pace with even slow credential guessing.
const (
	failedAttemptBurst  = 10
	failedAttemptWindow = 10 * time.Second
)

// Permission gates one class of operation
type Permission string

const (
	PermIngest    Permission = "ingest"
	PermSubscribe Permission = "subscribe"
	PermAdmin     Permission = "admin"
)

// Principal is an authenticated caller and its granted permissions
type Principal struct {
	Identity    string
	Permissions map[Permission]bool
}

// Has reports whether the principal holds the given permission
func (p *Principal) Has(perm Permission) bool {
	if p == nil {
		return false
	}
	return p.Permissions[perm]
}

// Authenticator verifies producer and subscriber credentials. Supports
// static argon2id-hashed access tokens and HS256 JWTs. A nil Authenticator
// admits everything with full permissions (auth disabled).
type Authenticator struct {
	logger *log.Logger

	tokens     []staticToken
	jwtParser  *jwt.Parser
	jwtKeyFunc jwt.Keyfunc

	// Brute-force protection
	ipAttempts map[string]*rate.Limiter
	attemptMu  sync.Mutex

	anonymous Principal
}

type staticToken struct {
	hash        *argonHash
	identity    string
	permissions map[Permission]bool
}

// New creates an authenticator from config. Returns nil when auth is
// disabled.
func New(cfg *config.AuthConfig, logger *log.Logger) (*Authenticator, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	a := &Authenticator{
		logger:     logger,
		ipAttempts: make(map[string]*rate.Limiter),
	}

	for i, entry := range cfg.Tokens {
		hash, err := parseArgonHash(entry.Hash)
		if err != nil {
			return nil, fmt.Errorf("auth token[%d]: %w", i, err)
		}

		perms := make(map[Permission]bool, len(entry.Permissions))
		for _, p := range entry.Permissions {
			switch Permission(p) {
			case PermIngest, PermSubscribe, PermAdmin:
				perms[Permission(p)] = true
			default:
				return nil, fmt.Errorf("auth token[%d]: unknown permission %q", i, p)
			}
		}

		a.tokens = append(a.tokens, staticToken{
			hash:        hash,
			identity:    entry.Identity,
			permissions: perms,
		})
	}

	if cfg.JWTSigningKey != "" {
		a.jwtParser = jwt.NewParser(
			jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
			jwt.WithLeeway(5*time.Second),
			jwt.WithExpirationRequired(),
		)
		key := []byte(cfg.JWTSigningKey)
		a.jwtKeyFunc = func(token *jwt.Token) (any, error) {
			return key, nil
		}
	}

	logger.Info("msg", "Authenticator initialized",
		"component", "auth",
		"static_tokens", len(a.tokens),
		"jwt_enabled", a.jwtParser != nil)

	return a, nil
}

// Verify checks a bearer token and returns the principal it belongs to.
// remoteAddr feeds per-IP attempt throttling.
func (a *Authenticator) Verify(token, remoteAddr string) (*Principal, error) {
	if a == nil {
		// Auth disabled: everyone is the anonymous principal with full access
		return &Principal{
			Identity: "anonymous",
			Permissions: map[Permission]bool{
				PermIngest:    true,
				PermSubscribe: true,
				PermAdmin:     true,
			},
		}, nil
	}

	if token == "" {
		return nil, core.NewError(core.CodeAuthRequired, "missing access token")
	}

	if a.attemptsBlocked(remoteAddr) {
		return nil, core.RateLimited(int64(failedAttemptWindow / time.Millisecond))
	}

	if p := a.verifyStatic(token); p != nil {
		return p, nil
	}

	if a.jwtParser != nil {
		if p, err := a.verifyJWT(token); err == nil {
			return p, nil
		}
	}

	a.recordFailure(remoteAddr)
	a.logger.Warn("msg", "Authentication failed",
		"component", "auth",
		"remote_addr", remoteAddr)

	return nil, core.NewError(core.CodeAccessDenied, "invalid access token")
}

func (a *Authenticator) verifyStatic(token string) *Principal {
	for i := range a.tokens {
		entry := &a.tokens[i]
		derived := entry.hash.derive(token)
		if subtle.ConstantTimeCompare(derived, entry.hash.digest) == 1 {
			return &Principal{
				Identity:    entry.identity,
				Permissions: entry.permissions,
			}
		}
	}
	return nil
}

func (a *Authenticator) verifyJWT(tokenStr string) (*Principal, error) {
	claims := jwt.MapClaims{}
	token, err := a.jwtParser.ParseWithClaims(tokenStr, claims, a.jwtKeyFunc)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	identity, _ := claims["sub"].(string)
	if identity == "" {
		return nil, fmt.Errorf("token missing sub claim")
	}

	perms := make(map[Permission]bool)
	if rawPerms, ok := claims["perms"].([]any); ok {
		for _, raw := range rawPerms {
			if p, ok := raw.(string); ok {
				switch Permission(p) {
				case PermIngest, PermSubscribe, PermAdmin:
					perms[Permission(p)] = true
				}
			}
		}
	}

	return &Principal{Identity: identity, Permissions: perms}, nil
}

func attemptKey(remoteAddr string) string {
	ip, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr // Fallback for malformed addresses
	}
	return ip
}

// attemptsBlocked reports whether the IP has exhausted its failed-attempt
// budget. Successful verifications never consume the budget, so legitimate
// callers authenticating on every request are unaffected.
func (a *Authenticator) attemptsBlocked(remoteAddr string) bool {
	a.attemptMu.Lock()
	defer a.attemptMu.Unlock()

	limiter, exists := a.ipAttempts[attemptKey(remoteAddr)]
	return exists && limiter.Tokens() < 1
}

func (a *Authenticator) recordFailure(remoteAddr string) {
	ip := attemptKey(remoteAddr)

	a.attemptMu.Lock()
	defer a.attemptMu.Unlock()

	limiter, exists := a.ipAttempts[ip]
	if !exists {
		if len(a.ipAttempts) >= maxAuthTrackedIPs {
			// Drop the whole table rather than tracking eviction order
			a.ipAttempts = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(rate.Every(failedAttemptWindow), failedAttemptBurst)
		a.ipAttempts[ip] = limiter
	}
	limiter.Allow()
}
