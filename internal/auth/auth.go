// Package auth stores bearer tokens for the user and admin principals.
package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"strings"

	"github.com/slidecraft/slides-cli/internal/logging"
	"github.com/slidecraft/slides-cli/internal/storage"
)

// Principal identifies who a token authenticates.
type Principal string

const (
	User  Principal = "user"
	Admin Principal = "admin"
)

// DefaultKeyPrefix is prepended to token keys.
const DefaultKeyPrefix = "slides_"

// Session cache keys. They are shared with the session package so that
// removing a token also drops the cached identity.
const (
	UserSessionKey   = "USER_INFO_CACHE_KEY"
	AdminSessionKey  = "ADMIN_INFO_CACHE_KEY"
	SystemSessionKey = "SYSTEM_INFO_CACHE_KEY"
)

// TokenKey returns the storage key for the principal's token.
func (p Principal) TokenKey(prefix string) string {
	if p == Admin {
		return prefix + "X-ADMIN-TOKEN"
	}
	return prefix + "X-USER-TOKEN"
}

// SessionKey returns the session cache key for the principal.
func (p Principal) SessionKey() string {
	if p == Admin {
		return AdminSessionKey
	}
	return UserSessionKey
}

// EnvVar returns the environment variable that overrides stored tokens.
func (p Principal) EnvVar() string {
	if p == Admin {
		return "SLIDES_ADMIN_TOKEN"
	}
	return "SLIDES_TOKEN"
}

// TokenStore persists tokens and keeps the session cache consistent with them.
type TokenStore struct {
	tokens   storage.Store
	sessions storage.Store
	prefix   string
	logger   *slog.Logger
}

// Option configures a TokenStore.
type Option func(*TokenStore)

// WithKeyPrefix sets the token key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *TokenStore) {
		s.prefix = prefix
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *TokenStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewTokenStore creates a TokenStore. sessions is the store the session
// cache persists its lines in.
func NewTokenStore(tokens, sessions storage.Store, opts ...Option) *TokenStore {
	s := &TokenStore{
		tokens:   tokens,
		sessions: sessions,
		prefix:   DefaultKeyPrefix,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the principal's token, or "" if there is none.
// An environment override wins over storage. Storage errors read as "".
func (s *TokenStore) Get(ctx context.Context, p Principal) string {
	if token := os.Getenv(p.EnvVar()); token != "" {
		return token
	}

	v, found, err := s.tokens.Get(ctx, p.TokenKey(s.prefix))
	if err != nil {
		s.logger.Debug("token read failed", "principal", p, "error", err)
		return ""
	}
	if !found {
		return ""
	}
	return string(v)
}

// Set overwrites the principal's token.
func (s *TokenStore) Set(ctx context.Context, p Principal, token string) error {
	if err := s.tokens.Set(ctx, p.TokenKey(s.prefix), []byte(token)); err != nil {
		return fmt.Errorf("saving %s token: %w", p, err)
	}
	return nil
}

// Remove deletes the principal's token and its cached session.
// Both removals are attempted; they are done when Remove returns.
func (s *TokenStore) Remove(ctx context.Context, p Principal) error {
	var errs []error
	if err := s.tokens.Remove(ctx, p.TokenKey(s.prefix)); err != nil {
		errs = append(errs, fmt.Errorf("removing %s token: %w", p, err))
	}
	if err := s.sessions.Remove(ctx, p.SessionKey()); err != nil {
		errs = append(errs, fmt.Errorf("removing %s session: %w", p, err))
	}
	return errors.Join(errs...)
}

// Authorization returns the header value for the principal's token.
func (s *TokenStore) Authorization(ctx context.Context, p Principal) string {
	return Bearer(s.Get(ctx, p))
}

// Bearer adds the Bearer scheme to token unless it already has it.
func Bearer(token string) string {
	if token == "" {
		return ""
	}
	if strings.HasPrefix(token, "Bearer ") {
		return token
	}
	return "Bearer " + token
}

const sessionAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// SessionIDLength is the length of IDs from NewSessionID.
const SessionIDLength = 42

// NewSessionID returns a random lowercase alphanumeric session ID.
func NewSessionID() string {
	var b strings.Builder
	b.Grow(SessionIDLength)
	limit := big.NewInt(int64(len(sessionAlphabet)))
	for range SessionIDLength {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			panic(err)
		}
		b.WriteByte(sessionAlphabet[n.Int64()])
	}
	return b.String()
}
