// Package session caches the current user, the current admin and the system
// configuration. Each cache line expires on its own TTL and deduplicates
// concurrent refills into a single request.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/slidecraft/slides-cli/internal/auth"
	"github.com/slidecraft/slides-cli/internal/logging"
	"github.com/slidecraft/slides-cli/internal/models"
	"github.com/slidecraft/slides-cli/internal/output"
	"github.com/slidecraft/slides-cli/internal/storage"
)

// Line names.
const (
	UserLine   = "user"
	AdminLine  = "admin"
	SystemLine = "system"
)

// Fixed TTLs per line.
const (
	UserTTL   = 3 * time.Second
	AdminTTL  = 3 * time.Second
	SystemTTL = 30 * time.Second
)

// DefaultFetchTimeout bounds a single refill.
const DefaultFetchTimeout = 30 * time.Second

// Fetcher loads the payloads behind the cache lines. Implemented by api.Client.
type Fetcher interface {
	AuthMe(ctx context.Context) (json.RawMessage, error)
	AdminMe(ctx context.Context) (json.RawMessage, error)
	SystemConfig(ctx context.Context) (json.RawMessage, error)
}

type options struct {
	now          func() time.Time
	fetchTimeout time.Duration
	recorder     Recorder
	logger       *slog.Logger
	tokens       *auth.TokenStore
}

// Option configures a Cache.
type Option func(*options)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithFetchTimeout bounds each refill. Zero disables the bound.
func WithFetchTimeout(d time.Duration) Option {
	return func(o *options) {
		o.fetchTimeout = d
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTokens lets the identity lines notice a login or logout that happens
// while their fetch is in flight. Such a result is returned but not stored.
func WithTokens(tokens *auth.TokenStore) Option {
	return func(o *options) {
		o.tokens = tokens
	}
}

// Cache holds the three cache lines. Build one per process and share it.
type Cache struct {
	user   *Line
	admin  *Line
	system *Line

	loggedIn atomic.Bool
	logger   *slog.Logger
}

// New creates a Cache that persists its lines in store.
func New(f Fetcher, store storage.Store, opts ...Option) *Cache {
	o := &options{
		now:          time.Now,
		fetchTimeout: DefaultFetchTimeout,
		recorder:     nopRecorder{},
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}

	c := &Cache{
		user:   newLine(UserLine, auth.UserSessionKey, UserTTL, f.AuthMe, store, o),
		admin:  newLine(AdminLine, auth.AdminSessionKey, AdminTTL, f.AdminMe, store, o),
		system: newLine(SystemLine, auth.SystemSessionKey, SystemTTL, f.SystemConfig, store, o),
		logger: o.logger,
	}
	if tokens := o.tokens; tokens != nil {
		c.user.credential = func(ctx context.Context) string {
			return tokens.Get(ctx, auth.User)
		}
		// Admin requests fall back to the user token.
		c.admin.credential = func(ctx context.Context) string {
			return tokens.Get(ctx, auth.Admin) + "\x00" + tokens.Get(ctx, auth.User)
		}
	}
	return c
}

// Line returns the named cache line, or nil.
func (c *Cache) Line(name string) *Line {
	switch name {
	case UserLine:
		return c.user
	case AdminLine:
		return c.admin
	case SystemLine:
		return c.system
	}
	return nil
}

// CheckSession returns the current user, or nil when not logged in.
// Fetch failures are not returned: they mark the session logged out.
// The only error is the caller's own ctx ending.
func (c *Cache) CheckSession(ctx context.Context) (*models.User, error) {
	raw, err := c.user.Check(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.loggedIn.Store(false)
		c.logger.Debug("user session check failed", "error", err)
		return nil, nil
	}

	var u *models.User
	if err := json.Unmarshal(raw, &u); err != nil || u == nil {
		c.loggedIn.Store(false)
		_ = c.user.Invalidate(ctx)
		return nil, nil
	}
	c.loggedIn.Store(true)
	return u, nil
}

// CheckAdminSession returns the current admin. Failures are returned.
func (c *Cache) CheckAdminSession(ctx context.Context) (*models.Admin, error) {
	raw, err := c.admin.Check(ctx)
	if err != nil {
		return nil, err
	}

	var a *models.Admin
	if err := json.Unmarshal(raw, &a); err != nil || a == nil {
		_ = c.admin.Invalidate(ctx)
		return nil, fmt.Errorf("decoding admin session: %w", errOrEmpty(err))
	}
	return a, nil
}

// SystemInfo returns the public system configuration. Failures are returned.
func (c *Cache) SystemInfo(ctx context.Context) (models.SystemConfig, error) {
	raw, err := c.system.Check(ctx)
	if err != nil {
		return nil, err
	}

	var cfg models.SystemConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		_ = c.system.Invalidate(ctx)
		return nil, fmt.Errorf("decoding system config: %w", err)
	}
	if cfg == nil {
		cfg = models.SystemConfig{}
	}
	return cfg, nil
}

// LoggedIn reports the outcome of the last user session check.
func (c *Cache) LoggedIn() bool {
	return c.loggedIn.Load()
}

// Invalidate removes the named line's durable entry.
func (c *Cache) Invalidate(ctx context.Context, name string) error {
	l := c.Line(name)
	if l == nil {
		return fmt.Errorf("unknown session line %q", name)
	}
	if name == UserLine {
		c.loggedIn.Store(false)
	}
	return l.Invalidate(ctx)
}

// RequireAdmin guards admin commands. Every failure except the caller's own
// cancellation becomes an admin login error, as the web client redirects to
// admin login on any rejected admin check. The fetch error stays as Cause.
func (c *Cache) RequireAdmin(ctx context.Context) (*models.Admin, error) {
	admin, err := c.CheckAdminSession(ctx)
	if err == nil {
		return admin, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	msg := "Admin login required"
	if !output.IsCode(err, output.CodeAuth) {
		cause := output.AsError(err)
		msg += ": " + cause.Message
		if cause.Hint != "" {
			msg += " (" + cause.Hint + ")"
		}
	}
	e := output.ErrAdminAuth(msg)
	e.Cause = err
	return nil, e
}

var errEmptyPayload = errors.New("empty payload")

func errOrEmpty(err error) error {
	if err != nil {
		return err
	}
	return errEmptyPayload
}
