// Package appctx provides application context helpers.
package appctx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/slidecraft/slides-cli/internal/api"
	"github.com/slidecraft/slides-cli/internal/auth"
	"github.com/slidecraft/slides-cli/internal/config"
	"github.com/slidecraft/slides-cli/internal/logging"
	"github.com/slidecraft/slides-cli/internal/models"
	"github.com/slidecraft/slides-cli/internal/observability"
	"github.com/slidecraft/slides-cli/internal/output"
	"github.com/slidecraft/slides-cli/internal/session"
	"github.com/slidecraft/slides-cli/internal/storage"
)

// contextKey is a private type for context keys.
type contextKey string

const appKey contextKey = "app"

// App holds the shared application context for all commands.
type App struct {
	Config *config.Config
	Output *output.Writer
	Logger *slog.Logger

	// Set by Connect.
	Stores  *storage.Stores
	Tokens  *auth.TokenStore
	Client  *api.Client
	Session *session.Cache

	Metrics *observability.Metrics

	// Flags holds the global flag values
	Flags GlobalFlags

	stdout io.Writer
	stderr io.Writer
}

// GlobalFlags holds values for global CLI flags.
type GlobalFlags struct {
	// Output format flags
	JSON    bool
	Quiet   bool
	MD      bool // Literal Markdown syntax output
	Styled  bool // Force ANSI styled output (even when piped)
	IDsOnly bool
	Count   bool
	JQ      string

	// Context flags
	Host string

	// Behavior flags
	Verbose  int // 0=warnings, 1=debug, 2=debug+trace (stacks with -v -v or -vv)
	Stats    bool
	CacheDir string
}

// Option configures an App.
type Option func(*App)

// WithStdout redirects command output.
func WithStdout(w io.Writer) Option {
	return func(a *App) { a.stdout = w }
}

// WithStderr redirects diagnostics.
func WithStderr(w io.Writer) Option {
	return func(a *App) { a.stderr = w }
}

// NewApp creates a new App with the given configuration. Storage and the API
// client are not opened until Connect.
func NewApp(cfg *config.Config, opts ...Option) *App {
	a := &App{
		Config:  cfg,
		Metrics: observability.NewMetrics(),
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.Logger = logging.NewWriter(a.stderr, logging.LevelForVerbosity(0))
	a.Output = output.New(output.Options{
		Format: output.ParseFormat(cfg.Format),
		Writer: a.stdout,
	})
	return a
}

// Stdout returns the command output writer.
func (a *App) Stdout() io.Writer { return a.stdout }

// Stderr returns the diagnostics writer.
func (a *App) Stderr() io.Writer { return a.stderr }

// ApplyFlags applies global flag values to the app configuration.
func (a *App) ApplyFlags() {
	// Order matters: specific modes first
	format := output.ParseFormat(a.Config.Format)
	switch {
	case a.Flags.IDsOnly:
		format = output.FormatIDs
	case a.Flags.Count:
		format = output.FormatCount
	case a.Flags.Quiet:
		format = output.FormatQuiet
	case a.Flags.JSON:
		format = output.FormatJSON
	case a.Flags.Styled:
		format = output.FormatStyled
	case a.Flags.MD:
		format = output.FormatMarkdown
	}
	a.Output = output.New(output.Options{
		Format: format,
		Writer: a.stdout,
		JQ:     a.Flags.JQ,
	})

	a.Logger = logging.NewWriter(a.stderr, logging.LevelForVerbosity(a.verbosity()))
}

// verbosity combines -v with SLIDES_DEBUG ("1", "2", or "true" for full debug).
func (a *App) verbosity() int {
	level := a.Flags.Verbose
	if debugEnv := os.Getenv("SLIDES_DEBUG"); debugEnv != "" {
		if n, err := strconv.Atoi(debugEnv); err == nil {
			level = max(level, n)
		} else if debugEnv == "true" {
			level = 2
		}
	}
	return level
}

// Connect opens storage and builds the token store, API client and session
// cache. It is idempotent.
func (a *App) Connect(ctx context.Context) error {
	if a.Session != nil {
		return nil
	}

	stores, err := storage.Open(ctx, storage.Options{
		Dir:            a.Config.CacheDir,
		SessionBackend: a.Config.SessionBackend,
		RedisAddr:      a.Config.RedisAddr,
		RedisPassword:  a.Config.RedisPassword,
		RedisDB:        a.Config.RedisDB,
		Warn:           a.stderr,
	})
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}

	a.Stores = stores
	a.Tokens = auth.NewTokenStore(stores.Tokens, stores.Sessions,
		auth.WithKeyPrefix(a.Config.KeyPrefix),
		auth.WithLogger(a.Logger),
	)
	a.Client = api.NewClient(a.Config, a.Tokens,
		api.WithLogger(a.Logger),
		api.WithRecorder(a.Metrics),
	)
	a.Session = session.New(a.Client, stores.Sessions,
		session.WithFetchTimeout(a.Config.FetchTimeout),
		session.WithRecorder(a.Metrics),
		session.WithLogger(a.Logger),
		session.WithTokens(a.Tokens),
	)
	a.Logger.Debug("connected",
		"base_url", a.Config.BaseURL,
		"session_backend", a.Config.SessionBackend,
		"keyring", stores.UsingKeyring(),
	)
	return nil
}

// Close releases storage connections.
func (a *App) Close() error {
	if a.Stores == nil {
		return nil
	}
	return a.Stores.Close()
}

// RequireUser returns the logged-in user or an auth error.
func (a *App) RequireUser(ctx context.Context) (*models.User, error) {
	if err := a.Connect(ctx); err != nil {
		return nil, err
	}
	user, err := a.Session.CheckSession(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, output.ErrAuth("Please log in first")
	}
	return user, nil
}

// RequireAdmin connects and runs the admin guard.
func (a *App) RequireAdmin(ctx context.Context) (*models.Admin, error) {
	if err := a.Connect(ctx); err != nil {
		return nil, err
	}
	return a.Session.RequireAdmin(ctx)
}

// OK outputs a success response, automatically including stats if --stats flag is set.
func (a *App) OK(data any, opts ...output.ResponseOption) error {
	if a.Flags.Stats {
		if stats, err := a.Metrics.Summary(); err == nil {
			opts = append(opts, output.WithStats(stats.Map()))
		}
	}
	return a.Output.OK(data, opts...)
}

// Err outputs an error response, printing stats to stderr if --stats flag is set.
func (a *App) Err(err error) error {
	if outputErr := a.Output.Err(err); outputErr != nil {
		return outputErr
	}

	// Machine-consumable modes keep stderr clean
	if a.Flags.Stats && !a.isMachineOutput() {
		if stats, serr := a.Metrics.Summary(); serr == nil {
			if parts := stats.FormatParts(); len(parts) > 0 {
				fmt.Fprintf(a.stderr, "\nStats: %s\n", strings.Join(parts, " | "))
			}
		}
	}
	return nil
}

// isMachineOutput returns true if the output mode is intended for programmatic consumption.
func (a *App) isMachineOutput() bool {
	if a.Flags.Quiet || a.Flags.IDsOnly || a.Flags.Count || a.Flags.JQ != "" {
		return true
	}
	return a.Config != nil && a.Config.Format == "quiet"
}

// IsInteractive returns true if the terminal supports interactive prompts.
func (a *App) IsInteractive() bool {
	if a.Flags.JSON || a.Flags.Quiet || a.Flags.IDsOnly || a.Flags.Count || a.Flags.JQ != "" {
		return false
	}
	f, ok := a.stdout.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// WithApp stores the app in the context.
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey, app)
}

// FromContext retrieves the app from the context.
func FromContext(ctx context.Context) *App {
	app, _ := ctx.Value(appKey).(*App)
	return app
}
