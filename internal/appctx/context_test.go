package appctx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slidecraft/slides-cli/internal/auth"
	"github.com/slidecraft/slides-cli/internal/config"
	"github.com/slidecraft/slides-cli/internal/output"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("SLIDES_NO_KEYRING", "1")
	t.Setenv("SLIDES_TOKEN", "")
	t.Setenv("SLIDES_ADMIN_TOKEN", "")
	t.Setenv("SLIDES_DEBUG", "")
	cfg := config.Default()
	cfg.CacheDir = t.TempDir()
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) (*App, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := NewApp(cfg, WithStdout(&stdout), WithStderr(&stderr))
	t.Cleanup(func() { _ = app.Close() })
	return app, &stdout, &stderr
}

func TestNewApp(t *testing.T) {
	cfg := testConfig(t)
	app, _, _ := newTestApp(t, cfg)

	assert.Same(t, cfg, app.Config)
	assert.NotNil(t, app.Output)
	assert.NotNil(t, app.Logger)
	assert.NotNil(t, app.Metrics)
	assert.Nil(t, app.Session, "session cache is built by Connect")
	assert.Nil(t, app.Client)
}

func TestWithAppAndFromContext(t *testing.T) {
	app, _, _ := newTestApp(t, testConfig(t))

	ctx := WithApp(context.Background(), app)
	assert.Same(t, app, FromContext(ctx))
}

func TestFromContextEmpty(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
}

func TestApplyFlagsFormat(t *testing.T) {
	tests := []struct {
		name      string
		cfgFormat string
		flags     GlobalFlags
		want      output.Format
	}{
		{"default", "auto", GlobalFlags{}, output.FormatAuto},
		{"config json", "json", GlobalFlags{}, output.FormatJSON},
		{"json flag", "auto", GlobalFlags{JSON: true}, output.FormatJSON},
		{"quiet beats json", "auto", GlobalFlags{JSON: true, Quiet: true}, output.FormatQuiet},
		{"ids beats everything", "auto", GlobalFlags{IDsOnly: true, Count: true, JSON: true}, output.FormatIDs},
		{"count", "auto", GlobalFlags{Count: true}, output.FormatCount},
		{"styled", "json", GlobalFlags{Styled: true}, output.FormatStyled},
		{"md", "auto", GlobalFlags{MD: true}, output.FormatMarkdown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Format = tt.cfgFormat
			app, _, _ := newTestApp(t, cfg)
			app.Flags = tt.flags
			app.ApplyFlags()
			assert.Equal(t, tt.want, app.Output.Format())
		})
	}
}

func TestVerbosity(t *testing.T) {
	app, _, _ := newTestApp(t, testConfig(t))

	app.Flags.Verbose = 1
	assert.Equal(t, 1, app.verbosity())

	t.Setenv("SLIDES_DEBUG", "2")
	assert.Equal(t, 2, app.verbosity())

	t.Setenv("SLIDES_DEBUG", "true")
	app.Flags.Verbose = 0
	assert.Equal(t, 2, app.verbosity())

	t.Setenv("SLIDES_DEBUG", "0")
	app.Flags.Verbose = 1
	assert.Equal(t, 1, app.verbosity(), "env never lowers the flag")
}

func TestVerboseLogsToStderr(t *testing.T) {
	app, _, stderr := newTestApp(t, testConfig(t))
	app.Flags.Verbose = 1
	app.ApplyFlags()

	require.NoError(t, app.Connect(context.Background()))
	assert.Contains(t, stderr.String(), "connected")
}

func TestConnect(t *testing.T) {
	app, _, _ := newTestApp(t, testConfig(t))
	ctx := context.Background()

	require.NoError(t, app.Connect(ctx))
	require.NotNil(t, app.Session)
	require.NotNil(t, app.Tokens)
	require.NotNil(t, app.Client)
	assert.False(t, app.Stores.UsingKeyring())

	sess := app.Session
	require.NoError(t, app.Connect(ctx))
	assert.Same(t, sess, app.Session, "Connect is idempotent")
}

func TestConnectUnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.SessionBackend = "etcd"
	app, _, _ := newTestApp(t, cfg)

	err := app.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening storage")
	assert.Nil(t, app.Session)
}

func TestOKIncludesStats(t *testing.T) {
	app, stdout, _ := newTestApp(t, testConfig(t))
	app.Flags = GlobalFlags{JSON: true, Stats: true}
	app.ApplyFlags()

	require.NoError(t, app.OK(map[string]any{"id": "p1"}))

	var resp struct {
		OK   bool           `json:"ok"`
		Meta map[string]any `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Contains(t, resp.Meta, "stats")
}

func TestOKWithoutStats(t *testing.T) {
	app, stdout, _ := newTestApp(t, testConfig(t))
	app.Flags = GlobalFlags{JSON: true}
	app.ApplyFlags()

	require.NoError(t, app.OK(map[string]any{"id": "p1"}))
	assert.NotContains(t, stdout.String(), "stats")
}

func TestErrPrintsStatsToStderr(t *testing.T) {
	app, stdout, stderr := newTestApp(t, testConfig(t))
	app.Flags = GlobalFlags{JSON: true, Stats: true}
	app.ApplyFlags()

	require.NoError(t, app.Err(output.ErrUsage("bad")))
	assert.Contains(t, stdout.String(), `"code": "usage"`)
	assert.Contains(t, stderr.String(), "Stats:")
}

func TestErrQuietSkipsStats(t *testing.T) {
	app, _, stderr := newTestApp(t, testConfig(t))
	app.Flags = GlobalFlags{Quiet: true, Stats: true}
	app.ApplyFlags()

	require.NoError(t, app.Err(output.ErrUsage("bad")))
	assert.NotContains(t, stderr.String(), "Stats:")
}

func TestIsInteractiveFalseForBuffers(t *testing.T) {
	app, _, _ := newTestApp(t, testConfig(t))
	assert.False(t, app.IsInteractive())
}

func serveMe(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/api/auth/me":
			_, _ = io.WriteString(w, `{"id":"u1","username":"ann","scores":7}`)
		case "/api/admin/me":
			_, _ = io.WriteString(w, `{"id":"a1","username":"root"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRequireUser(t *testing.T) {
	cfg := testConfig(t)
	cfg.BaseURL = serveMe(t).URL
	app, _, _ := newTestApp(t, cfg)
	ctx := context.Background()

	_, err := app.RequireUser(ctx)
	require.Error(t, err)
	assert.True(t, output.IsCode(err, output.CodeAuth))

	require.NoError(t, app.Tokens.Set(ctx, auth.User, "tok"))
	user, err := app.RequireUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ann", user.Username)
	assert.True(t, app.Session.LoggedIn())
}

func TestRequireAdmin(t *testing.T) {
	cfg := testConfig(t)
	cfg.BaseURL = serveMe(t).URL
	app, _, _ := newTestApp(t, cfg)
	ctx := context.Background()

	_, err := app.RequireAdmin(ctx)
	require.Error(t, err)
	assert.Equal(t, "Run: slides admin login", output.AsError(err).Hint)

	require.NoError(t, app.Tokens.Set(ctx, auth.Admin, "Bearer adm"))
	admin, err := app.RequireAdmin(ctx)
	require.NoError(t, err)
	assert.Equal(t, "root", admin.Username)
}
