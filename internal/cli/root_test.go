package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slidecraft/slides-cli/internal/config"
	"github.com/slidecraft/slides-cli/internal/output"
)

// isolate points every config and storage location at temp dirs and the
// API at url.
func isolate(t *testing.T, url string) string {
	t.Helper()
	for _, key := range config.Keys {
		t.Setenv(config.EnvVar(key), "")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("SLIDES_NO_KEYRING", "1")
	t.Setenv("SLIDES_TOKEN", "")
	t.Setenv("SLIDES_ADMIN_TOKEN", "")
	t.Setenv("SLIDES_DEBUG", "")
	cacheDir := t.TempDir()
	t.Setenv(config.EnvVar("cache_dir"), cacheDir)
	if url != "" {
		t.Setenv(config.EnvVar("base_url"), url)
	}
	t.Chdir(t.TempDir())
	return cacheDir
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

type envelope struct {
	OK      bool            `json:"ok"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Summary string          `json:"summary"`
}

func decodeEnvelope(t *testing.T, out string) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(out), &env), out)
	return env
}

// fakeServer serves login and /auth/me and counts /auth/me hits.
type fakeServer struct {
	meHits       atomic.Int32
	unauthorized atomic.Bool
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/api/auth/login":
		_, _ = w.Write([]byte(`{"access_token":"tok-1","user":{"id":"u1","username":"alice","scores":12}}`))
	case "/api/auth/me":
		f.meHits.Add(1)
		if f.unauthorized.Load() || r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Invalid token"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"u1","username":"alice","scores":12}`))
	case "/api/presentations":
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"detail":"Not enough points"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Not Found"}`))
	}
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	f := &fakeServer{}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	isolate(t, srv.URL)
	return f
}

func TestLoginThenWhoamiReusesSessionAcrossRuns(t *testing.T) {
	f := newFakeServer(t)

	code, out, _ := run(t, "auth", "login", "-u", "alice", "--password", "pw", "--json")
	require.Equal(t, 0, code, out)
	env := decodeEnvelope(t, out)
	assert.True(t, env.OK)
	assert.Contains(t, env.Summary, "alice")

	code, out, _ = run(t, "auth", "whoami", "--json")
	require.Equal(t, 0, code, out)
	assert.Contains(t, string(decodeEnvelope(t, out).Data), `"username": "alice"`)

	// The session entry is durable, so a second process within the TTL
	// does not ask the server again.
	code, _, _ = run(t, "auth", "whoami", "--json")
	require.Equal(t, 0, code)
	assert.Equal(t, int32(1), f.meHits.Load())
}

func TestUnauthorizedClearsStoredToken(t *testing.T) {
	f := newFakeServer(t)

	code, _, _ := run(t, "auth", "login", "-u", "alice", "--password", "pw", "--json")
	require.Equal(t, 0, code)

	f.unauthorized.Store(true)
	code, out, _ := run(t, "auth", "whoami", "--json")
	assert.Equal(t, output.ExitAuth, code)
	assert.Equal(t, output.CodeAuth, decodeEnvelope(t, out).Code)

	code, out, _ = run(t, "auth", "status", "--json")
	require.Equal(t, 0, code, out)
	var status map[string]any
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, out).Data, &status))
	assert.Equal(t, "none", status["token_source"])
	assert.Equal(t, false, status["authenticated"])
}

func TestInsufficientPointsExitCode(t *testing.T) {
	newFakeServer(t)
	t.Setenv("SLIDES_TOKEN", "tok-1")

	code, out, _ := run(t, "presentations", "create", "Go", "tips", "--json")
	assert.Equal(t, output.ExitInsufficientPoints, code)
	assert.Equal(t, output.CodeInsufficientPoints, decodeEnvelope(t, out).Code)
}

func TestNotLoggedInIsAuthError(t *testing.T) {
	newFakeServer(t)

	code, out, _ := run(t, "presentations", "list", "--json")
	assert.Equal(t, output.ExitAuth, code)
	env := decodeEnvelope(t, out)
	assert.False(t, env.OK)
	assert.Equal(t, output.CodeAuth, env.Code)
}

func TestUnknownFlagIsUsageError(t *testing.T) {
	isolate(t, "")

	code, out, _ := run(t, "auth", "status", "--nope", "--json")
	assert.Equal(t, output.ExitUsage, code)
	env := decodeEnvelope(t, out)
	assert.Equal(t, "Unknown option: --nope", env.Error)
}

func TestInvalidConfigIsUsageError(t *testing.T) {
	isolate(t, "")
	t.Setenv(config.EnvVar("session_backend"), "memcached")

	code, _, _ := run(t, "config", "show", "--json")
	assert.Equal(t, output.ExitUsage, code)
}

func TestVersionCommand(t *testing.T) {
	isolate(t, "")

	code, out, _ := run(t, "version", "--json")
	require.Equal(t, 0, code)
	assert.Contains(t, decodeEnvelope(t, out).Summary, "slides version")
}

func TestConfigSetLocalRejectsAuthorityKey(t *testing.T) {
	isolate(t, "")

	code, out, _ := run(t, "config", "set", "base_url", "https://evil.example", "--json")
	assert.Equal(t, output.ExitUsage, code)
	assert.Contains(t, out, "--global")

	_, err := os.Stat(filepath.Join(".slides", "config.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestConfigSetGlobalThenShow(t *testing.T) {
	isolate(t, "")

	code, out, _ := run(t, "config", "set", "--global", "base_url", "https://slides.example.com", "--json")
	require.Equal(t, 0, code, out)

	code, out, _ = run(t, "config", "show", "--json")
	require.Equal(t, 0, code, out)
	var shown map[string]map[string]string
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, out).Data, &shown))
	assert.Equal(t, "https://slides.example.com", shown["base_url"]["value"])
	assert.Equal(t, "global", shown["base_url"]["source"])

	code, _, _ = run(t, "config", "unset", "--global", "base_url", "--json")
	require.Equal(t, 0, code)
}

func TestConfigSetLocalFormat(t *testing.T) {
	isolate(t, "")

	code, out, _ := run(t, "config", "set", "format", "json")
	require.Equal(t, 0, code, out)

	// format=json from the local file applies without --json.
	code, out, _ = run(t, "config", "show")
	require.Equal(t, 0, code)
	var shown map[string]map[string]string
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, out).Data, &shown))
	assert.Equal(t, "local", shown["format"]["source"])
}

func TestSessionClearRejectsUnknownLine(t *testing.T) {
	isolate(t, "")

	code, _, _ := run(t, "session", "clear", "nope", "--json")
	assert.Equal(t, output.ExitUsage, code)
}

func TestTransformCobraError(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"flag needs an argument: --limit", "--limit requires a value"},
		{"unknown flag: --nope", "Unknown option: --nope"},
		{"unknown shorthand flag: 'z' in -z", "Unknown option: -z"},
		{`required flag(s) "invite-code" not set`, "--invite-code is required"},
		{"accepts 1 arg(s), received 0", "accepts 1 arg(s), received 0"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			err := transformCobraError(errors.New(tt.in))
			var e *output.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, output.CodeUsage, e.Code)
			assert.Equal(t, tt.want, e.Message)
		})
	}

	plain := errors.New("boom")
	assert.Same(t, plain, transformCobraError(plain))
}

func TestFallbackFormat(t *testing.T) {
	tests := []struct {
		args []string
		want output.Format
	}{
		{nil, output.FormatAuto},
		{[]string{"auth", "whoami", "--json"}, output.FormatJSON},
		{[]string{"--bogus", "-q", "auth", "status"}, output.FormatQuiet},
		{[]string{"-j", "--unknown=1"}, output.FormatJSON},
		{[]string{"config", "show", "--md"}, output.FormatMarkdown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, fallbackFormat(tt.args), "args %v", tt.args)
	}
}
