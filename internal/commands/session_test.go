package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slidecraft/slides-cli/internal/auth"
	"github.com/slidecraft/slides-cli/internal/session"
)

func sessionRows(t *testing.T, env map[string]any) map[string]map[string]any {
	t.Helper()
	rows := make(map[string]map[string]any)
	for _, r := range env["data"].([]any) {
		row := r.(map[string]any)
		rows[row["line"].(string)] = row
	}
	return rows
}

func TestSessionShowAndClear(t *testing.T) {
	e := newCmdEnv(t, map[string]reply{
		"GET /api/auth/me":    ok(meUser),
		"GET /api/config/get": ok(`{"data":{"title":"Slides"}}`),
	})
	e.login(auth.User, "tok")

	_, err := e.run(NewAuthCmd(), "whoami")
	require.NoError(t, err)
	_, err = e.run(NewSystemCmd(), "info")
	require.NoError(t, err)

	env, err := e.run(NewSessionCmd(), "show")
	require.NoError(t, err)
	rows := sessionRows(t, env)
	require.Len(t, rows, 3)
	assert.Equal(t, true, rows[session.UserLine]["cached"])
	assert.Equal(t, true, rows[session.SystemLine]["cached"])
	assert.Equal(t, false, rows[session.AdminLine]["cached"])
	assert.Equal(t, "30s", rows[session.SystemLine]["ttl"])
	assert.Equal(t, auth.UserSessionKey, rows[session.UserLine]["key"])

	env, err = e.run(NewSessionCmd(), "clear", "user")
	require.NoError(t, err)
	assert.Equal(t, "Cleared 1 session line", env["summary"])

	env, err = e.run(NewSessionCmd(), "show")
	require.NoError(t, err)
	rows = sessionRows(t, env)
	assert.Equal(t, false, rows[session.UserLine]["cached"])
	assert.Equal(t, true, rows[session.SystemLine]["cached"])

	// The token survives; only the cached lookup is gone.
	assert.Equal(t, "tok", e.app.Tokens.Get(context.Background(), auth.User))
}

func TestSessionClearAll(t *testing.T) {
	e := newCmdEnv(t, map[string]reply{"GET /api/config/get": ok(`{"data":{}}`)})

	_, err := e.run(NewSystemCmd(), "info")
	require.NoError(t, err)

	env, err := e.run(NewSessionCmd(), "clear")
	require.NoError(t, err)
	assert.Equal(t, "Cleared 3 session lines", env["summary"])

	_, ok, err := e.app.Session.Line(session.SystemLine).Expiry(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionClearUnknownLine(t *testing.T) {
	e := newCmdEnv(t, nil)

	_, err := e.run(NewSessionCmd(), "clear", "bogus")
	assert.Error(t, err)
}

func TestSessionID(t *testing.T) {
	e := newCmdEnv(t, nil)

	env, err := e.run(NewSessionCmd(), "id")
	require.NoError(t, err)
	id := env["data"].(map[string]any)["id"].(string)
	assert.Len(t, id, auth.SessionIDLength)
	assert.Regexp(t, `^[0-9a-z]+$`, id)
}
