package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slidecraft/slides-cli/internal/auth"
	"github.com/slidecraft/slides-cli/internal/output"
)

func presentationRoutes() map[string]reply {
	r := map[string]reply{}
	r["GET /api/auth/me"] = ok(meUser)
	r["GET /api/presentations"] = ok(`[{"id":"p1","title":"Deck"},{"id":"p2","title":"Other"}]`)
	r["POST /api/presentations"] = ok(`{"id":"p3","title":"Go tips"}`)
	r["GET /api/presentations/p1"] = ok(`{"id":"p1","title":"Deck","is_published":1,"slides":[
		{"slide_id":"s1","position":0,"active_version_id":"v1","versions":[{"id":"v1","image_url":"/static/a.png"},{"id":"v2"}]},
		{"slide_id":"s2","position":1,"versions":[]}
	]}`)
	r["DELETE /api/presentations/p1/permanent"] = ok(`{"status":"success"}`)
	r["DELETE /api/presentations/deleted"] = ok(`{"status":"success","deleted_count":3}`)
	r["GET /api/presentations/p1/generation-progress"] = ok(`{"status":"generating","current":2,"total":5,"percentage":40}`)
	r["GET /api/presentations/p1/slides/s1/versions"] = ok(`{"versions":[{"id":"v1","image_url":"static/a.png"},{"id":"v2","image_url":"https://cdn.example/b.png"}]}`)
	r["PATCH /api/presentations/p1/slides/s1/active-version"] = ok(`{"status":"success"}`)
	return r
}

func TestPresentationsRequireLogin(t *testing.T) {
	e := newCmdEnv(t, presentationRoutes())

	_, err := e.run(NewPresentationsCmd(), "list")
	require.Error(t, err)
	assert.True(t, output.IsCode(err, output.CodeAuth))
	assert.Equal(t, 0, e.count("GET", "/api/presentations"))
}

func TestPresentationsRejectedTokenIsCleared(t *testing.T) {
	routes := presentationRoutes()
	routes["GET /api/auth/me"] = reply{status: 401, body: `{"detail":"Token expired"}`}
	e := newCmdEnv(t, routes)
	e.login(auth.User, "stale")

	_, err := e.run(NewPresentationsCmd(), "list")
	require.Error(t, err)
	assert.True(t, output.IsCode(err, output.CodeAuth))
	assert.Equal(t, "Bearer stale", e.lastCall().auth)
	assert.Empty(t, e.app.Tokens.Get(context.Background(), auth.User))
	assert.Equal(t, 0, e.count("GET", "/api/presentations"))
}

func TestPresentationsList(t *testing.T) {
	e := newCmdEnv(t, presentationRoutes())
	e.login(auth.User, "tok")

	env, err := e.run(NewPresentationsCmd(), "list")
	require.NoError(t, err)
	assert.Equal(t, "2 presentations", env["summary"])
	assert.Len(t, env["data"], 2)
}

func TestPresentationsCreateJoinsTopic(t *testing.T) {
	e := newCmdEnv(t, presentationRoutes())
	e.login(auth.User, "tok")

	env, err := e.run(NewPresentationsCmd(), "create", "Go", "tips")
	require.NoError(t, err)
	assert.Equal(t, "Created presentation p3", env["summary"])
	assert.JSONEq(t, `{"topic":"Go tips"}`, e.lastCall().body)
}

func TestPresentationsShow(t *testing.T) {
	e := newCmdEnv(t, presentationRoutes())
	e.login(auth.User, "tok")

	env, err := e.run(NewPresentationsCmd(), "show", "p1")
	require.NoError(t, err)
	assert.Equal(t, "Deck (2 slides)", env["summary"])

	meta := env["meta"].(map[string]any)
	assert.Equal(t, true, meta["published"])

	rows := env["data"].([]any)
	require.Len(t, rows, 2)
	first := rows[0].(map[string]any)
	assert.Equal(t, "v1", first["active_version_id"])
	assert.Equal(t, e.app.Config.BaseURL+"/static/a.png", first["image_url"])
	second := rows[1].(map[string]any)
	assert.NotContains(t, second, "active_version_id")
}

func TestPresentationsPurgeNeedsForce(t *testing.T) {
	e := newCmdEnv(t, presentationRoutes())
	e.login(auth.User, "tok")

	_, err := e.run(NewPresentationsCmd(), "purge", "p1")
	require.Error(t, err)
	assert.True(t, output.IsCode(err, output.CodeUsage))
	assert.Equal(t, 0, e.count("DELETE", "/api/presentations/p1/permanent"))

	_, err = e.run(NewPresentationsCmd(), "purge", "p1", "--force")
	require.NoError(t, err)
	assert.Equal(t, 1, e.count("DELETE", "/api/presentations/p1/permanent"))
}

func TestPresentationsEmptyTrash(t *testing.T) {
	e := newCmdEnv(t, presentationRoutes())
	e.login(auth.User, "tok")

	env, err := e.run(NewPresentationsCmd(), "empty-trash", "-f")
	require.NoError(t, err)
	assert.Equal(t, "Permanently deleted 3 presentations", env["summary"])
}

func TestPresentationsProgress(t *testing.T) {
	e := newCmdEnv(t, presentationRoutes())
	e.login(auth.User, "tok")

	env, err := e.run(NewPresentationsCmd(), "progress", "p1")
	require.NoError(t, err)
	assert.Equal(t, "generating: 2/5 slides (40%)", env["summary"])
}

func TestPresentationsUserSessionIsShared(t *testing.T) {
	e := newCmdEnv(t, presentationRoutes())
	e.login(auth.User, "tok")

	for range 3 {
		_, err := e.run(NewPresentationsCmd(), "list")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, e.count("GET", "/api/auth/me"))
	assert.Equal(t, 3, e.count("GET", "/api/presentations"))
}

func TestSlidesVersionsResolveImageURLs(t *testing.T) {
	e := newCmdEnv(t, presentationRoutes())
	e.login(auth.User, "tok")

	env, err := e.run(NewSlidesCmd(), "versions", "p1", "s1")
	require.NoError(t, err)
	rows := env["data"].([]any)
	require.Len(t, rows, 2)
	assert.Equal(t, e.app.Config.BaseURL+"/static/a.png", rows[0].(map[string]any)["image_url"])
	assert.Equal(t, "https://cdn.example/b.png", rows[1].(map[string]any)["image_url"])
}

func TestSlidesActivate(t *testing.T) {
	e := newCmdEnv(t, presentationRoutes())
	e.login(auth.User, "tok")

	_, err := e.run(NewSlidesCmd(), "activate", "p1", "s1", "v2")
	require.NoError(t, err)
	c := e.lastCall()
	assert.Equal(t, "PATCH", c.method)
	assert.JSONEq(t, `{"version_id":"v2"}`, c.body)
}

func TestSlidesArgsRequired(t *testing.T) {
	e := newCmdEnv(t, presentationRoutes())

	_, err := e.run(NewSlidesCmd(), "activate", "p1")
	assert.Error(t, err)
}
