package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/slidecraft/slides-cli/internal/models"
)

// Login exchanges credentials for a user token.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*models.AuthResponse, error) {
	return decode[models.AuthResponse](ctx, c, http.MethodPost, "/auth/login", req)
}

// Register creates an account with an invite code and returns its token.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*models.AuthResponse, error) {
	return decode[models.AuthResponse](ctx, c, http.MethodPost, "/auth/register", req)
}

// AuthMe returns the current user payload.
func (c *Client) AuthMe(ctx context.Context) (json.RawMessage, error) {
	return c.raw(ctx, "/auth/me")
}

// AdminLogin exchanges credentials for an admin token.
func (c *Client) AdminLogin(ctx context.Context, req LoginRequest) (*models.AdminAuthResponse, error) {
	return decode[models.AdminAuthResponse](ctx, c, http.MethodPost, "/admin/auth/login", req)
}

// AdminMe returns the current admin payload.
func (c *Client) AdminMe(ctx context.Context) (json.RawMessage, error) {
	return c.raw(ctx, "/admin/me")
}

// SystemConfig returns the public system configuration, unwrapped from its
// "data" envelope.
func (c *Client) SystemConfig(ctx context.Context) (json.RawMessage, error) {
	raw, err := c.raw(ctx, withQuery("/config/get", url.Values{"name": {"system"}}))
	if err != nil {
		return nil, err
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	if len(env.Data) == 0 {
		return json.RawMessage(`{}`), nil
	}
	return env.Data, nil
}

// Health reports the server status.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	v, err := decode[map[string]any](ctx, c, http.MethodGet, "/", nil)
	if err != nil {
		return nil, err
	}
	return *v, nil
}
