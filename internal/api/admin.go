package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/slidecraft/slides-cli/internal/models"
)

// AdminListUsers pages through all users.
func (c *Client) AdminListUsers(ctx context.Context, skip, limit int) (*models.Page[models.User], error) {
	v, err := decode[struct {
		Users []models.User `json:"users"`
		Total int           `json:"total"`
	}](ctx, c, http.MethodGet, withQuery("/admin/users", pageQuery(skip, limit)), nil)
	if err != nil {
		return nil, err
	}
	return &models.Page[models.User]{Items: v.Users, Total: v.Total}, nil
}

// AdminCreateUser creates an account without an invite code.
func (c *Client) AdminCreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	return decode[models.User](ctx, c, http.MethodPost, "/admin/users", req)
}

// AdminGetConfig returns the score settings.
func (c *Client) AdminGetConfig(ctx context.Context) (*models.AdminConfig, error) {
	return decode[models.AdminConfig](ctx, c, http.MethodGet, "/admin/config", nil)
}

// AdminUpdateConfig changes the score settings.
func (c *Client) AdminUpdateConfig(ctx context.Context, req ConfigUpdateRequest) error {
	_, err := c.Patch(ctx, "/admin/config", req)
	return err
}

// AdminCreateInviteCodes generates count invite codes.
func (c *Client) AdminCreateInviteCodes(ctx context.Context, count int) (*models.CreatedCodes, error) {
	return decode[models.CreatedCodes](ctx, c, http.MethodPost, "/admin/invite-codes", InviteCodesRequest{Count: count})
}

// AdminListInviteCodes lists invite codes. used filters when non-nil.
func (c *Client) AdminListInviteCodes(ctx context.Context, used *bool, skip, limit int) (*models.Page[models.InviteCode], error) {
	v, err := decode[struct {
		InviteCodes []models.InviteCode `json:"invite_codes"`
		Total       int                 `json:"total"`
	}](ctx, c, http.MethodGet, withQuery("/admin/invite-codes", usedQuery(used, skip, limit)), nil)
	if err != nil {
		return nil, err
	}
	return &models.Page[models.InviteCode]{Items: v.InviteCodes, Total: v.Total}, nil
}

// AdminDeleteInviteCode deletes an unused invite code.
func (c *Client) AdminDeleteInviteCode(ctx context.Context, id string) error {
	if err := requireID("Invite code", id); err != nil {
		return err
	}
	_, err := c.Delete(ctx, "/admin/invite-codes/"+url.PathEscape(id))
	return err
}

// AdminCreateRedemptionCodes generates count codes worth scores each.
func (c *Client) AdminCreateRedemptionCodes(ctx context.Context, scores, count int) (*models.CreatedCodes, error) {
	return decode[models.CreatedCodes](ctx, c, http.MethodPost, "/admin/redemption-codes",
		RedemptionCodesRequest{Scores: scores, Count: count})
}

// AdminListRedemptionCodes lists redemption codes. used filters when non-nil.
func (c *Client) AdminListRedemptionCodes(ctx context.Context, used *bool, skip, limit int) (*models.Page[models.RedemptionCode], error) {
	v, err := decode[struct {
		RedemptionCodes []models.RedemptionCode `json:"redemption_codes"`
		Total           int                     `json:"total"`
	}](ctx, c, http.MethodGet, withQuery("/admin/redemption-codes", usedQuery(used, skip, limit)), nil)
	if err != nil {
		return nil, err
	}
	return &models.Page[models.RedemptionCode]{Items: v.RedemptionCodes, Total: v.Total}, nil
}

// AdminDeleteRedemptionCode deletes an unused redemption code.
func (c *Client) AdminDeleteRedemptionCode(ctx context.Context, id string) error {
	if err := requireID("Redemption code", id); err != nil {
		return err
	}
	_, err := c.Delete(ctx, "/admin/redemption-codes/"+url.PathEscape(id))
	return err
}

// AdminScoreLogs pages through score changes for all users, or one user.
func (c *Client) AdminScoreLogs(ctx context.Context, userID string, skip, limit int) (*models.Page[models.ScoreLog], error) {
	q := pageQuery(skip, limit)
	if userID != "" {
		q.Set("user_id", userID)
	}
	v, err := decode[struct {
		ScoreLogs []models.ScoreLog `json:"score_logs"`
		Total     int               `json:"total"`
	}](ctx, c, http.MethodGet, withQuery("/admin/score-logs", q), nil)
	if err != nil {
		return nil, err
	}
	return &models.Page[models.ScoreLog]{Items: v.ScoreLogs, Total: v.Total}, nil
}

func usedQuery(used *bool, skip, limit int) url.Values {
	q := pageQuery(skip, limit)
	if used != nil {
		q.Set("used", strconv.FormatBool(*used))
	}
	return q
}
