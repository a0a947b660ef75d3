package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/slidecraft/slides-cli/internal/models"
)

// Redeem adds a score code's value to the current user.
func (c *Client) Redeem(ctx context.Context, code string) (*models.RedeemResult, error) {
	return decode[models.RedeemResult](ctx, c, http.MethodPost, "/user/redeem", RedeemRequest{Code: code})
}

// CreateInviteCode generates an invite code owned by the current user.
func (c *Client) CreateInviteCode(ctx context.Context) (*models.InviteCode, error) {
	return decode[models.InviteCode](ctx, c, http.MethodPost, "/user/invite-codes", emptyBody{})
}

// ListInviteCodes lists the current user's invite codes.
func (c *Client) ListInviteCodes(ctx context.Context) ([]models.InviteCode, error) {
	v, err := decode[struct {
		InviteCodes []models.InviteCode `json:"invite_codes"`
	}](ctx, c, http.MethodGet, "/user/invite-codes", nil)
	if err != nil {
		return nil, err
	}
	return v.InviteCodes, nil
}

// ChangePassword changes the current user's password.
func (c *Client) ChangePassword(ctx context.Context, req PasswordRequest) error {
	_, err := c.Patch(ctx, "/user/me/password", req)
	return err
}

// ScoreLogs lists the current user's score changes, newest first.
func (c *Client) ScoreLogs(ctx context.Context, skip, limit int) (*models.Page[models.ScoreLog], error) {
	v, err := decode[struct {
		ScoreLogs []models.ScoreLog `json:"score_logs"`
		Total     int               `json:"total"`
	}](ctx, c, http.MethodGet, withQuery("/user/score-logs", pageQuery(skip, limit)), nil)
	if err != nil {
		return nil, err
	}
	return &models.Page[models.ScoreLog]{Items: v.ScoreLogs, Total: v.Total}, nil
}

func pageQuery(skip, limit int) url.Values {
	q := url.Values{}
	if skip > 0 {
		q.Set("skip", strconv.Itoa(skip))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
}
