// Package models provides type definitions for the presentation service API.
// Timestamps are unix seconds as sent by the backend.
package models

import "strings"

// User is the authenticated end user.
type User struct {
	ID             string  `json:"id"`
	Username       string  `json:"username"`
	Scores         int     `json:"scores"`
	ScoresPerSlide int     `json:"scores_per_slide,omitempty"`
	CreatedAt      float64 `json:"created_at,omitempty"`
}

// Admin is the authenticated administrator.
type Admin struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// SystemConfig is the public system configuration. Its keys are defined by
// the server and passed through as-is.
type SystemConfig map[string]any

// AuthResponse is returned by user login and registration.
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	User        *User  `json:"user"`
}

// AdminAuthResponse is returned by admin login.
type AdminAuthResponse struct {
	AccessToken string `json:"access_token"`
	Admin       *Admin `json:"admin"`
}

// Presentation is a deck in list and detail views. Slides is only set on detail.
type Presentation struct {
	ID                string  `json:"id"`
	Title             string  `json:"title"`
	Topic             string  `json:"topic,omitempty"`
	UserID            string  `json:"user_id,omitempty"`
	GenerationStatus  string  `json:"generation_status,omitempty"`
	GenerationCurrent int     `json:"generation_current,omitempty"`
	GenerationTotal   int     `json:"generation_total,omitempty"`
	IsPublished       int     `json:"is_published,omitempty"`
	PreviewImage      string  `json:"preview_image,omitempty"`
	GlobalStyle       string  `json:"global_style,omitempty"`
	Params            string  `json:"params,omitempty"`
	CreatedAt         float64 `json:"created_at,omitempty"`
	UpdatedAt         float64 `json:"updated_at,omitempty"`
	DeletedAt         float64 `json:"deleted_at,omitempty"`
	Slides            []Slide `json:"slides,omitempty"`
}

// Slide is one page of a presentation with its generated versions.
type Slide struct {
	SlideID         string    `json:"slide_id"`
	Position        int       `json:"position"`
	ActiveVersionID string    `json:"active_version_id,omitempty"`
	Versions        []Version `json:"versions"`
}

// Version is one generated image of a slide.
type Version struct {
	ID            string  `json:"id"`
	ImageURL      string  `json:"image_url"`
	Prompt        string  `json:"prompt"`
	BaseImageURL  string  `json:"base_image_url,omitempty"`
	VersionNumber int     `json:"version_number"`
	Timestamp     float64 `json:"timestamp,omitempty"`
}

// ActiveVersion returns the slide's active version, falling back to the
// newest one. It returns nil when the slide has no versions.
func (s *Slide) ActiveVersion() *Version {
	if len(s.Versions) == 0 {
		return nil
	}
	for i := range s.Versions {
		if s.Versions[i].ID == s.ActiveVersionID {
			return &s.Versions[i]
		}
	}
	return &s.Versions[len(s.Versions)-1]
}

// NormalizeSlides fills in each slide's active version id from its versions
// when the server left it empty.
func NormalizeSlides(p *Presentation) []Slide {
	if p == nil {
		return nil
	}
	for i := range p.Slides {
		s := &p.Slides[i]
		if s.ActiveVersionID == "" && len(s.Versions) > 0 {
			s.ActiveVersionID = s.Versions[len(s.Versions)-1].ID
		}
	}
	return p.Slides
}

// ResolveImageURL returns an absolute URL for an image path.
func ResolveImageURL(base, path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// GenerationProgress reports slide generation for a presentation.
type GenerationProgress struct {
	Status     string `json:"status"`
	Current    int    `json:"current"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
	Error      string `json:"error,omitempty"`
}

// CreatedPresentation is returned when a presentation is created.
type CreatedPresentation struct {
	ID      string `json:"id"`
	Message string `json:"message,omitempty"`
}

// PublishResult is the publish toggle outcome.
type PublishResult struct {
	Status      string `json:"status"`
	IsPublished int    `json:"is_published"`
}

// ClearResult reports how many presentations were purged from the recycle bin.
type ClearResult struct {
	Status       string `json:"status"`
	DeletedCount int    `json:"deleted_count"`
}

// StatusResult is the generic {"status": "success"} acknowledgement.
type StatusResult struct {
	Status string `json:"status"`
}

// RedeemResult is the balance after redeeming a code.
type RedeemResult struct {
	Scores int `json:"scores"`
	Added  int `json:"added"`
}

// InviteCode is a single-use registration code.
type InviteCode struct {
	ID               string   `json:"id,omitempty"`
	Code             string   `json:"code"`
	Used             bool     `json:"used"`
	UsedAt           *float64 `json:"used_at,omitempty"`
	CreatedByUserID  string   `json:"created_by_user_id,omitempty"`
	CreatedByAdminID string   `json:"created_by_admin_id,omitempty"`
	UsedByUserID     string   `json:"used_by_user_id,omitempty"`
	CreatedAt        float64  `json:"created_at,omitempty"`
}

// RedemptionCode is a single-use code that adds scores.
type RedemptionCode struct {
	ID        string   `json:"id"`
	Code      string   `json:"code"`
	Scores    int      `json:"scores"`
	UsedByID  string   `json:"used_by_id,omitempty"`
	UsedAt    *float64 `json:"used_at,omitempty"`
	CreatedAt float64  `json:"created_at,omitempty"`
}

// CreatedCodes lists codes generated in one batch.
type CreatedCodes struct {
	Codes  []string `json:"codes"`
	Scores int      `json:"scores,omitempty"`
}

// ScoreLog is one change to a user's score balance.
type ScoreLog struct {
	ID        string  `json:"id"`
	Amount    int     `json:"amount"`
	Balance   *int    `json:"balance,omitempty"`
	Prompt    string  `json:"prompt,omitempty"`
	ImagePath string  `json:"image_path,omitempty"`
	LogType   string  `json:"log_type"`
	UserID    string  `json:"user_id,omitempty"`
	Username  string  `json:"username,omitempty"`
	CreatedAt float64 `json:"created_at,omitempty"`
}

// AdminConfig holds the score settings editable by administrators.
type AdminConfig struct {
	ScoresPerSlide      int `json:"scores_per_slide"`
	RegisterBonusScores int `json:"register_bonus_scores"`
}

// Page is a paginated list with a total count.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}
