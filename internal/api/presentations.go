package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/slidecraft/slides-cli/internal/models"
	"github.com/slidecraft/slides-cli/internal/output"
)

func presentationPath(id string, rest ...string) string {
	p := "/presentations/" + url.PathEscape(id)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

func slidePath(presentationID, slideID string, rest ...string) string {
	p := presentationPath(presentationID, "slides", url.PathEscape(slideID))
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

func requireID(kind, id string) error {
	if id == "" {
		return output.ErrUsage(kind + " ID is required")
	}
	return nil
}

// ListPresentations lists the current user's presentations, newest first.
func (c *Client) ListPresentations(ctx context.Context) ([]models.Presentation, error) {
	v, err := decode[[]models.Presentation](ctx, c, http.MethodGet, "/presentations", nil)
	if err != nil {
		return nil, err
	}
	return *v, nil
}

// CreatePresentation starts a presentation on a topic.
func (c *Client) CreatePresentation(ctx context.Context, topic string) (*models.CreatedPresentation, error) {
	return decode[models.CreatedPresentation](ctx, c, http.MethodPost, "/presentations",
		CreatePresentationRequest{Topic: topic})
}

// GetPresentation returns a presentation with its slides normalized.
func (c *Client) GetPresentation(ctx context.Context, id string) (*models.Presentation, error) {
	if err := requireID("Presentation", id); err != nil {
		return nil, err
	}
	p, err := decode[models.Presentation](ctx, c, http.MethodGet, presentationPath(id), nil)
	if err != nil {
		return nil, err
	}
	models.NormalizeSlides(p)
	return p, nil
}

// RenamePresentation sets a presentation's title.
func (c *Client) RenamePresentation(ctx context.Context, id, title string) error {
	if err := requireID("Presentation", id); err != nil {
		return err
	}
	_, err := c.Patch(ctx, presentationPath(id), RenamePresentationRequest{Title: title})
	return err
}

// DeletePresentation moves a presentation to the recycle bin.
func (c *Client) DeletePresentation(ctx context.Context, id string) error {
	if err := requireID("Presentation", id); err != nil {
		return err
	}
	_, err := c.Delete(ctx, presentationPath(id))
	return err
}

// RestorePresentation takes a presentation out of the recycle bin.
func (c *Client) RestorePresentation(ctx context.Context, id string) error {
	if err := requireID("Presentation", id); err != nil {
		return err
	}
	_, err := c.Post(ctx, presentationPath(id, "restore"), emptyBody{})
	return err
}

// PurgePresentation permanently deletes a presentation in the recycle bin.
func (c *Client) PurgePresentation(ctx context.Context, id string) error {
	if err := requireID("Presentation", id); err != nil {
		return err
	}
	_, err := c.Delete(ctx, presentationPath(id, "permanent"))
	return err
}

// ListDeletedPresentations lists the recycle bin.
func (c *Client) ListDeletedPresentations(ctx context.Context) ([]models.Presentation, error) {
	v, err := decode[struct {
		Presentations []models.Presentation `json:"presentations"`
	}](ctx, c, http.MethodGet, "/presentations/deleted", nil)
	if err != nil {
		return nil, err
	}
	return v.Presentations, nil
}

// ClearRecycleBin permanently deletes everything in the recycle bin.
func (c *Client) ClearRecycleBin(ctx context.Context) (*models.ClearResult, error) {
	return decode[models.ClearResult](ctx, c, http.MethodDelete, "/presentations/deleted", nil)
}

// PublishPresentation toggles a presentation's published state.
func (c *Client) PublishPresentation(ctx context.Context, id string) (*models.PublishResult, error) {
	if err := requireID("Presentation", id); err != nil {
		return nil, err
	}
	return decode[models.PublishResult](ctx, c, http.MethodPost, presentationPath(id, "publish"), emptyBody{})
}

// GenerationProgress reports slide generation for a presentation.
func (c *Client) GenerationProgress(ctx context.Context, id string) (*models.GenerationProgress, error) {
	if err := requireID("Presentation", id); err != nil {
		return nil, err
	}
	return decode[models.GenerationProgress](ctx, c, http.MethodGet, presentationPath(id, "generation-progress"), nil)
}

// ListVersions lists a slide's versions, oldest first.
func (c *Client) ListVersions(ctx context.Context, presentationID, slideID string) ([]models.Version, error) {
	if err := requireID("Slide", slideID); err != nil {
		return nil, err
	}
	v, err := decode[struct {
		Versions []models.Version `json:"versions"`
	}](ctx, c, http.MethodGet, slidePath(presentationID, slideID, "versions"), nil)
	if err != nil {
		return nil, err
	}
	return v.Versions, nil
}

// SetActiveVersion selects which version a slide shows.
func (c *Client) SetActiveVersion(ctx context.Context, presentationID, slideID, versionID string) error {
	if err := requireID("Slide", slideID); err != nil {
		return err
	}
	_, err := c.Patch(ctx, slidePath(presentationID, slideID, "active-version"),
		SetActiveVersionRequest{VersionID: versionID})
	return err
}

// DeleteVersion deletes a slide version. The last version cannot be deleted.
func (c *Client) DeleteVersion(ctx context.Context, presentationID, slideID, versionID string) error {
	if err := requireID("Version", versionID); err != nil {
		return err
	}
	_, err := c.Delete(ctx, slidePath(presentationID, slideID, "versions", url.PathEscape(versionID)))
	return err
}

// DeleteSlide soft-deletes a slide.
func (c *Client) DeleteSlide(ctx context.Context, presentationID, slideID string) error {
	if err := requireID("Slide", slideID); err != nil {
		return err
	}
	_, err := c.Delete(ctx, slidePath(presentationID, slideID))
	return err
}

// RestoreSlide restores a soft-deleted slide.
func (c *Client) RestoreSlide(ctx context.Context, presentationID, slideID string) error {
	if err := requireID("Slide", slideID); err != nil {
		return err
	}
	_, err := c.Post(ctx, slidePath(presentationID, slideID, "restore"), emptyBody{})
	return err
}

// ListDeletedSlides lists a presentation's soft-deleted slides.
func (c *Client) ListDeletedSlides(ctx context.Context, presentationID string) ([]models.Slide, error) {
	if err := requireID("Presentation", presentationID); err != nil {
		return nil, err
	}
	v, err := decode[models.Presentation](ctx, c, http.MethodGet, presentationPath(presentationID, "slides", "deleted"), nil)
	if err != nil {
		return nil, err
	}
	return models.NormalizeSlides(v), nil
}
