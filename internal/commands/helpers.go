package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/slidecraft/slides-cli/internal/appctx"
	"github.com/slidecraft/slides-cli/internal/models"
	"github.com/slidecraft/slides-cli/internal/output"
	"github.com/slidecraft/slides-cli/internal/tui"
)

// Prompt functions, replaced in tests.
var (
	promptCredentials = tui.Credentials
	promptPassword    = tui.Password
	promptDangerous   = tui.ConfirmDangerous
)

// getApp returns the app stored in the command context.
func getApp(cmd *cobra.Command) (*appctx.App, error) {
	app := appctx.FromContext(cmd.Context())
	if app == nil {
		return nil, fmt.Errorf("app not initialized")
	}
	return app, nil
}

// connectedApp returns the app with storage and the API client ready.
func connectedApp(cmd *cobra.Command) (*appctx.App, error) {
	app, err := getApp(cmd)
	if err != nil {
		return nil, err
	}
	if err := app.Connect(cmd.Context()); err != nil {
		return nil, err
	}
	return app, nil
}

// userApp is connectedApp for commands that need a logged-in user.
func userApp(cmd *cobra.Command) (*appctx.App, error) {
	app, err := getApp(cmd)
	if err != nil {
		return nil, err
	}
	if _, err := app.RequireUser(cmd.Context()); err != nil {
		return nil, err
	}
	return app, nil
}

// adminApp is connectedApp for commands that need an admin login.
func adminApp(cmd *cobra.Command) (*appctx.App, error) {
	app, err := getApp(cmd)
	if err != nil {
		return nil, err
	}
	if _, err := app.RequireAdmin(cmd.Context()); err != nil {
		return nil, err
	}
	return app, nil
}

// credentials fills in a missing username or password by prompting on a
// terminal. Without a terminal both must be given as flags.
func credentials(app *appctx.App, title, username, password string) (string, string, error) {
	if username != "" && password != "" {
		return username, password, nil
	}
	if !app.IsInteractive() {
		return "", "", output.ErrUsageHint("Username and password are required",
			"Pass --username and --password")
	}
	return promptCredentials(title, username, password)
}

// secret returns value, or prompts for it on a terminal.
func secret(app *appctx.App, value, title, flag string) (string, error) {
	if value != "" {
		return value, nil
	}
	if !app.IsInteractive() {
		return "", output.ErrUsage(fmt.Sprintf("--%s is required", flag))
	}
	return promptPassword(title)
}

// confirmDestructive asks before an irreversible action unless --force is set.
func confirmDestructive(app *appctx.App, force bool, message string) error {
	if force {
		return nil
	}
	if !app.IsInteractive() {
		return output.ErrUsageHint(message, "Pass --force to confirm")
	}
	ok, err := promptDangerous(message)
	if err != nil {
		return err
	}
	if !ok {
		return output.ErrUsage("Canceled")
	}
	return nil
}

// pageFlags registers --skip and --limit.
func pageFlags(cmd *cobra.Command, skip, limit *int) {
	cmd.Flags().IntVar(skip, "skip", 0, "Number of items to skip")
	cmd.Flags().IntVar(limit, "limit", 20, "Maximum number of items")
}

// parseUsed converts a --used flag value to a filter. Empty means no filter.
func parseUsed(value string) (*bool, error) {
	if value == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return nil, output.ErrUsage("--used must be true or false")
	}
	return &b, nil
}

// pageSummary describes a page of results.
func pageSummary(noun string, shown, skip, total int) string {
	if shown == 0 {
		return "No " + strings.ToLower(noun)
	}
	return fmt.Sprintf("%s %d-%d of %d", noun, skip+1, skip+shown, total)
}

// slideRows flattens slides for table output.
func slideRows(app *appctx.App, slides []models.Slide) []map[string]any {
	rows := make([]map[string]any, 0, len(slides))
	for i := range slides {
		s := &slides[i]
		row := map[string]any{
			"slide_id": s.SlideID,
			"position": s.Position,
			"versions": len(s.Versions),
		}
		if v := s.ActiveVersion(); v != nil {
			row["active_version_id"] = v.ID
			row["image_url"] = models.ResolveImageURL(app.Config.BaseURL, v.ImageURL)
		}
		rows = append(rows, row)
	}
	return rows
}

// plural returns n and noun, pluralized with "s".
func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
