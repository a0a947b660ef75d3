package commands

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/slidecraft/slides-cli/internal/auth"
	"github.com/slidecraft/slides-cli/internal/output"
	"github.com/slidecraft/slides-cli/internal/session"
)

// NewSessionCmd creates the session command group.
func NewSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and clear cached sessions",
		Long: `The user, admin and system lookups are cached in the session store.
User and admin entries live for 3 seconds, system info for 30 seconds.`,
	}

	cmd.AddCommand(
		newSessionShowCmd(),
		newSessionClearCmd(),
		newSessionIDCmd(),
	)

	return cmd
}

var sessionLines = []string{session.UserLine, session.AdminLine, session.SystemLine}

func newSessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the cached session entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := connectedApp(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			rows := make([]map[string]any, 0, len(sessionLines))
			for _, name := range sessionLines {
				line := app.Session.Line(name)
				row := map[string]any{
					"line": name,
					"key":  line.Key(),
					"ttl":  line.TTL().String(),
				}
				expires, ok, err := line.Expiry(ctx)
				if err != nil {
					return err
				}
				row["cached"] = ok
				if ok {
					row["expires_in"] = time.Until(expires).Round(time.Millisecond).String()
				}
				rows = append(rows, row)
			}
			return app.OK(rows, output.WithSummary("Session cache"))
		},
	}
}

func newSessionClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "clear [line...]",
		Short:     "Drop cached session entries",
		Long:      "Drop cached entries for the given lines (user, admin, system), or all of them.",
		ValidArgs: sessionLines,
		Args:      cobra.OnlyValidArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := connectedApp(cmd)
			if err != nil {
				return err
			}
			lines := args
			if len(lines) == 0 {
				lines = sessionLines
			}

			var errs []error
			for _, name := range lines {
				errs = append(errs, app.Session.Invalidate(cmd.Context(), name))
			}
			if err := errors.Join(errs...); err != nil {
				return err
			}
			return app.OK(lines, output.WithSummary("Cleared "+plural(len(lines), "session line")))
		},
	}
}

func newSessionIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "id",
		Short: "Generate a random session ID",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}
			id := auth.NewSessionID()
			return app.OK(map[string]string{"id": id}, output.WithSummary(id))
		},
	}
}
