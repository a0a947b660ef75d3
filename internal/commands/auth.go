// Package commands implements the CLI commands.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/slidecraft/slides-cli/internal/api"
	"github.com/slidecraft/slides-cli/internal/appctx"
	"github.com/slidecraft/slides-cli/internal/auth"
	"github.com/slidecraft/slides-cli/internal/models"
	"github.com/slidecraft/slides-cli/internal/output"
	"github.com/slidecraft/slides-cli/internal/session"
)

// NewAuthCmd creates the auth command group.
func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage authentication",
		Long:  "Log in, register with an invite code, log out, and inspect the current session.",
	}

	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthRegisterCmd(),
		newAuthLogoutCmd(),
		newAuthWhoamiCmd(),
		newAuthStatusCmd(),
	)

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in",
		Long:  "Log in with a username and password. Prompts for missing values on a terminal.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := connectedApp(cmd)
			if err != nil {
				return err
			}

			username, password, err = credentials(app, "Log in", username, password)
			if err != nil {
				return err
			}

			resp, err := app.Client.Login(cmd.Context(), api.LoginRequest{
				Username: username,
				Password: password,
			})
			if err != nil {
				return err
			}
			return finishUserLogin(cmd, app, resp, "Logged in")
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVar(&password, "password", "", "Password")

	return cmd
}

func newAuthRegisterCmd() *cobra.Command {
	var inviteCode, username, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long:  "Create an account with an invite code and log in to it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := connectedApp(cmd)
			if err != nil {
				return err
			}

			if inviteCode == "" {
				return output.ErrUsageHint("Invite code required", "Pass --invite-code")
			}
			username, password, err = credentials(app, "Register", username, password)
			if err != nil {
				return err
			}

			resp, err := app.Client.Register(cmd.Context(), api.RegisterRequest{
				InviteCode: inviteCode,
				Username:   username,
				Password:   password,
			})
			if err != nil {
				return err
			}
			return finishUserLogin(cmd, app, resp, "Registered")
		},
	}

	cmd.Flags().StringVar(&inviteCode, "invite-code", "", "Invite code")
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVar(&password, "password", "", "Password")

	return cmd
}

// finishUserLogin stores the new token and drops any cached session of a
// previous login.
func finishUserLogin(cmd *cobra.Command, app *appctx.App, resp *models.AuthResponse, verb string) error {
	if resp.AccessToken == "" {
		return output.ErrAPI(0, "Login response did not include a token")
	}
	ctx := cmd.Context()
	if err := app.Tokens.Set(ctx, auth.User, resp.AccessToken); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	if err := app.Session.Invalidate(ctx, session.UserLine); err != nil {
		app.Logger.Debug("clearing cached user failed", "error", err)
	}

	summary := verb
	if resp.User != nil {
		summary = fmt.Sprintf("%s as %s (%s)", verb, resp.User.Username, plural(resp.User.Scores, "point"))
	}
	return app.OK(resp.User,
		output.WithSummary(summary),
		output.WithBreadcrumbs(
			output.Breadcrumb{Cmd: "slides presentations list", Description: "List presentations"},
			output.Breadcrumb{Cmd: "slides presentations create <topic>", Description: "Create a presentation"},
		),
	)
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored token",
		Long:  "Remove the stored user token and its cached session.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := connectedApp(cmd)
			if err != nil {
				return err
			}

			if err := app.Tokens.Remove(cmd.Context(), auth.User); err != nil {
				return err
			}

			summary := "Successfully logged out"
			if os.Getenv(auth.User.EnvVar()) != "" {
				summary += fmt.Sprintf(" (%s is still set)", auth.User.EnvVar())
			}
			return app.OK(map[string]string{
				"status": "logged_out",
			}, output.WithSummary(summary))
		},
	}
}

func newAuthWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "whoami",
		Aliases: []string{"me"},
		Short:   "Show the current user",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			user, err := app.RequireUser(cmd.Context())
			if err != nil {
				return err
			}

			return app.OK(user,
				output.WithSummary(fmt.Sprintf("%s (%s)", user.Username, plural(user.Scores, "point"))),
				output.WithBreadcrumbs(
					output.Breadcrumb{Cmd: "slides user score-logs", Description: "Show point history"},
					output.Breadcrumb{Cmd: "slides user redeem <code>", Description: "Redeem a code"},
				),
			)
		},
	}
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		Long:  "Show whether the stored user and admin tokens are valid.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := connectedApp(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			status := map[string]any{
				"base_url": app.Config.BaseURL,
				"keyring":  app.Stores.UsingKeyring(),
			}

			user, err := app.Session.CheckSession(ctx)
			if err != nil {
				return err
			}
			status["authenticated"] = app.Session.LoggedIn()
			status["token_source"] = tokenSource(app, cmd, auth.User)
			if user != nil {
				status["username"] = user.Username
				status["scores"] = user.Scores
			}

			if app.Tokens.Get(ctx, auth.Admin) != "" {
				status["admin_token_source"] = tokenSource(app, cmd, auth.Admin)
				admin, err := app.Session.CheckAdminSession(ctx)
				status["admin_authenticated"] = err == nil
				if admin != nil {
					status["admin_username"] = admin.Username
				}
			}

			summary := "Not authenticated"
			if user != nil {
				summary = "Authenticated as " + user.Username
			}
			return app.OK(status, output.WithSummary(summary))
		},
	}
}

// tokenSource reports where a principal's token comes from.
func tokenSource(app *appctx.App, cmd *cobra.Command, p auth.Principal) string {
	switch {
	case os.Getenv(p.EnvVar()) != "":
		return p.EnvVar()
	case app.Tokens.Get(cmd.Context(), p) == "":
		return "none"
	case app.Stores.UsingKeyring():
		return "keyring"
	default:
		return "file"
	}
}
