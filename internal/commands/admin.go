package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slidecraft/slides-cli/internal/api"
	"github.com/slidecraft/slides-cli/internal/auth"
	"github.com/slidecraft/slides-cli/internal/output"
	"github.com/slidecraft/slides-cli/internal/session"
)

// NewAdminCmd creates the admin command group.
func NewAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administer the service",
		Long: `Administer users, score settings, invite codes and redemption codes.

Every admin command except login and logout checks the admin session first.`,
	}

	cmd.AddCommand(
		newAdminLoginCmd(),
		newAdminLogoutCmd(),
		newAdminWhoamiCmd(),
		newAdminUsersCmd(),
		newAdminConfigCmd(),
		newAdminInviteCodesCmd(),
		newAdminRedemptionCodesCmd(),
		newAdminScoreLogsCmd(),
	)

	return cmd
}

func newAdminLoginCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in as an administrator",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := connectedApp(cmd)
			if err != nil {
				return err
			}

			username, password, err = credentials(app, "Admin login", username, password)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			resp, err := app.Client.AdminLogin(ctx, api.LoginRequest{
				Username: username,
				Password: password,
			})
			if err != nil {
				return err
			}
			if resp.AccessToken == "" {
				return output.ErrAPI(0, "Login response did not include a token")
			}

			if err := app.Tokens.Set(ctx, auth.Admin, auth.Bearer(resp.AccessToken)); err != nil {
				return fmt.Errorf("saving admin token: %w", err)
			}
			if err := app.Session.Invalidate(ctx, session.AdminLine); err != nil {
				app.Logger.Debug("clearing cached admin failed", "error", err)
			}

			summary := "Logged in as administrator"
			if resp.Admin != nil {
				summary += " " + resp.Admin.Username
			}
			return app.OK(resp.Admin,
				output.WithSummary(summary),
				output.WithBreadcrumbs(
					output.Breadcrumb{Cmd: "slides admin users list", Description: "List users"},
					output.Breadcrumb{Cmd: "slides admin config show", Description: "Show score settings"},
				),
			)
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Admin username")
	cmd.Flags().StringVar(&password, "password", "", "Admin password")

	return cmd
}

func newAdminLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored admin token",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := connectedApp(cmd)
			if err != nil {
				return err
			}
			if err := app.Tokens.Remove(cmd.Context(), auth.Admin); err != nil {
				return err
			}
			return app.OK(map[string]string{"status": "logged_out"},
				output.WithSummary("Administrator logged out"))
		},
	}
}

func newAdminWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current administrator",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}
			admin, err := app.RequireAdmin(cmd.Context())
			if err != nil {
				return err
			}
			return app.OK(admin, output.WithSummary("Administrator "+admin.Username))
		},
	}
}

func newAdminUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage users",
	}
	cmd.AddCommand(newAdminUsersListCmd(), newAdminUsersCreateCmd())
	return cmd
}

func newAdminUsersListCmd() *cobra.Command {
	var skip, limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := adminApp(cmd)
			if err != nil {
				return err
			}
			page, err := app.Client.AdminListUsers(cmd.Context(), skip, limit)
			if err != nil {
				return err
			}
			return app.OK(page.Items,
				output.WithSummary(pageSummary("Users", len(page.Items), skip, page.Total)),
				output.WithMeta("total", page.Total),
			)
		},
	}
	pageFlags(cmd, &skip, &limit)
	return cmd
}

func newAdminUsersCreateCmd() *cobra.Command {
	var username, password string
	var scores int

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user without an invite code",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := adminApp(cmd)
			if err != nil {
				return err
			}
			username, password, err = credentials(app, "New user", username, password)
			if err != nil {
				return err
			}
			user, err := app.Client.AdminCreateUser(cmd.Context(), api.CreateUserRequest{
				Username:      username,
				Password:      password,
				InitialScores: scores,
			})
			if err != nil {
				return err
			}
			return app.OK(user, output.WithSummary(fmt.Sprintf("Created user %s with %s", user.Username, plural(user.Scores, "point"))))
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	cmd.Flags().IntVar(&scores, "scores", 0, "Initial points")

	return cmd
}

func newAdminConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage score settings",
	}
	cmd.AddCommand(newAdminConfigShowCmd(), newAdminConfigSetCmd())
	return cmd
}

func newAdminConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show score settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := adminApp(cmd)
			if err != nil {
				return err
			}
			cfg, err := app.Client.AdminGetConfig(cmd.Context())
			if err != nil {
				return err
			}
			return app.OK(cfg,
				output.WithSummary(fmt.Sprintf("%s per slide, %s on registration",
					plural(cfg.ScoresPerSlide, "point"), plural(cfg.RegisterBonusScores, "point"))),
				output.WithBreadcrumbs(output.Breadcrumb{
					Cmd:         "slides admin config set --scores-per-slide <n>",
					Description: "Change slide cost",
				}),
			)
		},
	}
}

func newAdminConfigSetCmd() *cobra.Command {
	var perSlide, bonus int

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change score settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			var req api.ConfigUpdateRequest
			if cmd.Flags().Changed("scores-per-slide") {
				req.ScoresPerSlide = &perSlide
			}
			if cmd.Flags().Changed("register-bonus") {
				req.RegisterBonusScores = &bonus
			}
			if req.ScoresPerSlide == nil && req.RegisterBonusScores == nil {
				return output.ErrUsage("Nothing to change: pass --scores-per-slide or --register-bonus")
			}

			app, err := adminApp(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := app.Client.AdminUpdateConfig(ctx, req); err != nil {
				return err
			}
			cfg, err := app.Client.AdminGetConfig(ctx)
			if err != nil {
				return err
			}
			return app.OK(cfg, output.WithSummary("Score settings updated"))
		},
	}

	cmd.Flags().IntVar(&perSlide, "scores-per-slide", 0, "Points charged per generated slide")
	cmd.Flags().IntVar(&bonus, "register-bonus", 0, "Points granted on registration")

	return cmd
}

func newAdminInviteCodesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "invite-codes",
		Aliases: []string{"invites"},
		Short:   "Manage invite codes",
	}
	cmd.AddCommand(
		newAdminInviteCodesListCmd(),
		newAdminInviteCodesCreateCmd(),
		newAdminInviteCodesDeleteCmd(),
	)
	return cmd
}

func newAdminInviteCodesListCmd() *cobra.Command {
	var skip, limit int
	var used string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List invite codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseUsed(used)
			if err != nil {
				return err
			}
			app, err := adminApp(cmd)
			if err != nil {
				return err
			}
			page, err := app.Client.AdminListInviteCodes(cmd.Context(), filter, skip, limit)
			if err != nil {
				return err
			}
			return app.OK(page.Items,
				output.WithSummary(pageSummary("Invite codes", len(page.Items), skip, page.Total)),
				output.WithMeta("total", page.Total),
			)
		},
	}
	pageFlags(cmd, &skip, &limit)
	cmd.Flags().StringVar(&used, "used", "", "Filter by used state (true or false)")
	return cmd
}

func newAdminInviteCodesCreateCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Generate invite codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := adminApp(cmd)
			if err != nil {
				return err
			}
			created, err := app.Client.AdminCreateInviteCodes(cmd.Context(), count)
			if err != nil {
				return err
			}
			return app.OK(created.Codes,
				output.WithSummary(fmt.Sprintf("Generated %s", plural(len(created.Codes), "invite code"))))
		},
	}
	cmd.Flags().IntVarP(&count, "number", "n", 1, "Number of codes (1-100)")
	return cmd
}

func newAdminInviteCodesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an unused invite code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := adminApp(cmd)
			if err != nil {
				return err
			}
			if err := app.Client.AdminDeleteInviteCode(cmd.Context(), args[0]); err != nil {
				return err
			}
			return app.OK(map[string]string{"id": args[0], "status": "deleted"},
				output.WithSummary("Deleted invite code "+args[0]))
		},
	}
}

func newAdminRedemptionCodesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "redemption-codes",
		Aliases: []string{"codes"},
		Short:   "Manage point redemption codes",
	}
	cmd.AddCommand(
		newAdminRedemptionCodesListCmd(),
		newAdminRedemptionCodesCreateCmd(),
		newAdminRedemptionCodesDeleteCmd(),
	)
	return cmd
}

func newAdminRedemptionCodesListCmd() *cobra.Command {
	var skip, limit int
	var used string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List redemption codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseUsed(used)
			if err != nil {
				return err
			}
			app, err := adminApp(cmd)
			if err != nil {
				return err
			}
			page, err := app.Client.AdminListRedemptionCodes(cmd.Context(), filter, skip, limit)
			if err != nil {
				return err
			}
			return app.OK(page.Items,
				output.WithSummary(pageSummary("Redemption codes", len(page.Items), skip, page.Total)),
				output.WithMeta("total", page.Total),
			)
		},
	}
	pageFlags(cmd, &skip, &limit)
	cmd.Flags().StringVar(&used, "used", "", "Filter by used state (true or false)")
	return cmd
}

func newAdminRedemptionCodesCreateCmd() *cobra.Command {
	var scores, count int

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Generate redemption codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := adminApp(cmd)
			if err != nil {
				return err
			}
			created, err := app.Client.AdminCreateRedemptionCodes(cmd.Context(), scores, count)
			if err != nil {
				return err
			}
			return app.OK(created.Codes,
				output.WithSummary(fmt.Sprintf("Generated %s worth %s each",
					plural(len(created.Codes), "code"), plural(scores, "point"))))
		},
	}
	cmd.Flags().IntVar(&scores, "scores", 0, "Points per code")
	cmd.Flags().IntVarP(&count, "number", "n", 1, "Number of codes (1-100)")
	_ = cmd.MarkFlagRequired("scores")
	return cmd
}

func newAdminRedemptionCodesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an unused redemption code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := adminApp(cmd)
			if err != nil {
				return err
			}
			if err := app.Client.AdminDeleteRedemptionCode(cmd.Context(), args[0]); err != nil {
				return err
			}
			return app.OK(map[string]string{"id": args[0], "status": "deleted"},
				output.WithSummary("Deleted redemption code "+args[0]))
		},
	}
}

func newAdminScoreLogsCmd() *cobra.Command {
	var skip, limit int
	var userID string

	cmd := &cobra.Command{
		Use:   "score-logs",
		Short: "List point changes across users",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := adminApp(cmd)
			if err != nil {
				return err
			}
			page, err := app.Client.AdminScoreLogs(cmd.Context(), userID, skip, limit)
			if err != nil {
				return err
			}
			return app.OK(page.Items,
				output.WithSummary(pageSummary("Score logs", len(page.Items), skip, page.Total)),
				output.WithMeta("total", page.Total),
			)
		},
	}
	pageFlags(cmd, &skip, &limit)
	cmd.Flags().StringVar(&userID, "user", "", "Only this user ID")
	return cmd
}
