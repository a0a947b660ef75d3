package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slidecraft/slides-cli/internal/api"
	"github.com/slidecraft/slides-cli/internal/output"
	"github.com/slidecraft/slides-cli/internal/session"
)

// NewUserCmd creates the user command group.
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage your account",
		Long:  "Redeem point codes, share invite codes, change your password and review point history.",
	}

	cmd.AddCommand(
		newUserRedeemCmd(),
		newUserInviteCodesCmd(),
		newUserPasswordCmd(),
		newUserScoreLogsCmd(),
	)

	return cmd
}

func newUserRedeemCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "redeem <code>",
		Short: "Redeem a point code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := userApp(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			res, err := app.Client.Redeem(ctx, args[0])
			if err != nil {
				return err
			}
			// The cached user still shows the old balance.
			if err := app.Session.Invalidate(ctx, session.UserLine); err != nil {
				app.Logger.Debug("clearing cached user failed", "error", err)
			}
			return app.OK(res,
				output.WithSummary(fmt.Sprintf("Added %s, balance %d", plural(res.Added, "point"), res.Scores)))
		},
	}
}

func newUserInviteCodesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "invite-codes",
		Aliases: []string{"invites"},
		Short:   "Manage your invite codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserInviteCodesList(cmd)
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List your invite codes",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runUserInviteCodesList(cmd)
			},
		},
		&cobra.Command{
			Use:   "create",
			Short: "Generate an invite code",
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := userApp(cmd)
				if err != nil {
					return err
				}
				code, err := app.Client.CreateInviteCode(cmd.Context())
				if err != nil {
					return err
				}
				return app.OK(code, output.WithSummary("Invite code "+code.Code))
			},
		},
	)
	return cmd
}

func runUserInviteCodesList(cmd *cobra.Command) error {
	app, err := userApp(cmd)
	if err != nil {
		return err
	}
	codes, err := app.Client.ListInviteCodes(cmd.Context())
	if err != nil {
		return err
	}
	unused := 0
	for _, c := range codes {
		if !c.Used {
			unused++
		}
	}
	return app.OK(codes,
		output.WithSummary(fmt.Sprintf("%s, %d unused", plural(len(codes), "invite code"), unused)),
		output.WithBreadcrumbs(output.Breadcrumb{
			Cmd:         "slides user invite-codes create",
			Description: "Generate an invite code",
		}),
	)
}

func newUserPasswordCmd() *cobra.Command {
	var oldPassword, newPassword string

	cmd := &cobra.Command{
		Use:   "password",
		Short: "Change your password",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := userApp(cmd)
			if err != nil {
				return err
			}
			if oldPassword, err = secret(app, oldPassword, "Current password", "old"); err != nil {
				return err
			}
			if newPassword, err = secret(app, newPassword, "New password", "new"); err != nil {
				return err
			}
			if err := app.Client.ChangePassword(cmd.Context(), api.PasswordRequest{
				OldPassword: oldPassword,
				NewPassword: newPassword,
			}); err != nil {
				return err
			}
			return app.OK(map[string]string{"status": "updated"},
				output.WithSummary("Password changed"))
		},
	}

	cmd.Flags().StringVar(&oldPassword, "old", "", "Current password")
	cmd.Flags().StringVar(&newPassword, "new", "", "New password")

	return cmd
}

func newUserScoreLogsCmd() *cobra.Command {
	var skip, limit int

	cmd := &cobra.Command{
		Use:   "score-logs",
		Short: "Show your point history, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := userApp(cmd)
			if err != nil {
				return err
			}
			page, err := app.Client.ScoreLogs(cmd.Context(), skip, limit)
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
	return cmd
}
