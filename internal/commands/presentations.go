package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/slidecraft/slides-cli/internal/completion"
	"github.com/slidecraft/slides-cli/internal/output"
)

// NewPresentationsCmd creates the presentations command group.
func NewPresentationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "presentations",
		Aliases: []string{"pres", "p"},
		Short:   "Manage presentations",
		Long: `Create, inspect, rename, publish and delete presentations.

Deleted presentations go to the recycle bin ("trash") until restored or purged.`,
	}

	cmd.AddCommand(
		newPresentationsListCmd(),
		newPresentationsCreateCmd(),
		newPresentationsShowCmd(),
		newPresentationsRenameCmd(),
		newPresentationsDeleteCmd(),
		newPresentationsRestoreCmd(),
		newPresentationsPurgeCmd(),
		newPresentationsTrashCmd(),
		newPresentationsEmptyTrashCmd(),
		newPresentationsPublishCmd(),
		newPresentationsProgressCmd(),
	)

	completer := completion.NewCompleter(nil)
	for _, sub := range cmd.Commands() {
		if strings.Contains(sub.Use, "<id>") {
			sub.ValidArgsFunction = completer.PresentationCompletion()
		}
	}

	return cmd
}

func newPresentationsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List presentations, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := userApp(cmd)
			if err != nil {
				return err
			}
			list, err := app.Client.ListPresentations(cmd.Context())
			if err != nil {
				return err
			}
			rememberPresentations(app, list)
			return app.OK(list,
				output.WithSummary(plural(len(list), "presentation")),
				output.WithBreadcrumbs(
					output.Breadcrumb{Cmd: "slides presentations show <id>", Description: "Show slides"},
					output.Breadcrumb{Cmd: "slides presentations create <topic>", Description: "Create a presentation"},
				),
			)
		},
	}
}

func newPresentationsCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <topic>",
		Short: "Create a presentation on a topic",
		Long:  "Create a presentation. Slide generation runs on the server and costs points per slide.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := userApp(cmd)
			if err != nil {
				return err
			}
			topic := strings.Join(args, " ")
			created, err := app.Client.CreatePresentation(cmd.Context(), topic)
			if err != nil {
				return err
			}
			return app.OK(created,
				output.WithSummary("Created presentation "+created.ID),
				output.WithBreadcrumbs(
					output.Breadcrumb{Cmd: "slides presentations progress " + created.ID, Description: "Check generation"},
					output.Breadcrumb{Cmd: "slides presentations show " + created.ID, Description: "Show slides"},
				),
			)
		},
	}
}

func newPresentationsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a presentation and its slides",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := userApp(cmd)
			if err != nil {
				return err
			}
			p, err := app.Client.GetPresentation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return app.OK(slideRows(app, p.Slides),
				output.WithSummary(fmt.Sprintf("%s (%s)", p.Title, plural(len(p.Slides), "slide"))),
				output.WithMeta("presentation_id", p.ID),
				output.WithMeta("title", p.Title),
				output.WithMeta("published", p.IsPublished != 0),
				output.WithBreadcrumbs(
					output.Breadcrumb{Cmd: fmt.Sprintf("slides slides versions %s <slide-id>", p.ID), Description: "List slide versions"},
					output.Breadcrumb{Cmd: "slides presentations publish " + p.ID, Description: "Toggle publishing"},
				),
			)
		},
	}
}

func newPresentationsRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Rename a presentation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := userApp(cmd)
			if err != nil {
				return err
			}
			title := strings.Join(args[1:], " ")
			if err := app.Client.RenamePresentation(cmd.Context(), args[0], title); err != nil {
				return err
			}
			return app.OK(map[string]string{"id": args[0], "title": title},
				output.WithSummary("Renamed to "+title))
		},
	}
}

func newPresentationsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Move a presentation to the trash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := userApp(cmd)
			if err != nil {
				return err
			}
			if err := app.Client.DeletePresentation(cmd.Context(), args[0]); err != nil {
				return err
			}
			return app.OK(map[string]string{"id": args[0], "status": "trashed"},
				output.WithSummary("Moved to trash"),
				output.WithBreadcrumbs(output.Breadcrumb{
					Cmd:         "slides presentations restore " + args[0],
					Description: "Undo",
				}),
			)
		},
	}
}

func newPresentationsRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id>",
		Short: "Restore a presentation from the trash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := userApp(cmd)
			if err != nil {
				return err
			}
			if err := app.Client.RestorePresentation(cmd.Context(), args[0]); err != nil {
				return err
			}
			return app.OK(map[string]string{"id": args[0], "status": "restored"},
				output.WithSummary("Restored presentation "+args[0]))
		},
	}
}

func newPresentationsPurgeCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "purge <id>",
		Short: "Permanently delete a presentation in the trash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := userApp(cmd)
			if err != nil {
				return err
			}
			if err := confirmDestructive(app, force, "Permanently delete presentation "+args[0]+"?"); err != nil {
				return err
			}
			if err := app.Client.PurgePresentation(cmd.Context(), args[0]); err != nil {
				return err
			}
			return app.OK(map[string]string{"id": args[0], "status": "purged"},
				output.WithSummary("Permanently deleted "+args[0]))
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation")
	return cmd
}

func newPresentationsTrashCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "trash",
		Aliases: []string{"deleted"},
		Short:   "List presentations in the trash",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := userApp(cmd)
			if err != nil {
				return err
			}
			list, err := app.Client.ListDeletedPresentations(cmd.Context())
			if err != nil {
				return err
			}
			return app.OK(list,
				output.WithSummary(plural(len(list), "presentation")+" in trash"),
				output.WithBreadcrumbs(output.Breadcrumb{
					Cmd:         "slides presentations empty-trash",
					Description: "Purge everything",
				}),
			)
		},
	}
}

func newPresentationsEmptyTrashCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "empty-trash",
		Short: "Permanently delete everything in the trash",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := userApp(cmd)
			if err != nil {
				return err
			}
			if err := confirmDestructive(app, force, "Permanently delete everything in the trash?"); err != nil {
				return err
			}
			res, err := app.Client.ClearRecycleBin(cmd.Context())
			if err != nil {
				return err
			}
			return app.OK(res,
				output.WithSummary(fmt.Sprintf("Permanently deleted %s", plural(res.DeletedCount, "presentation"))))
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation")
	return cmd
}

func newPresentationsPublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish <id>",
		Short: "Toggle whether a presentation is published",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := userApp(cmd)
			if err != nil {
				return err
			}
			res, err := app.Client.PublishPresentation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			summary := "Unpublished"
			if res.IsPublished != 0 {
				summary = "Published"
			}
			return app.OK(res, output.WithSummary(summary))
		},
	}
}

func newPresentationsProgressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "progress <id>",
		Short: "Show slide generation progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := userApp(cmd)
			if err != nil {
				return err
			}
			prog, err := app.Client.GenerationProgress(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			summary := fmt.Sprintf("%s: %d/%d slides (%d%%)", prog.Status, prog.Current, prog.Total, prog.Percentage)
			if prog.Error != "" {
				summary += ": " + prog.Error
			}
			return app.OK(prog, output.WithSummary(summary))
		},
	}
}
