package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/slidecraft/slides-cli/internal/completion"
	"github.com/slidecraft/slides-cli/internal/models"
	"github.com/slidecraft/slides-cli/internal/output"
)

// NewSlidesCmd creates the slides command group.
func NewSlidesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slides",
		Short: "Manage slides and their versions",
		Long:  "Each slide keeps every generated image as a version. One version is active.",
	}

	cmd.AddCommand(
		newSlidesVersionsCmd(),
		newSlidesActivateCmd(),
		newSlidesDeleteVersionCmd(),
		newSlidesDeleteCmd(),
		newSlidesRestoreCmd(),
		newSlidesDeletedCmd(),
	)

	completer := completion.NewCompleter(nil)
	for _, sub := range cmd.Commands() {
		if strings.Contains(sub.Use, "<presentation-id>") {
			sub.ValidArgsFunction = completer.PresentationCompletion()
		}
	}

	return cmd
}

func newSlidesVersionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "versions <presentation-id> <slide-id>",
		Short: "List a slide's versions, oldest first",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := userApp(cmd)
			if err != nil {
				return err
			}
			versions, err := app.Client.ListVersions(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			for i := range versions {
				versions[i].ImageURL = models.ResolveImageURL(app.Config.BaseURL, versions[i].ImageURL)
				versions[i].BaseImageURL = models.ResolveImageURL(app.Config.BaseURL, versions[i].BaseImageURL)
			}
			return app.OK(versions,
				output.WithSummary(plural(len(versions), "version")),
				output.WithBreadcrumbs(output.Breadcrumb{
					Cmd:         fmt.Sprintf("slides slides activate %s %s <version-id>", args[0], args[1]),
					Description: "Use a version",
				}),
			)
		},
	}
}

func newSlidesActivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate <presentation-id> <slide-id> <version-id>",
		Short: "Make a version the slide's active version",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := userApp(cmd)
			if err != nil {
				return err
			}
			if err := app.Client.SetActiveVersion(cmd.Context(), args[0], args[1], args[2]); err != nil {
				return err
			}
			return app.OK(map[string]string{
				"slide_id":          args[1],
				"active_version_id": args[2],
			}, output.WithSummary("Active version set to "+args[2]))
		},
	}
}

func newSlidesDeleteVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-version <presentation-id> <slide-id> <version-id>",
		Short: "Delete one version of a slide",
		Long:  "Delete one version of a slide. A slide's last version cannot be deleted.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := userApp(cmd)
			if err != nil {
				return err
			}
			if err := app.Client.DeleteVersion(cmd.Context(), args[0], args[1], args[2]); err != nil {
				return err
			}
			return app.OK(map[string]string{"version_id": args[2], "status": "deleted"},
				output.WithSummary("Deleted version "+args[2]))
		},
	}
}

func newSlidesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <presentation-id> <slide-id>",
		Short: "Delete a slide",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := userApp(cmd)
			if err != nil {
				return err
			}
			if err := app.Client.DeleteSlide(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			return app.OK(map[string]string{"slide_id": args[1], "status": "deleted"},
				output.WithSummary("Deleted slide "+args[1]),
				output.WithBreadcrumbs(output.Breadcrumb{
					Cmd:         fmt.Sprintf("slides slides restore %s %s", args[0], args[1]),
					Description: "Undo",
				}),
			)
		},
	}
}

func newSlidesRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <presentation-id> <slide-id>",
		Short: "Restore a deleted slide",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := userApp(cmd)
			if err != nil {
				return err
			}
			if err := app.Client.RestoreSlide(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			return app.OK(map[string]string{"slide_id": args[1], "status": "restored"},
				output.WithSummary("Restored slide "+args[1]))
		},
	}
}

func newSlidesDeletedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deleted <presentation-id>",
		Short: "List a presentation's deleted slides",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := userApp(cmd)
			if err != nil {
				return err
			}
			slides, err := app.Client.ListDeletedSlides(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return app.OK(slideRows(app, slides),
				output.WithSummary(plural(len(slides), "deleted slide")))
		},
	}
}
