package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slidecraft/slides-cli/internal/output"
)

// NewSystemCmd creates the system command group.
func NewSystemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "system",
		Short: "Inspect the server",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "info",
			Short: "Show the public system configuration",
			Long:  "Show the public system configuration. The value is cached for 30 seconds.",
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := connectedApp(cmd)
				if err != nil {
					return err
				}
				info, err := app.Session.SystemInfo(cmd.Context())
				if err != nil {
					return err
				}
				return app.OK(info, output.WithSummary(fmt.Sprintf("System configuration (%s)", plural(len(info), "key"))))
			},
		},
		&cobra.Command{
			Use:   "health",
			Short: "Check that the server is up",
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := connectedApp(cmd)
				if err != nil {
					return err
				}
				status, err := app.Client.Health(cmd.Context())
				if err != nil {
					return err
				}
				summary := "Server is up"
				if s, ok := status["status"].(string); ok && s != "" {
					summary = "Server is " + s
				}
				return app.OK(status, output.WithSummary(summary))
			},
		},
	)

	return cmd
}
