package commands

import (
	"github.com/spf13/cobra"

	"github.com/slidecraft/slides-cli/internal/output"
)

// CommandInfo describes a CLI command.
type CommandInfo struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Actions     []string `json:"actions,omitempty"`
}

// CommandCategory groups commands by category.
type CommandCategory struct {
	Name     string        `json:"name"`
	Commands []CommandInfo `json:"commands"`
}

// commandCategories returns all command categories for the catalog.
func commandCategories() []CommandCategory {
	return []CommandCategory{
		{
			Name: "Core Commands",
			Commands: []CommandInfo{
				{Name: "presentations", Category: "core", Description: "Manage presentations", Actions: []string{"list", "create", "show", "rename", "delete", "restore", "purge", "trash", "empty-trash", "publish", "progress"}},
				{Name: "slides", Category: "core", Description: "Manage slides and their versions", Actions: []string{"versions", "activate", "delete-version", "delete", "restore", "deleted"}},
				{Name: "user", Category: "core", Description: "Manage your account", Actions: []string{"redeem", "invite-codes", "password", "score-logs"}},
			},
		},
		{
			Name: "Administration",
			Commands: []CommandInfo{
				{Name: "admin", Category: "admin", Description: "Administer users, codes and settings", Actions: []string{"login", "logout", "whoami", "users", "config", "invite-codes", "redemption-codes", "score-logs"}},
				{Name: "system", Category: "admin", Description: "Inspect the server", Actions: []string{"info", "health"}},
			},
		},
		{
			Name: "Auth & Config",
			Commands: []CommandInfo{
				{Name: "auth", Category: "auth", Description: "Authenticate with the slides server", Actions: []string{"login", "register", "logout", "whoami", "status"}},
				{Name: "session", Category: "auth", Description: "Inspect and clear cached sessions", Actions: []string{"show", "clear", "id"}},
				{Name: "config", Category: "auth", Description: "Manage configuration", Actions: []string{"show", "init", "set", "unset"}},
			},
		},
		{
			Name: "Additional Commands",
			Commands: []CommandInfo{
				{Name: "commands", Category: "additional", Description: "List all commands"},
				{Name: "completion", Category: "additional", Description: "Generate shell completion scripts", Actions: []string{"bash", "zsh", "fish", "powershell", "refresh", "status"}},
				{Name: "help", Category: "additional", Description: "Show help"},
				{Name: "version", Category: "additional", Description: "Show version"},
			},
		},
	}
}

// CatalogCommandNames returns all command names from the catalog.
// Used by tests to verify catalog matches registered commands.
func CatalogCommandNames() []string {
	categories := commandCategories()
	total := 0
	for _, cat := range categories {
		total += len(cat.Commands)
	}
	names := make([]string, 0, total)
	for _, cat := range categories {
		for _, cmd := range cat.Commands {
			names = append(names, cmd.Name)
		}
	}
	return names
}

// NewCommandsCmd creates the commands listing command.
func NewCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "commands",
		Aliases: []string{"cmds"},
		Short:   "List all available commands",
		Long:    "List all available slides commands organized by category.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			return app.OK(commandCategories(),
				output.WithSummary("All available slides commands"),
				output.WithBreadcrumbs(
					output.Breadcrumb{
						Cmd:         "slides --help",
						Description: "View help",
					},
				),
			)
		},
	}
}
