package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/slidecraft/slides-cli/internal/appctx"
	"github.com/slidecraft/slides-cli/internal/completion"
	"github.com/slidecraft/slides-cli/internal/models"
	"github.com/slidecraft/slides-cli/internal/output"
)

// NewCompletionCmd creates the completion command group.
func NewCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [shell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for slides.

To load completions:

Bash:
  $ source <(slides completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ slides completion bash > /etc/bash_completion.d/slides
  # macOS:
  $ slides completion bash > $(brew --prefix)/etc/bash_completion.d/slides

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ slides completion zsh > "${fpath[1]}/_slides"

Fish:
  $ slides completion fish | source

  # To load completions for each session, execute once:
  $ slides completion fish > ~/.config/fish/completions/slides.fish

PowerShell:
  PS> slides completion powershell | Out-String | Invoke-Expression

Presentation IDs complete from a local cache. It is updated whenever you
run "slides presentations list", or explicitly with "slides completion refresh".
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeCompletion(cmd.Root(), cmd.OutOrStdout(), args[0])
		},
	}

	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		cmd.AddCommand(newCompletionShellCmd(shell))
	}
	cmd.AddCommand(newCompletionRefreshCmd())
	cmd.AddCommand(newCompletionStatusCmd())

	return cmd
}

func writeCompletion(root *cobra.Command, w io.Writer, shell string) error {
	switch shell {
	case "bash":
		return root.GenBashCompletionV2(w, true)
	case "zsh":
		return root.GenZshCompletion(w)
	case "fish":
		return root.GenFishCompletion(w, true)
	case "powershell":
		return root.GenPowerShellCompletionWithDesc(w)
	default:
		return output.ErrUsage(fmt.Sprintf("unknown shell: %s", shell))
	}
}

func newCompletionShellCmd(shell string) *cobra.Command {
	return &cobra.Command{
		Use:                   shell,
		Short:                 fmt.Sprintf("Generate %s completion script", shell),
		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeCompletion(cmd.Root(), cmd.OutOrStdout(), shell)
		},
	}
}

func newCompletionRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the completion cache",
		Long: `Fetch your presentations and replace the cache used for tab completion.
Requires login.

Note: completion reads the cache directory from --cache-dir or
SLIDES_CACHE_DIR only. A cache_dir set in a config file is not seen.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := userApp(cmd)
			if err != nil {
				return err
			}
			store := completion.NewStore(app.Config.CacheDir)
			n, err := completion.Refresh(cmd.Context(), store, app.Config.BaseURL, app.Client)
			if err != nil {
				return err
			}
			return app.OK(map[string]any{
				"presentations": n,
				"cache_path":    store.Path(),
			}, output.WithSummary("Cached "+plural(n, "presentation")))
		},
	}
}

func newCompletionStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show completion cache status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}
			store := completion.NewStore(app.Config.CacheDir)
			cache, err := store.Load()
			if err != nil {
				return err
			}

			stale := store.IsStale(completion.DefaultMaxAge)
			result := map[string]any{
				"presentations": len(cache.Presentations),
				"cache_path":    store.Path(),
				"stale":         stale,
			}
			summary := "Completion cache is empty"
			if !cache.UpdatedAt.IsZero() {
				result["updated_at"] = cache.UpdatedAt.Format(time.RFC3339)
				summary = fmt.Sprintf("%s cached, updated %s ago",
					plural(len(cache.Presentations), "presentation"),
					time.Since(cache.UpdatedAt).Round(time.Second))
			}

			var crumbs []output.Breadcrumb
			if stale {
				crumbs = append(crumbs, output.Breadcrumb{
					Cmd:         "slides completion refresh",
					Description: "Refresh the cache",
				})
			}
			return app.OK(result, output.WithSummary(summary), output.WithBreadcrumbs(crumbs...))
		},
	}
}

// rememberPresentations updates the completion cache from a listing.
// Failures only matter to completion, so they are logged and dropped.
func rememberPresentations(app *appctx.App, list []models.Presentation) {
	store := completion.NewStore(app.Config.CacheDir)
	if err := store.SavePresentations(app.Config.BaseURL, list); err != nil {
		app.Logger.Debug("completion cache update failed", "error", err)
	}
}
