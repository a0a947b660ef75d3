package completion

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/slidecraft/slides-cli/internal/appctx"
	"github.com/slidecraft/slides-cli/internal/config"
	"github.com/slidecraft/slides-cli/internal/models"
)

// CacheDirFunc returns the cache directory to use for completion.
type CacheDirFunc func(cmd *cobra.Command) string

// DefaultCacheDirFunc returns the cache directory by checking, in order,
// the --cache-dir flag, the app in the command context, SLIDES_CACHE_DIR,
// and finally the default.
//
// Config files are not read here: completion runs on every keypress.
func DefaultCacheDirFunc(cmd *cobra.Command) string {
	if root := cmd.Root(); root != nil {
		if flag := root.PersistentFlags().Lookup("cache-dir"); flag != nil && flag.Changed {
			return flag.Value.String()
		}
	}
	if ctx := cmd.Context(); ctx != nil {
		if app := appctx.FromContext(ctx); app != nil {
			return app.Config.CacheDir
		}
	}
	if v := os.Getenv(config.EnvVar("cache_dir")); v != "" {
		return v
	}
	return ""
}

// Completer provides tab completion functions.
// It reads from the file cache and does not build the App or call the API.
type Completer struct {
	getCacheDir CacheDirFunc
}

// NewCompleter creates a Completer. A nil getCacheDir uses DefaultCacheDirFunc.
func NewCompleter(getCacheDir CacheDirFunc) *Completer {
	if getCacheDir == nil {
		getCacheDir = DefaultCacheDirFunc
	}
	return &Completer{getCacheDir: getCacheDir}
}

func (c *Completer) store(cmd *cobra.Command) *Store {
	return NewStore(c.getCacheDir(cmd))
}

// PresentationCompletion completes the first positional argument with
// cached presentation IDs, newest first, described by title.
func (c *Completer) PresentationCompletion() cobra.CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]cobra.Completion, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		presentations := c.store(cmd).Presentations()
		if len(presentations) == 0 {
			// No cache - allow any input
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		needle := strings.ToLower(toComplete)
		var completions []cobra.Completion
		for _, p := range rankPresentations(presentations) {
			if strings.HasPrefix(strings.ToLower(p.ID), needle) ||
				strings.Contains(strings.ToLower(p.Title), needle) {
				completions = append(completions, cobra.CompletionWithDesc(p.ID, describe(p)))
			}
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	}
}

func describe(p CachedPresentation) string {
	title := p.Title
	if title == "" {
		title = "(untitled)"
	}
	if p.Published {
		return fmt.Sprintf("%s [published]", title)
	}
	return title
}

// rankPresentations returns presentations newest first, then by title.
func rankPresentations(presentations []CachedPresentation) []CachedPresentation {
	ranked := make([]CachedPresentation, len(presentations))
	copy(ranked, presentations)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].CreatedAt != ranked[j].CreatedAt {
			return ranked[i].CreatedAt > ranked[j].CreatedAt
		}
		return strings.ToLower(ranked[i].Title) < strings.ToLower(ranked[j].Title)
	})
	return ranked
}

// Lister lists the current user's presentations.
type Lister interface {
	ListPresentations(ctx context.Context) ([]models.Presentation, error)
}

// Refresh fetches presentations and replaces the cache. It returns how many
// were cached.
func Refresh(ctx context.Context, store *Store, baseURL string, l Lister) (int, error) {
	list, err := l.ListPresentations(ctx)
	if err != nil {
		return 0, err
	}
	if err := store.SavePresentations(baseURL, list); err != nil {
		return 0, err
	}
	return len(list), nil
}
