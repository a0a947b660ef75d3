// Package cli wires the root command and process exit codes.
package cli

import (
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/slidecraft/slides-cli/internal/appctx"
	"github.com/slidecraft/slides-cli/internal/commands"
	"github.com/slidecraft/slides-cli/internal/config"
	"github.com/slidecraft/slides-cli/internal/output"
	"github.com/slidecraft/slides-cli/internal/version"
)

// NewRootCmd creates the root cobra command.
func NewRootCmd() *cobra.Command {
	var flags appctx.GlobalFlags

	cmd := &cobra.Command{
		Use:           "slides",
		Short:         "Command-line interface for the slides server",
		Long:          "slides generates and manages AI slide presentations, accounts and point codes from the terminal.",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Help and shell completion run without config or storage
			switch cmd.Name() {
			case "help", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
				return nil
			}

			cfg, err := config.Load(config.FlagOverrides{
				Host:     flags.Host,
				CacheDir: flags.CacheDir,
			})
			if err != nil {
				return output.ErrUsage(err.Error())
			}

			app := appctx.NewApp(cfg,
				appctx.WithStdout(cmd.OutOrStdout()),
				appctx.WithStderr(cmd.ErrOrStderr()),
			)
			app.Flags = flags
			app.ApplyFlags()

			cmd.SetContext(appctx.WithApp(cmd.Context(), app))
			return nil
		},
	}

	// Allow flags anywhere in the command line
	cmd.Flags().SetInterspersed(true)
	cmd.PersistentFlags().SetInterspersed(true)

	// Output format flags
	cmd.PersistentFlags().BoolVarP(&flags.JSON, "json", "j", false, "Output as JSON")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Output data only, no envelope")
	cmd.PersistentFlags().BoolVarP(&flags.MD, "md", "m", false, "Output as Markdown (portable)")
	cmd.PersistentFlags().BoolVar(&flags.MD, "markdown", false, "Output as Markdown (portable)")
	cmd.PersistentFlags().BoolVar(&flags.Styled, "styled", false, "Force styled output (ANSI colors)")
	cmd.PersistentFlags().BoolVar(&flags.IDsOnly, "ids-only", false, "Output only IDs")
	cmd.PersistentFlags().BoolVar(&flags.Count, "count", false, "Output only count")
	cmd.PersistentFlags().StringVar(&flags.JQ, "jq", "", "Filter output data with a jq expression")

	// Context flags
	cmd.PersistentFlags().StringVar(&flags.Host, "host", "", "Server host (e.g., localhost:8000, slides.example.com)")

	// Behavior flags
	cmd.PersistentFlags().CountVarP(&flags.Verbose, "verbose", "v", "Verbose output (-v for cache and requests, -vv for everything)")
	cmd.PersistentFlags().BoolVar(&flags.Stats, "stats", false, "Show cache and request statistics")
	cmd.PersistentFlags().StringVar(&flags.CacheDir, "cache-dir", "", "Directory for tokens and session entries")

	return cmd
}

// AddCommands registers every subcommand on root.
func AddCommands(root *cobra.Command) {
	root.AddCommand(
		commands.NewAuthCmd(),
		commands.NewAdminCmd(),
		commands.NewPresentationsCmd(),
		commands.NewSlidesCmd(),
		commands.NewUserCmd(),
		commands.NewSystemCmd(),
		commands.NewSessionCmd(),
		commands.NewConfigCmd(),
		commands.NewCommandsCmd(),
		commands.NewCompletionCmd(),
		commands.NewVersionCmd(),
	)
}

// Execute runs the root command and exits with its exit code.
func Execute() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}

// Run executes the CLI with args and returns the process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd()
	AddCommands(cmd)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	// Use ExecuteC to get the executed command (for correct context access)
	executedCmd, err := cmd.ExecuteC()

	var app *appctx.App
	if executedCmd != nil {
		app = appctx.FromContext(executedCmd.Context())
	}
	if app != nil {
		defer func() {
			if cerr := app.Close(); cerr != nil {
				app.Logger.Debug("closing storage failed", "error", cerr)
			}
		}()
	}

	if err == nil {
		return 0
	}

	err = transformCobraError(err)
	apiErr := output.AsError(err)

	if app != nil {
		_ = app.Err(err)
		return apiErr.ExitCode()
	}

	// Fallback: output error directly (app not available, e.g., during setup)
	writer := output.New(output.Options{
		Format: fallbackFormat(args),
		Writer: stdout,
	})
	_ = writer.Err(err)

	return apiErr.ExitCode()
}

// fallbackFormat picks the error format from the raw arguments when setup
// failed before the app existed. Cobra may not have parsed any flags yet
// (an unknown flag stops it early), so the output flags are read leniently.
func fallbackFormat(args []string) output.Format {
	fs := pflag.NewFlagSet("slides", pflag.ContinueOnError)
	fs.ParseErrorsAllowlist.UnknownFlags = true
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}

	quiet := fs.BoolP("quiet", "q", false, "")
	idsOnly := fs.Bool("ids-only", false, "")
	count := fs.Bool("count", false, "")
	jsonFlag := fs.BoolP("json", "j", false, "")
	styled := fs.Bool("styled", false, "")
	md := fs.BoolP("md", "m", false, "")
	_ = fs.Parse(args)

	switch {
	case *quiet:
		return output.FormatQuiet
	case *idsOnly:
		return output.FormatIDs
	case *count:
		return output.FormatCount
	case *jsonFlag:
		return output.FormatJSON
	case *styled:
		return output.FormatStyled
	case *md:
		return output.FormatMarkdown
	}
	return output.FormatAuto
}

var shorthandFlagRe = regexp.MustCompile(`unknown shorthand flag: '.' in (-\w)`)

var requiredFlagRe = regexp.MustCompile(`required flag\(s\) "([\w-]+)"`)

// transformCobraError turns Cobra's parse errors into usage errors so they
// get the usage exit code and a readable message.
func transformCobraError(err error) error {
	msg := err.Error()

	// "flag needs an argument: --FLAG" → "--FLAG requires a value"
	if strings.HasPrefix(msg, "flag needs an argument: ") {
		flag := strings.TrimPrefix(msg, "flag needs an argument: ")
		return output.ErrUsage(flag + " requires a value")
	}

	if strings.HasPrefix(msg, "unknown flag: ") {
		flag := strings.TrimPrefix(msg, "unknown flag: ")
		return output.ErrUsage("Unknown option: " + flag)
	}

	if strings.HasPrefix(msg, "unknown shorthand flag: ") {
		if matches := shorthandFlagRe.FindStringSubmatch(msg); len(matches) > 1 {
			return output.ErrUsage("Unknown option: " + matches[1])
		}
	}

	if strings.HasPrefix(msg, "unknown command ") {
		return output.ErrUsageHint(msg, "Run: slides commands")
	}

	if strings.Contains(msg, "invalid argument") {
		return output.ErrUsage(msg)
	}

	// "accepts 1 arg(s), received 0" and friends
	if strings.Contains(msg, "arg(s), received") || strings.Contains(msg, "requires at least") {
		return output.ErrUsage(msg)
	}

	if strings.HasPrefix(msg, "required flag(s) ") {
		if matches := requiredFlagRe.FindStringSubmatch(msg); len(matches) > 1 {
			return output.ErrUsage("--" + matches[1] + " is required")
		}
	}

	return err
}
