package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/slidecraft/slides-cli/internal/config"
	"github.com/slidecraft/slides-cli/internal/output"
)

// NewConfigCmd creates the config command for managing configuration.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage slides configuration.

Configuration is loaded from multiple sources with the following precedence:
  flags > env > local > global > system > defaults

Config locations:
  - System: /etc/slides/config.json
  - Global: ~/.config/slides/config.json
  - Local:  .slides/config.json

base_url and api_prefix are ignored in local config files.
Every key can also be set with SLIDES_<KEY>, e.g. SLIDES_BASE_URL.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigInitCmd(),
		newConfigSetCmd(),
		newConfigUnsetCmd(),
	)

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long:  "Display the current effective configuration with source information.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}
}

func runConfigShow(cmd *cobra.Command) error {
	app, err := getApp(cmd)
	if err != nil {
		return err
	}

	configData := make(map[string]any, len(config.Keys))
	for _, key := range config.Keys {
		value := app.Config.Value(key)
		if value == "" && app.Config.Sources[key] == "" {
			continue
		}
		configData[key] = map[string]string{
			"value":  value,
			"source": app.Config.Source(key),
		}
	}

	return app.OK(configData,
		output.WithSummary("Effective configuration"),
		output.WithBreadcrumbs(
			output.Breadcrumb{
				Cmd:         "slides config set <key> <value>",
				Description: "Set config value",
			},
		),
	)
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize local config file",
		Long:  "Create a local .slides/config.json file in the current directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			configFile := config.LocalConfigPath()

			if _, err := os.Stat(configFile); err == nil {
				return app.OK(map[string]any{
					"exists": true,
					"path":   configFile,
				}, output.WithSummary(fmt.Sprintf("Config file already exists: %s", configFile)))
			}

			if err := os.MkdirAll(filepath.Dir(configFile), 0700); err != nil {
				return fmt.Errorf("failed to create config directory: %w", err)
			}
			if err := os.WriteFile(configFile, []byte("{}\n"), 0600); err != nil {
				return fmt.Errorf("failed to create config file: %w", err)
			}

			return app.OK(map[string]any{
				"created": true,
				"path":    configFile,
			},
				output.WithSummary(fmt.Sprintf("Created: %s", configFile)),
				output.WithBreadcrumbs(
					output.Breadcrumb{
						Cmd:         "slides config set format json",
						Description: "Set default output format",
					},
				),
			)
		},
	}
}

// configTarget returns the file and scope name for --global.
func configTarget(global bool) (path, scope string) {
	if global {
		return config.GlobalConfigPath(), "global"
	}
	return config.LocalConfigPath(), "local"
}

func validateConfigKey(key string) error {
	if slices.Contains(config.Keys, key) {
		return nil
	}
	return output.ErrUsage(fmt.Sprintf("Invalid config key %q. Valid keys: %s", key, strings.Join(config.Keys, ", ")))
}

func newConfigSetCmd() *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value in the local or global config file.

Valid keys: ` + strings.Join(config.Keys, ", "),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			key, value := args[0], args[1]
			if err := validateConfigKey(key); err != nil {
				return err
			}
			if !global && config.IsAuthorityKey(key) {
				return output.ErrUsageHint(
					fmt.Sprintf("%s is ignored in local config", key),
					fmt.Sprintf("Use: slides config set --global %s %s", key, value))
			}

			configPath, scope := configTarget(global)
			if err := config.SetFileValue(configPath, key, value); err != nil {
				return output.ErrUsage(err.Error())
			}

			display := value
			if key == "redis_password" {
				display = "********"
			}
			return app.OK(map[string]any{
				"key":    key,
				"value":  display,
				"scope":  scope,
				"path":   configPath,
				"status": "set",
			},
				output.WithSummary(fmt.Sprintf("Set %s = %s (%s)", key, display, scope)),
				output.WithBreadcrumbs(
					output.Breadcrumb{
						Cmd:         "slides config show",
						Description: "View config",
					},
				),
			)
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "Set in global config (~/.config/slides/)")

	return cmd
}

func newConfigUnsetCmd() *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "unset <key>",
		Short: "Unset a configuration value",
		Long:  "Remove a configuration value from the local or global config file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			key := args[0]
			if err := validateConfigKey(key); err != nil {
				return err
			}

			configPath, scope := configTarget(global)
			removed, err := config.UnsetFileValue(configPath, key)
			if err != nil {
				return err
			}
			if !removed {
				return app.OK(map[string]any{
					"key":    key,
					"status": "not_set",
				}, output.WithSummary(fmt.Sprintf("Key not set: %s", key)))
			}

			return app.OK(map[string]any{
				"key":    key,
				"scope":  scope,
				"status": "unset",
			},
				output.WithSummary(fmt.Sprintf("Unset %s (%s)", key, scope)),
				output.WithBreadcrumbs(
					output.Breadcrumb{
						Cmd:         "slides config show",
						Description: "View config",
					},
				),
			)
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "Unset from global config")

	return cmd
}
