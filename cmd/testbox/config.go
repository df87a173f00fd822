// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"testbox-cli/internal/config"
)

// newConfigCommand creates the `testbox config` command tree.
// Subcommands that read configuration use the App's config.Provider.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage testbox configuration",
		Long: `Manage testbox configuration.

Configuration is stored in:
  - Linux: $XDG_CONFIG_HOME/testbox/config.cue (default ~/.config)
  - macOS: ~/Library/Application Support/testbox/config.cue
  - Windows: %APPDATA%\testbox\config.cue

Every setting can also be overridden with a TESTBOX_<SETTING> environment
variable, for example TESTBOX_IMAGE_NAMESPACE or TESTBOX_UI_VERBOSE.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.showConfig(cmd.Context())
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.FilePath(app.loadOptions())
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.initConfig()
		},
	})

	return cfgCmd
}

func (a *App) loadOptions() config.LoadOptions {
	return config.LoadOptions{ConfigFilePath: a.flags.configPath}
}

func (a *App) showConfig(ctx context.Context) error {
	cfg, err := a.Config.Load(ctx, a.loadOptions())
	if err != nil {
		return &ExitError{Code: ExitConfigError, Err: err}
	}

	w := a.stdout
	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)

	cfgPath, err := config.FilePath(a.loadOptions())
	switch {
	case err != nil:
		printField(w, "file", SubtitleStyle.Render("(using defaults)"))
	case fileExistsCheck(cfgPath):
		printField(w, "file", cfgPath)
	default:
		printField(w, "file", SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(w)

	engine := string(cfg.ContainerEngine)
	if engine == "" {
		engine = SubtitleStyle.Render("(auto-detect)")
	}
	rustVersion := cfg.RustVersion
	if rustVersion == "" {
		rustVersion = SubtitleStyle.Render("(unset)")
	}

	fmt.Fprintf(w, "container_engine: %s\n", engine)
	fmt.Fprintf(w, "rust_version: %s\n", rustVersion)
	fmt.Fprintf(w, "image_namespace: %s\n", cfg.ImageNamespace)
	fmt.Fprintf(w, "volume_prefix: %s\n", cfg.VolumePrefix)
	fmt.Fprintf(w, "definition_file: %s\n", cfg.DefinitionFile)
	fmt.Fprintf(w, "artifact_dir: %s\n", cfg.ArtifactDir)
	fmt.Fprintf(w, "workdir: %s\n", cfg.WorkDir)
	fmt.Fprintf(w, "cargo_home: %s\n", cfg.CargoHome)
	fmt.Fprintf(w, "test_command: %s\n", cfg.TestCommand)
	fmt.Fprintf(w, "build_retries: %d\n", cfg.BuildRetries)
	fmt.Fprintf(w, "ui.verbose: %v\n", cfg.UI.Verbose)

	return nil
}

func (a *App) initConfig() error {
	path, err := config.FilePath(a.loadOptions())
	if err != nil {
		return err
	}

	created, err := config.CreateDefaultConfig(path)
	if err != nil {
		return err
	}
	if !created {
		fmt.Fprintf(a.stdout, "Config file already exists at: %s\n", path)
		return nil
	}

	fmt.Fprintf(a.stdout, "%s Created default config file at: %s\n", SuccessStyle.Render("✓"), path)
	return nil
}

func fileExistsCheck(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
