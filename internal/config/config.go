// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"testbox-cli/internal/issue"
	"testbox-cli/pkg/cueutil"
)

const (
	// AppName is the application name.
	AppName = "testbox"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment variables that override settings,
	// e.g. TESTBOX_IMAGE_NAMESPACE or TESTBOX_UI_VERBOSE.
	EnvPrefix = "TESTBOX"
)

//go:embed config_schema.cue
var configSchema []byte

// ConfigDir returns the testbox configuration directory: %APPDATA% on
// Windows, ~/Library/Application Support on macOS and $XDG_CONFIG_HOME
// (defaulting to ~/.config) elsewhere.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// FilePath returns the config file that Load reads for opts. The file does
// not need to exist.
func FilePath(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		return opts.ConfigFilePath, nil
	}
	cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt), nil
}

// loadWithOptions loads settings in increasing precedence: built-in
// defaults, the CUE config file, TESTBOX_* environment variables.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("container_engine", string(defaults.ContainerEngine))
	v.SetDefault("rust_version", defaults.RustVersion)
	v.SetDefault("image_namespace", defaults.ImageNamespace)
	v.SetDefault("volume_prefix", defaults.VolumePrefix)
	v.SetDefault("definition_file", defaults.DefinitionFile)
	v.SetDefault("artifact_dir", defaults.ArtifactDir)
	v.SetDefault("workdir", defaults.WorkDir)
	v.SetDefault("cargo_home", defaults.CargoHome)
	v.SetDefault("test_command", defaults.TestCommand)
	v.SetDefault("build_retries", defaults.BuildRetries)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfgPath, err := FilePath(opts)
	if err != nil {
		return nil, "", err
	}

	resolvedPath := ""
	switch {
	case fileExists(cfgPath):
		if err := loadCUEIntoViper(v, cfgPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(cfgPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("See 'testbox config show' for the effective configuration").
				Wrap(err).
				BuildError()
		}
		resolvedPath = cfgPath
	case opts.ConfigFilePath != "":
		// An explicit --config must exist; the default location is optional.
		return nil, "", issue.NewErrorContext().
			WithOperation("load configuration").
			WithResource(opts.ConfigFilePath).
			WithSuggestion("Verify the file path is correct").
			WithSuggestion("Create a starter file with 'testbox config init'").
			Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
			BuildError()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithSuggestion("Check TESTBOX_* environment variables for typos").
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}
	return ConfigDir()
}

// loadCUEIntoViper validates a CUE file against #Config and merges it into
// Viper, keeping defaults for fields the file omits.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	configMap, err := cueutil.DecodeMap(configSchema, data, "#Config", path)
	if err != nil {
		return err
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the default config file at path unless a file
// already exists there. It reports whether a file was written.
func CreateDefaultConfig(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return false, fmt.Errorf("failed to write config file: %w", err)
	}
	return true, nil
}

// GenerateCUE generates a CUE representation of the configuration.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// testbox configuration file\n")
	sb.WriteString("// Every field is optional; remove a line to fall back to the default.\n\n")

	sb.WriteString(fmt.Sprintf("container_engine: %q\n", cfg.ContainerEngine))
	if cfg.RustVersion != "" {
		sb.WriteString(fmt.Sprintf("rust_version: %q\n", cfg.RustVersion))
	}
	sb.WriteString(fmt.Sprintf("image_namespace: %q\n", cfg.ImageNamespace))
	sb.WriteString(fmt.Sprintf("volume_prefix: %q\n", cfg.VolumePrefix))
	sb.WriteString(fmt.Sprintf("definition_file: %q\n", cfg.DefinitionFile))
	sb.WriteString(fmt.Sprintf("artifact_dir: %q\n", cfg.ArtifactDir))
	sb.WriteString(fmt.Sprintf("workdir: %q\n", cfg.WorkDir))
	sb.WriteString(fmt.Sprintf("cargo_home: %q\n", cfg.CargoHome))
	sb.WriteString(fmt.Sprintf("test_command: %q\n", cfg.TestCommand))
	sb.WriteString(fmt.Sprintf("build_retries: %d\n", cfg.BuildRetries))

	sb.WriteString("\nui: {\n")
	sb.WriteString(fmt.Sprintf("\tverbose: %v\n", cfg.UI.Verbose))
	sb.WriteString("}\n")

	return sb.String()
}
