// SPDX-License-Identifier: MPL-2.0

// Package config handles testbox configuration.
//
// Two layers live here. User settings (engine, image namespace, paths, test
// command) are read from a CUE file at $XDG_CONFIG_HOME/testbox/config.cue,
// validated against the embedded config_schema.cue, and merged through Viper
// with built-in defaults and TESTBOX_* environment overrides.
//
// Per-invocation arguments are turned into an immutable RunConfig by
// Resolve, which is pure: the defaults it needs are gathered beforehand by
// LoadDefaults from the environment, the project's .testbox.env and
// rust-toolchain.toml files, and the user settings.
package config
