// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for testbox.
//
// This package implements the Cobra command hierarchy: the root command with
// its global flags, the run pipeline, the standalone clean and status
// commands, and configuration management.
package cmd
