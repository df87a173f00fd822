// SPDX-License-Identifier: MPL-2.0

// Package execute runs the project's test command inside a provisioned
// environment. It assembles the engine run invocation (mounts, working
// directory, passthrough arguments), launches it, and hands the container's
// exit status back to the CLI unchanged.
package execute
