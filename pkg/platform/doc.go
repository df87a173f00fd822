// SPDX-License-Identifier: MPL-2.0

// Package platform detects properties of the environment testbox runs in,
// such as application sandboxes that hide the host's container engine.
package platform
