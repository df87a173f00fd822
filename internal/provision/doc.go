// SPDX-License-Identifier: MPL-2.0

// Package provision decides, per invocation, whether the cached test
// environment can be reused or must be rebuilt.
//
// Manager.Provision runs the lifecycle: optional purge of the version's
// cached state, identity derivation from the definition file, the
// reuse-or-build decision, and after a fresh build a prune of superseded
// images of the same version line. Purge and prune failures never abort the
// run; they are logged and returned in Result.CleanupErrors.
package provision
