// SPDX-License-Identifier: MPL-2.0

// Package cachestore is the narrow storage capability the environment
// lifecycle needs: environment images, the per-version dependency cache
// volume and the per-project artifact directory.
//
// EngineStore implements Store over a container.Engine and the host
// filesystem. It holds no state beyond what the engine reports.
package cachestore
