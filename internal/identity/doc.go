// SPDX-License-Identifier: MPL-2.0

// Package identity derives the content-addressed tag of a test environment.
//
// An identity combines an image namespace, a version parameter and a prefix of
// the SHA-256 digest of the environment definition:
//
//	id := identity.Derive("testbox-env", "1.78", dockerfileBytes)
//	id.Tag() // "testbox-env:1.78-3f2a9c0b41de"
//
// Identical inputs always produce the identical tag; the cache decisions made
// by the provision package rely on that.
package identity
