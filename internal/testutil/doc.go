// SPDX-License-Identifier: MPL-2.0

// Package testutil provides test doubles and helpers shared across testbox
// packages: an in-memory container engine, filesystem helpers that fail the
// test on error, and a semaphore bounding real-engine integration tests.
package testutil
