// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors and the catalog of help pages shown
// when a testbox run fails.
//
// ActionableError carries the failed operation, the resource involved and a
// list of suggestions. Issue pages are Markdown documents rendered with glamour
// in verbose mode.
package issue
