// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides the CUE parsing steps shared by testbox's
// configuration loading:
//
//  1. Compile the embedded schema
//  2. Compile user data and unify it with a schema definition
//  3. Validate and decode
//
// Errors carry the file name and the JSON-style path of the offending field,
// e.g. "config.cue: build_retries: invalid value -1 (out of bound >=0)".
package cueutil
