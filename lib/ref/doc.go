// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides strongly typed, immutable identity references
// for Roster entities: Matrix user IDs, room IDs, event IDs, server
// names, and team IDs.
//
// All constructors validate their inputs and return errors for invalid
// values. Once constructed, a ref is immutable — accessors return
// pre-validated strings. Identifiers arrive from three places (config
// files, CLI flags, Matrix API responses) and are parsed into these
// types at the boundary; core code never passes raw identifier strings.
//
// JSON marshaling uses the canonical string form via
// encoding.TextMarshaler.
package ref
