// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Roster's standard CBOR encoding configuration.
//
// Roster uses two serialization formats with a clear boundary:
//
//   - JSON for external interfaces: the Matrix Client-Server API, CLI
//     output, and the structured logs.
//   - CBOR for internal records: the append-only routing audit log and
//     any other on-disk state that is written far more often than it
//     is read.
//
// This package provides the shared CBOR encoding and decoding modes so
// that every Roster package encodes identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding (RFC 8949
// §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (the audit log file):
//
//	encoder := codec.NewEncoder(file)
//	decoder := codec.NewDecoder(file)
//
// fxamacker/cbor v2 reads `json` struct tags as fallback when `cbor`
// tags are absent, so a single `json` tag controls field naming for
// both formats; types that are only ever CBOR use a `cbor` tag to
// document that contract.
package codec
