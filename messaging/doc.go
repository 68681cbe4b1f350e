// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging is Roster's Matrix client-server API layer.
//
// The package provides three core types. [Client] is an unauthenticated
// Matrix client holding the homeserver URL and HTTP transport; Login and
// SessionFromToken produce [Session] values from it. [Session] makes
// authenticated calls: sending messages (plain and HTML-formatted thread
// replies), joining rooms, fetching room members and display names, and
// incremental /sync. [Stream] wraps /sync into a long-polling loop with
// bounded retry, which is how the assistant daemon consumes room traffic.
//
// Access tokens live in mmap-backed secret buffers (locked against swap,
// excluded from core dumps) for the lifetime of the session.
package messaging
