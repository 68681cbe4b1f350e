// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides a Clock interface with real and fake
// implementations, so that TTL and timeout behavior is testable
// without real sleeps.
package clock
