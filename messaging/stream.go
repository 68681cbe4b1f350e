// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// maxSyncRetries is the number of consecutive /sync failures allowed
// before Next returns an error. Each retry uses a 1-second server-side
// timeout so the HTTP round-trip itself provides backoff.
const maxSyncRetries = 5

// longPollTimeout is the server-side long-poll hold time in milliseconds
// for normal /sync calls. The server holds the connection for up to this
// duration, returning immediately when new events arrive. 30 seconds
// matches the Matrix client-server spec recommendation.
const longPollTimeout = 30000

// retryTimeout is the server-side timeout in milliseconds used after a
// /sync error. Short so the retry completes quickly and the next attempt
// can proceed.
const retryTimeout = 1000

// messageFilter is the inline /sync filter for the event stream: message
// timeline events only, presence and account data suppressed. Room
// membership invites still arrive in the invite section — filters do not
// apply there.
func messageFilter() string {
	top := map[string]any{
		"room": map[string]any{
			"timeline": map[string]any{
				"types": []string{"m.room.message"},
			},
			"state": map[string]any{
				"types": []string{},
			},
		},
		"presence":     map[string]any{"types": []string{}},
		"account_data": map[string]any{"types": []string{}},
	}
	data, _ := json.Marshal(top)
	return string(data)
}

// Stream is a position in the Matrix /sync event stream across all of
// the session's rooms. OpenStream anchors the position at "now" — the
// stream only sees events arriving after it was opened, never backlog
// from before the process started.
//
// All waiting uses /sync long-polling: the server holds the connection
// until new events arrive, then returns immediately. There is no
// client-side polling interval.
//
// Stream is not safe for concurrent use by multiple goroutines.
type Stream struct {
	session   *Session
	logger    *slog.Logger
	filter    string
	nextBatch string
}

// OpenStream captures the current position in the /sync stream. This
// performs an immediate /sync (timeout=0) to obtain the current
// next_batch token without blocking; the token anchors all subsequent
// long-poll calls. Messages sent while the assistant was offline are
// deliberately skipped — answering hours-stale requests causes more
// confusion than silence.
func OpenStream(ctx context.Context, session *Session, logger *slog.Logger) (*Stream, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	filter := messageFilter()
	response, err := session.Sync(ctx, SyncOptions{
		SetTimeout: true,
		Timeout:    0,
		Filter:     filter,
	})
	if err != nil {
		return nil, fmt.Errorf("messaging: initial sync for event stream: %w", err)
	}
	return &Stream{
		session:   session,
		logger:    logger,
		filter:    filter,
		nextBatch: response.NextBatch,
	}, nil
}

// Next blocks until a /sync response with room activity arrives (new
// timeline events in a joined room, or a pending invite) and returns it.
// Bounded by ctx. On transient /sync errors, retries up to 5 times with
// a 1-second server timeout (the HTTP round-trip provides backoff) and
// resets idle connections so the next attempt opens a fresh socket.
func (st *Stream) Next(ctx context.Context) (*SyncResponse, error) {
	var syncRetries int

	for {
		// On retry after a sync error, use a short server-side timeout
		// so the HTTP round-trip itself provides backoff. On first
		// attempt or after success, use the normal long-poll hold.
		syncTimeout := longPollTimeout
		if syncRetries > 0 {
			syncTimeout = retryTimeout
		}
		response, err := st.session.Sync(ctx, SyncOptions{
			Since:      st.nextBatch,
			SetTimeout: true,
			Timeout:    syncTimeout,
			Filter:     st.filter,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("messaging: event stream stopped: %w", ctx.Err())
			}
			// Auth failures are permanent — retrying cannot help, and the
			// daemon needs to know its token was revoked.
			if IsMatrixError(err, ErrCodeUnknownToken) {
				return nil, fmt.Errorf("messaging: event stream auth failure: %w", err)
			}
			syncRetries++
			// TCP-level errors (connection reset, EOF) often indicate a
			// poisoned connection in Go's HTTP pool. Drop idle
			// connections so the next attempt opens a fresh socket.
			st.session.CloseIdleConnections()
			if syncRetries > maxSyncRetries {
				return nil, fmt.Errorf("messaging: sync failed %d consecutive times: %w", syncRetries, err)
			}
			st.logger.Debug("event stream sync error, retrying",
				"attempt", syncRetries,
				"max_attempts", maxSyncRetries,
				"error", err,
			)
			continue
		}
		syncRetries = 0
		st.nextBatch = response.NextBatch

		if len(response.Rooms.Invite) > 0 {
			return response, nil
		}
		for _, joined := range response.Rooms.Join {
			if len(joined.Timeline.Events) > 0 {
				return response, nil
			}
		}
		// The long poll expired with no activity, or the only activity
		// was filtered out. Poll again from the new position.
	}
}

// Position returns the current sync stream position token.
func (st *Stream) Position() string {
	return st.nextBatch
}
