// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// syncScript serves a scripted sequence of /sync responses, one per
// request, then repeats the last entry. Each entry is either a response
// body (as a map) or an HTTP status code for an error response.
type syncScript struct {
	mu        sync.Mutex
	responses []any
	calls     int
	sinces    []string
}

func (s *syncScript) handler(t *testing.T) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/_matrix/client/v3/sync" {
			t.Errorf("unexpected path: %s", request.URL.Path)
			writer.WriteHeader(http.StatusNotFound)
			return
		}
		s.mu.Lock()
		index := s.calls
		s.calls++
		s.sinces = append(s.sinces, request.URL.Query().Get("since"))
		if index >= len(s.responses) {
			index = len(s.responses) - 1
		}
		entry := s.responses[index]
		s.mu.Unlock()

		switch response := entry.(type) {
		case int:
			writer.WriteHeader(response)
			json.NewEncoder(writer).Encode(map[string]any{
				"errcode": "M_UNKNOWN",
				"error":   "simulated failure",
			})
		default:
			json.NewEncoder(writer).Encode(response)
		}
	}
}

func emptySync(nextBatch string) map[string]any {
	return map[string]any{"next_batch": nextBatch}
}

func messageSync(nextBatch, roomID string) map[string]any {
	return map[string]any{
		"next_batch": nextBatch,
		"rooms": map[string]any{
			"join": map[string]any{
				roomID: map[string]any{
					"timeline": map[string]any{
						"events": []map[string]any{
							{
								"event_id": "$msg1",
								"type":     "m.room.message",
								"sender":   "@alice:roster.local",
								"content":  map[string]any{"msgtype": "m.text", "body": "/list"},
							},
						},
					},
				},
			},
		},
	}
}

func TestStreamSkipsBacklogAndDeliversActivity(t *testing.T) {
	script := &syncScript{responses: []any{
		// Initial anchor sync: backlog is discarded, only the token kept.
		messageSync("s1", "!team:roster.local"),
		// First long poll expires idle, second carries a message.
		emptySync("s2"),
		messageSync("s3", "!team:roster.local"),
	}}
	server := httptest.NewServer(script.handler(t))
	defer server.Close()
	session := testSession(t, server)

	stream, err := OpenStream(context.Background(), session, nil)
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	if stream.Position() != "s1" {
		t.Fatalf("anchor position = %q", stream.Position())
	}

	response, err := stream.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if response.NextBatch != "s3" {
		t.Errorf("delivered batch = %q, want the one with activity", response.NextBatch)
	}
	if stream.Position() != "s3" {
		t.Errorf("position = %q", stream.Position())
	}

	script.mu.Lock()
	sinces := append([]string(nil), script.sinces...)
	script.mu.Unlock()
	// Anchor sync has no since; the polls advance through the tokens.
	if len(sinces) != 3 || sinces[0] != "" || sinces[1] != "s1" || sinces[2] != "s2" {
		t.Errorf("since progression = %v", sinces)
	}
}

func TestStreamDeliversInvites(t *testing.T) {
	script := &syncScript{responses: []any{
		emptySync("s1"),
		map[string]any{
			"next_batch": "s2",
			"rooms": map[string]any{
				"invite": map[string]any{
					"!dm:roster.local": map[string]any{"invite_state": map[string]any{}},
				},
			},
		},
	}}
	server := httptest.NewServer(script.handler(t))
	defer server.Close()

	stream, err := OpenStream(context.Background(), testSession(t, server), nil)
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	response, err := stream.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(response.Rooms.Invite) != 1 {
		t.Fatalf("invites = %d", len(response.Rooms.Invite))
	}
}

func TestStreamRetriesTransientErrors(t *testing.T) {
	script := &syncScript{responses: []any{
		emptySync("s1"),
		http.StatusInternalServerError,
		http.StatusInternalServerError,
		messageSync("s2", "!team:roster.local"),
	}}
	server := httptest.NewServer(script.handler(t))
	defer server.Close()

	stream, err := OpenStream(context.Background(), testSession(t, server), nil)
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	response, err := stream.Next(context.Background())
	if err != nil {
		t.Fatalf("Next should survive transient errors: %v", err)
	}
	if response.NextBatch != "s2" {
		t.Errorf("batch = %q", response.NextBatch)
	}
}

func TestStreamGivesUpAfterRepeatedFailures(t *testing.T) {
	script := &syncScript{responses: []any{
		emptySync("s1"),
		http.StatusInternalServerError,
	}}
	server := httptest.NewServer(script.handler(t))
	defer server.Close()

	stream, err := OpenStream(context.Background(), testSession(t, server), nil)
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	if _, err := stream.Next(context.Background()); err == nil {
		t.Fatal("expected failure after exhausting retries")
	}
	script.mu.Lock()
	calls := script.calls
	script.mu.Unlock()
	// Anchor sync plus the failed poll and its retries.
	if calls != 1+maxSyncRetries+1 {
		t.Errorf("sync calls = %d, want %d", calls, 1+maxSyncRetries+1)
	}
}

func TestStreamStopsOnRevokedToken(t *testing.T) {
	var mu sync.Mutex
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		mu.Lock()
		index := calls
		calls++
		mu.Unlock()
		if index == 0 {
			json.NewEncoder(writer).Encode(emptySync("s1"))
			return
		}
		writer.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(writer).Encode(map[string]any{
			"errcode": "M_UNKNOWN_TOKEN",
			"error":   "Access token revoked",
		})
	}))
	defer server.Close()

	stream, err := OpenStream(context.Background(), testSession(t, server), nil)
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	if _, err := stream.Next(context.Background()); !IsMatrixError(err, ErrCodeUnknownToken) {
		t.Fatalf("expected immediate M_UNKNOWN_TOKEN failure, got %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Errorf("auth failure should not be retried: %d calls", calls)
	}
}
