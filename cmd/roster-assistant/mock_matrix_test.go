// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// mockHomeserver implements the subset of the Matrix client-server API
// the assistant uses: /sync, /join, /leave, /members, /send, and the
// profile displayname lookup. Thread-safe: tests enqueue events from
// the test goroutine while the assistant's sync loop handles requests.
type mockHomeserver struct {
	mu sync.Mutex

	// pendingMessages holds timeline events for the next /sync
	// response. Keyed by room ID; cleared once delivered.
	pendingMessages map[string][]mockEvent

	// invites holds rooms with a pending invite. An invite appears in
	// /sync responses until the assistant joins the room.
	invites map[string]bool

	// roomMembers backs the /members endpoint. Key: room ID.
	roomMembers map[string][]mockMember

	// displayNames backs the profile endpoint. Key: user ID.
	displayNames map[string]string

	// joined and left record lifecycle calls for assertions.
	joined []string
	left   []string

	// sent records every message the assistant posted, in order.
	sent []sentMessage

	// sentSignal receives one value per recorded send, so tests can
	// wait for the reply instead of polling.
	sentSignal chan sentMessage

	// activity is signaled when new events or invites are enqueued,
	// waking a /sync request that found nothing to deliver.
	activity chan struct{}

	// syncBatch numbers next_batch tokens.
	syncBatch int

	// syncsServed counts completed /sync responses. Tests wait for the
	// first one (the assistant's anchor sync) before enqueueing events,
	// since anything delivered by the anchor is deliberately skipped.
	syncsServed int

	// eventCounter numbers generated event IDs.
	eventCounter int
}

type mockEvent struct {
	EventID string         `json:"event_id"`
	Type    string         `json:"type"`
	Sender  string         `json:"sender"`
	Content map[string]any `json:"content"`
}

type mockMember struct {
	UserID      string `json:"user_id"`
	Membership  string `json:"membership"`
	DisplayName string `json:"display_name,omitempty"`
}

// sentMessage is one recorded PUT /send body.
type sentMessage struct {
	RoomID        string
	Body          string
	FormattedBody string
	ThreadRoot    string
	ReplyTo       string
}

func newMockHomeserver() *mockHomeserver {
	return &mockHomeserver{
		pendingMessages: make(map[string][]mockEvent),
		invites:         make(map[string]bool),
		roomMembers:     make(map[string][]mockMember),
		displayNames:    make(map[string]string),
		sentSignal:      make(chan sentMessage, 16),
		activity:        make(chan struct{}, 1),
	}
}

// enqueueMessage queues an m.room.message text event for the next
// incremental /sync response and returns its event ID.
func (m *mockHomeserver) enqueueMessage(roomID, sender, body string) string {
	m.mu.Lock()
	m.eventCounter++
	eventID := fmt.Sprintf("$event%d:roster.local", m.eventCounter)
	m.pendingMessages[roomID] = append(m.pendingMessages[roomID], mockEvent{
		EventID: eventID,
		Type:    "m.room.message",
		Sender:  sender,
		Content: map[string]any{"msgtype": "m.text", "body": body},
	})
	m.mu.Unlock()
	m.notify()
	return eventID
}

// addInvite marks a room as having a pending invite. Cleared when the
// assistant joins the room.
func (m *mockHomeserver) addInvite(roomID string) {
	m.mu.Lock()
	m.invites[roomID] = true
	m.mu.Unlock()
	m.notify()
}

func (m *mockHomeserver) setRoomMembers(roomID string, members []mockMember) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roomMembers[roomID] = members
}

func (m *mockHomeserver) leftRooms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.left...)
}

func (m *mockHomeserver) sentMessages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sent...)
}

func (m *mockHomeserver) notify() {
	select {
	case m.activity <- struct{}{}:
	default:
	}
}

func (m *mockHomeserver) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if path == "/_matrix/client/v3/sync" && r.Method == "GET" {
			m.handleSync(w, r)
			return
		}

		const joinPrefix = "/_matrix/client/v3/join/"
		if strings.HasPrefix(path, joinPrefix) && r.Method == "POST" {
			roomID, _ := url.PathUnescape(path[len(joinPrefix):])
			m.handleJoin(w, roomID)
			return
		}

		const profilePrefix = "/_matrix/client/v3/profile/"
		if strings.HasPrefix(path, profilePrefix) && r.Method == "GET" {
			rest := path[len(profilePrefix):]
			userID, _ := url.PathUnescape(strings.TrimSuffix(rest, "/displayname"))
			m.handleDisplayName(w, userID)
			return
		}

		const roomsPrefix = "/_matrix/client/v3/rooms/"
		if !strings.HasPrefix(path, roomsPrefix) {
			http.NotFound(w, r)
			return
		}
		rest := path[len(roomsPrefix):]
		segments := strings.SplitN(rest, "/", 2)
		if len(segments) < 2 {
			http.NotFound(w, r)
			return
		}
		roomID := segments[0]
		action := segments[1]

		switch {
		case action == "leave" && r.Method == "POST":
			m.mu.Lock()
			m.left = append(m.left, roomID)
			m.mu.Unlock()
			writeJSON(w, map[string]any{})
		case action == "members" && r.Method == "GET":
			m.handleMembers(w, roomID)
		case strings.HasPrefix(action, "send/") && r.Method == "PUT":
			m.handleSend(w, r, roomID)
		default:
			http.NotFound(w, r)
		}
	})
}

// handleSync delivers pending invites before pending messages: the
// real server reports an invite on the sync after it happens, and the
// assistant must have joined and bound the room before messages from
// it make sense. A timeout=0 request (the assistant's anchor sync)
// returns immediately; otherwise, when nothing is pending, the handler
// holds the request briefly, mimicking server-side long-polling.
func (m *mockHomeserver) handleSync(w http.ResponseWriter, r *http.Request) {
	hold := r.URL.Query().Get("timeout") != "0"
	deadline := time.After(200 * time.Millisecond)
	for {
		m.mu.Lock()
		m.syncBatch++
		response := map[string]any{
			"next_batch": fmt.Sprintf("s%d", m.syncBatch),
		}
		if len(m.invites) > 0 {
			invite := make(map[string]any)
			for roomID := range m.invites {
				invite[roomID] = map[string]any{"invite_state": map[string]any{}}
			}
			m.invites = make(map[string]bool)
			response["rooms"] = map[string]any{"invite": invite}
			m.syncsServed++
			m.mu.Unlock()
			writeJSON(w, response)
			return
		}
		if len(m.pendingMessages) > 0 {
			join := make(map[string]any)
			for roomID, events := range m.pendingMessages {
				join[roomID] = map[string]any{
					"timeline": map[string]any{"events": events},
				}
			}
			m.pendingMessages = make(map[string][]mockEvent)
			response["rooms"] = map[string]any{"join": join}
			m.syncsServed++
			m.mu.Unlock()
			writeJSON(w, response)
			return
		}
		if !hold {
			m.syncsServed++
			m.mu.Unlock()
			writeJSON(w, response)
			return
		}
		m.mu.Unlock()

		select {
		case <-m.activity:
		case <-deadline:
			m.mu.Lock()
			m.syncBatch++
			m.syncsServed++
			next := fmt.Sprintf("s%d", m.syncBatch)
			m.mu.Unlock()
			writeJSON(w, map[string]any{"next_batch": next})
			return
		}
	}
}

// anchored reports whether the assistant's initial sync has been
// served.
func (m *mockHomeserver) anchored() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.syncsServed > 0
}

func (m *mockHomeserver) handleJoin(w http.ResponseWriter, roomID string) {
	m.mu.Lock()
	m.joined = append(m.joined, roomID)
	delete(m.invites, roomID)
	m.mu.Unlock()
	writeJSON(w, map[string]string{"room_id": roomID})
}

func (m *mockHomeserver) handleMembers(w http.ResponseWriter, roomID string) {
	m.mu.Lock()
	members := m.roomMembers[roomID]
	m.mu.Unlock()
	chunk := make([]map[string]any, 0, len(members))
	for _, member := range members {
		chunk = append(chunk, map[string]any{
			"type":      "m.room.member",
			"state_key": member.UserID,
			"sender":    member.UserID,
			"content": map[string]any{
				"membership":  member.Membership,
				"displayname": member.DisplayName,
			},
		})
	}
	writeJSON(w, map[string]any{"chunk": chunk})
}

func (m *mockHomeserver) handleDisplayName(w http.ResponseWriter, userID string) {
	m.mu.Lock()
	name, ok := m.displayNames[userID]
	m.mu.Unlock()
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"errcode": "M_NOT_FOUND",
			"error":   "profile not found",
		})
		return
	}
	writeJSON(w, map[string]string{"displayname": name})
}

func (m *mockHomeserver) handleSend(w http.ResponseWriter, r *http.Request, roomID string) {
	var content struct {
		Body          string `json:"body"`
		FormattedBody string `json:"formatted_body"`
		RelatesTo     *struct {
			EventID   string `json:"event_id"`
			InReplyTo *struct {
				EventID string `json:"event_id"`
			} `json:"m.in_reply_to"`
		} `json:"m.relates_to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&content); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	message := sentMessage{
		RoomID:        roomID,
		Body:          content.Body,
		FormattedBody: content.FormattedBody,
	}
	if content.RelatesTo != nil {
		message.ThreadRoot = content.RelatesTo.EventID
		if content.RelatesTo.InReplyTo != nil {
			message.ReplyTo = content.RelatesTo.InReplyTo.EventID
		}
	}

	m.mu.Lock()
	m.eventCounter++
	eventID := fmt.Sprintf("$sent%d:roster.local", m.eventCounter)
	m.sent = append(m.sent, message)
	m.mu.Unlock()
	m.sentSignal <- message

	writeJSON(w, map[string]string{"event_id": eventID})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
