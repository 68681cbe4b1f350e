// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/roster-foundation/roster/lib/secret"
)

// testBuffer creates a secret.Buffer from a string for testing. The buffer
// is automatically closed when the test completes.
func testBuffer(t *testing.T, value string) *secret.Buffer {
	t.Helper()
	buffer, err := secret.NewFromString(value)
	if err != nil {
		t.Fatalf("creating test buffer: %v", err)
	}
	t.Cleanup(func() { buffer.Close() })
	return buffer
}

// testClient creates a Client pointed at the given httptest server.
func testClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{HomeserverURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestNewClient(t *testing.T) {
	t.Run("valid URL", func(t *testing.T) {
		client, err := NewClient(ClientConfig{HomeserverURL: "http://localhost:6167"})
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}
		if client == nil {
			t.Fatal("NewClient returned nil")
		}
	})

	t.Run("trailing slash stripped", func(t *testing.T) {
		client, err := NewClient(ClientConfig{HomeserverURL: "http://localhost:6167/"})
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}
		if client.baseURL != "http://localhost:6167" {
			t.Fatalf("baseURL = %q", client.baseURL)
		}
	})

	t.Run("empty URL", func(t *testing.T) {
		if _, err := NewClient(ClientConfig{}); err == nil {
			t.Fatal("expected error for empty URL")
		}
	})

	t.Run("invalid URL", func(t *testing.T) {
		if _, err := NewClient(ClientConfig{HomeserverURL: "://invalid"}); err == nil {
			t.Fatal("expected error for invalid URL")
		}
	})
}

func TestLogin(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if request.URL.Path != "/_matrix/client/v3/login" {
				t.Errorf("unexpected path: %s", request.URL.Path)
				writer.WriteHeader(http.StatusNotFound)
				return
			}
			var body LoginRequest
			if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
				t.Fatalf("decoding login request: %v", err)
			}
			if body.Type != "m.login.password" {
				t.Errorf("login type = %q", body.Type)
			}
			if body.User != "assistant" || body.Password != "hunter2" {
				t.Errorf("credentials = %q/%q", body.User, body.Password)
			}
			json.NewEncoder(writer).Encode(map[string]any{
				"user_id":      "@assistant:roster.local",
				"access_token": "syt_token",
				"device_id":    "DEVICE1",
			})
		}))
		defer server.Close()

		session, err := testClient(t, server).Login(context.Background(), "assistant", testBuffer(t, "hunter2"))
		if err != nil {
			t.Fatalf("Login: %v", err)
		}
		defer session.Close()

		if session.UserID().String() != "@assistant:roster.local" {
			t.Errorf("user ID = %q", session.UserID())
		}
		if session.DeviceID() != "DEVICE1" {
			t.Errorf("device ID = %q", session.DeviceID())
		}
	})

	t.Run("wrong password surfaces MatrixError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusForbidden)
			json.NewEncoder(writer).Encode(map[string]any{
				"errcode": "M_FORBIDDEN",
				"error":   "Invalid password",
			})
		}))
		defer server.Close()

		_, err := testClient(t, server).Login(context.Background(), "assistant", testBuffer(t, "wrong"))
		if err == nil {
			t.Fatal("expected login failure")
		}
		var matrixErr *MatrixError
		if !errors.As(err, &matrixErr) {
			t.Fatalf("expected *MatrixError, got %T: %v", err, err)
		}
		if matrixErr.Code != ErrCodeForbidden {
			t.Errorf("errcode = %q", matrixErr.Code)
		}
		if matrixErr.StatusCode != http.StatusForbidden {
			t.Errorf("status = %d", matrixErr.StatusCode)
		}
	})

	t.Run("missing credentials rejected locally", func(t *testing.T) {
		client, err := NewClient(ClientConfig{HomeserverURL: "http://localhost:6167"})
		if err != nil {
			t.Fatalf("NewClient: %v", err)
		}
		if _, err := client.Login(context.Background(), "", testBuffer(t, "x")); err == nil {
			t.Fatal("expected error for empty username")
		}
		if _, err := client.Login(context.Background(), "assistant", nil); err == nil {
			t.Fatal("expected error for nil password")
		}
	})
}

func TestServerVersions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/_matrix/client/versions" {
			writer.WriteHeader(http.StatusNotFound)
			return
		}
		if auth := request.Header.Get("Authorization"); auth != "" {
			t.Errorf("unauthenticated endpoint got Authorization header %q", auth)
		}
		json.NewEncoder(writer).Encode(map[string]any{"versions": []string{"v1.11", "v1.12"}})
	}))
	defer server.Close()

	versions, err := testClient(t, server).ServerVersions(context.Background())
	if err != nil {
		t.Fatalf("ServerVersions: %v", err)
	}
	if len(versions.Versions) != 2 || versions.Versions[0] != "v1.11" {
		t.Fatalf("versions = %v", versions.Versions)
	}
}

func TestIsMatrixError(t *testing.T) {
	err := &MatrixError{Code: ErrCodeUnknownToken, Message: "token revoked", StatusCode: 401}
	if !IsMatrixError(err, ErrCodeUnknownToken) {
		t.Error("expected match on M_UNKNOWN_TOKEN")
	}
	if IsMatrixError(err, ErrCodeForbidden) {
		t.Error("unexpected match on M_FORBIDDEN")
	}
	if IsMatrixError(errors.New("plain"), ErrCodeUnknownToken) {
		t.Error("plain error should not match")
	}
}

func TestDoRequestNonJSONError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusBadGateway)
		writer.Write([]byte("<html>upstream unavailable</html>"))
	}))
	defer server.Close()

	_, err := testClient(t, server).ServerVersions(context.Background())
	if err == nil {
		t.Fatal("expected error for non-JSON 502")
	}
	var matrixErr *MatrixError
	if errors.As(err, &matrixErr) {
		t.Fatalf("non-JSON body should not decode as MatrixError: %v", err)
	}
}
