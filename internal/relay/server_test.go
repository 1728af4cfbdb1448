// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/loomchat/loom/internal/upstream"
)

// mockUpstream stands in for the Groq API.
func mockUpstream(t *testing.T, handler http.HandlerFunc) *upstream.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return upstream.NewClient("test-key").WithBaseURL(srv.URL)
}

// okUpstream replies with the given content for every request.
func okUpstream(t *testing.T, content string) *upstream.Client {
	t.Helper()
	return mockUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
}

// relayRequest runs one request through the full middleware-wrapped handler.
func relayRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response body not JSON: %v (%q)", err, rec.Body.String())
	}
	return body
}

func TestHealth(t *testing.T) {
	srv := NewServer(0, okUpstream(t, "unused"))
	rec := relayRequest(t, srv, http.MethodGet, "/health", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "healthy" {
		t.Errorf("status field = %v, want healthy", body["status"])
	}
	ts, _ := body["timestamp"].(string)
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("timestamp %q not RFC3339: %v", ts, err)
	}
}

func TestHealthSkipsUpstream(t *testing.T) {
	called := false
	up := mockUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	srv := NewServer(0, up)
	relayRequest(t, srv, http.MethodGet, "/health", "")
	if called {
		t.Error("health check reached the upstream")
	}
}

func TestChatSuccess(t *testing.T) {
	srv := NewServer(0, okUpstream(t, "The answer is 42."))
	rec := relayRequest(t, srv, http.MethodPost, "/api/chat",
		`{"messages":[{"role":"user","content":"what is the answer?"}]}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["response"] != "The answer is 42." {
		t.Errorf("response = %v", body["response"])
	}
	if body["model"] != upstream.DefaultModelLabel {
		t.Errorf("model label = %v, want %q", body["model"], upstream.DefaultModelLabel)
	}
	if body["provider"] != upstream.DefaultProviderLabel {
		t.Errorf("provider label = %v, want %q", body["provider"], upstream.DefaultProviderLabel)
	}
	ts, _ := body["timestamp"].(string)
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("timestamp %q not RFC3339: %v", ts, err)
	}
}

func TestChatInjectsSystemInstruction(t *testing.T) {
	var got upstream.ChatRequest
	up := mockUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decoding upstream request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "ok"}},
			},
		})
	})
	srv := NewServer(0, up)

	rec := relayRequest(t, srv, http.MethodPost, "/api/chat",
		`{"messages":[{"role":"user","content":"q1"},{"role":"assistant","content":"a1"},{"role":"user","content":"q2"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	if len(got.Messages) != 4 {
		t.Fatalf("upstream got %d messages, want 4", len(got.Messages))
	}
	if got.Messages[0].Role != "system" {
		t.Errorf("first upstream message role = %q, want system", got.Messages[0].Role)
	}
	if got.Messages[0].Content != systemInstruction {
		t.Errorf("system content = %q", got.Messages[0].Content)
	}
	for i, want := range []string{"q1", "a1", "q2"} {
		if got.Messages[i+1].Content != want {
			t.Errorf("upstream message %d = %q, want %q", i+1, got.Messages[i+1].Content, want)
		}
	}
	if got.Model != upstream.DefaultModel {
		t.Errorf("upstream model = %q, want %q", got.Model, upstream.DefaultModel)
	}
}

func TestChatInvalidRequests(t *testing.T) {
	srv := NewServer(0, okUpstream(t, "unused"))

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"not json", "hello"},
		{"missing messages", `{}`},
		{"messages not a list", `{"messages":"nope"}`},
		{"message missing role", `{"messages":[{"content":"hi"}]}`},
		{"message missing content", `{"messages":[{"role":"user"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := relayRequest(t, srv, http.MethodPost, "/api/chat", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			body := decodeBody(t, rec)
			if _, ok := body["error"].(string); !ok {
				t.Errorf("error field missing: %v", body)
			}
		})
	}
}

func TestChatEmptyMessageList(t *testing.T) {
	// An empty list is a valid sequence; the relay forwards just the
	// system instruction.
	srv := NewServer(0, okUpstream(t, "hello"))
	rec := relayRequest(t, srv, http.MethodPost, "/api/chat", `{"messages":[]}`)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestChatNotConfigured(t *testing.T) {
	srv := NewServer(0, upstream.NewClient(""))
	rec := relayRequest(t, srv, http.MethodPost, "/api/chat",
		`{"messages":[{"role":"user","content":"hi"}]}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	body := decodeBody(t, rec)
	msg, _ := body["error"].(string)
	if !strings.Contains(msg, "GROQ_API_KEY") {
		t.Errorf("error = %q, want mention of GROQ_API_KEY", msg)
	}
}

func TestChatUpstreamErrorMapping(t *testing.T) {
	tests := []struct {
		name         string
		upstreamCode int
		wantStatus   int
	}{
		{"auth failure", http.StatusUnauthorized, http.StatusUnauthorized},
		{"quota exhausted", http.StatusPaymentRequired, http.StatusPaymentRequired},
		{"rate limited", http.StatusTooManyRequests, http.StatusTooManyRequests},
		{"upstream 500", http.StatusInternalServerError, http.StatusInternalServerError},
		{"upstream 503", http.StatusServiceUnavailable, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := mockUpstream(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.upstreamCode)
				w.Write([]byte(`{"error":{"message":"upstream says no"}}`))
			})
			srv := NewServer(0, up)

			rec := relayRequest(t, srv, http.MethodPost, "/api/chat",
				`{"messages":[{"role":"user","content":"hi"}]}`)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := decodeBody(t, rec)
			if _, ok := body["error"].(string); !ok {
				t.Errorf("error field missing: %v", body)
			}
			if tt.wantStatus == http.StatusInternalServerError {
				if _, ok := body["details"]; !ok {
					t.Errorf("500 response missing details: %v", body)
				}
			}
		})
	}
}

func TestChatMethodNotAllowed(t *testing.T) {
	srv := NewServer(0, okUpstream(t, "unused"))
	rec := relayRequest(t, srv, http.MethodGet, "/api/chat", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestChatAttachmentMetadataAccepted(t *testing.T) {
	srv := NewServer(0, okUpstream(t, "summarized"))
	rec := relayRequest(t, srv, http.MethodPost, "/api/chat",
		`{"messages":[{"role":"user","content":"summarize the file"}],"files":[{"name":"notes.txt","size":2048}]}`)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := NewServer(0, okUpstream(t, "unused"))

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("preflight status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("preflight body = %q, want empty", rec.Body.String())
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "POST") {
		t.Errorf("Allow-Methods = %q, want POST included", got)
	}
}

func TestCORSHeadersOnChat(t *testing.T) {
	srv := NewServer(0, okUpstream(t, "hi"))
	rec := relayRequest(t, srv, http.MethodPost, "/api/chat",
		`{"messages":[{"role":"user","content":"hi"}]}`)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
}

func TestCORSAllowlist(t *testing.T) {
	srv := NewServer(0, okUpstream(t, "hi")).WithCORS(&CORSConfig{
		AllowedOrigins: []string{"http://app.example.com"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	req.Header.Set("Origin", "http://app.example.com")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://app.example.com" {
		t.Errorf("Allow-Origin = %q, want allowlisted origin echoed", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	req.Header.Set("Origin", "http://evil.example.com")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q for disallowed origin, want empty", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	panics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	handler := RecoveryMiddleware()(panics)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status after panic = %d, want 500", rec.Code)
	}
}

func TestNewServerDefaultPort(t *testing.T) {
	srv := NewServer(0, upstream.NewClient("k"))
	if srv.Port() != DefaultPort {
		t.Errorf("Port = %d, want %d", srv.Port(), DefaultPort)
	}
	srv = NewServer(8123, upstream.NewClient("k"))
	if srv.Port() != 8123 {
		t.Errorf("Port = %d, want 8123", srv.Port())
	}
}
