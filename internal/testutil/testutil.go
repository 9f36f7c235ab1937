// Package testutil holds HTTP test helpers shared by handler and server tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func NewTestRequest(method, path string, body io.Reader) *http.Request {
	return httptest.NewRequest(method, path, body)
}

// NewTestRequestWithJSON encodes payload as the request body.
func NewTestRequestWithJSON(t *testing.T, method, path string, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func ParseJSONResponse(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode response %q: %v", body, err)
	}
	return out
}

func AssertStatusCode(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected status %d, got %d (%s)", want, rr.Code, rr.Body.String())
	}
}

// AssertJSONContains checks one top-level field. Numbers are compared after
// formatting, so want may be an int.
func AssertJSONContains(t *testing.T, body []byte, key string, want any) {
	t.Helper()
	got, ok := ParseJSONResponse(t, body)[key]
	if !ok {
		t.Fatalf("expected key %q in %s", key, body)
	}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("expected %s=%v, got %v", key, want, got)
	}
}

// RandomID returns a positive id that will not collide across tests.
func RandomID() int64 {
	u := uuid.New()
	return int64(binary.BigEndian.Uint64(u[:8])>>1) | 1
}
