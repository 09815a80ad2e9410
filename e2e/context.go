// Package e2e drives a running concord server through its HTTP API.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TestContext holds the HTTP client and per-scenario state shared by the
// step packages.
type TestContext struct {
	BaseURL string
	Client  *http.Client

	clock        time.Time
	lastStatus   int
	lastBody     []byte
	lastResponse map[string]any
	saved        map[string]string
}

func NewTestContext(baseURL string) *TestContext {
	return &TestContext{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 10 * time.Second},
		saved:   map[string]string{},
	}
}

// Reset clears scenario state.
func (tc *TestContext) Reset() {
	tc.clock = time.Time{}
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.lastResponse = nil
	tc.saved = map[string]string{}
}

// SetClock pins the server's request clock for subsequent requests. The
// server must run with CONCORD_ALLOW_CLOCK_OVERRIDE.
func (tc *TestContext) SetClock(t time.Time) { tc.clock = t }

func (tc *TestContext) Clock() time.Time {
	if tc.clock.IsZero() {
		return time.Now().UTC()
	}
	return tc.clock
}

func (tc *TestContext) POST(path string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return tc.do(http.MethodPost, path, bytes.NewReader(raw))
}

func (tc *TestContext) GET(path string) error {
	return tc.do(http.MethodGet, path, nil)
}

func (tc *TestContext) do(method, path string, body io.Reader) error {
	req, err := http.NewRequest(method, tc.BaseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !tc.clock.IsZero() {
		req.Header.Set("X-Concord-Time", tc.clock.Format(time.RFC3339))
	}
	resp, err := tc.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	tc.lastResponse = nil
	if len(tc.lastBody) > 0 {
		var parsed map[string]any
		if json.Unmarshal(tc.lastBody, &parsed) == nil {
			tc.lastResponse = parsed
		}
	}
	return nil
}

func (tc *TestContext) GetLastResponseStatus() int { return tc.lastStatus }

func (tc *TestContext) GetLastResponseBody() []byte { return tc.lastBody }

// GetResponseField resolves a dotted path such as "guardrails.ecology.outcome"
// in the last JSON response. Numeric segments index arrays.
func (tc *TestContext) GetResponseField(path string) (any, error) {
	if tc.lastResponse == nil {
		return nil, fmt.Errorf("no JSON response (status %d): %s", tc.lastStatus, tc.lastBody)
	}
	var cur any = tc.lastResponse
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("field %q not found in response: %s", path, tc.lastBody)
			}
			cur = v
		case []any:
			var idx int
			if _, err := fmt.Sscanf(part, "%d", &idx); err != nil || idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("index %q out of range in %q", part, path)
			}
			cur = node[idx]
		default:
			return nil, fmt.Errorf("cannot descend into %q of %q", part, path)
		}
	}
	return cur, nil
}

func (tc *TestContext) Save(key, value string) { tc.saved[key] = value }

func (tc *TestContext) Saved(key string) string { return tc.saved[key] }
