package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cucumber/godog"
)

// TestContext holds the HTTP client and the state shared between steps of
// one scenario.
type TestContext struct {
	baseURL    string
	adminToken string
	client     *http.Client

	mu           sync.Mutex
	lastStatus   int
	lastBody     []byte
	eventID      string
	submissions  map[string]string
	concurrent   []int
	submitSerial int
}

func NewTestContext() *TestContext {
	baseURL := os.Getenv("PODIUM_E2E_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &TestContext{
		baseURL:    strings.TrimRight(baseURL, "/"),
		adminToken: os.Getenv("PODIUM_E2E_ADMIN_TOKEN"),
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (tc *TestContext) reset(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.eventID = ""
	tc.submissions = map[string]string{}
	tc.concurrent = nil
	return ctx, nil
}

// Do sends a JSON request and records the response. It is safe for
// concurrent use; the last response to finish wins.
func (tc *TestContext) Do(method, path string, body any, admin bool) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, tc.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		if tc.adminToken == "" {
			return 0, nil, fmt.Errorf("PODIUM_E2E_ADMIN_TOKEN is not set")
		}
		req.Header.Set("Authorization", "Bearer "+tc.adminToken)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}

	tc.mu.Lock()
	tc.lastStatus = resp.StatusCode
	tc.lastBody = respBody
	tc.mu.Unlock()
	return resp.StatusCode, respBody, nil
}

func (tc *TestContext) GET(path string, admin bool) error {
	_, _, err := tc.Do(http.MethodGet, path, nil, admin)
	return err
}

func (tc *TestContext) POST(path string, body any, admin bool) error {
	_, _, err := tc.Do(http.MethodPost, path, body, admin)
	return err
}

func (tc *TestContext) PATCH(path string, body any) error {
	_, _, err := tc.Do(http.MethodPatch, path, body, true)
	return err
}

func (tc *TestContext) GetLastResponseStatus() int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.lastStatus
}

func (tc *TestContext) GetLastResponseBody() []byte {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.lastBody
}

// GetResponseField reads a dotted path such as "error" or "items.1.ok" from
// the last JSON response.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var doc any
	if err := json.Unmarshal(tc.GetLastResponseBody(), &doc); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	return lookup(doc, field)
}

func (tc *TestContext) EventID() string { return tc.eventID }
func (tc *TestContext) SetEventID(eventID string) { tc.eventID = eventID }

func (tc *TestContext) SubmissionID(name string) (string, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	subID, ok := tc.submissions[name]
	if !ok {
		return "", fmt.Errorf("no submission named %q", name)
	}
	return subID, nil
}

func (tc *TestContext) SetSubmissionID(name, subID string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.submissions[name] = subID
}

func (tc *TestContext) RecordConcurrent(status int) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.concurrent = append(tc.concurrent, status)
}

func (tc *TestContext) ConcurrentStatuses() []int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return append([]int(nil), tc.concurrent...)
}

// NextTeam returns a team name unique within the scenario.
func (tc *TestContext) NextTeam() string {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.submitSerial++
	return fmt.Sprintf("team-%d-%d", time.Now().UnixNano(), tc.submitSerial)
}
