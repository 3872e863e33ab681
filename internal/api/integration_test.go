//go:build integration

// End-to-end tests against a running Railwatch server.
//
// The scenarios walk the dashboard flow:
//
//	domains -> default selection -> report -> narrowed selection -> prediction
//
// Run with: RAILWATCH_TEST_URL=http://localhost:8080 go test -tags=integration ./internal/api/...
package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/railwatch/railwatch/internal/domain"
)

func baseURL() string {
	if u := os.Getenv("RAILWATCH_TEST_URL"); u != "" {
		return u
	}
	return "http://localhost:8080"
}

var client = &http.Client{Timeout: 10 * time.Second}

func call(t *testing.T, method, path string, body any, wantStatus int, out any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, baseURL()+path, reader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: expected status %d, got %d: %s", method, path, wantStatus, resp.StatusCode, respBody)
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			t.Fatalf("failed to decode response: %v (body: %s)", err, respBody)
		}
	}
}

func TestDashboardFlow(t *testing.T) {
	var domains domain.Domains
	call(t, http.MethodGet, "/domains", nil, http.StatusOK, &domains)
	if len(domains.Lines) == 0 {
		t.Fatal("server has no dataset loaded")
	}

	var sel domain.Selection
	call(t, http.MethodGet, "/selection/default", nil, http.StatusOK, &sel)

	var full domain.Report
	call(t, http.MethodPost, "/reports", sel, http.StatusOK, &full)
	if full.RowCount == 0 {
		t.Fatal("default selection should match every incident")
	}

	var total int
	for _, g := range full.BySystem {
		total += g.Count
	}
	if total != full.RowCount {
		t.Errorf("by-system counts sum to %d, expected %d", total, full.RowCount)
	}

	// One line only: never more rows than the full view.
	narrowed := sel
	narrowed.Lines = domains.Lines[:1]
	var part domain.Report
	call(t, http.MethodPost, "/reports", narrowed, http.StatusOK, &part)
	if part.RowCount > full.RowCount {
		t.Errorf("narrowed view has %d rows, full view %d", part.RowCount, full.RowCount)
	}

	var cleared domain.Selection
	call(t, http.MethodPost, "/selection/lines/clear", sel, http.StatusOK, &cleared)
	call(t, http.MethodPost, "/reports", cleared, http.StatusUnprocessableEntity, nil)
}

func TestPredictionIsRecorded(t *testing.T) {
	var domains domain.Domains
	call(t, http.MethodGet, "/domains", nil, http.StatusOK, &domains)

	var resp struct {
		ID    string `json:"id"`
		Label string `json:"label"`
	}
	call(t, http.MethodPost, "/predict", map[string]string{
		"date":        "2024-03-06",
		"line":        domains.Lines[0],
		"system":      domains.Systems[0],
		"vehicle_id":  domains.Vehicles[0],
		"description": "Puertas no cierran en estación",
	}, http.StatusOK, &resp)

	// Logs are persisted asynchronously by the worker.
	deadline := time.Now().Add(5 * time.Second)
	for {
		req, _ := http.NewRequest(http.MethodGet, baseURL()+"/predictions/"+resp.ID, nil)
		r, err := client.Do(req)
		if err == nil {
			r.Body.Close()
			if r.StatusCode == http.StatusOK {
				return
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("prediction %s was not recorded", resp.ID)
		}
		time.Sleep(100 * time.Millisecond)
	}
}
