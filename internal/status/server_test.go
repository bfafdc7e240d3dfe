package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aceteam-ai/seqcipher/internal/usage"
)

func newTestServer(state string, ledger Ledger) *Server {
	collector := NewCollector(CollectorConfig{
		PipelineFn: func() PipelineStats {
			return PipelineStats{WorkerID: "w1", WorkerState: state, Queued: 1, Processed: 3}
		},
		Ledger:    ledger,
		CPUSample: 10 * time.Millisecond,
	})
	return NewServer(ServerConfig{Version: "1.0.0"}, collector)
}

func TestNewServer(t *testing.T) {
	collector := NewCollector(CollectorConfig{})

	tests := []struct {
		name     string
		config   ServerConfig
		wantPort int
	}{
		{
			name:     "with default port",
			config:   ServerConfig{},
			wantPort: 8089,
		},
		{
			name: "with custom port",
			config: ServerConfig{
				Port: 9090,
			},
			wantPort: 9090,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := NewServer(tt.config, collector)

			if server == nil {
				t.Fatal("NewServer returned nil")
			}
			if server.Port() != tt.wantPort {
				t.Errorf("Port() = %v, want %v", server.Port(), tt.wantPort)
			}
		})
	}
}

func TestServerHealthEndpoint(t *testing.T) {
	tests := []struct {
		state      string
		wantCode   int
		wantStatus string
	}{
		{"idle", http.StatusOK, HealthStatusOK},
		{"processing", http.StatusOK, HealthStatusOK},
		{"stopping", http.StatusOK, HealthStatusDegraded},
		{"terminal", http.StatusServiceUnavailable, HealthStatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			server := newTestServer(tt.state, nil)

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			w := httptest.NewRecorder()
			server.Handler().ServeHTTP(w, req)

			resp := w.Result()
			if resp.StatusCode != tt.wantCode {
				t.Errorf("StatusCode = %v, want %v", resp.StatusCode, tt.wantCode)
			}

			var healthResp HealthResponse
			if err := json.NewDecoder(resp.Body).Decode(&healthResp); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if healthResp.Status != tt.wantStatus {
				t.Errorf("Status = %v, want %v", healthResp.Status, tt.wantStatus)
			}
			if healthResp.Version != "1.0.0" {
				t.Errorf("Version = %v, want 1.0.0", healthResp.Version)
			}
		})
	}
}

func TestServerStatusEndpoint(t *testing.T) {
	server := newTestServer("idle", &fakeLedger{summary: usage.Summary{Total: 3}})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("StatusCode = %v, want %v", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %v, want application/json", ct)
	}

	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if snap.Pipeline.WorkerID != "w1" {
		t.Errorf("Pipeline.WorkerID = %v, want w1", snap.Pipeline.WorkerID)
	}
	if snap.Ledger == nil || snap.Ledger.Total != 3 {
		t.Errorf("Ledger = %+v, want Total 3", snap.Ledger)
	}
}

func TestServerMethodNotAllowed(t *testing.T) {
	server := newTestServer("idle", nil)

	for _, path := range []string{"/status", "/health", "/completions"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, req)

		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST %s: StatusCode = %v, want %v", path, w.Code, http.StatusMethodNotAllowed)
		}
	}
}

func TestServerCompletionsEndpoint(t *testing.T) {
	ledger := &fakeLedger{records: []usage.CompletionRecord{
		{ItemKey: "c", Status: usage.StatusSuccess, ElapsedMs: 30},
		{ItemKey: "b", Status: usage.StatusSuccess, ElapsedMs: 20},
		{ItemKey: "a", Status: usage.StatusSuccess, ElapsedMs: 10},
	}}
	server := newTestServer("idle", ledger)

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantCount int
	}{
		{"default limit", "", http.StatusOK, 3},
		{"explicit limit", "?limit=2", http.StatusOK, 2},
		{"zero limit", "?limit=0", http.StatusBadRequest, 0},
		{"not a number", "?limit=many", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/completions"+tt.query, nil)
			w := httptest.NewRecorder()
			server.Handler().ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("StatusCode = %v, want %v", w.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}

			var body struct {
				Completions []CompletionView `json:"completions"`
			}
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if len(body.Completions) != tt.wantCount {
				t.Errorf("len(completions) = %d, want %d", len(body.Completions), tt.wantCount)
			}
		})
	}
}
