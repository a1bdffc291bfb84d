package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, 2*time.Second)
}

func TestListIncidents(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/incidents" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("limit = %q, want 5", got)
		}
		if got := r.URL.Query().Get("status"); got != "unresolved" {
			t.Errorf("status = %q, want unresolved", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "INC-1", "title": "DB timeout", "level": "error", "count": 12},
		})
	})

	incidents, err := c.ListIncidents(context.Background(), 5, "unresolved")
	if err != nil {
		t.Fatalf("ListIncidents: %v", err)
	}
	if len(incidents) != 1 {
		t.Fatalf("got %d incidents, want 1", len(incidents))
	}
	if incidents[0].ID != "INC-1" || incidents[0].Count != 12 {
		t.Errorf("unexpected incident: %+v", incidents[0])
	}
}

func TestGetAnalysis(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/analyses/abc-123" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"issue_id":      "INC-1",
			"root_cause":    "connection pool exhausted",
			"confidence":    0.9,
			"error_message": "timeout acquiring connection",
		})
	})

	rec, err := c.GetAnalysis(context.Background(), "abc-123")
	if err != nil {
		t.Fatalf("GetAnalysis: %v", err)
	}
	if rec.RootCause != "connection pool exhausted" {
		t.Errorf("root cause = %q", rec.RootCause)
	}
	if rec.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", rec.Confidence)
	}
}

func TestResolveIncidentSendsParams(t *testing.T) {
	var gotMethod, gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusOK)
	})

	err := c.ResolveIncident(context.Background(), "INC-9", "bad deploy", "rollback", 0.8)
	if err != nil {
		t.Fatalf("ResolveIncident: %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %q, want POST", gotMethod)
	}
	if gotQuery == "" {
		t.Fatal("expected query parameters")
	}
}

func TestErrorStatusIncludesBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"incident not found"}`, http.StatusNotFound)
	})

	_, err := c.GetIncident(context.Background(), "nope")
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if got := err.Error(); !strings.Contains(got, "404") || !strings.Contains(got, "incident not found") {
		t.Errorf("error %q missing status or body", got)
	}
}

func TestContextCancellation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := c.Health(ctx); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
