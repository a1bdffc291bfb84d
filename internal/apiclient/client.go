// Package apiclient is a typed HTTP client for the LogSense backend's REST
// API. The streaming subsystem never calls this; it exists for consumers
// (the CLI) that list incidents and read persisted analyses.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mohanadkandil/logSense/pkg/model"
)

// HealthStatus is the backend's detailed health report.
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// Stats summarises platform-wide incident counts.
type Stats struct {
	Incidents struct {
		Unresolved int `json:"unresolved"`
		Resolved   int `json:"resolved"`
		Total      int `json:"total"`
	} `json:"incidents"`
	ResolutionRate float64 `json:"resolution_rate"`
	Timestamp      string  `json:"timestamp"`
}

// KnowledgeSearch is the result of a knowledge-base similarity query.
type KnowledgeSearch struct {
	Query   string                  `json:"query"`
	Results []model.SimilarIncident `json:"results"`
	Count   int                     `json:"count"`
}

// Client talks to one LogSense backend instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New constructs a Client for the given base URL, e.g. "http://localhost:8000".
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Health fetches the backend's service health report.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var out HealthStatus
	if err := c.getJSON(ctx, "/api/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListIncidents returns recent incidents, filtered by status
// ("unresolved", "resolved", "ignored").
func (c *Client) ListIncidents(ctx context.Context, limit int, status string) ([]model.Incident, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if status != "" {
		q.Set("status", status)
	}
	var out []model.Incident
	if err := c.getJSON(ctx, "/api/incidents", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetIncident returns the detailed record for one incident. The backend
// relays the upstream issue tracker's payload, so the shape is open.
func (c *Client) GetIncident(ctx context.Context, incidentID string) (map[string]any, error) {
	var out map[string]any
	if err := c.getJSON(ctx, "/api/incidents/"+url.PathEscape(incidentID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListAnalyses returns previously persisted analyses, newest first.
func (c *Client) ListAnalyses(ctx context.Context, limit int) ([]model.AnalysisRecord, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []model.AnalysisRecord
	if err := c.getJSON(ctx, "/api/analyses", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetAnalysis returns one persisted analysis with its step log.
func (c *Client) GetAnalysis(ctx context.Context, analysisID string) (*model.AnalysisRecord, error) {
	var out model.AnalysisRecord
	if err := c.getJSON(ctx, "/api/analyses/"+url.PathEscape(analysisID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats returns platform statistics.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var out Stats
	if err := c.getJSON(ctx, "/api/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchKnowledge queries the knowledge base for similar past incidents.
func (c *Client) SearchKnowledge(ctx context.Context, query string, limit int) (*KnowledgeSearch, error) {
	q := url.Values{}
	q.Set("query", query)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out KnowledgeSearch
	if err := c.getJSON(ctx, "/api/knowledge/search", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResolveIncident marks an incident resolved and records the fix in the
// knowledge base.
func (c *Client) ResolveIncident(ctx context.Context, incidentID, rootCause, fix string, confidence float64) error {
	q := url.Values{}
	q.Set("root_cause", rootCause)
	q.Set("fix", fix)
	q.Set("confidence", strconv.FormatFloat(confidence, 'f', -1, 64))
	path := "/api/incidents/" + url.PathEscape(incidentID) + "/resolve"
	return c.do(ctx, http.MethodPost, path, q, nil)
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}
