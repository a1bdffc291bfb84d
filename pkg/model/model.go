// Package model defines the LogSense domain types shared by the streaming
// subsystem, the REST client, and consumers.
package model

import "time"

// StepRecord is one unit of investigation progress emitted by the analysis
// engine. Steps accumulate in arrival order for the lifetime of one analysis
// and are never reordered or deduplicated.
type StepRecord struct {
	Step      string    `json:"step"`
	Tool      string    `json:"tool,omitempty"`
	Output    string    `json:"output"`
	Timestamp time.Time `json:"timestamp"`
}

// SuggestedFix is one actionable remediation proposed by the engine.
// Confidence is on the 0-100 scale the engine emits for fixes.
type SuggestedFix struct {
	Title        string   `json:"title"`
	Steps        []string `json:"steps"`
	Confidence   float64  `json:"confidence"`
	TimeEstimate string   `json:"time_estimate"`
	Risk         string   `json:"risk"`
}

// SimilarIncident references a past incident retrieved from the knowledge
// base during investigation.
type SimilarIncident struct {
	IncidentID   string  `json:"incident_id"`
	ErrorMessage string  `json:"error_message"`
	RootCause    string  `json:"root_cause"`
	Fix          string  `json:"fix"`
	Similarity   float64 `json:"similarity"`
}

// AnalysisResult is the terminal success payload of one analysis.
// Confidence is in [0,1].
type AnalysisResult struct {
	IssueID          string            `json:"issue_id"`
	ErrorMessage     string            `json:"error_message"`
	RootCause        string            `json:"root_cause"`
	Confidence       float64           `json:"confidence"`
	SuggestedFixes   []SuggestedFix    `json:"suggested_fixes"`
	SimilarIncidents []SimilarIncident `json:"similar_incidents"`
	DurationSeconds  float64           `json:"duration_seconds"`
	Status           string            `json:"status"`
}

// Incident is a Sentry issue as surfaced by the LogSense backend.
type Incident struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Culprit   string         `json:"culprit"`
	Level     string         `json:"level"`
	Count     int            `json:"count"`
	FirstSeen time.Time      `json:"first_seen"`
	LastSeen  time.Time      `json:"last_seen"`
	Status    string         `json:"status"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// AnalysisRecord is a previously persisted analysis as returned by the
// backend's read API (GET /api/analyses). It wraps an AnalysisResult with
// record identity and the step log captured at completion time.
type AnalysisRecord struct {
	ID               string            `json:"id"`
	IssueID          string            `json:"issue_id"`
	ErrorMessage     string            `json:"error_message"`
	RootCause        string            `json:"root_cause"`
	Confidence       float64           `json:"confidence"`
	SuggestedFixes   []SuggestedFix    `json:"suggested_fixes,omitempty"`
	SimilarIncidents []SimilarIncident `json:"similar_incidents,omitempty"`
	DurationSeconds  float64           `json:"duration_seconds"`
	Status           string            `json:"status"`
	CreatedAt        time.Time         `json:"created_at"`
	Steps            []StepRecord      `json:"steps,omitempty"`
}
