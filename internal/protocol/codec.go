// Package protocol parses inbound analysis-stream frames into typed events.
//
// The channel is server-push only after the initial open: there is no
// outbound encoding. Every frame is a JSON object with a "type"
// discriminator and a "content" payload; anything that does not conform is
// rejected whole rather than letting malformed nested fields propagate
// into session state.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mohanadkandil/logSense/pkg/model"
)

// Frame type discriminators emitted by the analysis engine.
const (
	FrameStart    = "start"
	FrameStep     = "step"
	FrameComplete = "complete"
	FrameError    = "error"
)

// FallbackErrorMessage is used when an error frame carries no error field.
const FallbackErrorMessage = "Analysis failed"

var (
	// ErrUnknownFrameType is returned for discriminators outside the closed set.
	ErrUnknownFrameType = errors.New("unknown frame type")
	// ErrMissingContent is returned when a frame has no content payload.
	ErrMissingContent = errors.New("frame has no content")
)

// Event is one decoded inbound frame. The set of implementations is closed:
// StartEvent, StepEvent, CompleteEvent, ErrorEvent.
type Event interface {
	frameType() string
}

// StartEvent announces that the engine accepted the incident and began
// investigating.
type StartEvent struct {
	IssueID      string
	ErrorMessage string
	Timestamp    time.Time
}

// StepEvent carries one unit of investigation progress.
type StepEvent struct {
	Step model.StepRecord
}

// CompleteEvent carries the terminal success payload.
type CompleteEvent struct {
	Result model.AnalysisResult
}

// ErrorEvent carries the terminal failure payload.
type ErrorEvent struct {
	Message string
}

func (StartEvent) frameType() string    { return FrameStart }
func (StepEvent) frameType() string     { return FrameStep }
func (CompleteEvent) frameType() string { return FrameComplete }
func (ErrorEvent) frameType() string    { return FrameError }

type frame struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

// Decode parses a raw text frame into a typed event. Any failure (invalid
// JSON, unknown discriminator, nonconforming content) is a codec error;
// callers treat it as recoverable and keep the channel open.
func Decode(raw []byte) (Event, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	switch f.Type {
	case FrameStart:
		return decodeStart(f.Content)
	case FrameStep:
		return decodeStep(f.Content)
	case FrameComplete:
		return decodeComplete(f.Content)
	case FrameError:
		return decodeError(f.Content)
	case "":
		return nil, fmt.Errorf("decode frame: missing type discriminator")
	default:
		return nil, fmt.Errorf("decode frame %q: %w", f.Type, ErrUnknownFrameType)
	}
}

func decodeStart(content json.RawMessage) (Event, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("start frame: %w", ErrMissingContent)
	}
	var body struct {
		IssueID      string `json:"issue_id"`
		ErrorMessage string `json:"error_message"`
		Timestamp    string `json:"timestamp"`
	}
	if err := json.Unmarshal(content, &body); err != nil {
		return nil, fmt.Errorf("start frame: %w", err)
	}
	ev := StartEvent{IssueID: body.IssueID, ErrorMessage: body.ErrorMessage}
	if body.Timestamp != "" {
		ts, err := parseTimestamp(body.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("start frame: %w", err)
		}
		ev.Timestamp = ts
	}
	return ev, nil
}

func decodeStep(content json.RawMessage) (Event, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("step frame: %w", ErrMissingContent)
	}
	var body struct {
		Step      string `json:"step"`
		Tool      string `json:"tool"`
		Output    string `json:"output"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(content, &body); err != nil {
		return nil, fmt.Errorf("step frame: %w", err)
	}
	if body.Step == "" {
		return nil, fmt.Errorf("step frame: missing step label")
	}
	ts, err := parseTimestamp(body.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("step frame: %w", err)
	}
	return StepEvent{Step: model.StepRecord{
		Step:      body.Step,
		Tool:      body.Tool,
		Output:    body.Output,
		Timestamp: ts,
	}}, nil
}

func decodeComplete(content json.RawMessage) (Event, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("complete frame: %w", ErrMissingContent)
	}
	var result model.AnalysisResult
	if err := json.Unmarshal(content, &result); err != nil {
		return nil, fmt.Errorf("complete frame: %w", err)
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		return nil, fmt.Errorf("complete frame: confidence %v outside [0,1]", result.Confidence)
	}
	if result.Status == "" {
		result.Status = "success"
	}
	return CompleteEvent{Result: result}, nil
}

func decodeError(content json.RawMessage) (Event, error) {
	// An error frame with no content still yields the fallback message: the
	// engine reports failures best-effort and may omit detail entirely.
	if len(content) == 0 {
		return ErrorEvent{Message: FallbackErrorMessage}, nil
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(content, &body); err != nil {
		return nil, fmt.Errorf("error frame: %w", err)
	}
	if body.Error == "" {
		return ErrorEvent{Message: FallbackErrorMessage}, nil
	}
	return ErrorEvent{Message: body.Error}, nil
}

// timestampLayouts covers RFC 3339 plus the zone-less form the engine's
// Python isoformat() produces.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
