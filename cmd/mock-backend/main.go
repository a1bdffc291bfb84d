// Command mock-backend is a local stand-in for the LogSense backend. It
// serves canned REST fixtures and a scripted analysis stream so the CLI and
// the streaming subsystem can be exercised without Sentry or an LLM.
//
// Fault injection flags simulate the failure modes the client must survive:
//
//	--malformed    inject an unparseable frame mid-stream
//	--drop-after   abruptly close the socket after N frames
//	--fail         end the stream with an error frame instead of a result
//	--stall        stop sending after the first step (exercises the watchdog)
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/mohanadkandil/logSense/internal/logging"
	"github.com/mohanadkandil/logSense/pkg/model"
)

var (
	addr      = flag.String("addr", ":8000", "listen address")
	stepDelay = flag.Duration("step-delay", 400*time.Millisecond, "delay between streamed frames")
	malformed = flag.Bool("malformed", false, "inject a malformed frame mid-stream")
	dropAfter = flag.Int("drop-after", 0, "abruptly close the socket after this many frames (0 = never)")
	fail      = flag.Bool("fail", false, "end the stream with an error frame")
	stall     = flag.Bool("stall", false, "stop sending after the first step")
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func main() {
	flag.Parse()
	logging.Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), "")

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", handleHealth)
	mux.HandleFunc("/api/incidents", handleIncidents)
	mux.HandleFunc("/api/incidents/", handleIncidentDetail)
	mux.HandleFunc("/api/analyses", handleAnalyses)
	mux.HandleFunc("/api/stats", handleStats)
	mux.HandleFunc("/api/knowledge/search", handleKnowledgeSearch)
	mux.HandleFunc("/ws/analyze/", handleAnalyze)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websocket streams stay open
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("mock backend listening", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("mock backend stopped", "error", err)
		os.Exit(1)
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services": map[string]string{
			"sentry":         "connected",
			"knowledge_base": "connected",
			"llm":            "mock",
		},
	})
}

func handleIncidents(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = "unresolved"
	}
	writeJSON(w, []model.Incident{
		{
			ID:        "INC-1001",
			Title:     "OperationalError: connection pool exhausted",
			Culprit:   "app/db/session.py in get_session",
			Level:     "error",
			Count:     132,
			FirstSeen: time.Now().Add(-6 * time.Hour),
			LastSeen:  time.Now().Add(-3 * time.Minute),
			Status:    status,
		},
		{
			ID:        "INC-1002",
			Title:     "TimeoutError: upstream payments gateway",
			Culprit:   "app/payments/client.py in charge",
			Level:     "warning",
			Count:     17,
			FirstSeen: time.Now().Add(-2 * time.Hour),
			LastSeen:  time.Now().Add(-10 * time.Minute),
			Status:    status,
		},
	})
}

func handleIncidentDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/incidents/")
	if strings.HasSuffix(id, "/resolve") {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, map[string]any{
			"status":      "resolved",
			"incident_id": strings.TrimSuffix(id, "/resolve"),
		})
		return
	}
	writeJSON(w, map[string]any{
		"id":     id,
		"title":  "OperationalError: connection pool exhausted",
		"level":  "error",
		"status": "unresolved",
		"tags": []map[string]string{
			{"key": "environment", "value": "production"},
			{"key": "release", "value": "v2.14.0"},
		},
	})
}

func handleAnalyses(w http.ResponseWriter, r *http.Request) {
	rec := model.AnalysisRecord{
		ID:           "a1b2c3d4-0000-4000-8000-000000000001",
		IssueID:      "INC-1001",
		ErrorMessage: "OperationalError: connection pool exhausted",
		RootCause:    "Connection pool too small for current traffic",
		Confidence:   0.92,
		Status:       "success",
		CreatedAt:    time.Now().Add(-30 * time.Minute),
	}
	if id := strings.TrimPrefix(r.URL.Path, "/api/analyses"); id != "" && id != "/" {
		writeJSON(w, rec)
		return
	}
	writeJSON(w, []model.AnalysisRecord{rec})
}

func handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"incidents": map[string]int{
			"unresolved": 2,
			"resolved":   14,
			"total":      16,
		},
		"resolution_rate": 0.875,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

func handleKnowledgeSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	writeJSON(w, map[string]any{
		"query": query,
		"results": []model.SimilarIncident{
			{
				IncidentID:   "INC-0871",
				ErrorMessage: "OperationalError: connection pool exhausted",
				RootCause:    "Pool size of 5 insufficient after traffic doubled",
				Fix:          "Raised pool_size to 20 and added pool_pre_ping",
				Similarity:   0.94,
			},
		},
		"count": 1,
	})
}

// handleAnalyze streams a scripted analysis over WebSocket, applying
// whatever fault injection flags are set.
func handleAnalyze(w http.ResponseWriter, r *http.Request) {
	incidentID := strings.TrimPrefix(r.URL.Path, "/ws/analyze/")
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	slog.Info("analysis stream opened", "incident_id", incidentID)

	sent := 0
	send := func(frame any) bool {
		if *dropAfter > 0 && sent >= *dropAfter {
			slog.Info("dropping connection", "after_frames", sent)
			conn.Close()
			return false
		}
		var payload []byte
		switch v := frame.(type) {
		case string:
			payload = []byte(v)
		default:
			b, err := json.Marshal(v)
			if err != nil {
				slog.Error("marshal frame", "error", err)
				return false
			}
			payload = b
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			slog.Info("stream closed by client", "error", err)
			return false
		}
		sent++
		time.Sleep(*stepDelay)
		return true
	}

	if !send(frame("start", map[string]string{"issue_id": incidentID})) {
		return
	}

	steps := []model.StepRecord{
		{Step: "Fetching incident details from Sentry", Timestamp: time.Now()},
		{Step: "Searching knowledge base for similar incidents", Tool: "search_knowledge_base", Timestamp: time.Now()},
		{Step: "Inspecting recent releases", Tool: "get_recent_releases", Timestamp: time.Now()},
		{Step: "Formulating root cause hypothesis", Timestamp: time.Now()},
	}
	for i, step := range steps {
		if *stall && i == 1 {
			slog.Info("stalling stream")
			readUntilClose(conn)
			return
		}
		if *malformed && i == 2 {
			if !send(`{"type": "step", "content": `) {
				return
			}
		}
		if !send(frame("step", step)) {
			return
		}
	}

	if *fail {
		send(frame("error", map[string]string{"error": "LLM provider unavailable"}))
		return
	}

	send(frame("complete", model.AnalysisResult{
		IssueID:      incidentID,
		ErrorMessage: "OperationalError: connection pool exhausted",
		RootCause:    "Connection pool too small for current traffic",
		Confidence:   0.92,
		SuggestedFixes: []model.SuggestedFix{
			{
				Title:        "Increase connection pool size",
				Steps:        []string{"Set pool_size=20", "Enable pool_pre_ping", "Redeploy"},
				Confidence:   90,
				TimeEstimate: "15 minutes",
				Risk:         "low",
			},
		},
		SimilarIncidents: []model.SimilarIncident{
			{IncidentID: "INC-0871", RootCause: "Pool size insufficient", Similarity: 0.94},
		},
		DurationSeconds: float64(sent) * stepDelay.Seconds(),
		Status:          "success",
	}))
}

func frame(frameType string, content any) map[string]any {
	return map[string]any{"type": frameType, "content": content}
}

// readUntilClose blocks until the peer closes, so a stalled stream keeps
// the socket open instead of tearing it down.
func readUntilClose(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("encode response", "error", err)
	}
}
