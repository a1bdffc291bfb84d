// Package analysis exposes the analysis-stream session: the single contract
// consumers use to start an incident analysis, observe its state, and tear
// it down.
//
// A Session owns one channel controller and the authoritative in-memory
// record of the current analysis. Sessions are constructed objects, many
// can coexist, and must be released with Close.
package analysis

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mohanadkandil/logSense/internal/channel"
	"github.com/mohanadkandil/logSense/internal/metrics"
	"github.com/mohanadkandil/logSense/internal/protocol"
	"github.com/mohanadkandil/logSense/pkg/model"
)

// TimeoutMessage is recorded when the watchdog expires before a terminal
// frame arrives.
const TimeoutMessage = "analysis timed out"

// DefaultWatchdogTimeout bounds how long a running analysis may go without
// any inbound event before it is failed locally.
const DefaultWatchdogTimeout = 5 * time.Minute

// Config configures a Session.
type Config struct {
	// BaseURL is the analysis service base, e.g. "http://localhost:8000".
	BaseURL string
	// Backoff overrides the reconnect schedule. Zero values use defaults.
	Backoff channel.BackoffConfig
	// WatchdogTimeout overrides DefaultWatchdogTimeout when positive.
	WatchdogTimeout time.Duration
	Logger          *slog.Logger
}

// Snapshot is the externally observable state of one session at an instant.
type Snapshot struct {
	SessionID  string
	IncidentID string
	// Subject is caller bookkeeping passed to Start; never transmitted.
	Subject   string
	Connected bool
	Running   bool
	Steps     []model.StepRecord
	Result    *model.AnalysisResult
	// Error is the last recorded analysis error; empty means unset.
	Error string
}

// Subscription delivers snapshot updates to one observer. The channel is
// latest-wins: a slow reader sees the newest state, not every intermediate
// one.
type Subscription struct {
	// C receives a snapshot after every state change.
	C <-chan Snapshot

	c    chan Snapshot
	s    *Session
	once sync.Once
}

// Close detaches the subscription and closes its channel.
func (sub *Subscription) Close() {
	sub.once.Do(func() {
		sub.s.unsubscribe(sub)
	})
}

// Session is the single entry point for one analysis stream. All methods
// are safe for concurrent use.
type Session struct {
	id     string
	ctrl   *channel.Controller
	logger *slog.Logger

	watchdogTimeout time.Duration

	mu         sync.Mutex
	incidentID string
	subject    string
	connected  bool
	running    bool
	steps      []model.StepRecord
	result     *model.AnalysisResult
	lastError  string
	startedAt  time.Time
	watchdog   *time.Timer
	subs       map[*Subscription]struct{}
	closed     bool
}

// New constructs a Session. The session holds no channel until Start.
func New(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		id:              uuid.NewString(),
		logger:          logger,
		watchdogTimeout: cfg.WatchdogTimeout,
		subs:            make(map[*Subscription]struct{}),
	}
	if s.watchdogTimeout <= 0 {
		s.watchdogTimeout = DefaultWatchdogTimeout
	}
	s.ctrl = channel.New(channel.Config{
		BaseURL: cfg.BaseURL,
		Backoff: cfg.Backoff,
		Logger:  logger.With("session_id", s.id),
	}, s)
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Start begins an analysis for the incident. Duplicate starts while an
// analysis is running are ignored. subject is caller bookkeeping only.
// Start returns immediately; progress is observed through snapshots.
func (s *Session) Start(incidentID, subject string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Warn("start ignored on closed session", "incident_id", incidentID)
		return
	}
	if s.running {
		s.mu.Unlock()
		s.logger.Info("analysis already running, ignoring start", "incident_id", incidentID)
		return
	}
	s.incidentID = incidentID
	s.subject = subject
	s.steps = nil
	s.result = nil
	s.lastError = ""
	s.running = true
	s.startedAt = time.Now()
	s.armWatchdogLocked()
	s.publishLocked()
	s.mu.Unlock()

	s.logger.Info("starting analysis", "incident_id", incidentID, "subject", subject)
	s.ctrl.Open(incidentID)
}

// Clear resets the session to its initial empty state and closes the
// channel.
func (s *Session) Clear() {
	s.mu.Lock()
	s.stopWatchdogLocked()
	s.incidentID = ""
	s.subject = ""
	s.steps = nil
	s.result = nil
	s.lastError = ""
	s.running = false
	s.mu.Unlock()

	s.ctrl.Close()

	s.mu.Lock()
	s.connected = false
	s.publishLocked()
	s.mu.Unlock()
}

// Close releases the session: the channel is closed on every exit path and
// all subscriptions are terminated. The session cannot be restarted.
func (s *Session) Close() {
	s.ctrl.Close()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopWatchdogLocked()
	s.running = false
	s.connected = false
	for sub := range s.subs {
		close(sub.c)
	}
	s.subs = make(map[*Subscription]struct{})
	s.mu.Unlock()

	s.logger.Info("session closed", "session_id", s.id)
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers an observer. Callers must Close the subscription.
func (s *Session) Subscribe() *Subscription {
	sub := &Subscription{s: s, c: make(chan Snapshot, 1)}
	sub.C = sub.c

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(sub.c)
		return sub
	}
	s.subs[sub] = struct{}{}
	return sub
}

func (s *Session) unsubscribe(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub]; ok {
		delete(s.subs, sub)
		close(sub.c)
	}
}

// OnConnected implements channel.Handler.
func (s *Session) OnConnected() {
	s.mu.Lock()
	s.connected = true
	s.publishLocked()
	s.mu.Unlock()
}

// OnDisconnected implements channel.Handler.
func (s *Session) OnDisconnected() {
	s.mu.Lock()
	s.connected = false
	s.publishLocked()
	s.mu.Unlock()
}

// OnEvent implements channel.Handler. Events arrive in transport order.
func (s *Session) OnEvent(ev protocol.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev := ev.(type) {
	case protocol.StartEvent:
		s.logger.Debug("analysis accepted", "incident_id", ev.IssueID)
		s.armWatchdogLocked()

	case protocol.StepEvent:
		// Append-only: every step is retained, duplicates included.
		s.steps = append(s.steps, ev.Step)
		s.armWatchdogLocked()
		s.publishLocked()

	case protocol.CompleteEvent:
		result := ev.Result
		s.result = &result
		s.running = false
		s.stopWatchdogLocked()
		metrics.ObserveAnalysis(time.Since(s.startedAt), metrics.OutcomeSuccess)
		s.logger.Info("analysis complete",
			"incident_id", s.incidentID,
			"confidence", result.Confidence,
			"steps", len(s.steps),
		)
		s.publishLocked()

	case protocol.ErrorEvent:
		s.lastError = ev.Message
		s.running = false
		s.stopWatchdogLocked()
		metrics.ObserveAnalysis(time.Since(s.startedAt), metrics.OutcomeError)
		s.logger.Warn("analysis failed", "incident_id", s.incidentID, "error", ev.Message)
		s.publishLocked()
	}
}

// OnChannelError implements channel.Handler. Non-terminal errors record the
// message without touching the running flag; a terminal error (reconnects
// exhausted) also ends the analysis.
func (s *Session) OnChannelError(message string, terminal bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastError = message
	if terminal && s.running {
		s.running = false
		s.stopWatchdogLocked()
		metrics.ObserveAnalysis(time.Since(s.startedAt), metrics.OutcomeError)
		s.logger.Error("analysis abandoned", "incident_id", s.incidentID, "error", message)
	}
	s.publishLocked()
}

// Running implements channel.Handler; it gates the reconnection policy.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// armWatchdogLocked (re)starts the stall timer. Any inbound event is proof
// of life, so the deadline slides forward on every one.
func (s *Session) armWatchdogLocked() {
	s.stopWatchdogLocked()
	s.watchdog = time.AfterFunc(s.watchdogTimeout, s.watchdogExpired)
}

func (s *Session) stopWatchdogLocked() {
	if s.watchdog != nil {
		s.watchdog.Stop()
		s.watchdog = nil
	}
}

func (s *Session) watchdogExpired() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.lastError = TimeoutMessage
	s.running = false
	s.watchdog = nil
	incidentID := s.incidentID
	metrics.ObserveAnalysis(time.Since(s.startedAt), metrics.OutcomeTimeout)
	s.mu.Unlock()

	s.logger.Warn("watchdog expired, abandoning analysis", "incident_id", incidentID)
	s.ctrl.Close()

	s.mu.Lock()
	s.connected = false
	s.publishLocked()
	s.mu.Unlock()
}

func (s *Session) snapshotLocked() Snapshot {
	steps := make([]model.StepRecord, len(s.steps))
	copy(steps, s.steps)
	var result *model.AnalysisResult
	if s.result != nil {
		r := *s.result
		result = &r
	}
	return Snapshot{
		SessionID:  s.id,
		IncidentID: s.incidentID,
		Subject:    s.subject,
		Connected:  s.connected,
		Running:    s.running,
		Steps:      steps,
		Result:     result,
		Error:      s.lastError,
	}
}

// publishLocked fans the current snapshot out to subscribers. Sends never
// block: a full subscription buffer is drained first so observers always
// hold the newest state.
func (s *Session) publishLocked() {
	if len(s.subs) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for sub := range s.subs {
		select {
		case <-sub.c:
		default:
		}
		select {
		case sub.c <- snap:
		default:
		}
	}
}
