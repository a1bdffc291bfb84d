// Package channel owns the lifetime of one streaming connection per active
// analysis: open, receive, close, and reconnect after abnormal loss.
package channel

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mohanadkandil/logSense/internal/metrics"
	"github.com/mohanadkandil/logSense/internal/protocol"
)

// Error messages surfaced to the session. They are data, not faults: the
// session records them and consumers render them.
const (
	ParseFailureMessage   = "failed to parse server response"
	ConnectFailureMessage = "failed to connect to analysis service"
	ConnectionLostMessage = "connection to analysis service lost"
)

// Handler receives channel lifecycle notifications and decoded events.
// All callbacks fire from controller-owned goroutines.
type Handler interface {
	// OnConnected fires when a channel is established (including reconnects).
	OnConnected()
	// OnEvent delivers one decoded frame, in transport order.
	OnEvent(ev protocol.Event)
	// OnChannelError surfaces a channel-level failure as an analysis error.
	// terminal is true only when reconnect attempts are exhausted; the
	// session then stops considering the analysis in flight.
	OnChannelError(message string, terminal bool)
	// OnDisconnected fires whenever the channel stops being open.
	OnDisconnected()
	// Running reports whether the session still considers an analysis in
	// flight; it gates the reconnection policy.
	Running() bool
}

// Config configures a Controller.
type Config struct {
	// BaseURL is the analysis service base, e.g. "ws://localhost:8000".
	// "http"/"https" schemes are translated to "ws"/"wss".
	BaseURL string
	// Backoff controls the reconnect schedule. Zero values use defaults.
	Backoff BackoffConfig
	// Dialer overrides the websocket dialer (tests). Nil uses the default.
	Dialer *websocket.Dialer
	// HandshakeTimeout bounds each dial attempt. Zero means 10s.
	HandshakeTimeout time.Duration
	Logger           *slog.Logger
}

// Controller manages exactly one channel and at most one pending reconnect
// timer. It is safe for concurrent use.
type Controller struct {
	cfg     Config
	backoff BackoffConfig
	dialer  *websocket.Dialer
	handler Handler
	logger  *slog.Logger

	mu         sync.Mutex
	conn       *websocket.Conn
	incidentID string
	dialing    bool
	attempts   int // consecutive failed attempts since last healthy open
	timer      *time.Timer
	gen        uint64 // connection generation; stale goroutines check it
}

// New creates a Controller delivering to handler. The controller starts
// with no channel; call Open to establish one.
func New(cfg Config, handler Handler) *Controller {
	dialer := cfg.Dialer
	if dialer == nil {
		d := *websocket.DefaultDialer
		dialer = &d
	}
	if cfg.HandshakeTimeout > 0 {
		dialer.HandshakeTimeout = cfg.HandshakeTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		cfg:     cfg,
		backoff: cfg.Backoff.withDefaults(),
		dialer:  dialer,
		handler: handler,
		logger:  logger,
	}
}

// URL returns the channel address for the given incident identifier.
func (c *Controller) URL(incidentID string) string {
	base := strings.TrimRight(c.cfg.BaseURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return fmt.Sprintf("%s/ws/analyze/%s", base, url.PathEscape(incidentID))
}

// Open establishes a channel for the incident. Idempotent: if a channel for
// the same incident is already open (or being opened), Open is a no-op.
// Establishment is asynchronous; the handler observes the outcome.
func (c *Controller) Open(incidentID string) {
	c.mu.Lock()
	if (c.conn != nil || c.dialing) && c.incidentID == incidentID {
		c.mu.Unlock()
		c.logger.Debug("channel already open", "incident_id", incidentID)
		return
	}
	// Opening for a different incident supersedes whatever exists.
	c.teardownLocked()
	c.incidentID = incidentID
	c.attempts = 0
	c.dialing = true
	gen := c.gen
	c.mu.Unlock()

	go c.dial(incidentID, gen)
}

// Close tears down deterministically: it cancels any pending reconnect
// timer and closes the channel if open. Always safe to call.
func (c *Controller) Close() {
	c.mu.Lock()
	c.teardownLocked()
	c.incidentID = ""
	c.mu.Unlock()
}

// teardownLocked cancels the timer, marks the current connection as
// caller-closed, and bumps the generation so in-flight goroutines go stale.
func (c *Controller) teardownLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.attempts = 0
	c.gen++
	c.dialing = false
	if c.conn != nil {
		conn := c.conn
		c.conn = nil
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = conn.Close()
	}
}

func (c *Controller) dial(incidentID string, gen uint64) {
	conn, resp, err := c.dialer.Dial(c.URL(incidentID), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	c.dialing = false
	if err != nil {
		c.mu.Unlock()
		c.logger.Warn("channel dial failed", "incident_id", incidentID, "error", err)
		c.handler.OnChannelError(ConnectFailureMessage, false)
		c.handler.OnDisconnected()
		c.maybeReconnect(incidentID, gen)
		return
	}
	c.conn = conn
	c.attempts = 0
	c.mu.Unlock()

	c.logger.Info("channel open", "incident_id", incidentID)
	c.handler.OnConnected()
	c.readLoop(conn, incidentID, gen)
}

// readLoop delivers frames in transport order until the connection drops.
func (c *Controller) readLoop(conn *websocket.Conn, incidentID string, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleReadError(incidentID, gen, err)
			return
		}

		ev, decodeErr := protocol.Decode(data)
		if decodeErr != nil {
			// Recoverable per-message failure: surface it, keep reading.
			metrics.ObserveDecodeFailure()
			c.logger.Warn("dropping undecodable frame", "incident_id", incidentID, "error", decodeErr)
			c.handler.OnChannelError(ParseFailureMessage, false)
			continue
		}
		metrics.ObserveFrame(frameLabel(ev))
		c.handler.OnEvent(ev)
	}
}

func (c *Controller) handleReadError(incidentID string, gen uint64, err error) {
	c.mu.Lock()
	if gen != c.gen {
		// Caller tore this connection down (clean close); nothing to report.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.mu.Unlock()

	c.handler.OnDisconnected()
	c.logger.Warn("channel closed abnormally", "incident_id", incidentID, "error", err)
	c.maybeReconnect(incidentID, gen)
}

// maybeReconnect schedules exactly one reconnect attempt if the session
// still reports the analysis as running. Attempts are capped; exhaustion
// surfaces a terminal connection-lost error.
func (c *Controller) maybeReconnect(incidentID string, gen uint64) {
	if !c.handler.Running() {
		return
	}

	c.mu.Lock()
	if gen != c.gen || c.timer != nil {
		c.mu.Unlock()
		return
	}
	c.attempts++
	attempt := c.attempts
	if attempt > c.backoff.MaxAttempts {
		c.attempts = 0
		c.mu.Unlock()
		c.logger.Error("reconnect attempts exhausted", "incident_id", incidentID, "attempts", attempt-1)
		c.handler.OnChannelError(ConnectionLostMessage, true)
		return
	}
	delay := c.backoff.Delay(attempt)
	c.timer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		if gen != c.gen {
			c.mu.Unlock()
			return
		}
		c.timer = nil
		if c.conn != nil || c.dialing || !c.handler.Running() {
			c.mu.Unlock()
			return
		}
		c.dialing = true
		c.mu.Unlock()
		c.dial(incidentID, gen)
	})
	c.mu.Unlock()

	metrics.ObserveReconnect()
	c.logger.Info("reconnect scheduled",
		"incident_id", incidentID,
		"attempt", attempt,
		"delay", delay.Round(time.Millisecond),
	)
}

func frameLabel(ev protocol.Event) string {
	switch ev.(type) {
	case protocol.StartEvent:
		return protocol.FrameStart
	case protocol.StepEvent:
		return protocol.FrameStep
	case protocol.CompleteEvent:
		return protocol.FrameComplete
	case protocol.ErrorEvent:
		return protocol.FrameError
	default:
		return "unknown"
	}
}
