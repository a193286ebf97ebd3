package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eduforge/eduforge-go/internal/api"
	"github.com/eduforge/eduforge-go/internal/telemetry"
)

// Status is the generation status of a session.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusStreaming Status = "streaming"
	StatusCompleted Status = "completed"
	StatusErrored   Status = "errored"
	StatusAborted   Status = "aborted"
)

// ProtocolError reports a server-tagged error frame or an abnormal
// stream termination.
type ProtocolError struct {
	Message string
	Err     error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stream protocol error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("stream protocol error: %s", e.Message)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// Handler consumes one frame. Handlers for a session are invoked
// synchronously, in arrival order, never concurrently with each other.
type Handler func(Frame)

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *telemetry.Metrics) SessionOption {
	return func(s *Session) { s.metrics = m }
}

// WithIdleTimeout fails the session with a ProtocolError if the
// transport goes silent for longer than d. Zero disables the watchdog.
func WithIdleTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.idleTimeout = d }
}

// Session is one in-flight streaming generation request. It owns its
// decode buffer and abort handle; sessions are fully independent of
// each other.
type Session struct {
	id          string
	client      *api.Client
	logger      *slog.Logger
	metrics     *telemetry.Metrics
	idleTimeout time.Duration

	mu       sync.Mutex
	status   Status
	cancel   context.CancelFunc
	aborted  bool
	handlers map[Kind][]Handler
}

// NewSession creates a session. An empty id gets a generated one.
func NewSession(client *api.Client, id string, opts ...SessionOption) *Session {
	if id == "" {
		id = NewID()
	}
	s := &Session{
		id:       id,
		client:   client,
		logger:   slog.Default(),
		status:   StatusIdle,
		handlers: make(map[Kind][]Handler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session_id", id)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Status returns the current generation status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// On registers a handler for one frame kind. Handlers must be
// registered before Open.
func (s *Session) On(kind Kind, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[kind] = append(s.handlers[kind], h)
}

// Open issues the streaming request and blocks until the stream
// reaches a terminal state, dispatching each decoded frame to the
// registered handlers in arrival order. A done frame or a clean
// end-of-stream completes the session; an error frame or a transport
// failure returns a *ProtocolError; Abort ends it with a nil error.
func (s *Session) Open(ctx context.Context, path string, payload any) error {
	s.mu.Lock()
	if s.status != StatusIdle {
		s.mu.Unlock()
		return fmt.Errorf("session %s already opened", s.id)
	}
	if s.aborted {
		s.mu.Unlock()
		return fmt.Errorf("session %s aborted before open", s.id)
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.status = StatusStreaming
	s.mu.Unlock()
	defer cancel()

	start := time.Now()
	defer func() {
		s.metrics.RecordSessionDuration(time.Since(start))
	}()

	body, err := s.client.Stream(ctx, "POST", path, payload)
	if err != nil {
		s.finish(StatusErrored)
		return err
	}
	defer func() { _ = body.Close() }()

	var lastRead atomic.Int64
	lastRead.Store(time.Now().UnixNano())
	var idleExpired atomic.Bool
	if s.idleTimeout > 0 {
		go s.watchdog(ctx, &lastRead, &idleExpired, cancel)
	}

	dec := NewDecoder(s.logger, s.metrics)
	buf := make([]byte, 8192)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			lastRead.Store(time.Now().UnixNano())
			for _, frame := range dec.Feed(buf[:n]) {
				if s.isAborted() {
					s.finish(StatusAborted)
					return nil
				}
				s.dispatch(frame)
				switch frame.Kind {
				case KindDone:
					s.finish(StatusCompleted)
					return nil
				case KindError:
					s.finish(StatusErrored)
					return &ProtocolError{Message: frame.Message}
				}
			}
		}
		if readErr != nil {
			if s.isAborted() {
				s.finish(StatusAborted)
				return nil
			}
			if errors.Is(readErr, io.EOF) {
				// End of stream without an explicit done frame is a
				// normal close; an error frame would have ended the
				// session already.
				s.finish(StatusCompleted)
				return nil
			}
			s.finish(StatusErrored)
			if idleExpired.Load() {
				return &ProtocolError{Message: "stream idle timeout", Err: readErr}
			}
			return &ProtocolError{Message: "stream transport failed", Err: readErr}
		}
	}
}

// Abort cancels the underlying transport. Buffered frames not yet
// dispatched are discarded; a handler already executing finishes its
// current step. Calling Abort again is a no-op.
func (s *Session) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aborted {
		return
	}
	s.aborted = true
	if s.cancel != nil {
		s.cancel()
	}
	if s.status == StatusIdle {
		s.status = StatusAborted
	}
	s.logger.Debug("session aborted")
}

func (s *Session) isAborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

// finish moves a streaming session to a terminal status. Abort wins
// over any other terminal transition requested afterwards.
func (s *Session) finish(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusStreaming {
		s.status = st
	}
}

func (s *Session) dispatch(frame Frame) {
	s.mu.Lock()
	handlers := s.handlers[frame.Kind]
	s.mu.Unlock()
	for _, h := range handlers {
		h(frame)
	}
}

// watchdog cancels the transport when no bytes arrive within the idle
// timeout.
func (s *Session) watchdog(ctx context.Context, lastRead *atomic.Int64, expired *atomic.Bool, cancel context.CancelFunc) {
	interval := s.idleTimeout / 4
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			last := time.Unix(0, lastRead.Load())
			if time.Since(last) > s.idleTimeout {
				expired.Store(true)
				s.logger.Warn("stream idle timeout expired", "timeout", s.idleTimeout)
				cancel()
				return
			}
		}
	}
}
