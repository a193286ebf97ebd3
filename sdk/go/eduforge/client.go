// Package eduforge provides a Go client for the EduForge platform:
// cookie-authenticated REST access, streaming generation sessions
// (tutor chat, comic panels), and saved-resource management.
//
// Usage:
//
//	client, err := eduforge.New(cfg)
//	_, err = client.Login(ctx, "teacher@example.com", "secret")
//	snap, err := client.StreamChat(ctx, eduforge.ChatRequest{Message: "Explain photosynthesis"},
//		func(delta string) { fmt.Print(delta) })
package eduforge

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/eduforge/eduforge-go/internal/api"
	"github.com/eduforge/eduforge-go/internal/assemble"
	"github.com/eduforge/eduforge-go/internal/auth"
	"github.com/eduforge/eduforge-go/internal/config"
	"github.com/eduforge/eduforge-go/internal/resources"
	"github.com/eduforge/eduforge-go/internal/stream"
	"github.com/eduforge/eduforge-go/internal/telemetry"
)

// Streaming generation endpoints.
const (
	TutorStreamPath = "/api/tutor/stream"
	ComicStreamPath = "/api/comics/stream"
)

// Option configures the Client.
type Option func(*Client)

// WithLogger replaces the logger built from the config.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics replaces the default metrics collector.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// Client ties the authenticated HTTP client, streaming sessions, the
// assembler, and the saved-resource collection together behind one
// surface.
type Client struct {
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *telemetry.Metrics
	api       *api.Client
	auth      *auth.Session
	store     *resources.Store
	resources *resources.Service
	assembler *assemble.Assembler

	mu     sync.Mutex
	active *stream.Session
}

// New creates a client from the given config (config.Default() when
// nil).
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	c := &Client{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = telemetry.NewLogger(os.Stderr, telemetry.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	}
	if c.metrics == nil {
		c.metrics = telemetry.NewMetrics()
	}

	apiClient, err := api.NewClient(cfg.BaseURL,
		api.WithTimeout(cfg.RequestTimeout.Std()),
		api.WithLogger(c.logger),
		api.WithMetrics(c.metrics),
	)
	if err != nil {
		return nil, err
	}
	c.api = apiClient
	c.auth = auth.NewSession(apiClient, c.logger)
	c.store = resources.NewStore()
	c.resources = resources.NewService(apiClient, c.store, c.logger)
	c.assembler = assemble.New(c.logger)

	// A dead auth session invalidates everything derived from it.
	apiClient.SetOnAuthExpired(func() {
		c.auth.Clear()
		c.store.Clear()
		c.assembler.Discard()
	})

	return c, nil
}

// Login authenticates and records the principal snapshot.
func (c *Client) Login(ctx context.Context, email, password string) (*auth.Principal, error) {
	return c.auth.Login(ctx, email, password)
}

// Logout ends the session server-side and clears local credentials.
func (c *Client) Logout(ctx context.Context) error {
	return c.auth.Logout(ctx)
}

// Me rehydrates the principal from still-valid cookies.
func (c *Client) Me(ctx context.Context) (*auth.Principal, error) {
	return c.auth.Me(ctx)
}

// Authenticated reports whether a principal snapshot is present.
func (c *Client) Authenticated() bool {
	return c.auth.Authenticated()
}

// NewSessionID generates a session identifier for callers that want to
// correlate several calls with one conversation.
func NewSessionID() string {
	return stream.NewID()
}

// ChatRequest starts or continues a tutor conversation.
type ChatRequest struct {
	// SessionID correlates the stream with a conversation; empty
	// generates a fresh one.
	SessionID string
	Message   string
}

// StreamChat opens a tutor generation stream and assembles the reply
// incrementally. onDelta, when non-nil, receives each text delta as it
// arrives. Returns the final transient snapshot; on a generation or
// transport failure the snapshot holds whatever partial content
// arrived.
func (c *Client) StreamChat(ctx context.Context, req ChatRequest, onDelta func(delta string)) (assemble.Snapshot, error) {
	sess := c.newSession(req.SessionID)
	if onDelta != nil {
		sess.On(stream.KindTextChunk, func(f stream.Frame) { onDelta(f.Content) })
	}

	payload := map[string]any{
		"session_id": sess.ID(),
		"message":    req.Message,
	}
	return c.run(ctx, sess, TutorStreamPath, payload)
}

// ComicRequest describes a comic generation job.
type ComicRequest struct {
	SessionID string
	Topic     string
	Panels    int
	Subject   string
	Grade     string
}

// GenerateComic opens a comic generation stream. Panels arrive tagged
// with their position and are kept in index order no matter the
// arrival order. onPanel, when non-nil, is told each panel index as
// its image lands.
func (c *Client) GenerateComic(ctx context.Context, req ComicRequest, onPanel func(index int)) (assemble.Snapshot, error) {
	sess := c.newSession(req.SessionID)
	if onPanel != nil {
		sess.On(stream.KindPanelImage, func(f stream.Frame) { onPanel(f.Index) })
	}

	payload := map[string]any{
		"session_id": sess.ID(),
		"topic":      req.Topic,
		"panels":     req.Panels,
		"subject":    req.Subject,
		"grade":      req.Grade,
	}
	return c.run(ctx, sess, ComicStreamPath, payload)
}

// newSession builds a stream session and swaps the transient to it.
// Any unsaved content from the previous session is discarded.
func (c *Client) newSession(id string) *stream.Session {
	sess := stream.NewSession(c.api, id,
		stream.WithLogger(c.logger),
		stream.WithMetrics(c.metrics),
		stream.WithIdleTimeout(c.cfg.StreamIdleTimeout.Std()),
	)
	if discarded := c.assembler.Begin(sess.ID()); discarded {
		c.logger.Warn("previous unsaved result discarded", "session_id", sess.ID())
	}
	// Assembler handlers run before any caller-registered callback for
	// the same kind, so callbacks observe post-fold state.
	c.assembler.Bind(sess)
	return sess
}

// run opens the session, keeps it abortable, and mirrors its terminal
// state onto the transient.
func (c *Client) run(ctx context.Context, sess *stream.Session, path string, payload any) (assemble.Snapshot, error) {
	c.setActive(sess)
	defer c.setActive(nil)

	err := sess.Open(ctx, path, payload)

	switch sess.Status() {
	case stream.StatusAborted:
		c.assembler.Conclude(stream.StatusAborted, "")
	case stream.StatusCompleted:
		c.assembler.Conclude(stream.StatusCompleted, "")
	case stream.StatusErrored:
		msg := ""
		if err != nil {
			msg = err.Error()
		}
		c.assembler.Conclude(stream.StatusErrored, msg)
	}
	return c.assembler.Snapshot(), err
}

func (c *Client) setActive(sess *stream.Session) {
	c.mu.Lock()
	c.active = sess
	c.mu.Unlock()
}

// Abort cancels the in-flight streaming session, if any. Safe to call
// repeatedly.
func (c *Client) Abort() {
	c.mu.Lock()
	sess := c.active
	c.mu.Unlock()
	if sess != nil {
		sess.Abort()
	}
}

// SaveChat persists the assembled chat text and reconciles it into the
// local resource collection.
func (c *Client) SaveChat(ctx context.Context, title string, meta map[string]string) (*resources.Resource, error) {
	return c.assembler.Save(ctx, c.resources, resources.KindChat, title, meta)
}

// SaveComic persists the assembled panel set in index order.
func (c *Client) SaveComic(ctx context.Context, title string, meta map[string]string) (*resources.Resource, error) {
	return c.assembler.Save(ctx, c.resources, resources.KindComic, title, meta)
}

// DiscardTransient drops unsaved generated content explicitly.
func (c *Client) DiscardTransient() {
	c.assembler.Discard()
}

// Transient returns the current partially- or fully-assembled result.
func (c *Client) Transient() assemble.Snapshot {
	return c.assembler.Snapshot()
}

// SubscribeTransient registers an observer for transient updates,
// called after every assembled frame.
func (c *Client) SubscribeTransient(fn assemble.Subscriber) {
	c.assembler.Subscribe(fn)
}

// Resources exposes the saved-resource service and local collection.
func (c *Client) Resources() *resources.Service {
	return c.resources
}

// MetricsHandler exposes client metrics in Prometheus text format for
// embedding applications.
func (c *Client) MetricsHandler() http.Handler {
	return c.metrics.Handler()
}
