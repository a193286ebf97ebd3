// Package assemble folds the frames of one streaming session into a
// coherent transient resource, and reconciles the finalized result
// into the saved-resource collection.
package assemble

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/eduforge/eduforge-go/internal/resources"
	"github.com/eduforge/eduforge-go/internal/stream"
)

// ErrNothingGenerated is returned by Save when no content has arrived
// for the current session.
var ErrNothingGenerated = errors.New("nothing generated to save")

// Part is one indexed piece of a multi-part generation (a comic
// panel). Either Data (base64) or URL is set.
type Part struct {
	Index int
	Data  string
	URL   string
}

// URI returns a renderable reference for the part: the resolved URL
// when the server sent one, otherwise a PNG data URI.
func (p Part) URI() string {
	if p.URL != "" {
		return p.URL
	}
	return "data:image/png;base64," + p.Data
}

// Snapshot is an immutable view of the transient resource, republished
// to subscribers after every mutation so consumers can render partial
// progress.
type Snapshot struct {
	SessionID string
	Status    stream.Status
	// Visible flips on the first arriving content: consumers swap
	// their loading placeholder for the growing object at that point,
	// not before.
	Visible  bool
	Complete bool
	Text     string
	Parts    []Part // ordered by index regardless of arrival order
	Prompts  []string
	ErrMsg   string
}

// Subscriber observes snapshot updates.
type Subscriber func(Snapshot)

// Assembler holds at most one active transient resource. Starting a
// new session discards an unsaved transient; Begin reports that so the
// surface layer can warn or confirm.
type Assembler struct {
	logger *slog.Logger

	mu          sync.Mutex
	subscribers []Subscriber

	sessionID string
	status    stream.Status
	visible   bool
	complete  bool
	text      []byte
	parts     map[int]Part
	prompts   []string
	errMsg    string
}

// New creates an assembler with no active transient.
func New(logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		logger: logger,
		status: stream.StatusIdle,
		parts:  make(map[int]Part),
	}
}

// Subscribe registers a snapshot observer. Observers are invoked
// synchronously after every mutation, in registration order.
func (a *Assembler) Subscribe(fn Subscriber) {
	a.mu.Lock()
	a.subscribers = append(a.subscribers, fn)
	a.mu.Unlock()
}

// Begin resets the transient for a new session and reports whether
// unsaved content from the previous session was discarded.
func (a *Assembler) Begin(sessionID string) (discarded bool) {
	a.mu.Lock()
	discarded = a.visible
	a.resetLocked()
	a.sessionID = sessionID
	a.status = stream.StatusStreaming
	a.mu.Unlock()

	if discarded {
		a.logger.Debug("unsaved transient discarded", "session_id", sessionID)
	}
	a.publish()
	return discarded
}

// Bind registers the assembler's frame handlers on a session. Must be
// called before the session is opened.
func (a *Assembler) Bind(sess *stream.Session) {
	sess.On(stream.KindTextChunk, func(f stream.Frame) { a.appendText(f.Content) })
	sess.On(stream.KindPanelImage, func(f stream.Frame) { a.putPart(f) })
	sess.On(stream.KindStoryPrompts, func(f stream.Frame) { a.setPrompts(f.Prompts) })
	sess.On(stream.KindDone, func(stream.Frame) { a.finish() })
	sess.On(stream.KindError, func(f stream.Frame) { a.fail(f.Message) })
}

// Conclude records a transport-level terminal state that did not come
// from a frame: a clean end of stream, an abort, or an abnormal close.
// A clean close marks the result complete; otherwise the partial
// content is preserved read-only.
func (a *Assembler) Conclude(st stream.Status, msg string) {
	a.mu.Lock()
	if a.status == stream.StatusStreaming {
		a.status = st
		if st == stream.StatusCompleted {
			a.complete = true
		}
		if msg != "" {
			a.errMsg = msg
		}
	}
	a.mu.Unlock()
	a.publish()
}

// Snapshot returns the current transient state.
func (a *Assembler) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// Save persists the finalized transient through the resource service.
// On success the saved resource sits at the head of the local
// collection and the transient buffers are cleared, in that order, so
// no observer sees neither copy. A failed save leaves the transient
// untouched for retry.
func (a *Assembler) Save(ctx context.Context, svc *resources.Service, kind resources.Kind, title string, meta map[string]string) (*resources.Resource, error) {
	a.mu.Lock()
	if !a.visible {
		a.mu.Unlock()
		return nil, ErrNothingGenerated
	}
	req := resources.SaveRequest{
		SessionID: a.sessionID,
		Kind:      kind,
		Title:     title,
		Text:      string(a.text),
		Parts:     a.partPayloadsLocked(),
		Metadata:  meta,
	}
	a.mu.Unlock()

	saved, err := svc.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.resetLocked()
	a.mu.Unlock()
	a.publish()
	return saved, nil
}

// Discard drops the transient explicitly.
func (a *Assembler) Discard() {
	a.mu.Lock()
	a.resetLocked()
	a.mu.Unlock()
	a.publish()
}

func (a *Assembler) appendText(delta string) {
	a.mu.Lock()
	if a.frozenLocked() {
		a.mu.Unlock()
		return
	}
	a.visible = true
	a.text = append(a.text, delta...)
	a.mu.Unlock()
	a.publish()
}

func (a *Assembler) putPart(f stream.Frame) {
	a.mu.Lock()
	if a.frozenLocked() {
		a.mu.Unlock()
		return
	}
	a.visible = true
	// Re-delivery of an index overwrites the existing part.
	a.parts[f.Index] = Part{Index: f.Index, Data: f.Data, URL: f.URL}
	a.mu.Unlock()
	a.publish()
}

func (a *Assembler) setPrompts(prompts []string) {
	a.mu.Lock()
	if a.frozenLocked() {
		a.mu.Unlock()
		return
	}
	a.prompts = append([]string(nil), prompts...)
	a.mu.Unlock()
	a.publish()
}

func (a *Assembler) finish() {
	a.mu.Lock()
	a.complete = true
	a.status = stream.StatusCompleted
	a.mu.Unlock()
	a.publish()
}

func (a *Assembler) fail(msg string) {
	a.mu.Lock()
	a.errMsg = msg
	a.status = stream.StatusErrored
	a.mu.Unlock()
	a.publish()
}

// frozenLocked reports whether the transient no longer accepts frames.
func (a *Assembler) frozenLocked() bool {
	return a.complete || a.status == stream.StatusErrored || a.status == stream.StatusAborted
}

func (a *Assembler) resetLocked() {
	a.sessionID = ""
	a.status = stream.StatusIdle
	a.visible = false
	a.complete = false
	a.text = nil
	a.parts = make(map[int]Part)
	a.prompts = nil
	a.errMsg = ""
}

func (a *Assembler) snapshotLocked() Snapshot {
	return Snapshot{
		SessionID: a.sessionID,
		Status:    a.status,
		Visible:   a.visible,
		Complete:  a.complete,
		Text:      string(a.text),
		Parts:     a.orderedPartsLocked(),
		Prompts:   append([]string(nil), a.prompts...),
		ErrMsg:    a.errMsg,
	}
}

// orderedPartsLocked returns parts sorted by index for stable display
// order regardless of arrival order.
func (a *Assembler) orderedPartsLocked() []Part {
	if len(a.parts) == 0 {
		return nil
	}
	out := make([]Part, 0, len(a.parts))
	for _, p := range a.parts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func (a *Assembler) partPayloadsLocked() []string {
	parts := a.orderedPartsLocked()
	if len(parts) == 0 {
		return nil
	}
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = p.URI()
	}
	return out
}

func (a *Assembler) publish() {
	a.mu.Lock()
	subs := append([]Subscriber(nil), a.subscribers...)
	snap := a.snapshotLocked()
	a.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}
