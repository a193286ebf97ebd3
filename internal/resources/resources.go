// Package resources maintains the local collection of saved resources
// (finalized chats, comics, presentations) and reconciles it against
// the backend CRUD surface.
package resources

import "time"

// Kind identifies the domain type of a saved resource.
type Kind string

const (
	KindChat         Kind = "chat"
	KindComic        Kind = "comic"
	KindPresentation Kind = "presentation"
)

// Resource is a persisted, server-confirmed domain object. The
// metadata map (subject, grade, and so on) is pass-through: the client
// stores and displays it but never interprets it.
type Resource struct {
	ID        string            `json:"id"`
	SessionID string            `json:"session_id,omitempty"`
	Kind      Kind              `json:"kind"`
	Title     string            `json:"title,omitempty"`
	Text      string            `json:"text,omitempty"`
	PartURLs  []string          `json:"part_urls,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// SaveRequest is the payload for persisting a finalized transient
// resource. Parts are ordered by panel index before sending.
type SaveRequest struct {
	SessionID string            `json:"session_id"`
	Kind      Kind              `json:"kind"`
	Title     string            `json:"title,omitempty"`
	Text      string            `json:"text,omitempty"`
	Parts     []string          `json:"parts,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
