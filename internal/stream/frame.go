// Package stream turns a chunked event-stream response body into a
// reliable, in-order sequence of typed frames, and manages the
// lifecycle of one streaming generation session.
package stream

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates frame payloads.
type Kind string

const (
	// KindTextChunk carries a text delta for append-style assembly.
	KindTextChunk Kind = "text_chunk"
	// KindPanelImage carries one indexed comic panel payload.
	KindPanelImage Kind = "panel_image"
	// KindStoryPrompts carries the prompt list used for a generation.
	KindStoryPrompts Kind = "story_prompts"
	// KindDone marks successful completion of the stream.
	KindDone Kind = "done"
	// KindError marks a server-reported generation failure.
	KindError Kind = "error"
)

// Frame is one decoded event record. Fields are populated according to
// Kind; unused fields are zero.
type Frame struct {
	Kind    Kind
	Content string   // text_chunk
	Index   int      // panel_image
	Data    string   // panel_image: base64 payload
	URL     string   // panel_image: resolved URL, when the server sends one
	Prompts []string // story_prompts
	Message string   // error, and optionally done
}

// wireFrame is the JSON shape of one record's payload.
type wireFrame struct {
	Type    string   `json:"type"`
	Content string   `json:"content"`
	Index   *int     `json:"index"`
	Data    string   `json:"data"`
	URL     string   `json:"url"`
	Prompts []string `json:"prompts"`
	Message string   `json:"message"`
}

// ParseFrame decodes one record payload into a Frame. Records with an
// unknown type or missing required fields are rejected; the decoder
// treats that as a malformed record and skips it.
func ParseFrame(raw []byte) (Frame, error) {
	var w wireFrame
	if err := json.Unmarshal(raw, &w); err != nil {
		return Frame{}, fmt.Errorf("parse frame: %w", err)
	}

	switch Kind(w.Type) {
	case KindTextChunk:
		return Frame{Kind: KindTextChunk, Content: w.Content}, nil
	case KindPanelImage:
		if w.Index == nil {
			return Frame{}, fmt.Errorf("parse frame: panel_image missing index")
		}
		if w.Data == "" && w.URL == "" {
			return Frame{}, fmt.Errorf("parse frame: panel_image %d has no payload", *w.Index)
		}
		return Frame{Kind: KindPanelImage, Index: *w.Index, Data: w.Data, URL: w.URL}, nil
	case KindStoryPrompts:
		return Frame{Kind: KindStoryPrompts, Prompts: w.Prompts}, nil
	case KindDone:
		return Frame{Kind: KindDone, Message: w.Message}, nil
	case KindError:
		return Frame{Kind: KindError, Message: w.Message}, nil
	default:
		return Frame{}, fmt.Errorf("parse frame: unknown type %q", w.Type)
	}
}
