package stream

import "github.com/oklog/ulid/v2"

// NewID generates a caller-side session identifier, unique per logical
// conversation or generation. ULIDs keep IDs sortable by creation time
// in server logs.
func NewID() string {
	return "sess_" + ulid.Make().String()
}
