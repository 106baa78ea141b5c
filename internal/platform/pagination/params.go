package pagination

import "errors"

const (
	// DefaultPageSize defines the fallback number of items returned when the client omits a limit.
	DefaultPageSize = 50
	// DefaultMaxPageSize caps the supported limit to prevent unbounded queries.
	DefaultMaxPageSize = 200
)

// ErrInvalidPageToken reports a page token that could not be decoded.
var ErrInvalidPageToken = errors.New("pagination: invalid pageToken")

// Cursor represents the Firestore pagination cursor payload carried in a page token.
type Cursor struct {
	StartAfter []any `json:"startAfter,omitempty"`
	StartAt    []any `json:"startAt,omitempty"`
}

// ClampPageSize normalises a requested page size into the [1, max] range,
// substituting the default when the request omits it.
func ClampPageSize(requested, def, max int) int {
	if def <= 0 {
		def = DefaultPageSize
	}
	if max <= 0 {
		max = DefaultMaxPageSize
	}
	if requested <= 0 {
		requested = def
	}
	if requested > max {
		requested = max
	}
	return requested
}
