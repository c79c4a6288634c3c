// Copyright 2025 James Ross
package entry

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Entry is one opaque serialized telemetry record. The core never
// inspects its content; it only moves entries as compact JSON text.
type Entry struct {
	raw string
}

// New compacts a JSON-marshalable record into an Entry. Compaction
// (no whitespace between tokens) is required so batch concatenation
// produces a valid JSON array.
func New(v interface{}) (Entry, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Entry{}, err
	}
	return Entry{raw: string(b)}, nil
}

// FromRaw wraps an already-serialized JSON document as an Entry
// without re-marshaling it.
func FromRaw(raw string) Entry {
	return Entry{raw: raw}
}

// String returns the compact JSON text of the entry.
func (e Entry) String() string {
	return e.raw
}

// NewID returns a fresh record identifier for callers that don't
// supply their own.
func NewID() string {
	return uuid.NewString()
}
