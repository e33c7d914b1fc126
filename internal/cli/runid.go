package cli

import (
	"github.com/google/uuid"
)

// RunIDGenerator names a check run. The id appears in JSON output and on
// every log line.
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run ids.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedRunID always returns itself. Tests use it for reproducible output.
type FixedRunID string

// Generate returns the fixed id.
func (id FixedRunID) Generate() string {
	return string(id)
}
