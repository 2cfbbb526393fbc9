package storage

import (
	"errors"
	"time"

	"modwatch/internal/modlog"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the action archive.
//
// Driver values:
//   - "file": dependency-free JSON Lines backend
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", the archive is disabled and exports run
// purely from the in-memory journal.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Entry is one archived moderation action.
type Entry struct {
	At     time.Time
	Source string // "import" or "live"
	Record modlog.Record
}

// Entry sources.
const (
	SourceImport = "import"
	SourceLive   = "live"
)

// Query narrows an archive search. Zero values mean no constraint.
// Results come back newest first; Limit caps them after ordering.
type Query struct {
	User      string // case-insensitive match on the record's user name
	Moderator string // case-insensitive match on the acting moderator
	Kind      modlog.ActionKind
	Since     time.Time // inclusive lower bound on Entry.At
	Until     time.Time // exclusive upper bound on Entry.At
	Limit     int
}
