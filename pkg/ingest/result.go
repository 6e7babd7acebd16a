package ingest

import (
	"time"

	"github.com/google/uuid"
)

// EntityCount tallies the outcome of inserts into one canonical table.
type EntityCount struct {
	Imported   int64
	Duplicates int64
}

// Result is the summary of one import run.
type Result struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration

	// File-level accounting.
	FilesProcessed int
	FilesSkipped   int // no extractable date in the filename
	FilesUnchanged int // ledger says already imported at this size

	// Row-level accounting.
	RowsDropped int64
	Entities    map[string]*EntityCount

	// Post-run highlights, filled from the store after commit.
	TopHashtags  []string
	TopLanguages []string
	EarliestDate string
	LatestDate   string
}

func newResult() *Result {
	return &Result{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Entities:  make(map[string]*EntityCount),
	}
}

func (r *Result) entity(name string) *EntityCount {
	c, ok := r.Entities[name]
	if !ok {
		c = &EntityCount{}
		r.Entities[name] = c
	}
	return c
}

// TotalImported sums freshly inserted rows across all entities.
func (r *Result) TotalImported() int64 {
	var n int64
	for _, c := range r.Entities {
		n += c.Imported
	}
	return n
}

// TotalDuplicates sums absorbed duplicate rows across all entities.
func (r *Result) TotalDuplicates() int64 {
	var n int64
	for _, c := range r.Entities {
		n += c.Duplicates
	}
	return n
}
