package store

import (
	"time"

	"booksync/internal/config"
)

// Status represents the lifecycle state of a persisted run.
type Status string

const (
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
)

// Run is one alignment run as recorded in the store.
type Run struct {
	ID             string
	Title          string
	BookSource     string
	SubtitleSource string
	Status         Status
	Pipeline       config.Pipeline
	QuoteCount     int
	SubtitleCount  int
	MatchCount     int
	ResultRef      string
	ErrorMessage   string
	ErrorKind      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	FinishedAt     *time.Time
}

// Duration returns how long the run took, or zero while it is running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.CreatedAt)
}

// MatchRecord is one persisted match with the texts it joins.
type MatchRecord struct {
	QuoteIndex    int
	SubtitleIndex int
	From          time.Duration
	Score         float64
	Scene         int
	Merged        int
	QuoteText     string
	SubtitleText  string
}
