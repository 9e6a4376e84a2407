// Package progress reports the progress of long restores and imports.
package progress

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/johndauphine/litekeep/internal/logging"
	"golang.org/x/term"
)

// Reporter receives progress for one operation. Update matches the
// callback shape of dump.RestoreOptions.OnStatement and
// transfer.ImportOptions.OnRow.
type Reporter interface {
	Update(done, total int)
	Finish()
}

// New picks a reporter for w: JSON lines when format is "json", a progress
// bar when w is a terminal, otherwise nothing.
func New(phase string, w io.Writer, format string) Reporter {
	if format == "json" {
		return NewJSONReporter(w, phase, 500*time.Millisecond)
	}
	if isTerminal(w) {
		return NewTracker(phase, w)
	}
	return NullReporter{}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// ProgressUpdate is one JSON progress line.
type ProgressUpdate struct {
	Timestamp   string  `json:"timestamp"`
	Phase       string  `json:"phase"`
	Done        int     `json:"done"`
	Total       int     `json:"total"`
	ProgressPct float64 `json:"progress_pct"`
	PerSecond   int64   `json:"per_second,omitempty"`
	Finished    bool    `json:"finished,omitempty"`
}

// JSONReporter outputs JSON progress updates to a writer (typically stderr).
type JSONReporter struct {
	writer     io.Writer
	phase      string
	mu         sync.Mutex
	interval   time.Duration
	start      time.Time
	lastReport time.Time
	last       ProgressUpdate
	closed     bool
}

// NewJSONReporter creates a new JSON progress reporter.
// interval specifies the minimum time between updates (to avoid flooding).
func NewJSONReporter(writer io.Writer, phase string, interval time.Duration) *JSONReporter {
	if writer == nil {
		writer = os.Stderr
	}
	return &JSONReporter{
		writer:   writer,
		phase:    phase,
		interval: interval,
		start:    time.Now(),
	}
}

// Update emits a progress line, throttled to the configured interval. The
// last step (done == total) is always written.
func (r *JSONReporter) Update(done, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.last = r.update(done, total)

	now := time.Now()
	if done < total && r.interval > 0 && now.Sub(r.lastReport) < r.interval {
		return
	}
	r.write(r.last)
	r.lastReport = now
}

// Finish writes a final update and closes the reporter.
func (r *JSONReporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	final := r.update(r.last.Done, r.last.Total)
	final.Finished = true
	r.write(final)
	r.closed = true
}

func (r *JSONReporter) update(done, total int) ProgressUpdate {
	u := ProgressUpdate{
		Timestamp: time.Now().Format(time.RFC3339),
		Phase:     r.phase,
		Done:      done,
		Total:     total,
	}
	if total > 0 {
		u.ProgressPct = float64(done) * 100 / float64(total)
	}
	if secs := time.Since(r.start).Seconds(); secs > 0 {
		u.PerSecond = int64(float64(done) / secs)
	}
	return u
}

func (r *JSONReporter) write(u ProgressUpdate) {
	data, err := json.Marshal(u)
	if err != nil {
		logging.Warn("Failed to marshal progress update: %v", err)
		return
	}
	fmt.Fprintln(r.writer, string(data))
}

// NullReporter is a no-op reporter for when progress reporting is disabled.
type NullReporter struct{}

// Update does nothing.
func (NullReporter) Update(done, total int) {}

// Finish does nothing.
func (NullReporter) Finish() {}
