package progress

import (
	"fmt"
	"io"
	"time"

	"github.com/johndauphine/litekeep/internal/logging"
	"github.com/schollz/progressbar/v3"
)

// Tracker draws a terminal progress bar. The bar is created on the first
// Update, once the total is known.
type Tracker struct {
	phase     string
	writer    io.Writer
	bar       *progressbar.ProgressBar
	current   int
	startTime time.Time
}

// NewTracker creates a progress bar tracker writing to w.
func NewTracker(phase string, w io.Writer) *Tracker {
	return &Tracker{
		phase:     phase,
		writer:    w,
		startTime: time.Now(),
	}
}

// Update moves the bar to done out of total.
func (t *Tracker) Update(done, total int) {
	if t.bar == nil {
		t.bar = progressbar.NewOptions(
			total,
			progressbar.OptionSetWriter(t.writer),
			progressbar.OptionSetDescription(t.phase),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionShowIts(),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionFullWidth(),
			progressbar.OptionSetRenderBlankState(true),
		)
	}
	t.current = done
	_ = t.bar.Set(done)
}

// Current returns the last reported count.
func (t *Tracker) Current() int {
	return t.current
}

// Finish completes the bar and logs the throughput.
func (t *Tracker) Finish() {
	if t.bar == nil {
		return
	}
	_ = t.bar.Finish()
	fmt.Fprintln(t.writer)

	elapsed := time.Since(t.startTime)
	perSec := float64(t.current) / elapsed.Seconds()
	logging.Info("%s complete: %d in %s (%.0f/sec)", t.phase, t.current, elapsed.Round(time.Millisecond), perSec)
}
