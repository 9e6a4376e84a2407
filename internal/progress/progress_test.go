package progress

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func decodeLines(t *testing.T, out string) []ProgressUpdate {
	t.Helper()
	var updates []ProgressUpdate
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		var u ProgressUpdate
		if err := json.Unmarshal([]byte(line), &u); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		updates = append(updates, u)
	}
	return updates
}

func TestJSONReporterThrottles(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONReporter(&buf, "restore", time.Hour)

	for i := 1; i <= 10; i++ {
		r.Update(i, 10)
	}
	r.Finish()
	r.Update(11, 10) // ignored after Finish

	updates := decodeLines(t, buf.String())
	if len(updates) != 3 {
		t.Fatalf("got %d lines, want 3 (first, last, final): %s", len(updates), buf.String())
	}
	if updates[0].Done != 1 || updates[1].Done != 10 {
		t.Errorf("unexpected progression: %+v", updates)
	}
	final := updates[2]
	if !final.Finished || final.Phase != "restore" || final.ProgressPct != 100 {
		t.Errorf("final update = %+v", final)
	}
}

func TestJSONReporterWithoutInterval(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONReporter(&buf, "import", 0)
	r.Update(1, 4)
	r.Update(2, 4)

	updates := decodeLines(t, buf.String())
	if len(updates) != 2 {
		t.Fatalf("got %d lines, want 2", len(updates))
	}
	if updates[1].ProgressPct != 50 {
		t.Errorf("ProgressPct = %v, want 50", updates[1].ProgressPct)
	}
}

func TestNewPicksReporter(t *testing.T) {
	var buf bytes.Buffer

	if _, ok := New("restore", &buf, "json").(*JSONReporter); !ok {
		t.Error("json format should produce a JSONReporter")
	}
	// A buffer is never a terminal.
	if _, ok := New("restore", &buf, "text").(NullReporter); !ok {
		t.Error("non-terminal writer should produce a NullReporter")
	}
}

func TestTracker(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTracker("import", &buf)
	tr.Finish() // no bar yet, nothing drawn

	for i := 1; i <= 3; i++ {
		tr.Update(i, 3)
	}
	tr.Finish()

	if tr.Current() != 3 {
		t.Errorf("Current() = %d, want 3", tr.Current())
	}
	if !strings.Contains(buf.String(), "import") {
		t.Errorf("bar output missing description: %q", buf.String())
	}
}
