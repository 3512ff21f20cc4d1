package engine

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/frostml/frost/srcs/go/frost/metrics"
	"github.com/schollz/progressbar/v3"
)

// Reporter displays the progress of a pass.
type Reporter interface {
	Begin(mode Mode, epoch, batches int)
	Batch(header string, t *metrics.Tracker)
	End()
}

// LogReporter logs one line per batch.
type LogReporter struct{}

func (LogReporter) Begin(Mode, int, int) {}

func (LogReporter) Batch(header string, t *metrics.Tracker) {
	t.Display(header)
}

func (LogReporter) End() {}

// ProgressReporter draws a progress bar per pass.
type ProgressReporter struct {
	w        io.Writer
	throttle time.Duration
	bar      *progressbar.ProgressBar
}

func NewProgressReporter(w io.Writer) *ProgressReporter {
	if w == nil {
		w = os.Stderr
	}
	return &ProgressReporter{w: w, throttle: 65 * time.Millisecond}
}

func (r *ProgressReporter) Begin(mode Mode, epoch, batches int) {
	r.bar = progressbar.NewOptions(batches,
		progressbar.OptionSetWriter(r.w),
		progressbar.OptionSetDescription(fmt.Sprintf("%s epoch %d", mode, epoch+1)),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionThrottle(r.throttle),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(r.w) }),
	)
}

func (r *ProgressReporter) Batch(header string, t *metrics.Tracker) {
	r.bar.Describe(t.Format(header))
	r.bar.Add(1)
}

func (r *ProgressReporter) End() {
	r.bar.Finish()
}
