package generation

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/poiesic/examscribe/core"
)

// ProgressTracker is a Monitor that prints answering progress on one
// self-overwriting line.
type ProgressTracker struct {
	writer    io.Writer
	total     int
	current   int
	failed    int
	startTime time.Time
	started   bool
	mu        sync.Mutex
}

var _ Monitor = (*ProgressTracker)(nil)

// NewProgressTracker creates a tracker writing to writer (typically os.Stderr).
func NewProgressTracker(writer io.Writer) *ProgressTracker {
	return &ProgressTracker{writer: writer}
}

// Start begins tracking a batch of total questions.
func (p *ProgressTracker) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.total = total
	p.current = 0
	p.failed = 0
}

// QuestionFinished records one answered question and reports progress.
func (p *ProgressTracker) QuestionFinished(answer core.Answer, _ time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	if p.current < p.total {
		p.current++
	}
	if answer.Failed() {
		p.failed++
	}
	p.report()
}

// Finish prints final progress.
func (p *ProgressTracker) Finish([]core.Answer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.report()
	fmt.Fprintln(p.writer)
	p.started = false
}

// Elapsed returns the time elapsed since Start was called.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}
	return time.Since(p.startTime)
}

// report prints the current progress. Must be called with lock held.
func (p *ProgressTracker) report() {
	elapsed := time.Since(p.startTime)
	rate := float64(p.current) / elapsed.Seconds()

	percentage := 0.0
	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100.0
	}

	fmt.Fprintf(p.writer, "\rAnswered: %d/%d (%.1f%%) - %d failed - %.2f questions/s",
		p.current, p.total, percentage, p.failed, rate)
}
