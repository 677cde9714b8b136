package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressReporter receives chunk-by-chunk progress of a screening batch.
type ProgressReporter interface {
	Start(total int)
	Chunk(report ChunkReport)
	Finish()
	Error(err error)
}

// ChunkReport describes one screened chunk.
type ChunkReport struct {
	// Items is the number of texts screened in the chunk.
	Items int
	// Flagged counts the chunk's scores that require review.
	Flagged int
	// Took is the wall time the chunk spent in the analyzer.
	Took time.Duration
}

const progressBarWidth = 30

// ScreeningProgress renders a single status line that is rewritten after
// every chunk, followed by a summary line on Finish.
type ScreeningProgress struct {
	mu        sync.Mutex
	total     int
	done      int
	flagged   int
	lastChunk time.Duration
	started   time.Time
	writer    io.Writer
	now       func() time.Time
}

// NewProgressReporter creates a reporter writing to w, or os.Stderr when w
// is nil.
func NewProgressReporter(w io.Writer) ProgressReporter {
	if w == nil {
		w = os.Stderr
	}
	return &ScreeningProgress{
		writer: w,
		now:    time.Now,
	}
}

// Start resets the counters for a batch of total texts.
func (p *ScreeningProgress) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	p.done = 0
	p.flagged = 0
	p.lastChunk = 0
	p.started = p.now()

	p.render()
}

// Chunk records a finished chunk. Done never exceeds the batch total.
func (p *ScreeningProgress) Chunk(report ChunkReport) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = min(p.done+report.Items, p.total)
	p.flagged += report.Flagged
	p.lastChunk = report.Took
	p.render()
}

// Finish prints the summary line.
func (p *ScreeningProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.total == 0 {
		return
	}
	p.render()
	fmt.Fprintf(p.writer, "\nscreened %d texts in %s, %d flagged for review\n",
		p.done, p.now().Sub(p.started).Round(time.Millisecond), p.flagged)
}

// Error reports where screening stopped.
func (p *ScreeningProgress) Error(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.writer, "\nscreening stopped after %d/%d texts: %v\n", p.done, p.total, err)
}

func (p *ScreeningProgress) render() {
	if p.total == 0 {
		return
	}

	filled := progressBarWidth * p.done / p.total
	bar := strings.Repeat("#", filled) + strings.Repeat(".", progressBarWidth-filled)

	var rate float64
	if elapsed := p.now().Sub(p.started).Seconds(); elapsed > 0 {
		rate = float64(p.done) / elapsed
	}

	fmt.Fprintf(p.writer, "\r[%s] %d/%d flagged=%d last_chunk=%s rate=%.1f/s",
		bar, p.done, p.total, p.flagged, p.lastChunk.Round(time.Millisecond), rate)
}
