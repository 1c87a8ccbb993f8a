package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// ProgressBar shows how many of a fixed number of operations completed.
type ProgressBar struct {
	w       io.Writer
	title   string
	total   int
	current int
	failed  int
	width   int
	mu      sync.Mutex
}

// NewProgressBar creates a progress bar for total operations.
func NewProgressBar(w io.Writer, title string, total int) *ProgressBar {
	return &ProgressBar{
		w:     w,
		title: title,
		total: total,
		width: 30,
	}
}

// Increment records one completed operation.
func (p *ProgressBar) Increment(ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current++
	if !ok {
		p.failed++
	}
	p.render()
}

// Counts returns completed and failed operations.
func (p *ProgressBar) Counts() (done, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.failed
}

// Finish ends the progress line.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.render()
	fmt.Fprintln(p.w)
}

func (p *ProgressBar) render() {
	if p.total <= 0 {
		fmt.Fprintf(p.w, "\r%s %d ops", p.title, p.current)
		return
	}

	percent := float64(p.current) / float64(p.total)
	if percent > 1 {
		percent = 1
	}
	filled := int(float64(p.width) * percent)

	fmt.Fprintf(p.w, "\r%s [%s%s] %3.0f%% (%d/%d, %d failed)",
		p.title,
		strings.Repeat("#", filled),
		strings.Repeat(".", p.width-filled),
		percent*100,
		p.current,
		p.total,
		p.failed,
	)
}
