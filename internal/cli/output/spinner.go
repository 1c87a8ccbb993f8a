package output

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Spinner animates a message while a blocking call runs.
type Spinner struct {
	w        io.Writer
	message  string
	frames   []string
	interval time.Duration

	once sync.Once
	done chan struct{}
	wg   sync.WaitGroup
}

// NewSpinner creates a new spinner.
func NewSpinner(w io.Writer, message string) *Spinner {
	return &Spinner{
		w:        w,
		message:  message,
		frames:   []string{"|", "/", "-", "\\"},
		interval: 100 * time.Millisecond,
		done:     make(chan struct{}),
	}
}

// Start starts the spinner animation.
func (s *Spinner) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for i := 0; ; i++ {
			fmt.Fprintf(s.w, "\r%s %s", s.frames[i%len(s.frames)], s.message)
			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop stops the spinner and clears the line. It is safe to call more
// than once.
func (s *Spinner) Stop() {
	if s.halt() {
		fmt.Fprint(s.w, "\r\033[K")
	}
}

// Success stops the spinner with a success message.
func (s *Spinner) Success(message string) {
	if s.halt() {
		fmt.Fprintf(s.w, "\r\033[Kok %s\n", message)
	}
}

// Fail stops the spinner with a failure message.
func (s *Spinner) Fail(message string) {
	if s.halt() {
		fmt.Fprintf(s.w, "\r\033[Kfailed %s\n", message)
	}
}

// halt stops the animation goroutine and reports whether this call did.
func (s *Spinner) halt() bool {
	stopped := false
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
		stopped = true
	})
	return stopped
}
