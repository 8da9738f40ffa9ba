package display

import (
	"io"
	"strings"
	"sync"
)

// Sink writes styled lines of job output to a writer shared by several
// renderers. Each line is written with a single Write call under a lock, so
// lines are never torn. Safe for concurrent use.
type Sink struct {
	w     io.Writer
	theme Theme

	mu sync.Mutex
}

// NewSink creates a Sink that writes to w using theme.
func NewSink(w io.Writer, theme Theme) *Sink {
	return &Sink{w: w, theme: theme}
}

// WriteLine writes line styled for stream followed by a newline.
func (s *Sink) WriteLine(stream Stream, line string) error {
	var b strings.Builder

	b.WriteString(s.theme.Line(stream, line))
	b.WriteByte('\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := io.WriteString(s.w, b.String())

	return err
}
