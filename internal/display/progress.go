package display

import (
	"io"
	"sync"
)

// dotEvery is the number of status polls per progress dot while a job is
// enqueued.
const dotEvery = 20

// Progress writes attach progress to a diagnostic channel, separate from job
// output. On an interactive terminal waiting is shown as a growing line of
// dots, otherwise each step is written on its own line. Writes are best
// effort. Safe for concurrent use.
type Progress struct {
	w           io.Writer
	theme       Theme
	interactive bool

	mu sync.Mutex
	// open is set while the last write didn't end its line.
	open bool
}

// NewProgress creates a Progress that writes to w.
func NewProgress(w io.Writer, theme Theme, interactive bool) *Progress {
	return &Progress{w: w, theme: theme, interactive: interactive}
}

// Enqueued reports that the job named name is waiting to launch.
func (p *Progress) Enqueued(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.interactive {
		p.write("Enqueued "+name+"..", false)
		return
	}

	p.write("Enqueued "+name, true)
}

// Waiting reports the given status poll while the job is enqueued.
func (p *Progress) Waiting(attempt int) {
	if !p.interactive || attempt%dotEvery != 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.write(".", false)
}

// Launched reports that the job left the queue and its output follows.
func (p *Progress) Launched() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.write("Launched", true)
	p.write("---", true)
}

// Finished reports the end of the job's output.
func (p *Progress) Finished() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.endLine()
	p.write("---", true)
}

// Aborting reports that the job is being cancelled.
func (p *Progress) Aborting() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.endLine()
	p.write("---", true)
	p.write("Aborting..", true)
}

func (p *Progress) endLine() {
	if p.open {
		io.WriteString(p.w, "\n")
		p.open = false
	}
}

func (p *Progress) write(text string, newline bool) {
	s := p.theme.Progress(text)
	if newline {
		s += "\n"
	}

	io.WriteString(p.w, s)

	p.open = !newline
}
