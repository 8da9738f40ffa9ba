// Package display renders job output and progress to the terminal.
//
// Styles are held in an immutable Theme built once from a colour mode and
// injected wherever text is rendered. A Sink serialises whole-line writes from
// concurrent renderers onto one writer.
package display

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Stream identifies which output stream of a job a line came from.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	switch s {
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	default:
		return fmt.Sprintf("stream(%d)", int(s))
	}
}

// ColorMode controls whether styles emit colour escape sequences.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// ParseColorMode returns the ColorMode named by s.
func ParseColorMode(s string) (ColorMode, error) {
	switch m := ColorMode(s); m {
	case ColorAuto, ColorAlways, ColorNever:
		return m, nil
	default:
		return "", fmt.Errorf("unknown color mode '%s'", s)
	}
}

// Terminal palette colours: light grey for stdout, orange
// (yellow) for stderr and dark grey for progress text.
const (
	stdoutColor   = lipgloss.Color("7")
	stderrColor   = lipgloss.Color("3")
	progressColor = lipgloss.Color("8")
)

const lineIndent = "  "

// Theme is an immutable table of styles, one per Stream plus one for
// progress text.
type Theme struct {
	stdout   lipgloss.Style
	stderr   lipgloss.Style
	progress lipgloss.Style
}

// NewTheme creates a Theme whose colour profile is detected from w, or forced
// by mode.
func NewTheme(w io.Writer, mode ColorMode) Theme {
	r := lipgloss.NewRenderer(w)

	switch mode {
	case ColorAlways:
		r.SetColorProfile(termenv.ANSI)
	case ColorNever:
		r.SetColorProfile(termenv.Ascii)
	}

	// Job output is rendered as-is, tabs included.
	base := r.NewStyle().TabWidth(lipgloss.NoTabConversion)

	return Theme{
		stdout:   base.Foreground(stdoutColor),
		stderr:   base.Foreground(stderrColor),
		progress: base.Foreground(progressColor),
	}
}

// Line renders a single line of job output for stream, without a trailing
// newline.
func (t Theme) Line(stream Stream, line string) string {
	style := t.stdout
	if stream == Stderr {
		style = t.stderr
	}

	return lineIndent + style.Render(line)
}

// Progress renders a fragment of progress text. text must not contain a
// newline.
func (t Theme) Progress(text string) string {
	return t.progress.Render(text)
}
