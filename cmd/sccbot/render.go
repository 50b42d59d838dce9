package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/hpc-help/sccbot/pkg/modeladapter"
)

const defaultWidth = 100

var (
	assistantPrefixStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")) // cyan
	infoStyle            = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))            // gray
	errorStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))            // red
)

// renderer writes chatbot output to the terminal, with markdown rendering
// unless plain mode is requested or the output is not a terminal.
type renderer struct {
	out   io.Writer
	width int
	tty   bool
	md    *glamour.TermRenderer
}

func newRenderer(out io.Writer, plain bool) *renderer {
	r := &renderer{out: out, width: defaultWidth}

	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		r.tty = true
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			r.width = w
		}
	}

	if !plain {
		md, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(r.width),
		)
		if err == nil {
			r.md = md
		}
	}

	return r
}

// assistant prints a complete assistant message.
func (r *renderer) assistant(text string) {
	fmt.Fprintln(r.out, assistantPrefixStyle.Render("Assistant:"))
	fmt.Fprintln(r.out, r.markdown(text))
}

func (r *renderer) info(msg string) {
	fmt.Fprintln(r.out, infoStyle.Render(msg))
}

func (r *renderer) error(err error) {
	fmt.Fprintln(r.out, errorStyle.Render(fmt.Sprintf("Error: %v", err)))
}

func (r *renderer) markdown(text string) string {
	if r.md == nil {
		return text
	}
	out, err := r.md.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

// newStream returns a printer for one streamed reply. Raw deltas are shown
// as they arrive; finish erases them and reprints the full text rendered as
// markdown, the way the terminal client has always behaved.
func (r *renderer) newStream() *streamPrinter {
	return &streamPrinter{r: r}
}

type streamPrinter struct {
	r       *renderer
	started bool
	lines   int // visual lines the raw text occupies
	col     int // current column, for wrap-aware line counting
}

func (s *streamPrinter) deliver(chunk modeladapter.StreamChunk) error {
	if chunk.Done || chunk.Text == "" {
		return nil
	}

	if !s.started {
		s.started = true
		fmt.Fprintln(s.r.out, assistantPrefixStyle.Render("Assistant:"))
		s.lines = 2 // prefix line plus the line being written
	}

	added, col := visualLines(chunk.Text, s.r.width, s.col)
	s.lines += added
	s.col = col

	fmt.Fprint(s.r.out, chunk.Text)
	return nil
}

// finish replaces the raw streamed text with the rendered version. When
// nothing was streamed the full text is printed directly.
func (s *streamPrinter) finish(full string) {
	if !s.started {
		s.r.assistant(full)
		return
	}

	fmt.Fprintln(s.r.out)

	if s.r.md == nil || !s.r.tty {
		return
	}

	for i := 0; i < s.lines; i++ {
		fmt.Fprint(s.r.out, "\x1b[1A\x1b[2K")
	}
	s.r.assistant(full)
}

// visualLines counts how many additional terminal lines text occupies when
// written starting at column col with the given width, accounting for
// double-width runes. It returns the added line count and the end column.
func visualLines(text string, width, col int) (int, int) {
	if width <= 0 {
		width = defaultWidth
	}

	added := 0
	for _, r := range text {
		if r == '\n' {
			added++
			col = 0
			continue
		}

		w := runewidth.RuneWidth(r)
		if col+w > width {
			added++
			col = 0
		}
		col += w
	}

	return added, col
}
