// Package ui renders the wizard's terminal output: check marks,
// warnings, phase headers, and the final summary table.
package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// Printer writes wizard output. Colors are dropped automatically when
// the writer is not a terminal.
type Printer struct {
	out   io.Writer
	plain bool
}

// New builds a Printer for w.
func New(w io.Writer) *Printer {
	return &Printer{out: w, plain: !WriterIsTerminal(w)}
}

// WriterIsTerminal reports whether w is an interactive terminal.
func WriterIsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func (p *Printer) paint(f func(...any) string, s string) string {
	if p.plain {
		return s
	}
	return f(s)
}

// Ok prints a passing step.
func (p *Printer) Ok(format string, args ...any) {
	fmt.Fprintf(p.out, "  %s %s\n", p.paint(green, "✓"), fmt.Sprintf(format, args...))
}

// Info prints a progress note.
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintf(p.out, "  %s %s\n", p.paint(cyan, "›"), fmt.Sprintf(format, args...))
}

// Warn prints a non-fatal problem.
func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintf(p.out, "  %s %s\n", p.paint(yellow, "!"), fmt.Sprintf(format, args...))
}

// Fail prints a fatal problem.
func (p *Printer) Fail(format string, args ...any) {
	fmt.Fprintf(p.out, "  %s %s\n", p.paint(red, "✗"), fmt.Sprintf(format, args...))
}

// Dim prints secondary detail.
func (p *Printer) Dim(format string, args ...any) {
	fmt.Fprintf(p.out, "  %s\n", p.paint(faint, fmt.Sprintf(format, args...)))
}

// Phase prints a numbered section header.
func (p *Printer) Phase(n int, title string) {
	fmt.Fprintf(p.out, "\n%s %s\n", p.paint(cyan, fmt.Sprintf("[%d]", n)), p.paint(bold, title))
}

// Blank prints an empty line.
func (p *Printer) Blank() {
	fmt.Fprintln(p.out)
}

// Row is one line of a summary table.
type Row struct {
	Label string
	Value string
	Mark  string // rendered as-is in the last column
}

// Table prints rows with runewidth-aware column alignment, so marks
// line up even when values carry wide runes.
func (p *Printer) Table(rows []Row) {
	labelWidth, valueWidth := 0, 0
	for _, r := range rows {
		if w := runewidth.StringWidth(r.Label); w > labelWidth {
			labelWidth = w
		}
		if w := runewidth.StringWidth(r.Value); w > valueWidth {
			valueWidth = w
		}
	}
	for _, r := range rows {
		fmt.Fprintf(p.out, "  %s  %s  %s\n",
			pad(r.Label, labelWidth),
			p.paint(faint, pad(r.Value, valueWidth)),
			r.Mark,
		)
	}
}

func pad(s string, width int) string {
	gap := width - runewidth.StringWidth(s)
	if gap <= 0 {
		return s
	}
	return s + strings.Repeat(" ", gap)
}

// Mark helpers for table rows.
func (p *Printer) MarkOK() string   { return p.paint(green, "✓") }
func (p *Printer) MarkWarn() string { return p.paint(yellow, "!") }
func (p *Printer) MarkFail() string { return p.paint(red, "✗") }

// Ask prompts for a line of input with an optional default.
func (p *Printer) Ask(in io.Reader, label, fallback string) (string, error) {
	if fallback != "" {
		fmt.Fprintf(p.out, "  %s [%s]: ", label, p.paint(faint, fallback))
	} else {
		fmt.Fprintf(p.out, "  %s: ", label)
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return fallback, err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return fallback, nil
	}
	return line, nil
}

// Confirm asks a yes/no question.
func (p *Printer) Confirm(in io.Reader, label string, fallback bool) (bool, error) {
	hint := "Y/n"
	if !fallback {
		hint = "y/N"
	}
	answer, err := p.Ask(in, fmt.Sprintf("%s (%s)", label, hint), "")
	if err != nil {
		return fallback, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	case "":
		return fallback, nil
	default:
		return fallback, nil
	}
}
