package feed

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/folio/portfolio/models"
)

// TerminalView prints feed events as lines of plain text. New comments are
// appended as they arrive; the terminal cannot reorder what it already
// printed, so the position argument only matters for older comments that
// show up late, which are marked as such.
type TerminalView struct {
	w     io.Writer
	quiet bool
}

// NewTerminalView writes to w. A quiet view prints comments and
// notifications only.
func NewTerminalView(w io.Writer, quiet bool) *TerminalView {
	return &TerminalView{w: w, quiet: quiet}
}

func (v *TerminalView) Insert(pos int, c models.CommentDTO) {
	late := ""
	if pos > 0 {
		late = " (earlier)"
	}
	fmt.Fprintf(v.w, "#%d %s, %s%s\n    %s\n", c.ID, Literal(c.Name), Literal(c.CreatedAt), late, Literal(c.Message))
}

func (v *TerminalView) ShowEmpty() {
	fmt.Fprintln(v.w, "No comments yet. Be the first to leave one!")
}

func (v *TerminalView) HideEmpty() {}

func (v *TerminalView) Notify(kind NoticeKind, message string) {
	fmt.Fprintf(v.w, "[%s] %s\n", kind, Literal(message))
}

func (v *TerminalView) SetBusy(busy bool) {
	if busy && !v.quiet {
		fmt.Fprintln(v.w, "Sending...")
	}
}

func (v *TerminalView) ClearForm() {}

func (v *TerminalView) SetOffline(offline bool) {
	if v.quiet {
		return
	}
	if offline {
		fmt.Fprintln(v.w, "Offline: cannot reach the comment server, still retrying.")
		return
	}
	fmt.Fprintln(v.w, "Back online.")
}

// Literal makes user text safe to print on a terminal: line breaks become
// spaces and other control characters, escape sequences included, are
// replaced with U+FFFD.
func Literal(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return ' '
		case unicode.IsControl(r), unicode.Is(unicode.Bidi_Control, r):
			return unicode.ReplacementChar
		}
		return r
	}, s)
}
