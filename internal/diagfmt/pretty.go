package diagfmt

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"strictparent/internal/diag"
	"strictparent/internal/source"
)

const tabWidth = 4

type palette struct {
	err, warn, info *color.Color
	note, loc       *color.Color
	gutter, caret   *color.Color
	fix, del, add   *color.Color
}

func newPalette(enabled bool) palette {
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}
	return palette{
		err:    mk(color.FgRed, color.Bold),
		warn:   mk(color.FgYellow, color.Bold),
		info:   mk(color.FgCyan, color.Bold),
		note:   mk(color.FgBlue, color.Bold),
		loc:    mk(color.Bold),
		gutter: mk(color.FgBlue),
		caret:  mk(color.FgRed, color.Bold),
		fix:    mk(color.FgGreen, color.Bold),
		del:    mk(color.FgRed),
		add:    mk(color.FgGreen),
	}
}

func (p palette) severity(sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevError:
		return p.err
	case diag.SevWarning:
		return p.warn
	default:
		return p.info
	}
}

// Pretty renders diagnostics for humans. The bag is expected to be sorted.
// Each diagnostic prints <path>:<line>:<col>: <SEV> <CODE>: <Message>, the
// source line underlined with ^~~~, then notes and fixes.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) error {
	if bag == nil {
		return nil
	}
	pr := printer{fs: fs, opts: opts, pal: newPalette(opts.Color)}
	items := bag.Items()
	for i := range items {
		if i > 0 {
			pr.b.WriteByte('\n')
		}
		pr.diagnostic(&items[i])
	}
	_, err := io.WriteString(w, pr.b.String())
	return err
}

type printer struct {
	b    strings.Builder
	fs   *source.FileSet
	opts PrettyOpts
	pal  palette
}

func (p *printer) location(span source.Span) (string, *source.File) {
	f := p.fs.Get(span.File)
	if f == nil {
		return "<unknown>", nil
	}
	start, _ := p.fs.Resolve(span)
	return fmt.Sprintf("%s:%d:%d", formatPath(f, p.fs, p.opts.PathMode), start.Line, start.Col), f
}

func (p *printer) diagnostic(d *diag.Diagnostic) {
	loc, f := p.location(d.Primary)
	sev := p.pal.severity(d.Severity)
	fmt.Fprintf(&p.b, "%s: %s %s: %s\n",
		p.pal.loc.Sprint(loc),
		sev.Sprint(d.Severity.String()),
		sev.Sprint(d.Code.ID()),
		d.Message,
	)
	if f != nil && len(f.Content) > 0 {
		p.snippet(f, d.Primary)
	}

	if p.opts.ShowNotes {
		for _, n := range d.Notes {
			nloc, _ := p.location(n.Span)
			fmt.Fprintf(&p.b, "  %s %s: %s\n", p.pal.note.Sprint("note:"), nloc, n.Msg)
		}
	}
	if p.opts.ShowFixes {
		for i, fx := range d.Fixes {
			p.fix(i+1, fx)
		}
	}
}

func (p *printer) fix(n int, fx diag.Fix) {
	fmt.Fprintf(&p.b, "  %s %s\n", p.pal.fix.Sprintf("fix #%d:", n), fx.Title)
	for _, edit := range fx.Edits {
		eloc, _ := p.location(edit.Span)
		fmt.Fprintf(&p.b, "    edit %s apply=%s\n", eloc, strconv.Quote(edit.NewText))
		if !p.opts.ShowPreview {
			continue
		}
		preview, err := buildFixEditPreview(p.fs, edit)
		if err != nil {
			continue
		}
		p.b.WriteString("    preview:\n")
		for _, line := range preview.before {
			fmt.Fprintf(&p.b, "      %s\n", p.pal.del.Sprint("- "+p.clip(expandTabs(line))))
		}
		for _, line := range preview.after {
			fmt.Fprintf(&p.b, "      %s\n", p.pal.add.Sprint("+ "+p.clip(expandTabs(line))))
		}
	}
}

// snippet prints the primary line with optional context and a caret underline.
func (p *printer) snippet(f *source.File, span source.Span) {
	start, end := p.fs.Resolve(span)
	total := lineCount(f)
	if start.Line > total {
		return
	}
	ctx := uint32(max(p.opts.Context, 0))
	first := uint32(1)
	if start.Line > ctx {
		first = start.Line - ctx
	}
	last := min(start.Line+ctx, total)
	gw := len(strconv.FormatUint(uint64(last), 10))

	for ln := first; ln <= last; ln++ {
		raw := strings.TrimRight(f.GetLine(ln), "\r")
		fmt.Fprintf(&p.b, "%s %s\n", p.pal.gutter.Sprintf("%*d |", gw, ln), p.clip(expandTabs(raw)))
		if ln != start.Line {
			continue
		}
		sc := min(int(start.Col-1), len(raw))
		ec := len(raw)
		if end.Line == start.Line {
			ec = min(max(int(end.Col-1), sc), len(raw))
		}
		pad := runewidth.StringWidth(expandTabs(raw[:sc]))
		if p.opts.Width > 0 && pad >= int(p.opts.Width) {
			continue
		}
		width := max(runewidth.StringWidth(expandTabs(raw[sc:ec])), 1)
		if p.opts.Width > 0 {
			width = min(width, int(p.opts.Width)-pad)
		}
		mark := "^" + strings.Repeat("~", width-1)
		fmt.Fprintf(&p.b, "%s %s%s\n", p.pal.gutter.Sprint(strings.Repeat(" ", gw)+" |"), strings.Repeat(" ", pad), p.pal.caret.Sprint(mark))
	}
}

func (p *printer) clip(s string) string {
	if p.opts.Width == 0 {
		return s
	}
	return runewidth.Truncate(s, int(p.opts.Width), "…")
}

func lineCount(f *source.File) uint32 {
	n := uint32(len(f.LineIdx)) + 1
	if len(f.Content) > 0 && f.Content[len(f.Content)-1] == '\n' {
		n--
	}
	return n
}

func expandTabs(s string) string {
	if !strings.Contains(s, "\t") {
		return s
	}
	return strings.ReplaceAll(s, "\t", strings.Repeat(" ", tabWidth))
}
