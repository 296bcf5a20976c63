package manifest

import (
	"bytes"
	"strconv"

	"fortio.org/safecast"
	"github.com/BurntSushi/toml"

	"strictparent/internal/source"
)

const (
	classHeader  = "[[class]]"
	memberHeader = "[[class.member]]"
)

// locator maps decoded values back to byte spans. TOML decoding drops
// positions, so spans are recovered by scanning table headers and quoted
// values in order. Anything it cannot find falls back to the enclosing header.
type locator struct {
	file    *source.File
	classes []region
}

type region struct {
	start, end uint32
}

type classLocator struct {
	file    *source.File
	header  source.Span
	body    region
	members []region
}

type memberLocator struct {
	file   *source.File
	header source.Span
	body   region
}

func newLocator(f *source.File) *locator {
	starts := headerOffsets(f.Content, classHeader, 0, contentLen(f))
	l := &locator{file: f, classes: make([]region, len(starts))}
	for i, s := range starts {
		end := contentLen(f)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		l.classes[i] = region{start: s, end: end}
	}
	return l
}

func (l *locator) fileStart() source.Span {
	return source.Span{File: l.file.ID}
}

func (l *locator) class(i int) classLocator {
	if i >= len(l.classes) {
		// inline tables or unusual formatting
		whole := region{start: 0, end: contentLen(l.file)}
		return classLocator{file: l.file, header: l.fileStart(), body: whole}
	}
	body := l.classes[i]
	cl := classLocator{
		file:   l.file,
		header: headerSpan(l.file, body.start, classHeader),
		body:   body,
	}
	starts := headerOffsets(l.file.Content, memberHeader, body.start, body.end)
	cl.members = make([]region, len(starts))
	for j, s := range starts {
		end := body.end
		if j+1 < len(starts) {
			end = starts[j+1]
		}
		cl.members[j] = region{start: s, end: end}
	}
	return cl
}

// key locates the last element of an undecoded key.
func (l *locator) key(k toml.Key) source.Span {
	if len(k) == 0 {
		return l.fileStart()
	}
	if sp, ok := l.file.SpanOf(k[len(k)-1], 0); ok {
		return sp
	}
	return l.fileStart()
}

func (cl classLocator) own() region {
	if len(cl.members) > 0 {
		return region{start: cl.body.start, end: cl.members[0].start}
	}
	return cl.body
}

func (cl classLocator) name(raw string) source.Span {
	return findQuoted(cl.file, raw, cl.own(), cl.header)
}

func (cl classLocator) base(raw string) source.Span {
	own := cl.own()
	if sp, ok := cl.file.SpanOf("bases", own.start); ok && sp.End <= own.end {
		own.start = sp.End
	}
	return findQuoted(cl.file, raw, own, cl.header)
}

func (cl classLocator) member(j int) memberLocator {
	if j >= len(cl.members) {
		return memberLocator{file: cl.file, header: cl.header, body: cl.body}
	}
	body := cl.members[j]
	return memberLocator{
		file:   cl.file,
		header: headerSpan(cl.file, body.start, memberHeader),
		body:   body,
	}
}

func (ml memberLocator) name(raw string) source.Span {
	return findQuoted(ml.file, raw, ml.body, ml.header)
}

// value locates a quoted value inside the member body, falling back to def.
func (ml memberLocator) value(raw string, def source.Span) source.Span {
	return findQuoted(ml.file, raw, ml.body, def)
}

// defines reports whether the member table assigns key, even to an empty value.
func (ml memberLocator) defines(key string) bool {
	body := ml.file.Content[ml.body.start:ml.body.end]
	for line := range bytes.Lines(body) {
		line = bytes.TrimLeft(line, " \t")
		line = bytes.TrimPrefix(line, []byte{'"'})
		rest, ok := bytes.CutPrefix(line, []byte(key))
		if !ok {
			continue
		}
		rest = bytes.TrimPrefix(rest, []byte{'"'})
		if bytes.HasPrefix(bytes.TrimLeft(rest, " \t"), []byte{'='}) {
			return true
		}
	}
	return false
}

func findQuoted(f *source.File, raw string, within region, fallback source.Span) source.Span {
	if raw == "" {
		return fallback
	}
	for _, needle := range []string{strconv.Quote(raw), "'" + raw + "'"} {
		if sp, ok := f.SpanOf(needle, within.start); ok && sp.End <= within.end {
			return sp
		}
	}
	return fallback
}

func headerOffsets(content []byte, header string, from, to uint32) []uint32 {
	var out []uint32
	needle := []byte(header)
	for pos := from; pos < to; {
		i := bytes.Index(content[pos:to], needle)
		if i < 0 {
			break
		}
		at := pos + uint32(i) // i < to-pos
		if atLineStart(content, at) {
			out = append(out, at)
		}
		pos = at + uint32(len(needle))
	}
	return out
}

func atLineStart(content []byte, at uint32) bool {
	for i := int(at) - 1; i >= 0; i-- {
		switch content[i] {
		case ' ', '\t':
			continue
		case '\n':
			return true
		default:
			return false
		}
	}
	return true
}

func headerSpan(f *source.File, at uint32, header string) source.Span {
	n, err := safecast.Conv[uint32](len(header))
	if err != nil {
		n = 0
	}
	return source.Span{File: f.ID, Start: at, End: at + n}
}

func spanAt(f *source.File, start, length int) source.Span {
	s, err := safecast.Conv[uint32](start)
	if err != nil || int(s) > len(f.Content) {
		return source.Span{File: f.ID}
	}
	n, err := safecast.Conv[uint32](max(length, 1))
	if err != nil {
		n = 1
	}
	end := min(s+n, contentLen(f))
	return source.Span{File: f.ID, Start: s, End: end}
}

func contentLen(f *source.File) uint32 {
	n, err := safecast.Conv[uint32](len(f.Content))
	if err != nil {
		panic(err)
	}
	return n
}
