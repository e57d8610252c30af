// Package document decomposes a structured text document into a root
// record and an ordered list of section records.
//
// The first heading is the document title. The body is split at the next
// heading level down (== in AsciiDoc, ## in Markdown when the title is = or
// #). Deeper headings stay inside their section; in AsciiDoc they are marked
// [discrete] so they never fragment further. Nothing is dropped: text that
// precedes the first section heading becomes an implicit "Preamble" section.
package document

import (
	"strings"
)

// DefaultMaxDepth is the deepest heading level accepted by Decompose.
const DefaultMaxDepth = 6

// PreambleTitle names the implicit section built from leading content.
const PreambleTitle = "Preamble"

// Section is one child record of a document.
type Section struct {
	// Number is the 1-based position in document order. It is kept even if a
	// caller later reorders sections for display.
	Number int
	Title  string
	// Body is Raw without leading and trailing blank lines.
	Body string
	// Raw is the verbatim source between this heading and the next one.
	Raw string
	// Implicit marks the synthesized preamble section.
	Implicit bool
}

// Document is the decomposed form of a source text.
type Document struct {
	Title      string
	TitleLevel int
	Format     Format
	// Preamble is the verbatim text outside the title line and before the
	// first section heading, whether or not it became a section.
	Preamble string
	Sections []Section
}

// Option configures Decompose.
type Option func(*options)

type options struct {
	maxDepth  int
	format    Format
	formatSet bool
}

// WithMaxDepth sets the deepest heading level accepted. Values below 1 are
// ignored.
func WithMaxDepth(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxDepth = n
		}
	}
}

// WithFormat fixes the markup format instead of detecting it.
func WithFormat(f Format) Option {
	return func(o *options) {
		o.format = f
		o.formatSet = true
	}
}

// Decompose splits raw into a title and ordered sections. It returns a
// *StructureError wrapping ErrNoHeaders when raw has no heading and
// ErrTooManyLevels when a heading is nested deeper than the limit.
func Decompose(raw string, opts ...Option) (*Document, error) {
	o := options{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.formatSet {
		o.format = DetectFormat(raw)
	}

	d := &decomposer{format: o.format, maxDepth: o.maxDepth, fence: fenceTracker{format: o.format}}
	if err := d.run(raw); err != nil {
		return nil, err
	}
	return d.document(), nil
}

// decomposer holds the scan state for one Decompose call.
type decomposer struct {
	format   Format
	maxDepth int
	fence    fenceTracker

	title      string
	titleLevel int
	preamble   strings.Builder
	sections   []Section
	current    *strings.Builder
	prevLine   string
}

func (d *decomposer) run(raw string) error {
	lineNo := 0
	for _, chunk := range strings.SplitAfter(raw, "\n") {
		if chunk == "" {
			continue
		}
		lineNo++
		line := strings.TrimRight(chunk, "\r\n")

		if d.fence.inside(line) {
			d.write(chunk)
			continue
		}

		level, title, ok := parseHeading(d.format, line)
		if !ok {
			d.write(chunk)
			if strings.TrimSpace(line) != "" {
				d.prevLine = strings.TrimSpace(line)
			}
			continue
		}
		if level > d.maxDepth {
			return &StructureError{Line: lineNo, Err: ErrTooManyLevels}
		}

		discrete := d.prevLine == discreteAttr
		d.prevLine = strings.TrimSpace(line)
		switch {
		case d.titleLevel == 0:
			d.title, d.titleLevel = title, level
		case level <= d.titleLevel+1 && !discrete:
			d.flush()
			d.sections = append(d.sections, Section{Title: title})
			d.current = &strings.Builder{}
		default:
			if d.format == FormatAsciiDoc && !discrete {
				d.write(discreteAttr + "\n")
			}
			d.write(chunk)
		}
	}
	if d.titleLevel == 0 {
		return &StructureError{Err: ErrNoHeaders}
	}
	d.flush()
	return nil
}

// write appends text to the open section, or to the preamble before the
// first section heading.
func (d *decomposer) write(s string) {
	if d.current == nil {
		d.preamble.WriteString(s)
		return
	}
	d.current.WriteString(s)
}

// flush stores the open section's text. It is called whenever a new section
// starts and once at the end.
func (d *decomposer) flush() {
	if d.current == nil || len(d.sections) == 0 {
		return
	}
	last := &d.sections[len(d.sections)-1]
	last.Raw = d.current.String()
	last.Body = trimBlankLines(last.Raw)
}

func (d *decomposer) document() *Document {
	doc := &Document{
		Title:      d.title,
		TitleLevel: d.titleLevel,
		Format:     d.format,
		Preamble:   d.preamble.String(),
	}
	if strings.TrimSpace(doc.Preamble) != "" {
		doc.Sections = append(doc.Sections, Section{
			Title:    PreambleTitle,
			Raw:      doc.Preamble,
			Body:     trimBlankLines(doc.Preamble),
			Implicit: true,
		})
	}
	doc.Sections = append(doc.Sections, d.sections...)
	for i := range doc.Sections {
		doc.Sections[i].Number = i + 1
	}
	return doc
}
