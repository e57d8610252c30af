package document

import (
	"path/filepath"
	"strings"
)

// Format is the markup language of a source document.
type Format int

const (
	// FormatAsciiDoc uses '=' headings ("= Title", "== Section").
	FormatAsciiDoc Format = iota
	// FormatMarkdown uses '#' headings ("# Title", "## Section").
	FormatMarkdown
)

// String returns the short name of the format.
func (f Format) String() string {
	if f == FormatMarkdown {
		return "markdown"
	}
	return "asciidoc"
}

// MIME returns the media type advertised in section "m" tags.
func (f Format) MIME() string {
	if f == FormatMarkdown {
		return "text/markdown"
	}
	return "text/asciidoc"
}

// marker is the heading character for the format.
func (f Format) marker() byte {
	if f == FormatMarkdown {
		return '#'
	}
	return '='
}

// FormatFromPath guesses the format from a file extension. The second
// result is false for unknown extensions.
func FormatFromPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return FormatMarkdown, true
	case ".adoc", ".asciidoc", ".asc":
		return FormatAsciiDoc, true
	}
	return FormatAsciiDoc, false
}

// DetectFormat looks at the first line that starts with a heading marker
// and picks the matching format. Documents with neither default to AsciiDoc.
func DetectFormat(raw string) Format {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if _, _, ok := parseHeading(FormatMarkdown, line); ok {
			return FormatMarkdown
		}
		if _, _, ok := parseHeading(FormatAsciiDoc, line); ok {
			return FormatAsciiDoc
		}
	}
	return FormatAsciiDoc
}
