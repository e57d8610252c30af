package document

import "strings"

const discreteAttr = "[discrete]"

// parseHeading recognizes an ATX-style heading line: one or more marker
// characters, whitespace, then a non-empty title. Markdown closing hashes
// are stripped.
func parseHeading(f Format, line string) (level int, title string, ok bool) {
	m := f.marker()
	for level < len(line) && line[level] == m {
		level++
	}
	if level == 0 || level >= len(line) {
		return 0, "", false
	}
	if line[level] != ' ' && line[level] != '\t' {
		return 0, "", false
	}
	title = strings.TrimSpace(line[level:])
	if f == FormatMarkdown {
		title = strings.TrimSpace(strings.TrimRight(title, "#"))
	}
	if title == "" {
		return 0, "", false
	}
	return level, title, true
}

// fenceMarker returns the delimiter that opens or closes a literal block on
// this line, or "" if the line is not a block delimiter. Headings inside such
// blocks are content.
func fenceMarker(f Format, line string) string {
	trimmed := strings.TrimSpace(line)
	if f == FormatMarkdown {
		for _, m := range []string{"```", "~~~"} {
			if strings.HasPrefix(trimmed, m) {
				return m
			}
		}
		return ""
	}
	if len(trimmed) >= 4 && (strings.Trim(trimmed, "-") == "" || strings.Trim(trimmed, ".") == "") {
		return trimmed
	}
	return ""
}

// fenceTracker follows literal-block state line by line.
type fenceTracker struct {
	format Format
	open   string
}

// inside consumes line and reports whether it belongs to a literal block
// (delimiters included).
func (ft *fenceTracker) inside(line string) bool {
	m := fenceMarker(ft.format, line)
	switch {
	case ft.open == "" && m != "":
		ft.open = m
		return true
	case ft.open != "" && m == ft.open:
		ft.open = ""
		return true
	case ft.open != "":
		return true
	}
	return false
}

// trimBlankLines drops leading and trailing lines that contain only
// whitespace, keeping indentation of the remaining lines.
func trimBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	out := lines[start:end]
	for i := range out {
		out[i] = strings.TrimRight(out[i], "\r")
	}
	return strings.Join(out, "\n")
}
