package document

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecompose_Example(t *testing.T) {
	t.Parallel()

	doc, err := Decompose("# Book\n\n## Intro\nHello\n\n## Ch1\nWorld")
	require.NoError(t, err)

	assert.Equal(t, "Book", doc.Title)
	assert.Equal(t, FormatMarkdown, doc.Format)
	require.Len(t, doc.Sections, 2)
	assert.Equal(t, Section{Number: 1, Title: "Intro", Body: "Hello", Raw: "Hello\n\n"}, doc.Sections[0])
	assert.Equal(t, Section{Number: 2, Title: "Ch1", Body: "World", Raw: "World"}, doc.Sections[1])
}

func TestDecompose_AsciiDocDiscreteHeadings(t *testing.T) {
	t.Parallel()

	raw := "= Guide\n\n== Part\nText\n=== Sub\nMore\n==== Deeper\nDeepest\n"
	doc, err := Decompose(raw)
	require.NoError(t, err)

	assert.Equal(t, FormatAsciiDoc, doc.Format)
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, "Part", doc.Sections[0].Title)
	assert.Equal(t, "Text\n[discrete]\n=== Sub\nMore\n[discrete]\n==== Deeper\nDeepest", doc.Sections[0].Body)
}

func TestDecompose_ExistingDiscreteNotDuplicated(t *testing.T) {
	t.Parallel()

	raw := "= Guide\n== Part\n[discrete]\n== Looks Like A Section\nText\n"
	doc, err := Decompose(raw)
	require.NoError(t, err)

	require.Len(t, doc.Sections, 1)
	assert.Equal(t, "[discrete]\n== Looks Like A Section\nText", doc.Sections[0].Body)
}

func TestDecompose_MarkdownDeepHeadingsVerbatim(t *testing.T) {
	t.Parallel()

	doc, err := Decompose("# T\n## A\n### A.1\ntext\n## B\n")
	require.NoError(t, err)
	require.Len(t, doc.Sections, 2)
	assert.Equal(t, "### A.1\ntext", doc.Sections[0].Body)
	assert.Equal(t, "", doc.Sections[1].Body)
}

func TestDecompose_FencedBlocksAreContent(t *testing.T) {
	t.Parallel()

	t.Run("markdown", func(t *testing.T) {
		t.Parallel()
		doc, err := Decompose("# T\n## A\n```sh\n## not a heading\n```\n## B\nx")
		require.NoError(t, err)
		require.Len(t, doc.Sections, 2)
		assert.Contains(t, doc.Sections[0].Body, "## not a heading")
		assert.Equal(t, "B", doc.Sections[1].Title)
	})

	t.Run("asciidoc", func(t *testing.T) {
		t.Parallel()
		doc, err := Decompose("= T\n== A\n----\n== listing\n----\n== B\nx")
		require.NoError(t, err)
		require.Len(t, doc.Sections, 2)
		assert.Equal(t, "----\n== listing\n----", doc.Sections[0].Body)
	})
}

func TestDecompose_Preamble(t *testing.T) {
	t.Parallel()

	doc, err := Decompose("# Book\nSome opening words.\n\n## A\nbody")
	require.NoError(t, err)

	require.Len(t, doc.Sections, 2)
	assert.Equal(t, PreambleTitle, doc.Sections[0].Title)
	assert.True(t, doc.Sections[0].Implicit)
	assert.Equal(t, 1, doc.Sections[0].Number)
	assert.Equal(t, "Some opening words.", doc.Sections[0].Body)
	assert.Equal(t, 2, doc.Sections[1].Number)
}

func TestDecompose_TitleOnly(t *testing.T) {
	t.Parallel()

	doc, err := Decompose("= Lonely Title\n")
	require.NoError(t, err)
	assert.Equal(t, "Lonely Title", doc.Title)
	assert.Empty(t, doc.Sections)
}

func TestDecompose_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		opts []Option
		want error
		line int
	}{
		{"empty", "", nil, ErrNoHeaders, 0},
		{"plain text", "just some text\nno headings here\n", nil, ErrNoHeaders, 0},
		{"heading only in fence", "```\n# nope\n```\n", []Option{WithFormat(FormatMarkdown)}, ErrNoHeaders, 0},
		{"seven levels", "= T\n== A\n======= too deep\n", nil, ErrTooManyLevels, 3},
		{"custom limit", "# T\n## A\n### B\n", []Option{WithMaxDepth(2)}, ErrTooManyLevels, 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decompose(tc.raw, tc.opts...)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
			var se *StructureError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tc.line, se.Line)
		})
	}
}

// headingBytes returns the total length of the heading lines (with their
// terminators) that Decompose consumes as title or section boundaries.
func headingBytes(raw string, doc *Document) int {
	n := 0
	titles := map[string]bool{doc.Title: true}
	for _, s := range doc.Sections {
		titles[s.Title] = true
	}
	for _, chunk := range strings.SplitAfter(raw, "\n") {
		line := strings.TrimRight(chunk, "\r\n")
		if level, title, ok := parseHeading(doc.Format, line); ok && level <= doc.TitleLevel+1 && titles[title] {
			n += len(chunk)
		}
	}
	return n
}

func TestDecompose_NoContentDropped(t *testing.T) {
	t.Parallel()

	docs := []string{
		"# Book\n\n## Intro\nHello\n\n## Ch1\nWorld",
		"leading text\n= Title\nattr line\n\n== One\nalpha\n=== nested\nbeta\n== Two\n\ngamma\n\n",
		"# T\r\n## A\r\nwindows line endings\r\n## B\r\nmore\r\n",
		"# T\n## A\n```\n## fenced\n```\ntrailing\n## B\n",
	}
	for _, raw := range docs {
		doc, err := Decompose(raw)
		require.NoError(t, err)

		total := len(doc.Preamble)
		for _, s := range doc.Sections {
			if !s.Implicit {
				total += len(s.Raw)
			}
		}
		assert.GreaterOrEqual(t, total, len(raw)-headingBytes(raw, doc), "raw=%q", raw)
	}
}

func TestDetectFormatAndPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, FormatMarkdown, DetectFormat("intro\n# Title\n"))
	assert.Equal(t, FormatAsciiDoc, DetectFormat("= Title\n"))
	assert.Equal(t, FormatAsciiDoc, DetectFormat("no headings"))

	f, ok := FormatFromPath("notes/book.MD")
	assert.True(t, ok)
	assert.Equal(t, FormatMarkdown, f)
	_, ok = FormatFromPath("book.txt")
	assert.False(t, ok)
	assert.Equal(t, "text/asciidoc", FormatAsciiDoc.MIME())
}

func TestSplitFrontMatter(t *testing.T) {
	t.Parallel()

	t.Run("toml", func(t *testing.T) {
		t.Parallel()
		fm, body, err := SplitFrontMatter("+++\ntitle = \"Book\"\nauthor = \"Jane\"\nversion = \"1\"\ntopics = [\"a\", \"b\"]\n+++\n# Book\n")
		require.NoError(t, err)
		assert.Equal(t, FrontMatter{Title: "Book", Author: "Jane", Version: "1", Topics: []string{"a", "b"}}, fm)
		assert.Equal(t, "# Book\n", body)
	})

	t.Run("yaml", func(t *testing.T) {
		t.Parallel()
		fm, body, err := SplitFrontMatter("---\ntitle: Book\nsummary: A short one\n---\n# Book\n")
		require.NoError(t, err)
		assert.Equal(t, "Book", fm.Title)
		assert.Equal(t, "A short one", fm.Summary)
		assert.Equal(t, "# Book\n", body)
	})

	t.Run("none", func(t *testing.T) {
		t.Parallel()
		fm, body, err := SplitFrontMatter("# Book\n")
		require.NoError(t, err)
		assert.True(t, fm.IsZero())
		assert.Equal(t, "# Book\n", body)
	})

	t.Run("unterminated", func(t *testing.T) {
		t.Parallel()
		_, _, err := SplitFrontMatter("+++\ntitle = \"x\"\n# Book\n")
		assert.ErrorIs(t, err, ErrUnterminatedFrontMatter)
	})
}
