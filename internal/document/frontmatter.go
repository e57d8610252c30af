package document

import (
	"fmt"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"go.yaml.in/yaml/v3"
)

// FrontMatter is the publication metadata a source file may declare ahead
// of its first heading.
type FrontMatter struct {
	Title    string   `toml:"title" yaml:"title"`
	Author   string   `toml:"author" yaml:"author"`
	Version  string   `toml:"version" yaml:"version"`
	Summary  string   `toml:"summary" yaml:"summary"`
	Topics   []string `toml:"topics" yaml:"topics"`
	Image    string   `toml:"image" yaml:"image"`
	Language string   `toml:"language" yaml:"language"`
}

// IsZero reports whether no field was set.
func (fm FrontMatter) IsZero() bool {
	return fm.Title == "" && fm.Author == "" && fm.Version == "" && fm.Summary == "" &&
		len(fm.Topics) == 0 && fm.Image == "" && fm.Language == ""
}

// SplitFrontMatter strips a leading front matter block and decodes it.
// Supported forms:
//
//	+++          ---
//	<TOML>       <YAML>
//	+++          ---
//	<body>       <body>
//
// Content without front matter is returned unchanged with a zero FrontMatter.
func SplitFrontMatter(raw string) (FrontMatter, string, error) {
	var fm FrontMatter

	content := strings.TrimLeft(raw, " \t\r\n")
	var delim string
	switch {
	case strings.HasPrefix(content, "+++\n"), strings.HasPrefix(content, "+++\r\n"):
		delim = "+++"
	case strings.HasPrefix(content, "---\n"), strings.HasPrefix(content, "---\r\n"):
		delim = "---"
	default:
		return fm, raw, nil
	}

	rest := content[strings.Index(content, "\n")+1:]
	block, body, ok := cutAtDelimiterLine(rest, delim)
	if !ok {
		return fm, raw, &StructureError{Err: ErrUnterminatedFrontMatter}
	}

	var err error
	if delim == "+++" {
		err = toml.Unmarshal([]byte(block), &fm)
	} else {
		err = yaml.Unmarshal([]byte(block), &fm)
	}
	if err != nil {
		return fm, raw, fmt.Errorf("document: parsing front matter: %w", err)
	}
	return fm, body, nil
}

// cutAtDelimiterLine splits s at the first line consisting only of delim.
func cutAtDelimiterLine(s, delim string) (before, after string, ok bool) {
	offset := 0
	for _, chunk := range strings.SplitAfter(s, "\n") {
		if strings.TrimRight(chunk, "\r\n") == delim {
			return s[:offset], s[offset+len(chunk):], true
		}
		offset += len(chunk)
	}
	return "", "", false
}
