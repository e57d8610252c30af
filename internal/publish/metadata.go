package publish

import "github.com/papapumpkin/scriptorium/internal/document"

// Metadata describes a publication. Empty fields are simply not tagged.
type Metadata struct {
	Title     string
	Author    string
	Version   string
	Summary   string
	Topics    []string
	Image     string
	Language  string
	RelayHint string
}

// Merge fills fields left empty in m from front matter. Explicit values in
// m win.
func (m Metadata) Merge(fm document.FrontMatter) Metadata {
	pick := func(have, fallback string) string {
		if have != "" {
			return have
		}
		return fallback
	}
	m.Title = pick(m.Title, fm.Title)
	m.Author = pick(m.Author, fm.Author)
	m.Version = pick(m.Version, fm.Version)
	m.Summary = pick(m.Summary, fm.Summary)
	m.Image = pick(m.Image, fm.Image)
	m.Language = pick(m.Language, fm.Language)
	if len(m.Topics) == 0 {
		m.Topics = append([]string(nil), fm.Topics...)
	}
	return m
}
