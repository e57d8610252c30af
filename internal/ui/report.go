package ui

import (
	"fmt"
	"strings"

	"github.com/papapumpkin/scriptorium/internal/document"
	"github.com/papapumpkin/scriptorium/internal/publish"
	"github.com/papapumpkin/scriptorium/internal/relay"
)

// RecordPublished prints one line per finished record. It satisfies
// publish.Observer.
func (p *Printer) RecordPublished(rec publish.Record) {
	label := rec.Slug
	if label == "" {
		label = "kind " + rec.Event.Kind.String()
	}
	if rec.Number > 0 {
		label = fmt.Sprintf("§%d %s", rec.Number, label)
	}
	id := p.s.id.Render(shortID(rec.Event.ID))

	switch {
	case rec.Broadcast == nil:
		fmt.Fprintf(p.w, "%s %s %s %s\n", p.s.muted.Render(iconDry), label, id, p.s.muted.Render("(signed, not sent)"))
	case rec.Accepted():
		fmt.Fprintf(p.w, "%s %s %s %s\n", p.s.success.Render(iconDone), label, id,
			p.s.muted.Render(fmt.Sprintf("(%d/%d relays)", len(rec.Broadcast.Successful()), relayCount(rec.Broadcast))))
	default:
		fmt.Fprintf(p.w, "%s %s %s %s\n", p.s.danger.Render(iconFailed), label, id, p.s.danger.Render("no relay accepted"))
	}
}

// BroadcastReport prints every outcome of one broadcast, then its notes.
func (p *Printer) BroadcastReport(res *relay.Result) {
	if res == nil {
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", p.s.heading.Render("broadcast"), p.s.id.Render(shortID(res.EventID)))
	for _, o := range res.Outcomes {
		icon := p.s.danger.Render(iconFailed)
		switch o.Status {
		case relay.StatusAccepted:
			icon = p.s.success.Render(iconDone)
		case relay.StatusAborted:
			icon = p.s.muted.Render(iconPending)
		}
		detail := string(o.Status)
		if o.Message != "" {
			detail += ": " + o.Message
		} else if o.Err != nil && o.Status != relay.StatusAccepted {
			detail += ": " + o.Err.Error()
		}
		pass := fmt.Sprintf("#%d", o.Attempt)
		if o.Fallback {
			pass += " fallback"
		}
		fmt.Fprintf(p.w, "  %s %-36s %s %s\n", icon, o.URL, detail, p.s.muted.Render(pass))
	}
	for _, n := range res.Notes {
		fmt.Fprintln(p.w, "  "+p.s.warn.Render(iconWarn)+" "+n)
	}
}

// PublicationSummary prints the root's pointers and the failed records.
func (p *Printer) PublicationSummary(res *publish.PublicationResult) {
	if res == nil {
		return
	}
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, p.s.heading.Render("publication")+" "+res.Root.Title)
	p.field("slug", res.Root.Slug)
	p.field("event", res.Root.Event.ID)
	p.field("sections", fmt.Sprintf("%d", len(res.Sections)))
	if naddr, err := res.Root.Naddr(); err == nil && naddr != "" {
		p.field("naddr", naddr)
	}
	if nevent, err := res.Root.Nevent(); err == nil && res.Root.Event.ID != "" {
		p.field("nevent", nevent)
	}

	failed := res.Failures()
	if len(failed) == 0 {
		if res.Root.Broadcast != nil {
			p.Success("every record accepted by at least one relay")
		}
		return
	}
	p.Warn(plural(len(failed), "record") + " accepted by no relay:")
	for _, f := range failed {
		fmt.Fprintf(p.w, "  %s %s %s\n", p.s.danger.Render(iconFailed), f.Slug, p.s.id.Render(shortID(f.Event.ID)))
	}
}

// DocumentPreview prints the section outline of doc as it will be published.
func (p *Printer) DocumentPreview(doc *document.Document) {
	fmt.Fprintln(p.w, p.s.heading.Render(doc.Title)+" "+p.s.muted.Render("("+doc.Format.String()+", "+plural(len(doc.Sections), "section")+")"))
	for _, s := range doc.Sections {
		title := s.Title
		if s.Implicit {
			title = p.s.muted.Render(title)
		}
		lines := 0
		if s.Body != "" {
			lines = strings.Count(s.Body, "\n") + 1
		}
		fmt.Fprintf(p.w, "  %2d. %s %s\n", s.Number, title, p.s.muted.Render(plural(lines, "line")))
	}
}

// Event prints a JSON event body indented under a heading.
func (p *Printer) Event(title string, raw []byte) {
	fmt.Fprintln(p.w, p.s.heading.Render(title))
	fmt.Fprintln(p.w, indent(string(raw), "  "))
}

func relayCount(res *relay.Result) int {
	return len(res.Successful()) + len(res.Failed())
}
