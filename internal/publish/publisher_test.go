package publish

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papapumpkin/scriptorium/internal/document"
	"github.com/papapumpkin/scriptorium/internal/event"
	"github.com/papapumpkin/scriptorium/internal/ledger"
	"github.com/papapumpkin/scriptorium/internal/linker"
	"github.com/papapumpkin/scriptorium/internal/relay"
	"github.com/papapumpkin/scriptorium/internal/signer"
	"github.com/papapumpkin/scriptorium/internal/telemetry"
)

const testKey = "0000000000000000000000000000000000000000000000000000000000000001"

const guide = `= Field Guide
:author: ignored

Opening words.

== Mosses

Soft and green.

=== Sphagnum

Wet.

== Ferns

Feathery.
`

// fakeBroadcaster accepts everything except the calls listed in reject, and
// fails with err on call number failAt (1-based).
type fakeBroadcaster struct {
	mu     sync.Mutex
	sent   []event.Event
	reject map[int]bool
	failAt int
	err    error
}

func (f *fakeBroadcaster) Broadcast(_ context.Context, e event.Event, urls []string) (*relay.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, e)
	n := len(f.sent)
	if n == f.failAt {
		return &relay.Result{EventID: e.ID, Kind: e.Kind, Aborted: true}, f.err
	}
	url := "wss://relay.test"
	if len(urls) > 0 {
		url = urls[0]
	}
	status := relay.StatusAccepted
	if f.reject[n] {
		status = relay.StatusRejected
	}
	return &relay.Result{
		EventID:  e.ID,
		Kind:     e.Kind,
		Attempts: 1,
		Outcomes: []relay.Outcome{{URL: url, Status: status, Attempt: 1}},
	}, nil
}

// failingSigner signs normally until call number failAt.
type failingSigner struct {
	inner  signer.Signer
	calls  int
	failAt int
}

func (f *failingSigner) PublicKey() string { return f.inner.PublicKey() }

func (f *failingSigner) Sign(id string) (string, error) {
	f.calls++
	if f.calls == f.failAt {
		return "", errors.New("hardware key unplugged")
	}
	return f.inner.Sign(id)
}

type recordingObserver struct {
	records []Record
}

func (r *recordingObserver) RecordPublished(rec Record) {
	r.records = append(r.records, rec)
}

type memLedger struct {
	entries []string
	err     error
}

func (m *memLedger) Append(_ context.Context, e ledger.Entry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e.Slug)
	return nil
}

func (m *memLedger) Close() error { return nil }

func testSigner(t *testing.T) *signer.Schnorr {
	t.Helper()
	s, err := signer.FromHex(testKey)
	require.NoError(t, err)
	return s
}

func testClock() *clock.Mock {
	c := clock.NewMock()
	c.Set(time.Unix(1700000000, 0))
	return c
}

func TestPublishDocumentAddressMode(t *testing.T) {
	t.Parallel()

	s := testSigner(t)
	b := &fakeBroadcaster{}
	obs := &recordingObserver{}
	led := &memLedger{}
	p := New(s, b,
		WithClock(testClock()),
		WithRelays("wss://hint.test"),
		WithObserver(obs),
		WithLedger(led),
	)

	res, err := p.PublishDocument(context.Background(), guide, Metadata{Author: "Ann", Version: "1"})
	require.NoError(t, err)

	require.Len(t, res.Sections, 3)
	assert.Equal(t, document.PreambleTitle, res.Sections[0].Title)
	assert.Equal(t, "Mosses", res.Sections[1].Title)
	assert.Equal(t, "Ferns", res.Sections[2].Title)
	assert.Equal(t, "field-guide-by-ann-v-1", res.Root.Slug)

	// Sections go out first, in order, and the root last.
	require.Len(t, b.sent, 4)
	for i, sec := range res.Sections {
		assert.Equal(t, sec.Event.ID, b.sent[i].ID)
		assert.Equal(t, event.KindPublicationSection, sec.Event.Kind)
		assert.Equal(t, i+1, sec.Number)
		assert.Equal(t, "text/asciidoc", sec.Event.Tags.Find("m").Value())
	}
	assert.Equal(t, res.Root.Event.ID, b.sent[3].ID)
	assert.Equal(t, event.KindPublicationIndex, res.Root.Event.Kind)
	assert.Contains(t, res.Sections[1].Event.Content, "[discrete]")

	mode, refs := linker.Refs(res.Root.Event)
	assert.Equal(t, linker.ModeAddress, mode)
	require.Len(t, refs, 3)
	for i, ref := range refs {
		assert.Equal(t, res.Sections[i].Event.ID, ref.ID)
		assert.Equal(t, res.Sections[i].Slug, ref.Slug)
		assert.Equal(t, "wss://hint.test", ref.RelayHint)
	}

	for _, e := range res.Events() {
		assert.True(t, event.VerifyID(e, event.SchemeNIP01))
		assert.NoError(t, signer.Verify(e))
		assert.Equal(t, int64(1700000000), e.CreatedAt)
	}
	assert.Len(t, obs.records, 4)
	assert.Len(t, led.entries, 4)
	assert.Empty(t, res.Failures())
}

func TestPublishDocumentEventMode(t *testing.T) {
	t.Parallel()

	p := New(testSigner(t), &fakeBroadcaster{}, WithMode(linker.ModeEvent), WithClock(testClock()))
	res, err := p.PublishDocument(context.Background(), "# Notes\n\n## One\n\na\n\n## Two\n\nb\n", Metadata{})
	require.NoError(t, err)

	assert.Empty(t, res.Root.Event.Tags.FindAll("a"))
	ids := res.Root.Event.Tags.Values("e")
	require.Len(t, ids, 2)
	assert.Equal(t, res.Sections[0].Event.ID, ids[0])
	assert.Equal(t, res.Sections[1].Event.ID, ids[1])
	assert.Equal(t, "text/markdown", res.Root.Event.Tags.Find("m").Value())
}

func TestPublishDocumentSigningFailureStopsBeforeRoot(t *testing.T) {
	t.Parallel()

	b := &fakeBroadcaster{}
	p := New(&failingSigner{inner: testSigner(t), failAt: 2}, b, WithClock(testClock()))
	res, err := p.PublishDocument(context.Background(), guide, Metadata{})
	require.Error(t, err)

	var recErr *RecordError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, 2, recErr.Index)
	assert.Equal(t, event.KindPublicationSection, recErr.Kind)

	require.NotNil(t, res)
	assert.Len(t, res.Sections, 1)
	assert.Empty(t, res.Root.Event.ID)
	assert.Len(t, b.sent, 1, "nothing after the failed section is sent")
}

func TestPublishDocumentContinuesPastRejection(t *testing.T) {
	t.Parallel()

	b := &fakeBroadcaster{reject: map[int]bool{2: true}}
	p := New(testSigner(t), b, WithClock(testClock()))
	res, err := p.PublishDocument(context.Background(), guide, Metadata{})
	require.NoError(t, err)

	assert.Len(t, b.sent, 4)
	failures := res.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "Mosses", failures[0].Title)

	_, refs := linker.Refs(res.Root.Event)
	assert.Len(t, refs, 3, "rejected sections are still linked")
}

func TestPublishDocumentAbort(t *testing.T) {
	t.Parallel()

	b := &fakeBroadcaster{failAt: 2, err: relay.ErrAborted}
	led := &memLedger{}
	p := New(testSigner(t), b, WithClock(testClock()), WithLedger(led))
	res, err := p.PublishDocument(context.Background(), guide, Metadata{})
	require.ErrorIs(t, err, relay.ErrAborted)

	var recErr *RecordError
	assert.False(t, errors.As(err, &recErr))
	assert.Len(t, res.Sections, 1)
	assert.Len(t, b.sent, 2)
	// The aborted section was identified and signed, so it is still logged.
	require.Len(t, led.entries, 2)
	assert.Equal(t, res.Sections[0].Slug, led.entries[0])
	assert.Equal(t, "field-guide-mosses-2", led.entries[1])
}

func TestPublishDocumentBookExample(t *testing.T) {
	t.Parallel()

	s := testSigner(t)
	p := New(s, &fakeBroadcaster{}, WithClock(testClock()))
	res, err := p.PublishDocument(context.Background(),
		"# Book\n\n## Intro\nHello\n\n## Ch1\nWorld", Metadata{Author: "Jane", Version: "1"})
	require.NoError(t, err)

	require.Len(t, res.Sections, 2)
	assert.Equal(t, "book-intro-1-by-jane-v-1", res.Sections[0].Slug)
	assert.Equal(t, "Hello", res.Sections[0].Event.Content)
	assert.Equal(t, "book-ch1-2-by-jane-v-1", res.Sections[1].Slug)
	assert.Equal(t, "World", res.Sections[1].Event.Content)
	assert.Equal(t, "book-by-jane-v-1", res.Root.Slug)

	root := res.Root.Event
	assert.Equal(t, event.KindPublicationIndex, root.Kind)
	mode, refs := linker.Refs(root)
	assert.Equal(t, linker.ModeAddress, mode)
	require.Len(t, refs, 2)
	pk := s.PublicKey()
	assert.Equal(t, "30041:"+pk+":book-intro-1-by-jane-v-1", refs[0].Address())
	assert.Equal(t, "30041:"+pk+":book-ch1-2-by-jane-v-1", refs[1].Address())
	assert.Equal(t, res.Sections[0].Event.ID, refs[0].ID)
	assert.Equal(t, res.Sections[1].Event.ID, refs[1].ID)
}

func TestPublishDocumentDryRun(t *testing.T) {
	t.Parallel()

	b := &fakeBroadcaster{}
	obs := &recordingObserver{}
	p := New(testSigner(t), b, WithDryRun(true), WithObserver(obs), WithClock(testClock()))
	res, err := p.PublishDocument(context.Background(), guide, Metadata{})
	require.NoError(t, err)

	assert.Empty(t, b.sent)
	assert.Len(t, obs.records, 4)
	assert.Nil(t, res.Root.Broadcast)
	assert.NoError(t, signer.Verify(res.Root.Event))
	assert.Empty(t, res.Failures())
}

func TestPublishDocumentFrontMatter(t *testing.T) {
	t.Parallel()

	raw := "---\ntitle: Herbarium\nauthor: Bo\nsummary: Pressed plants\ntopics: [botany, paper]\nlanguage: en\n---\n# Ignored Heading\n\n## Leaves\n\nflat\n"
	p := New(testSigner(t), nil, WithDryRun(true), WithClock(testClock()))

	res, err := p.PublishDocument(context.Background(), raw, Metadata{Version: "2"})
	require.NoError(t, err)

	root := res.Root.Event
	assert.Equal(t, "Herbarium", root.Tags.Find("title").Value())
	assert.Equal(t, "Bo", root.Tags.Find("author").Value())
	assert.Equal(t, "2", root.Tags.Find("version").Value())
	assert.Equal(t, "Pressed plants", root.Tags.Find("summary").Value())
	assert.Equal(t, []string{"botany", "paper"}, root.Tags.Values("t"))
	assert.Equal(t, event.Tag{"l", "en", "ISO-639-1"}, root.Tags.Find("l"))
	assert.Equal(t, "herbarium-by-bo-v-2", res.Root.Slug)
}

func TestPublishDocumentStructureError(t *testing.T) {
	t.Parallel()

	b := &fakeBroadcaster{}
	p := New(testSigner(t), b)
	_, err := p.PublishDocument(context.Background(), "no headings here", Metadata{})

	var structErr *document.StructureError
	require.ErrorAs(t, err, &structErr)
	assert.ErrorIs(t, err, document.ErrNoHeaders)
	assert.Empty(t, b.sent)
}

func TestPublishDocumentLedgerFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	em := telemetry.NewWriterEmitter(&buf, "run-1")
	p := New(testSigner(t), &fakeBroadcaster{}, WithLedger(&memLedger{err: errors.New("disk full")}), WithEmitter(em))

	_, err := p.PublishDocument(context.Background(), "# T\n\n## S\n\nx\n", Metadata{})
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(buf.String(), `"kind":"ledger_failed"`))
	assert.Contains(t, buf.String(), `"run":"run-1"`)
}

func TestPublishDocumentNoSigner(t *testing.T) {
	t.Parallel()

	_, err := New(nil, &fakeBroadcaster{}).PublishDocument(context.Background(), "# T\n", Metadata{})
	assert.ErrorIs(t, err, ErrNoSigner)
}
