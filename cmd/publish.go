package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/scriptorium/internal/document"
	"github.com/papapumpkin/scriptorium/internal/event"
	"github.com/papapumpkin/scriptorium/internal/linker"
	"github.com/papapumpkin/scriptorium/internal/publish"
	"github.com/papapumpkin/scriptorium/internal/watch"
)

var publishCmd = &cobra.Command{
	Use:   "publish <file>",
	Short: "Publish a document as a kind 30040 index over kind 30041 sections",
	Long: `Decomposes an AsciiDoc or Markdown document at its second heading level,
signs every section and an index event referencing them, and broadcasts them
in order: sections first, the index last.

Metadata flags override the document's front matter.`,
	Args: cobra.ExactArgs(1),
	RunE: runPublish,
}

func init() {
	f := publishCmd.Flags()
	f.String("title", "", "publication title (default: the document's first heading)")
	f.String("author", "", "author name")
	f.String("version", "", "edition or version")
	f.String("summary", "", "summary tag for the index")
	f.StringSlice("topic", nil, "topic (t tag), repeatable")
	f.String("image", "", "cover image URL")
	f.String("language", "", "ISO-639-1 language code")
	f.String("mode", "", "section references: a (address) or e (event id)")
	f.String("scheme", "", "id serialization: nip01 or sorted")
	f.String("format", "", "markup: asciidoc or markdown (default: by extension, then content)")
	f.Int("max-depth", document.DefaultMaxDepth, "deepest heading level accepted")
	addRelayFlags(publishCmd)
	f.Bool("raw", false, "print every signed event as a JSON line on stdout")
	f.Bool("watch", false, "republish whenever the file is saved")
	f.Bool("long-form", false, "publish the whole document as one kind 30023 article")

	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	path := args[0]
	meta := metadataFromFlags(cmd)
	if meta.RelayHint == "" {
		meta.RelayHint = a.cfg.RelayHint
	}
	opts, err := publishOptions(cmd, path)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("scheme"); v != "" {
		if a.scheme, err = event.ParseScheme(v); err != nil {
			return err
		}
	}
	if dry, _ := cmd.Flags().GetBool("dry-run"); !dry {
		a.openLedger(cmd.Context())
	}

	s, err := a.signer()
	if err != nil {
		return err
	}
	p := a.publisher(s, opts...)

	ctx, cancel := setupSignalContext(cmd.Context(), a.printer)
	defer cancel()

	once := func() error {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("publish: %w", err)
		}
		if longForm, _ := cmd.Flags().GetBool("long-form"); longForm {
			return publishLongForm(ctx, cmd, a, p, string(raw), meta)
		}
		res, err := p.PublishDocument(ctx, string(raw), meta)
		a.printer.PublicationSummary(res)
		if err != nil {
			return err
		}
		if err := printRaw(cmd, res.Events()...); err != nil {
			return err
		}
		return strictCheck(cmd, len(res.Failures()))
	}

	if err := once(); err != nil {
		return err
	}
	if w, _ := cmd.Flags().GetBool("watch"); w {
		return watchAndRepublish(ctx, a, path, once)
	}
	return nil
}

func publishLongForm(ctx context.Context, cmd *cobra.Command, a *app, p *publish.Publisher, raw string, meta publish.Metadata) error {
	fm, body, err := document.SplitFrontMatter(raw)
	if err != nil {
		return err
	}
	meta = meta.Merge(fm)
	if meta.Title == "" {
		return errors.New("publish: --long-form needs a title (flag or front matter)")
	}
	rec, err := p.PublishEvent(ctx, publish.LongForm(meta, body))
	if rec != nil {
		a.printer.BroadcastReport(rec.Broadcast)
	}
	if err != nil {
		return err
	}
	if err := printRaw(cmd, rec.Event); err != nil {
		return err
	}
	failed := 0
	if rec.Broadcast != nil && !rec.Accepted() {
		failed = 1
	}
	return strictCheck(cmd, failed)
}

// watchAndRepublish reruns publish on every save until ctx is done. Section
// slugs are stable across edits, so relays replace the previous revision.
func watchAndRepublish(ctx context.Context, a *app, path string, publishOnce func() error) error {
	w, err := watch.New(0, path)
	if err != nil {
		return err
	}
	defer w.Stop()
	if err := w.Start(); err != nil {
		return err
	}

	a.printer.Info(fmt.Sprintf("watching %s (ctrl-c to stop)", path))
	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-w.Changes:
			if !ok {
				return nil
			}
			if change.Kind == watch.ChangeRemoved {
				a.printer.Warn(path + " was removed; waiting for it to come back")
				continue
			}
			a.printer.Info("change detected, republishing")
			if err := publishOnce(); err != nil {
				a.printer.Error(err.Error())
			}
		}
	}
}

func metadataFromFlags(cmd *cobra.Command) publish.Metadata {
	f := cmd.Flags()
	var m publish.Metadata
	m.Title, _ = f.GetString("title")
	m.Author, _ = f.GetString("author")
	m.Version, _ = f.GetString("version")
	m.Summary, _ = f.GetString("summary")
	m.Topics, _ = f.GetStringSlice("topic")
	m.Image, _ = f.GetString("image")
	m.Language, _ = f.GetString("language")
	return m
}

// publishOptions translates command flags into publisher options that
// override configuration.
func publishOptions(cmd *cobra.Command, path string) ([]publish.Option, error) {
	f := cmd.Flags()
	opts := relayOptions(cmd)

	if v, _ := f.GetString("mode"); v != "" {
		mode, err := linker.ParseMode(v)
		if err != nil {
			return nil, err
		}
		opts = append(opts, publish.WithMode(mode))
	}
	switch v, _ := f.GetString("format"); v {
	case "":
		if format, ok := document.FormatFromPath(path); ok {
			opts = append(opts, publish.WithFormat(format))
		}
	case "asciidoc", "adoc":
		opts = append(opts, publish.WithFormat(document.FormatAsciiDoc))
	case "markdown", "md":
		opts = append(opts, publish.WithFormat(document.FormatMarkdown))
	default:
		return nil, fmt.Errorf("unknown format %q (want asciidoc or markdown)", v)
	}
	if n, _ := f.GetInt("max-depth"); n > 0 {
		opts = append(opts, publish.WithMaxDepth(n))
	}
	return opts, nil
}
