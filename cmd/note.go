package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/scriptorium/internal/event"
	"github.com/papapumpkin/scriptorium/internal/publish"
)

var noteCmd = &cobra.Command{
	Use:   "note [content]",
	Short: "Publish a kind 1 text note",
	Long:  "Publishes a short text note. Without an argument the content is read from stdin.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runNote,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <event-id>...",
	Short: "Ask relays to delete events (kind 5)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDelete,
}

var republishCmd = &cobra.Command{
	Use:   "republish [file|-]",
	Short: "Rebroadcast an event signed elsewhere",
	Long: `Reads one signed event as JSON, validates it against the NIP-01 schema,
re-verifies its id and signature, and broadcasts it unchanged.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRepublish,
}

func init() {
	noteCmd.Flags().StringSlice("topic", nil, "topic (t tag), repeatable")
	addRelayFlags(noteCmd)
	noteCmd.Flags().Bool("raw", false, "print the signed event as JSON on stdout")

	deleteCmd.Flags().String("reason", "", "reason given to relays")
	deleteCmd.Flags().IntSlice("kind", nil, "kind of the deleted events (k tag), repeatable")
	addRelayFlags(deleteCmd)
	deleteCmd.Flags().Bool("raw", false, "print the signed event as JSON on stdout")

	addRelayFlags(republishCmd)

	rootCmd.AddCommand(noteCmd, deleteCmd, republishCmd)
}

func runNote(cmd *cobra.Command, args []string) error {
	var content string
	if len(args) == 1 {
		content = args[0]
	} else {
		raw, err := readInput(cmd, nil)
		if err != nil {
			return err
		}
		content = strings.TrimRight(string(raw), "\n")
	}
	topics, _ := cmd.Flags().GetStringSlice("topic")
	return publishDraft(cmd, publish.TextNote(content, topics...))
}

func runDelete(cmd *cobra.Command, args []string) error {
	for _, id := range args {
		if b, err := hex.DecodeString(id); err != nil || len(b) != 32 {
			return fmt.Errorf("delete: %q is not a 64-character hex event id", id)
		}
	}
	reason, _ := cmd.Flags().GetString("reason")
	rawKinds, _ := cmd.Flags().GetIntSlice("kind")
	kinds := make([]event.Kind, 0, len(rawKinds))
	for _, k := range rawKinds {
		kinds = append(kinds, event.Kind(k))
	}
	return publishDraft(cmd, publish.Deletion(reason, args, kinds...))
}

// publishDraft signs and broadcasts a single draft and reports the outcome.
func publishDraft(cmd *cobra.Command, d publish.Draft) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	return withPublisher(cmd, a, true, func(ctx context.Context, p *publish.Publisher) error {
		rec, err := p.PublishEvent(ctx, d)
		return reportRecord(cmd, a, rec, err)
	})
}

func runRepublish(cmd *cobra.Command, args []string) error {
	raw, err := readInput(cmd, args)
	if err != nil {
		return err
	}
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	return withPublisher(cmd, a, false, func(ctx context.Context, p *publish.Publisher) error {
		rec, err := p.Republish(ctx, raw)
		return reportRecord(cmd, a, rec, err)
	})
}

// withPublisher opens the ledger, builds a publisher and runs fn under a
// signal-aware context. needKey is false for commands that never sign.
func withPublisher(cmd *cobra.Command, a *app, needKey bool, fn func(context.Context, *publish.Publisher) error) error {
	opts := relayOptions(cmd)
	if dry, _ := cmd.Flags().GetBool("dry-run"); !dry {
		a.openLedger(cmd.Context())
	}

	var p *publish.Publisher
	if needKey {
		s, err := a.signer()
		if err != nil {
			return err
		}
		p = a.publisher(s, opts...)
	} else {
		p = a.publisher(nil, opts...)
	}

	ctx, cancel := setupSignalContext(cmd.Context(), a.printer)
	defer cancel()
	return fn(ctx, p)
}

func reportRecord(cmd *cobra.Command, a *app, rec *publish.Record, err error) error {
	if rec != nil {
		a.printer.BroadcastReport(rec.Broadcast)
	}
	if err != nil {
		return err
	}
	if nevent, err := rec.Nevent(); err == nil {
		a.printer.Info(nevent)
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
