package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/scriptorium/internal/event"
	"github.com/papapumpkin/scriptorium/internal/publish"
)

// addRelayFlags registers the flags shared by every broadcasting command.
func addRelayFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("relay", nil, "relay URL, repeatable (default: the tier for the event kind)")
	cmd.Flags().Bool("dry-run", false, "identify and sign, but do not broadcast")
	cmd.Flags().Bool("strict", false, "exit with status 2 when any record is accepted by no relay")
}

func relayOptions(cmd *cobra.Command) []publish.Option {
	var opts []publish.Option
	if urls, _ := cmd.Flags().GetStringSlice("relay"); len(urls) > 0 {
		opts = append(opts, publish.WithRelays(urls...))
	}
	if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
		opts = append(opts, publish.WithDryRun(true))
	}
	return opts
}

// strictCheck turns unaccepted records into exit status 2 under --strict.
func strictCheck(cmd *cobra.Command, failed int) error {
	if failed == 0 {
		return nil
	}
	if strict, _ := cmd.Flags().GetBool("strict"); strict {
		return &exitError{code: 2, err: fmt.Errorf("%d record(s) accepted by no relay", failed)}
	}
	return nil
}

// printRaw writes events as JSON lines to stdout when --raw is set.
func printRaw(cmd *cobra.Command, events ...event.Event) error {
	if raw, _ := cmd.Flags().GetBool("raw"); !raw {
		return nil
	}
	return writeEvents(cmd.OutOrStdout(), events...)
}

func writeEvents(w io.Writer, events ...event.Event) error {
	for _, e := range events {
		b, err := e.Wire()
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s\n", b); err != nil {
			return err
		}
	}
	return nil
}

// readInput reads a file argument, or stdin for "-" or no argument.
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}
