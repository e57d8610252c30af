package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/scriptorium/internal/document"
	"github.com/papapumpkin/scriptorium/internal/event"
	"github.com/papapumpkin/scriptorium/internal/signer"
	"github.com/papapumpkin/scriptorium/internal/slug"
	"github.com/papapumpkin/scriptorium/internal/ui"
)

var slugCmd = &cobra.Command{
	Use:   "slug <title>",
	Short: "Print the d-tag a title, author and version map to",
	Args:  cobra.ExactArgs(1),
	RunE:  runSlug,
}

var idCmd = &cobra.Command{
	Use:   "id [file|-]",
	Short: "Compute an event's id and check it against the claimed one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runID,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Preview how a document will be split into sections",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Show the public key of the configured nsec, or generate a new key",
	Args:  cobra.NoArgs,
	RunE:  runKey,
}

func init() {
	slugCmd.Flags().String("author", "", "author name")
	slugCmd.Flags().String("version", "", "edition or version")
	slugCmd.Flags().Int("section", 0, "section number; prints the section slug")
	slugCmd.Flags().String("section-title", "", "section title, used with --section")

	idCmd.Flags().String("scheme", "nip01", "id serialization: nip01 or sorted")

	inspectCmd.Flags().String("author", "", "author name")
	inspectCmd.Flags().String("version", "", "edition or version")

	keyCmd.Flags().Bool("generate", false, "generate a fresh key pair")

	rootCmd.AddCommand(slugCmd, idCmd, inspectCmd, keyCmd)
}

func runSlug(cmd *cobra.Command, args []string) error {
	author, _ := cmd.Flags().GetString("author")
	version, _ := cmd.Flags().GetString("version")
	if n, _ := cmd.Flags().GetInt("section"); n > 0 {
		title, _ := cmd.Flags().GetString("section-title")
		fmt.Fprintln(cmd.OutOrStdout(), slug.Section(args[0], title, n, author, version))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), slug.Slug(args[0], author, version))
	return nil
}

func runID(cmd *cobra.Command, args []string) error {
	raw, err := readInput(cmd, args)
	if err != nil {
		return err
	}
	name, _ := cmd.Flags().GetString("scheme")
	scheme, err := event.ParseScheme(name)
	if err != nil {
		return err
	}
	e, err := event.Parse(raw)
	if err != nil {
		return err
	}
	id, err := event.ComputeID(*e, scheme)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, id)
	if e.ID == "" {
		return nil
	}
	if e.ID != id {
		return &exitError{code: 3, err: fmt.Errorf("claimed id %s does not match", e.ID)}
	}
	if e.Sig != "" {
		if err := signer.Verify(*e); err != nil {
			return &exitError{code: 3, err: err}
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "id and signature verify")
	}
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	fm, body, err := document.SplitFrontMatter(string(raw))
	if err != nil {
		return err
	}
	var opts []document.Option
	if format, ok := document.FormatFromPath(args[0]); ok {
		opts = append(opts, document.WithFormat(format))
	}
	doc, err := document.Decompose(body, opts...)
	if err != nil {
		return err
	}

	meta := metadataFromFlags(cmd).Merge(fm)
	if meta.Title == "" {
		meta.Title = doc.Title
	}
	p := ui.New(cmd.OutOrStdout())
	p.DocumentPreview(doc)
	p.Info("index  " + slug.Slug(meta.Title, meta.Author, meta.Version))
	for _, s := range doc.Sections {
		p.Info(fmt.Sprintf("  %2d.  %s", s.Number, slug.Section(meta.Title, s.Title, s.Number, meta.Author, meta.Version)))
	}
	return nil
}

func runKey(cmd *cobra.Command, _ []string) error {
	var (
		s   *signer.Schnorr
		err error
	)
	if gen, _ := cmd.Flags().GetBool("generate"); gen {
		if s, err = signer.Generate(); err != nil {
			return err
		}
		nsec, err := s.Nsec()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), nsec)
	} else {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if s, err = a.signer(); err != nil {
			if errors.Is(err, signer.ErrMissingKey) {
				return fmt.Errorf("%w: pass --nsec, set SCRIPTORIUM_NSEC or use --generate", err)
			}
			return err
		}
	}
	npub, err := s.Npub()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), npub)
	fmt.Fprintln(cmd.OutOrStdout(), s.PublicKey())
	return nil
}
