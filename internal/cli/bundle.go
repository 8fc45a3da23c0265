package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Othello1111/edx-platform/internal/blockstore"
	"github.com/Othello1111/edx-platform/internal/ir"
)

// DefaultDraft is the draft the bundle commands edit.
const DefaultDraft = "studio_draft"

// BundleOptions holds flags shared by the bundle commands.
type BundleOptions struct {
	*RootOptions
	DB    string
	Draft string
}

func (o *BundleOptions) open() (*blockstore.Store, error) {
	if o.DB == "" {
		return nil, NewExitError(ExitCommandError, "--db is required")
	}
	st, err := blockstore.Open(o.DB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open blockstore", err)
	}
	return st, nil
}

// withBundle opens the store, resolves slug and runs fn.
func (o *BundleOptions) withBundle(cmd *cobra.Command, slug string, fn func(ctx context.Context, st *blockstore.Store, b blockstore.Bundle) (any, error)) error {
	out := o.formatter(cmd)
	st, err := o.open()
	if err != nil {
		return err
	}
	defer st.Close()

	b, err := st.GetBundleBySlug(cmd.Context(), slug)
	if err != nil {
		return out.Fail(ExitFailure, "bundle lookup failed", err)
	}
	result, err := fn(cmd.Context(), st, b)
	if err != nil {
		return out.Fail(ExitFailure, cmd.Name()+" failed", err)
	}
	return out.Success(result)
}

// BundleInfo reports a bundle after a change.
type BundleInfo struct {
	blockstore.Bundle
	Draft string `json:"draft,omitempty"`
}

func (b BundleInfo) Text(w io.Writer) {
	fmt.Fprintf(w, "%s %s (latest version %d)\n", b.Slug, b.UUID, b.LatestVersion)
	if b.Draft != "" {
		fmt.Fprintf(w, "draft: %s\n", b.Draft)
	}
}

// FileWritten reports a draft file write.
type FileWritten struct {
	Path string         `json:"path"`
	Hash ir.Fingerprint `json:"hash_digest"`
}

func (f FileWritten) Text(w io.Writer) {
	fmt.Fprintf(w, "%s %s\n", f.Hash.Short(), f.Path)
}

// Committed reports a new bundle version.
type Committed struct {
	Slug    string `json:"slug"`
	Version int64  `json:"version"`
}

func (c Committed) Text(w io.Writer) {
	fmt.Fprintf(w, "%s: committed version %d\n", c.Slug, c.Version)
}

// LinkView reports a draft link after it is set.
type LinkView blockstore.Link

func (l LinkView) Text(w io.Writer) {
	fmt.Fprintf(w, "link %s -> %s@%d\n", l.ID, l.BundleUUID, l.Version)
}

// Listing is the content of one bundle revision.
type Listing struct {
	Revision string                 `json:"revision"`
	Files    []blockstore.FileEntry `json:"files"`
	Links    []blockstore.Link      `json:"links"`
}

func (l Listing) Text(w io.Writer) {
	fmt.Fprintf(w, "%s\n", l.Revision)
	for _, f := range l.Files {
		fmt.Fprintf(w, "  %s %6d %s\n", f.Hash.Short(), f.Size, f.Path)
	}
	for _, link := range l.Links {
		fmt.Fprintf(w, "  link %s -> %s@%d\n", link.ID, link.BundleUUID, link.Version)
	}
}

// NewBundleCommand creates the bundle command group.
func NewBundleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BundleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Manage Blockstore bundles",
		Long: `Create bundles, edit their drafts and commit versions.

Edits go to a named draft (studio_draft unless --draft is given). A
committed version is immutable.`,
		Example: `  blockrt bundle create lib1 --title "Library One" --db blockstore.db
  blockrt bundle write lib1 html/intro/definition.xml intro.xml --db blockstore.db
  blockrt bundle link lib1 shared shared --db blockstore.db
  blockrt bundle commit lib1 -m "first cut" --db blockstore.db
  blockrt bundle ls lib1 --version 1 --db blockstore.db`,
	}
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "blockstore.db", "blockstore database file")
	cmd.PersistentFlags().StringVar(&opts.Draft, "draft", DefaultDraft, "draft name")

	cmd.AddCommand(newBundleCreateCommand(opts))
	cmd.AddCommand(newBundleWriteCommand(opts))
	cmd.AddCommand(newBundleRemoveCommand(opts))
	cmd.AddCommand(newBundleLinkCommand(opts))
	cmd.AddCommand(newBundleCommitCommand(opts))
	cmd.AddCommand(newBundleListCommand(opts))
	return cmd
}

func newBundleCreateCommand(opts *BundleOptions) *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "create <slug>",
		Short: "Create a bundle and its draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			st, err := opts.open()
			if err != nil {
				return err
			}
			defer st.Close()

			if title == "" {
				title = args[0]
			}
			b, err := st.CreateBundle(cmd.Context(), args[0], title)
			if err != nil {
				return out.Fail(ExitFailure, "create failed", err)
			}
			if err := st.CreateDraft(cmd.Context(), b.UUID, opts.Draft); err != nil {
				return out.Fail(ExitFailure, "create failed", err)
			}
			return out.Success(BundleInfo{Bundle: b, Draft: opts.Draft})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "bundle title (defaults to the slug)")
	return cmd
}

func newBundleWriteCommand(opts *BundleOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "write <slug> <path> <file|->",
		Short: "Write a file into the draft",
		Long:  "Write the content of <file> (or stdin for -) to <path> in the bundle's draft.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var content []byte
			var err error
			if args[2] == "-" {
				content, err = io.ReadAll(cmd.InOrStdin())
			} else {
				content, err = os.ReadFile(args[2])
			}
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read content", err)
			}
			return opts.withBundle(cmd, args[0], func(ctx context.Context, st *blockstore.Store, b blockstore.Bundle) (any, error) {
				hash, err := st.WriteDraftFile(ctx, b.UUID, opts.Draft, args[1], content)
				if err != nil {
					return nil, err
				}
				return FileWritten{Path: args[1], Hash: hash}, nil
			})
		},
	}
}

func newBundleRemoveCommand(opts *BundleOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <slug> <path>",
		Short: "Delete a file from the draft",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBundle(cmd, args[0], func(ctx context.Context, st *blockstore.Store, b blockstore.Bundle) (any, error) {
				if err := st.DeleteDraftFile(ctx, b.UUID, opts.Draft, args[1]); err != nil {
					return nil, err
				}
				return fmt.Sprintf("deleted %s", args[1]), nil
			})
		},
	}
}

func newBundleLinkCommand(opts *BundleOptions) *cobra.Command {
	var version int64
	cmd := &cobra.Command{
		Use:   "link <slug> <link-id> <target-slug>",
		Short: "Link the draft to a version of another bundle",
		Long: `Set link <link-id> in the draft to a version of <target-slug>. Without
--version the target's latest version is used.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBundle(cmd, args[0], func(ctx context.Context, st *blockstore.Store, b blockstore.Bundle) (any, error) {
				target, err := st.GetBundleBySlug(ctx, args[2])
				if err != nil {
					return nil, err
				}
				v := version
				if v == 0 {
					v = target.LatestVersion
				}
				if v == 0 {
					return nil, fmt.Errorf("bundle %q has no committed version", args[2])
				}
				if err := st.SetDraftLink(ctx, b.UUID, opts.Draft, args[1], target.UUID, v); err != nil {
					return nil, err
				}
				return LinkView{ID: args[1], BundleUUID: target.UUID, Version: v}, nil
			})
		},
	}
	cmd.Flags().Int64Var(&version, "version", 0, "target version (default latest)")
	return cmd
}

func newBundleCommitCommand(opts *BundleOptions) *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "commit <slug>",
		Short: "Commit the draft as a new version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBundle(cmd, args[0], func(ctx context.Context, st *blockstore.Store, b blockstore.Bundle) (any, error) {
				v, err := st.CommitDraft(ctx, b.UUID, opts.Draft, message)
				if err != nil {
					return nil, err
				}
				return Committed{Slug: b.Slug, Version: v}, nil
			})
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "version description")
	return cmd
}

func newBundleListCommand(opts *BundleOptions) *cobra.Command {
	var version int64
	cmd := &cobra.Command{
		Use:   "ls <slug>",
		Short: "List the files and links of a revision",
		Long:  "List the draft's files and links, or those of --version N.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBundle(cmd, args[0], func(ctx context.Context, st *blockstore.Store, b blockstore.Bundle) (any, error) {
				rev := blockstore.Revision{DraftName: opts.Draft}
				if version > 0 {
					rev = blockstore.Revision{Version: version}
				}
				files, err := st.ListFiles(ctx, b.UUID, rev)
				if err != nil {
					return nil, err
				}
				links, err := st.DirectLinks(ctx, b.UUID, rev)
				if err != nil {
					return nil, err
				}
				listing := Listing{Revision: rev.String(), Files: files, Links: make([]blockstore.Link, 0, len(links))}
				for _, l := range links {
					listing.Links = append(listing.Links, l)
				}
				sort.Slice(listing.Links, func(i, j int) bool { return listing.Links[i].ID < listing.Links[j].ID })
				return listing, nil
			})
		},
	}
	cmd.Flags().Int64Var(&version, "version", 0, "list a committed version instead of the draft")
	return cmd
}
