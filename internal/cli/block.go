package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Othello1111/edx-platform/internal/config"
	"github.com/Othello1111/edx-platform/internal/ir"
	"github.com/Othello1111/edx-platform/internal/runtime"
)

// BlockOptions holds flags for the block command.
type BlockOptions struct {
	*RootOptions
	ConfigPath string
	UserID     int64
}

// BlockView is a loaded block's metadata, field values and children.
// Digest is the same for any two blocks whose stored values are equal.
type BlockView struct {
	runtime.Metadata
	Definition string   `json:"definition"`
	Fields     ir.Dict  `json:"fields"`
	Digest     string   `json:"digest"`
	Children   []string `json:"children,omitempty"`
}

func (v BlockView) Text(w io.Writer) {
	fmt.Fprintf(w, "%s (%s)\n", v.BlockID, v.DisplayName)
	fmt.Fprintf(w, "definition: %s\n", v.Definition)
	fmt.Fprintf(w, "digest: %s\n", v.Digest)
	for _, name := range v.Fields.SortedKeys() {
		raw, err := ir.MarshalValue(v.Fields[name])
		if err != nil {
			raw = []byte("?")
		}
		fmt.Fprintf(w, "  %s = %s\n", name, raw)
	}
	for _, c := range v.Children {
		fmt.Fprintf(w, "  child %s\n", c)
	}
}

// NewBlockCommand creates the block command group.
func NewBlockCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BlockOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "block",
		Short: "Inspect blocks through the runtime",
	}
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "configuration file (required)")
	cmd.PersistentFlags().Int64Var(&opts.UserID, "user", 0, "load as this user ID (0 = anonymous)")
	cmd.MarkPersistentFlagRequired("config")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <usage-key>",
		Short: "Load a block and print its fields",
		Long: `Load a block through the configured learning contexts, applying the
same permission checks as the API, and print its metadata and stored
field values with defaults applied.`,
		Example: `  blockrt block show lb:lib1:html:intro --config blockrt.yaml
  blockrt block show lb:lib1:unit:u1 --config blockrt.yaml --user 7 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBlockShow(cmd, opts, args[0])
		},
	})
	return cmd
}

func runBlockShow(cmd *cobra.Command, opts *BlockOptions, rawUsage string) error {
	out := opts.formatter(cmd)

	usage, err := ir.ParseUsageKey(rawUsage)
	if err != nil {
		return out.Fail(ExitCommandError, "invalid usage key", err)
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, cfg, newLogger(out.GetErrWriter(), cfg.SlogLevel(), opts.Verbose))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open runtime", err)
	}
	defer a.Close()

	user, err := a.user(ctx, opts.UserID)
	if err != nil {
		return out.Fail(ExitFailure, "user lookup failed", err)
	}
	b, err := a.runtime.LoadBlock(ctx, usage, user)
	if err != nil {
		return out.Fail(ExitFailure, "load failed", err)
	}
	defer b.Release()

	view := BlockView{Definition: b.DefinitionKey().String()}
	if view.Metadata, err = b.Metadata(ctx); err != nil {
		return out.Fail(ExitFailure, "load failed", err)
	}
	if view.Fields, err = b.StoredFields(ctx); err != nil {
		return out.Fail(ExitFailure, "load failed", err)
	}
	if view.Digest, err = ir.FieldsHash(view.Fields); err != nil {
		return out.Fail(ExitFailure, "load failed", err)
	}
	children, err := b.Children(ctx)
	if err != nil {
		return out.Fail(ExitFailure, "load failed", err)
	}
	for _, c := range children {
		view.Children = append(view.Children, c.String())
	}
	return out.Success(view)
}
