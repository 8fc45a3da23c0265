package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Othello1111/edx-platform/internal/blocktype"
	"github.com/Othello1111/edx-platform/internal/ir"
)

// TypesOptions holds flags for the types commands.
type TypesOptions struct {
	*RootOptions
	Dir string
}

// TypeList is the output of types list and types validate.
type TypeList struct {
	Types []*blocktype.BlockType `json:"types"`
}

func (l TypeList) Text(w io.Writer) {
	for _, bt := range l.Types {
		flags := ""
		if bt.HasChildren {
			flags = " [children]"
		}
		fmt.Fprintf(w, "%s (%s)%s\n", bt.Name, bt.DisplayName, flags)
		for _, f := range bt.Fields {
			def, err := ir.MarshalValue(f.Default)
			if err != nil {
				def = []byte("?")
			}
			marker := ""
			if f.Name == bt.ContentField {
				marker = " content"
			}
			fmt.Fprintf(w, "  %-20s %-10s %-9s default=%s%s\n", f.Name, f.Scope.Name, f.Type, def, marker)
		}
	}
}

// NewTypesCommand creates the types command group.
func NewTypesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "types",
		Short: "Inspect and validate CUE block type declarations",
	}
	cmd.AddCommand(newTypesListCommand(rootOpts))
	cmd.AddCommand(newTypesValidateCommand(rootOpts))
	return cmd
}

func newTypesListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TypesOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "list [name...]",
		Short: "List block types and their fields",
		Example: `  blockrt types list
  blockrt types list problem video
  blockrt types list --dir ./blocktypes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			types, err := blocktype.Builtin()
			if err != nil {
				return out.Fail(ExitFailure, "builtin block types", err)
			}
			if opts.Dir != "" {
				if err := types.LoadDir(opts.Dir); err != nil {
					return out.Fail(ExitFailure, "load block types", err)
				}
			}
			list, err := selectTypes(types, args)
			if err != nil {
				return out.Fail(ExitCommandError, "list block types", err)
			}
			return out.Success(list)
		},
	}
	cmd.Flags().StringVar(&opts.Dir, "dir", "", "directory of extra CUE block types")
	return cmd
}

func newTypesValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <dir>",
		Short: "Compile the block types in a CUE package directory",
		Long: `Compile every block type declared in the CUE package at <dir>
against the block type schema, reporting the first error with its
source position.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			types := blocktype.NewRegistry()
			if err := types.LoadDir(args[0]); err != nil {
				return out.Fail(ExitFailure, "invalid block types", err)
			}
			list, _ := selectTypes(types, nil)
			return out.Success(list)
		},
	}
}

func selectTypes(types *blocktype.Registry, names []string) (TypeList, error) {
	if len(names) == 0 {
		names = types.Names()
	}
	list := TypeList{Types: make([]*blocktype.BlockType, 0, len(names))}
	var unknown []string
	for _, name := range names {
		bt, ok := types.Lookup(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		list.Types = append(list.Types, bt)
	}
	if len(unknown) > 0 {
		return TypeList{}, fmt.Errorf("unknown block type(s): %s", strings.Join(unknown, ", "))
	}
	return list, nil
}
