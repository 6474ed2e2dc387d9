package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cruxstack/pinpoint-dispatch-go/internal/dispatch"
	"github.com/cruxstack/pinpoint-dispatch-go/internal/templates"
	"github.com/cruxstack/pinpoint-dispatch-go/internal/types"
)

// OperationOptions holds flags shared by every operation command.
type OperationOptions struct {
	*RootOptions
	Force        bool
	Select       string
	Stdin        bool
	CLIInputJSON string
}

// NewOperationCommand creates the command for one catalog operation.
func NewOperationCommand(rootOpts *RootOptions, desc *dispatch.Descriptor, factory RunnerFactory) *cobra.Command {
	opts := &OperationOptions{RootOptions: rootOpts}

	var flags []parameterFlag
	cmd := &cobra.Command{
		Use:           desc.Command + positionalUsage(desc),
		Aliases:       []string{desc.Name},
		Short:         desc.Description,
		Long:          operationHelp(desc),
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, opts, desc, flags, args, factory)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "skip the confirmation prompt")
	cmd.Flags().StringVar(&opts.Select, "select", "", `what to output: "*" for the whole response, "^Name" for a parameter's value, or a response member`)
	cmd.Flags().BoolVar(&opts.Stdin, "stdin", false, "read the pipeline parameter from standard input")
	cmd.Flags().StringVar(&opts.CLIInputJSON, "cli-input-json", "", "parameters as a JSON object; flags take precedence")
	flags = registerParameterFlags(cmd.Flags(), desc)

	return cmd
}

func runOperation(cmd *cobra.Command, opts *OperationOptions, desc *dispatch.Descriptor, flags []parameterFlag, args []string, factory RunnerFactory) error {
	ctx := cmd.Context()

	named, err := namedArgs(cmd.Flags(), flags)
	if err != nil {
		return err
	}
	if opts.CLIInputJSON != "" {
		named, err = mergeInputJSON(desc, opts.CLIInputJSON, named)
		if err != nil {
			return err
		}
	}

	var input any
	if opts.Stdin {
		input, err = readPipeline(cmd.InOrStdin())
		if err != nil {
			return usageError("failed to read standard input", err)
		}
	}

	// The prompt shares stdin with --stdin, so a piped run can only be
	// confirmed with --force.
	var confirmer dispatch.Confirmer = &dispatch.TerminalConfirmer{In: cmd.InOrStdin(), Out: cmd.ErrOrStderr()}
	if opts.Stdin {
		confirmer = dispatch.StaticConfirmer{Answer: false}
	}

	r, err := factory(ctx, opts.RootOptions, confirmer)
	if err != nil {
		return err
	}

	positional := make([]any, len(args))
	for i, a := range args {
		positional[i] = a
	}

	out := r.Run(ctx, types.InvocationEvent{
		Operation:  desc.Name,
		Parameters: named,
		Arguments:  positional,
		Input:      input,
		Force:      opts.Force,
		Select:     opts.Select,
	})

	emitter := newEmitter(opts.Format, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err := emitter.Emit(ctx, out); err != nil {
		return &ExitError{Code: ExitFailure, Message: "failed to write outcome", Err: err}
	}

	return outcomeError(out)
}

// mergeInputJSON adds parameters from a --cli-input-json document to those
// set by flags. A flag wins over the same parameter in the document, however
// either spells it.
func mergeInputJSON(desc *dispatch.Descriptor, doc string, named map[string]any) (map[string]any, error) {
	fromJSON, err := templates.ParseParameters(doc)
	if err != nil {
		return nil, usageError("invalid --cli-input-json", err)
	}

	fromFlags := make(map[string]bool, len(named))
	for k := range named {
		fromFlags[desc.CanonicalName(k)] = true
	}

	merged := make(map[string]any, len(named)+len(fromJSON))
	for k, v := range fromJSON {
		if !fromFlags[desc.CanonicalName(k)] {
			merged[k] = v
		}
	}
	for k, v := range named {
		merged[k] = v
	}
	return merged, nil
}

func readPipeline(r io.Reader) (any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	s := strings.TrimSpace(string(data))
	if s == "" {
		return nil, nil
	}
	return s, nil
}

// positionalUsage renders the positional parameters for the Use line.
func positionalUsage(desc *dispatch.Descriptor) string {
	type pos struct {
		at   int
		name string
	}
	var ps []pos
	for _, p := range desc.Parameters {
		if p.Position != nil {
			ps = append(ps, pos{at: *p.Position, name: FlagName(p.Name)})
		}
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].at < ps[j].at })

	var b strings.Builder
	for _, p := range ps {
		fmt.Fprintf(&b, " [%s]", p.name)
	}
	return b.String()
}

func operationHelp(desc *dispatch.Descriptor) string {
	var b strings.Builder
	b.WriteString(desc.Description)
	b.WriteString("\n\nOperation: ")
	b.WriteString(desc.Name)
	if desc.Mutating {
		b.WriteString("\n\nThis operation changes resources and asks for confirmation unless --force is given.")
	}
	for _, p := range desc.Parameters {
		if p.Pipeline {
			fmt.Fprintf(&b, "\n\n--%s can be read from standard input with --stdin.", FlagName(p.Name))
			break
		}
	}
	return b.String()
}
