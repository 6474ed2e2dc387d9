package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cruxstack/pinpoint-dispatch-go/internal/dispatch"
)

// OperationSummary is one row of the operations listing.
type OperationSummary struct {
	Name        string   `json:"name"`
	Command     string   `json:"command"`
	Description string   `json:"description"`
	Mutating    bool     `json:"mutating"`
	Parameters  []string `json:"parameters"`
}

// NewOperationsCommand creates the command listing every catalog operation.
func NewOperationsCommand(opts *RootOptions, descs []*dispatch.Descriptor) *cobra.Command {
	return &cobra.Command{
		Use:           "operations",
		Short:         "List the available operations",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := make([]OperationSummary, 0, len(descs))
			for _, d := range descs {
				row := OperationSummary{
					Name:        d.Name,
					Command:     d.Command,
					Description: d.Description,
					Mutating:    d.Mutating,
				}
				for _, p := range d.Parameters {
					row.Parameters = append(row.Parameters, p.Name)
				}
				rows = append(rows, row)
			}

			if opts.Format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "COMMAND\tOPERATION\tMUTATING")
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%s\t%t\n", r.Command, r.Name, r.Mutating)
			}
			return w.Flush()
		},
	}
}
