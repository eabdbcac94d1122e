package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo/document"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the output document",
		Long: `Print the JSON Schema describing the document written by dwarf-type-reader
in JSON and YAML form. The protobuf form follows document.proto.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(document.Schema())
		},
	}
}
