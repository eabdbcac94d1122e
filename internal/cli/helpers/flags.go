package helpers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/coral-mesh/dwarf-type-reader/internal/errors"
	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo/arch"
	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo/document"
)

// AddFormatFlag adds a --format flag for a report command.
// Validates that the format is in the supportedFormats list.
func AddFormatFlag(cmd *cobra.Command, formatVar *string, defaultFormat OutputFormat, supportedFormats []OutputFormat) {
	formatNames := make([]string, len(supportedFormats))
	for i, f := range supportedFormats {
		formatNames[i] = string(f)
	}

	description := fmt.Sprintf("Output format (%s)", strings.Join(formatNames, ", "))
	cmd.Flags().StringVar(formatVar, "format", string(defaultFormat), description)

	errors.Must(cmd.RegisterFlagCompletionFunc("format", fixedCompletion(formatNames)), "register format completion")
}

// AddDocumentFormatFlag adds the --format flag selecting the document encoding.
func AddDocumentFormatFlag(cmd *cobra.Command, formatVar *string) {
	names := make([]string, len(document.Formats))
	for i, f := range document.Formats {
		names[i] = string(f)
	}

	description := fmt.Sprintf("Document format (%s)", strings.Join(names, ", "))
	cmd.Flags().StringVar(formatVar, "format", string(document.FormatJSON), description)

	errors.Must(cmd.RegisterFlagCompletionFunc("format", fixedCompletion(names)), "register format completion")
}

// AddArchFlag adds the --arch target override flag.
func AddArchFlag(cmd *cobra.Command, archVar *string) {
	cmd.Flags().StringVar(archVar, "arch", "", "Target architecture override (e.g. amd64, x86_64, i386, aarch64)")

	errors.Must(cmd.RegisterFlagCompletionFunc("arch", fixedCompletion(arch.Names())), "register arch completion")
}

// ValidateFormat checks if the format is in the supported list.
func ValidateFormat(format string, supported []OutputFormat) error {
	for _, s := range supported {
		if format == string(s) {
			return nil
		}
	}

	supportedNames := make([]string, len(supported))
	for i, s := range supported {
		supportedNames[i] = string(s)
	}

	return fmt.Errorf("unsupported format %q, must be one of: %s",
		format, strings.Join(supportedNames, ", "))
}

func fixedCompletion(values []string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return values, cobra.ShellCompDirectiveNoFileComp
	}
}

// Address is a pflag.Value holding a program counter. It accepts decimal,
// 0x-prefixed hex and 0o/0b prefixed values.
type Address struct {
	Value uint64
	set   bool
}

var _ pflag.Value = (*Address)(nil)

// String implements pflag.Value.
func (a *Address) String() string {
	if !a.set {
		return ""
	}
	return fmt.Sprintf("%#x", a.Value)
}

// Set implements pflag.Value.
func (a *Address) Set(s string) error {
	v, err := strconv.ParseUint(strings.ReplaceAll(strings.TrimSpace(s), "_", ""), 0, 64)
	if err != nil {
		return fmt.Errorf("invalid address %q", s)
	}
	a.Value, a.set = v, true
	return nil
}

// Type implements pflag.Value.
func (a *Address) Type() string {
	return "address"
}

// IsSet reports whether an address was given.
func (a *Address) IsSet() bool {
	return a.set
}
