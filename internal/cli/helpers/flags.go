package helpers

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// AddFormatFlag registers --output/-o with completion for supported.
func AddFormatFlag(cmd *cobra.Command, formatVar *string, defaultFormat OutputFormat, supported []OutputFormat) {
	names := formatNames(supported)
	cmd.Flags().StringVarP(formatVar, "output", "o", string(defaultFormat),
		fmt.Sprintf("Output format (%s)", strings.Join(names, ", ")))
	_ = cmd.RegisterFlagCompletionFunc("output", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return names, cobra.ShellCompDirectiveNoFileComp
	})
}

// AddLimitFlag registers --limit/-n.
func AddLimitFlag(cmd *cobra.Command, limitVar *int, def int, what string) {
	cmd.Flags().IntVarP(limitVar, "limit", "n", def, "Maximum number of "+what)
}

// ValidateFormat checks format against supported.
func ValidateFormat(format string, supported []OutputFormat) error {
	for _, s := range supported {
		if format == string(s) {
			return nil
		}
	}
	return fmt.Errorf("unsupported format %q, must be one of: %s",
		format, strings.Join(formatNames(supported), ", "))
}

// ValidatePositive rejects values below one.
func ValidatePositive(name string, v int) error {
	if v < 1 {
		return fmt.Errorf("--%s must be at least 1, got %d", name, v)
	}
	return nil
}

func formatNames(formats []OutputFormat) []string {
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	return names
}
