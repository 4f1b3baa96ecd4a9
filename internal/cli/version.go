package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/pulse/internal/cli/helpers"
	"github.com/coral-mesh/pulse/pkg/version"
)

func newVersionCmd() *cobra.Command {
	var format string
	supported := []helpers.OutputFormat{helpers.FormatTable, helpers.FormatJSON}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := helpers.ValidateFormat(format, supported); err != nil {
				return err
			}
			info := version.Get()
			if format == string(helpers.FormatJSON) {
				return (&helpers.JSONFormatter{}).Format(info, cmd.OutOrStdout())
			}
			fmt.Fprintln(cmd.OutOrStdout(), info.String())
			return nil
		},
	}

	helpers.AddFormatFlag(cmd, &format, helpers.FormatTable, supported)
	return cmd
}
