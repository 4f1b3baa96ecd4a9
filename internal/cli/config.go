package cli

import (
	"github.com/spf13/cobra"

	"github.com/coral-mesh/pulse/internal/cli/helpers"
	"github.com/coral-mesh/pulse/internal/config"
)

func newConfigCmd(env *helpers.Env) *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, the config file and PULSE_*
environment overrides are applied. With --write, save it to the config file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.Config()
			if err != nil {
				return err
			}
			if write {
				path := env.ConfigPath
				if path == "" {
					path = env.Loader.DefaultPath()
				}
				if err := env.Loader.Save(path, cfg); err != nil {
					return err
				}
				cmd.PrintErrf("Wrote %s\n", path)
				return nil
			}

			data, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&write, "write", false, "Save the effective configuration to the config file")
	return cmd
}
