package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gnolang/tsbump/bump"
)

// tsbump init
func newInitCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a new configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bump.WriteConfig(o.cfgFile, bump.DefaultConfig()); err != nil {
				return fmt.Errorf("initializing config file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration file created/updated: %s\n", o.cfgFile)
			return nil
		},
	}
}
