package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// tsbump tags [dir]
func newTagsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tags [dir]",
		Short: "List semantic version tags, highest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
			defer cancel()

			b, err := o.bumper(cmd)
			if err != nil {
				return err
			}
			tags, err := b.Tags(ctx, dirArg(args))
			if err != nil {
				return err
			}
			for _, tv := range tags {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", tv.Tag, tv.Version)
			}
			return nil
		},
	}
}
