package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/tsbump/bump"
	"github.com/gnolang/tsbump/internal/witness"
)

// tsbump witness [dir]
func newWitnessCmd(o *options) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "witness [dir]",
		Short: "Package both references and print the witness programs without type-checking them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
			defer cancel()

			b, err := o.bumper(cmd)
			if err != nil {
				return err
			}
			pair, err := b.Witness(ctx, bump.Request{Dir: dirArg(args), From: o.from, To: o.to})
			if err != nil {
				return err
			}

			if outDir != "" {
				fwd, bwd, err := pair.Write(outDir)
				if err != nil {
					return err
				}
				o.logger.Info("witness programs written", zap.String("forward", fwd), zap.String("backward", bwd))
				return nil
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "// %s\n%s\n// %s\n%s", witness.ForwardFile, pair.Forward, witness.BackwardFile, pair.Backward)
			return nil
		},
	}

	o.refFlags(cmd)
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Write the programs into this directory instead of printing them")
	return cmd
}
