package cli

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/xmlshred/internal/synth"
)

type generateFlags struct {
	out       string
	customers int
	orders    int
	seed      int64
}

func newGenerateCmd() *cobra.Command {
	var f generateFlags
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic XML document for load testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, f)
		},
	}
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output file (default: stdout)")
	cmd.Flags().IntVar(&f.customers, "customers", 100, "number of customer records")
	cmd.Flags().IntVar(&f.orders, "orders", 3, "orders per customer")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "random seed (0 picks one)")
	return cmd
}

func runGenerate(cmd *cobra.Command, f generateFlags) error {
	opts := synth.Options{Customers: f.customers, OrdersPerCustomer: f.orders, Seed: f.seed}
	if f.out == "" {
		return synth.Generate(cmd.OutOrStdout(), opts)
	}

	file, err := os.Create(f.out)
	if err != nil {
		return err
	}
	defer file.Close()

	buf := bufio.NewWriter(file)
	if err := synth.Generate(buf, opts); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d elements to %s\n", opts.Elements(), f.out)
	return nil
}
