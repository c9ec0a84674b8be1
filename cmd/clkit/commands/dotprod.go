package commands

import (
	"fmt"
	"github.com/notargets/clkit/cl"
	"github.com/notargets/clkit/runner"
	"github.com/notargets/clkit/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newDotProdCmd(opts *options) *cobra.Command {
	var (
		length int
		local  int
		value  float32
	)
	cmd := &cobra.Command{
		Use:   "dotprod",
		Short: "Compute a dot product on the device",
		Long: `Fill two vectors with the same value, compute their dot product with
work-group partial sums on the device and compare it with the exact result.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("length") {
				opts.cfg.Dot.Length = length
			}
			if cmd.Flags().Changed("local") {
				opts.cfg.Dot.WorkGroupSize = local
			}
			if err := opts.cfg.Validate(); err != nil {
				return err
			}
			return runDotProd(cmd, opts, value)
		},
	}
	cmd.Flags().IntVarP(&length, "length", "n", 0, "vector length (default from config)")
	cmd.Flags().IntVarP(&local, "local", "l", 0, "work-group size, a power of two (default from config)")
	cmd.Flags().Float32Var(&value, "value", 2, "value of every vector element")
	return cmd
}

func runDotProd(cmd *cobra.Command, opts *options, value float32) error {
	api, err := opts.open()
	if err != nil {
		return err
	}
	defer utils.CloseBackend(api)

	kr, err := runner.Setup(api, opts.cfg.Runner())
	if err != nil {
		return err
	}
	defer kr.Free()

	if path := opts.cfg.KernelPath; path != "" {
		if _, err := kr.BuildProgramFromFile(path); err != nil {
			return err
		}
		if _, err := kr.Kernel("dotprod"); err != nil {
			return err
		}
	}

	n := opts.cfg.Dot.Length
	a := make([]float32, n)
	b := make([]float32, n)
	for i := range a {
		a[i], b[i] = value, value
	}

	got, err := kr.DotProduct(a, b, opts.cfg.Dot.WorkGroupSize)
	if err != nil {
		return err
	}
	want := float64(n) * float64(value) * float64(value)
	cl.Logger().WithFields(logrus.Fields{
		"device": kr.DeviceName(),
		"length": n,
		"local":  opts.cfg.Dot.WorkGroupSize,
	}).Info("dot product computed")

	fmt.Fprintf(cmd.OutOrStdout(), "device: %s\nresult: %g\nexpected: %g\n", kr.DeviceName(), got, want)
	return nil
}
