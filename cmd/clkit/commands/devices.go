package commands

import (
	"fmt"
	"github.com/notargets/clkit/cl"
	"github.com/notargets/clkit/native"
	"github.com/notargets/clkit/utils"
	"github.com/spf13/cobra"
)

func newDevicesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List platforms and devices",
		Long: `List every platform of the selected backend together with the devices
matching the configured device type.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := opts.open()
			if err != nil {
				return err
			}
			defer utils.CloseBackend(api)
			return listDevices(cmd, api, native.DeviceType(opts.cfg.Device))
		},
	}
}

func listDevices(cmd *cobra.Command, api native.API, t native.DeviceType) error {
	platforms, err := cl.Platforms(api)
	if err != nil {
		return fmt.Errorf("failed to enumerate platforms: %w", err)
	}
	out := cmd.OutOrStdout()
	for i, p := range platforms {
		fmt.Fprintf(out, "platform %d\n", i)
		devices, err := cl.Devices(p, t)
		if err != nil {
			fmt.Fprintf(out, "  no %v devices: %v\n", t, err)
			continue
		}
		for j, d := range devices {
			name, err := d.Name()
			if err != nil {
				name = err.Error()
			}
			fmt.Fprintf(out, "  device %d: %s\n", j, name)
		}
	}
	return nil
}
