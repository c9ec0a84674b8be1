package commands

import (
	"fmt"
	"github.com/notargets/clkit/cl"
	"github.com/notargets/clkit/config"
	"github.com/notargets/clkit/native"
	"github.com/notargets/clkit/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// options are the persistent flags shared by every command
type options struct {
	cfgFile string
	backend string
	device  string
	verbose bool

	cfg config.Config
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "clkit",
		Short: "Run OpenCL style kernels through clkit",
		Long: `clkit lists compute devices and runs the dot product demo on the
simulated runtime, the system OpenCL driver or an OCCA device.`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&opts.backend, "backend", "", "backend: auto, sim, opencl or occa")
	root.PersistentFlags().StringVar(&opts.device, "device", "", "device type: default, cpu, gpu, accelerator or all")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newDevicesCmd(opts), newDotProdCmd(opts))
	return root
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// load reads the config file, applies flag overrides and sets up logging
func (o *options) load(cmd *cobra.Command) error {
	cfg := config.Default()
	if o.cfgFile != "" {
		var err error
		if cfg, err = config.Load(o.cfgFile); err != nil {
			return err
		}
	}
	if o.backend != "" {
		cfg.Backend = o.backend
	}
	if o.device != "" {
		t, err := config.ParseDeviceType(o.device)
		if err != nil {
			return err
		}
		cfg.Device = config.DeviceType(t)
	}
	if o.verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg

	log := logrus.New()
	log.SetOutput(cmd.ErrOrStderr())
	log.SetLevel(cfg.Level())
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	cl.SetLogger(log)
	return nil
}

func (o *options) open() (native.API, error) {
	api, err := utils.OpenBackend(o.cfg.Backend, o.cfg.OCCAProps)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s backend: %w", o.cfg.Backend, err)
	}
	return api, nil
}
