// Package config loads clkit settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"github.com/notargets/clkit/native"
	"github.com/notargets/clkit/runner/builder"
	"github.com/notargets/clkit/utils"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
	"io"
	"os"
	"strings"
)

// DeviceType is a native.DeviceType written by name in YAML
type DeviceType native.DeviceType

var deviceTypes = map[string]native.DeviceType{
	"default":     native.DeviceTypeDefault,
	"cpu":         native.DeviceTypeCPU,
	"gpu":         native.DeviceTypeGPU,
	"accelerator": native.DeviceTypeAccelerator,
	"all":         native.DeviceTypeAll,
}

// ParseDeviceType maps a device type name to its value
func ParseDeviceType(s string) (native.DeviceType, error) {
	if t, ok := deviceTypes[strings.ToLower(strings.TrimSpace(s))]; ok {
		return t, nil
	}
	return 0, fmt.Errorf("unknown device type %q", s)
}

func (d *DeviceType) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: device type must be a scalar", node.Line)
	}
	t, err := ParseDeviceType(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = DeviceType(t)
	return nil
}

func (d DeviceType) MarshalYAML() (interface{}, error) {
	return native.DeviceType(d).String(), nil
}

// DotProduct holds the settings of the dot product demo
type DotProduct struct {
	Length        int `yaml:"length"`
	WorkGroupSize int `yaml:"work_group_size"`
}

// Config is the top level configuration
type Config struct {
	// Backend is auto, sim, opencl or occa
	Backend string `yaml:"backend"`
	// OCCAProps are the OCCA device properties, e.g. {"mode": "OpenMP"}
	OCCAProps    string     `yaml:"occa_props"`
	Device       DeviceType `yaml:"device"`
	BuildOptions string     `yaml:"build_options"`
	LogLevel     string     `yaml:"log_level"`
	// KernelPath overrides the embedded dot product kernel source
	KernelPath string     `yaml:"kernel_path"`
	Dot        DotProduct `yaml:"dot"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		Backend:  utils.BackendAuto,
		Device:   DeviceType(native.DeviceTypeDefault),
		LogLevel: "info",
		Dot: DotProduct{
			Length:        10000,
			WorkGroupSize: 64,
		},
	}
}

// Load reads path over the defaults. Unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field values
func (c Config) Validate() error {
	switch c.Backend {
	case utils.BackendAuto, utils.BackendSim, utils.BackendOpenCL, utils.BackendOCCA:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Dot.Length <= 0 {
		return fmt.Errorf("dot.length must be positive, got %d", c.Dot.Length)
	}
	if w := c.Dot.WorkGroupSize; w <= 0 || w&(w-1) != 0 {
		return fmt.Errorf("dot.work_group_size must be a power of two, got %d", w)
	}
	return nil
}

// Level returns the logrus level, info when unparsable
func (c Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// Runner returns the runner configuration
func (c Config) Runner() builder.Config {
	return builder.Config{
		DeviceType:   native.DeviceType(c.Device),
		BuildOptions: c.BuildOptions,
	}
}

// Write stores c as YAML
func (c Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
