package runner

import (
	"fmt"
	"github.com/notargets/clkit/runner/builder"
)

// KernelConfig represents the configuration for a specific kernel execution.
// Parameters are in kernel argument order.
type KernelConfig struct {
	Name       string
	Parameters []ParameterUsage
}

// CopyConfig represents a standalone memory copy operation configuration
type CopyConfig struct {
	Parameters []ParameterUsage
}

// GetParameter finds a parameter usage by name
func (kc *KernelConfig) GetParameter(name string) *ParameterUsage {
	return findUsage(kc.Parameters, name)
}

// HasParameter checks if a parameter is configured
func (kc *KernelConfig) HasParameter(name string) bool {
	return kc.GetParameter(name) != nil
}

// GetParameter finds a parameter usage by name in CopyConfig
func (cc *CopyConfig) GetParameter(name string) *ParameterUsage {
	return findUsage(cc.Parameters, name)
}

func findUsage(params []ParameterUsage, name string) *ParameterUsage {
	for i := range params {
		if params[i].Binding.Name == name {
			return &params[i]
		}
	}
	return nil
}

// ConfigureKernel sets the argument list of a kernel. Each ParamConfig names
// a binding and the copies to perform around the launch.
func (kr *Runner) ConfigureKernel(name string, params ...*ParamConfig) (*KernelConfig, error) {
	if !kr.IsAllocated {
		return nil, fmt.Errorf("device memory not allocated - call AllocateDevice first")
	}

	usages, err := usagesOf(params)
	if err != nil {
		return nil, fmt.Errorf("kernel %s: %w", name, err)
	}
	config := &KernelConfig{Name: name, Parameters: usages}
	kr.KernelConfigs[name] = config
	return config, nil
}

// ConfigureCopy creates a configuration for standalone memory operations
func (kr *Runner) ConfigureCopy(params ...*ParamConfig) (*CopyConfig, error) {
	if !kr.IsAllocated {
		return nil, fmt.Errorf("device memory not allocated - call AllocateDevice first")
	}

	usages, err := usagesOf(params)
	if err != nil {
		return nil, err
	}
	return &CopyConfig{Parameters: usages}, nil
}

func usagesOf(params []*ParamConfig) ([]ParameterUsage, error) {
	usages := make([]ParameterUsage, 0, len(params))
	for _, param := range params {
		if param == nil {
			continue
		}
		if param.binding == nil {
			return nil, fmt.Errorf("no binding named %s", param.name)
		}
		usages = append(usages, ParameterUsage{
			Binding: param.binding,
			Actions: param.actions,
		})
	}
	return usages, nil
}

// ExecuteCopy executes a copy configuration
func (kr *Runner) ExecuteCopy(config *CopyConfig) error {
	if config == nil {
		return fmt.Errorf("copy configuration is nil")
	}

	return kr.executeCopyActions(config.Parameters)
}

// Param creates a parameter configuration for a named binding. Its actions
// start from the copies declared on the binding (builder Copy/CopyTo/CopyBack);
// CopyTo, CopyBack and Copy add to them and NoCopy clears them. An unknown
// name is reported when the configuration is used.
func (kr *Runner) Param(name string) *ParamConfig {
	binding := kr.GetBinding(name)
	return &ParamConfig{
		name:    name,
		binding: binding,
		actions: declaredActions(binding),
	}
}

func declaredActions(binding *DeviceBinding) ActionFlags {
	actions := NoAction
	if binding == nil || binding.ParamSpec == nil {
		return actions
	}
	if binding.ParamSpec.NeedsCopyTo() {
		actions |= CopyTo
	}
	if binding.ParamSpec.NeedsCopyBack() {
		actions |= CopyBack
	}
	return actions
}

// ParamConfig is a lightweight builder for configuring parameter actions
type ParamConfig struct {
	name    string
	binding *DeviceBinding
	actions ActionFlags
}

// CopyTo sets the parameter to copy from host to device
func (pc *ParamConfig) CopyTo() *ParamConfig {
	pc.actions |= CopyTo
	return pc
}

// CopyBack sets the parameter to copy from device to host
func (pc *ParamConfig) CopyBack() *ParamConfig {
	pc.actions |= CopyBack
	return pc
}

// Copy sets the parameter for bidirectional copy
func (pc *ParamConfig) Copy() *ParamConfig {
	pc.actions |= Copy
	return pc
}

// NoCopy explicitly disables all copy operations for this parameter
func (pc *ParamConfig) NoCopy() *ParamConfig {
	pc.actions = NoAction
	return pc
}

// GetSignature returns the OpenCL C declaration matching the configured
// argument order
func (kc *KernelConfig) GetSignature() string {
	params := make([]*builder.ParamBuilder, len(kc.Parameters))
	for i, usage := range kc.Parameters {
		params[i] = &builder.ParamBuilder{Spec: *usage.Binding.ParamSpec}
	}
	return builder.GenerateKernelDeclaration(kc.Name, params...)
}
