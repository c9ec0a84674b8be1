package runner

import (
	"fmt"
	"github.com/notargets/clkit/cl"
	"github.com/sirupsen/logrus"
	"reflect"
)

// ExecuteKernel executes a configured kernel over the given NDRange. CopyTo
// actions run before the launch and CopyBack actions after the queue has
// finished. A nil local lets the runtime pick the work-group size.
func (kr *Runner) ExecuteKernel(name string, global, local []uintptr) error {
	config, exists := kr.KernelConfigs[name]
	if !exists {
		return fmt.Errorf("kernel %s not configured - use ConfigureKernel first", name)
	}

	kernel, err := kr.Kernel(name)
	if err != nil {
		return fmt.Errorf("kernel %s not compiled - use BuildKernel first: %w", name, err)
	}

	if err := kr.executeCopyActions(filterActions(config.Parameters, CopyTo)); err != nil {
		return fmt.Errorf("pre-kernel copy failed: %w", err)
	}

	args, err := kr.buildKernelArgumentsFromConfig(config)
	if err != nil {
		return fmt.Errorf("failed to build arguments: %w", err)
	}
	if err := kernel.SetArgs(args...); err != nil {
		return fmt.Errorf("failed to set arguments of %s: %w", name, err)
	}

	if err := kernel.Run(global, local); err != nil {
		return fmt.Errorf("kernel execution failed: %w", err)
	}
	if err := kr.Queue.Finish(); err != nil {
		return fmt.Errorf("kernel %s: finish: %w", name, err)
	}

	cl.Logger().WithFields(logrus.Fields{
		"kernel": name,
		"global": global,
		"local":  local,
	}).Debug("runner: kernel executed")

	if err := kr.executeCopyActions(filterActions(config.Parameters, CopyBack)); err != nil {
		return fmt.Errorf("post-kernel copy failed: %w", err)
	}

	return nil
}

// filterActions keeps only the given action of each usage
func filterActions(params []ParameterUsage, action ActionFlags) []ParameterUsage {
	out := make([]ParameterUsage, 0, len(params))
	for _, param := range params {
		if param.HasAction(action) {
			out = append(out, ParameterUsage{Binding: param.Binding, Actions: action})
		}
	}
	return out
}

// buildKernelArgumentsFromConfig resolves each configured binding to the
// value cl.SetKernelArgs binds: pooled memory for arrays, local scratch for
// local arrays and the bound host value for scalars.
func (kr *Runner) buildKernelArgumentsFromConfig(config *KernelConfig) ([]any, error) {
	args := make([]any, 0, len(config.Parameters))
	for _, usage := range config.Parameters {
		binding := usage.Binding
		switch {
		case binding.IsScalar:
			if binding.HostBinding == nil {
				return nil, fmt.Errorf("scalar %s not provided", binding.Name)
			}
			args = append(args, binding.HostBinding)
		case binding.IsLocal:
			args = append(args, cl.LocalMemory{Size: binding.Bytes()})
		default:
			mem, exists := kr.PooledMemory[binding.Name]
			if !exists {
				return nil, fmt.Errorf("memory for %s not found", binding.Name)
			}
			args = append(args, mem)
		}
	}
	return args, nil
}

// SetScalar replaces the value of a scalar binding for subsequent launches.
// The value must keep the binding's type.
func (kr *Runner) SetScalar(name string, value interface{}) error {
	binding := kr.GetBinding(name)
	if binding == nil || !binding.IsScalar {
		return fmt.Errorf("no scalar binding named %s", name)
	}
	if reflect.TypeOf(value) != reflect.TypeOf(binding.HostBinding) {
		return fmt.Errorf("scalar %s: cannot assign %T to %T", name, value, binding.HostBinding)
	}
	binding.HostBinding = value
	binding.ParamSpec.HostBinding = value
	return nil
}
