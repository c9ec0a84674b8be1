package runner

import (
	"fmt"
	"github.com/notargets/clkit/cl"
	"github.com/notargets/clkit/native"
	"gonum.org/v1/gonum/mat"
)

// executeCopyActions is the copy engine shared by kernel execution, copy
// configurations and the single parameter helpers
func (kr *Runner) executeCopyActions(actions []ParameterUsage) error {
	for _, param := range actions {
		if param.Actions == NoAction {
			continue
		}

		if param.NeedsCopyTo() {
			if err := kr.copyToDeviceFromBinding(param.Binding); err != nil {
				return fmt.Errorf("failed to copy %s to device: %w", param.Binding.Name, err)
			}
		}

		if param.NeedsCopyBack() {
			if err := kr.copyFromDeviceFromBinding(param.Binding); err != nil {
				return fmt.Errorf("failed to copy %s from device: %w", param.Binding.Name, err)
			}
		}
	}
	return nil
}

// deviceMemory returns the pooled memory of an array binding, or nil when
// the binding has nothing to copy
func (kr *Runner) deviceMemory(binding *DeviceBinding) (*cl.Buffer[byte], error) {
	if binding.HostBinding == nil || binding.IsScalar {
		return nil, nil
	}
	mem := kr.PooledMemory[binding.Name]
	if mem == nil {
		return nil, fmt.Errorf("no device memory allocated for %s", binding.Name)
	}
	return mem, nil
}

// copyToDeviceFromBinding writes the host data through a write mapping,
// converting element types and transposing matrices on the way
func (kr *Runner) copyToDeviceFromBinding(binding *DeviceBinding) error {
	mem, err := kr.deviceMemory(binding)
	if mem == nil {
		return err
	}

	view, err := mem.MapWith(nil, native.MapWrite, true)
	if err != nil {
		return err
	}
	if m, ok := binding.HostBinding.(mat.Matrix); ok {
		err = encode(view, columnMajor(m), binding.DeviceType)
	} else {
		err = encodeHost(view, binding.HostBinding, binding.DeviceType)
	}
	if uerr := mem.Unmap(nil); err == nil {
		err = uerr
	}
	return err
}

// copyFromDeviceFromBinding reads device data back into the host binding
func (kr *Runner) copyFromDeviceFromBinding(binding *DeviceBinding) error {
	mem, err := kr.deviceMemory(binding)
	if mem == nil {
		return err
	}

	var target mat.Mutable
	if m, ok := binding.HostBinding.(mat.Matrix); ok {
		if target, ok = m.(mat.Mutable); !ok {
			return fmt.Errorf("matrix %T cannot be written", m)
		}
	}

	view, err := mem.MapWith(nil, native.MapRead, true)
	if err != nil {
		return err
	}
	if target != nil {
		data := make([]float64, binding.Size)
		if err = decode(data, view, binding.DeviceType); err == nil {
			setColumnMajor(target, data)
		}
	} else {
		err = decodeHost(binding.HostBinding, view, binding.DeviceType)
	}
	if uerr := mem.Unmap(nil); err == nil {
		err = uerr
	}
	return err
}

// CopyToDevice copies a single parameter from host to device
func (kr *Runner) CopyToDevice(name string) error {
	binding := kr.GetBinding(name)
	if binding == nil {
		return fmt.Errorf("binding %s not found", name)
	}

	return kr.executeCopyActions([]ParameterUsage{
		{Binding: binding, Actions: CopyTo},
	})
}

// CopyFromDevice copies a single parameter from device to host
func (kr *Runner) CopyFromDevice(name string) error {
	binding := kr.GetBinding(name)
	if binding == nil {
		return fmt.Errorf("binding %s not found", name)
	}

	return kr.executeCopyActions([]ParameterUsage{
		{Binding: binding, Actions: CopyBack},
	})
}
