package runner

import (
	"fmt"
	"github.com/notargets/clkit/cl"
	"github.com/notargets/clkit/native"
	"github.com/notargets/clkit/runner/builder"
	"github.com/sirupsen/logrus"
)

// ActionFlags represents the memory operations to perform for a parameter
type ActionFlags int

const (
	// No action
	NoAction ActionFlags = 0
	// Copy from host to device before kernel execution
	CopyTo ActionFlags = 1 << iota
	// Copy from device to host after kernel execution
	CopyBack
	// Bidirectional copy (CopyTo | CopyBack)
	Copy = CopyTo | CopyBack
)

// DeviceBinding represents a host↔device data binding
type DeviceBinding struct {
	Name string

	// HostBinding is []T, mat.Matrix, a scalar, or nil for device-only data
	HostBinding interface{}

	HostType   builder.DataType // Element type in host data
	DeviceType builder.DataType // Element type on device (may differ for conversions)

	Size        int64 // Total number of elements
	ElementSize int   // Size of each element in bytes on device

	IsScalar bool
	IsTemp   bool
	IsLocal  bool
	IsMatrix bool

	MatrixRows int
	MatrixCols int

	Pinned   bool
	IsOutput bool // Whether parameter can be written to in kernel

	ParamSpec *builder.ParamSpec
}

// Bytes is the device allocation size of the binding
func (b *DeviceBinding) Bytes() uintptr {
	return uintptr(b.Size) * uintptr(b.ElementSize)
}

// ParameterUsage represents how a binding is used in a specific kernel or copy operation
type ParameterUsage struct {
	Binding *DeviceBinding
	Actions ActionFlags
}

// HasAction checks if a specific action is set
func (pu *ParameterUsage) HasAction(action ActionFlags) bool {
	return pu.Actions&action != 0
}

// NeedsCopyTo returns true if this usage requires host→device copy
func (pu *ParameterUsage) NeedsCopyTo() bool {
	return pu.HasAction(CopyTo)
}

// NeedsCopyBack returns true if this usage requires device→host copy
func (pu *ParameterUsage) NeedsCopyBack() bool {
	return pu.HasAction(CopyBack)
}

// DefineBindings establishes host↔device data relationships. Bindings are
// defined once, before AllocateDevice.
func (kr *Runner) DefineBindings(params ...*builder.ParamBuilder) error {
	if kr.IsAllocated {
		return fmt.Errorf("bindings cannot be defined after AllocateDevice has been called")
	}

	for i, p := range params {
		spec := p.Spec
		if err := spec.Validate(); err != nil {
			return fmt.Errorf("parameter %d: %w", i, err)
		}
		if _, exists := kr.Bindings[spec.Name]; exists {
			return fmt.Errorf("parameter %d: binding %s already defined", i, spec.Name)
		}

		binding := createBindingFromParam(&spec)
		kr.Bindings[spec.Name] = binding
		kr.bindingOrder = append(kr.bindingOrder, spec.Name)
	}

	return nil
}

// createBindingFromParam converts a ParamSpec into a DeviceBinding
func createBindingFromParam(spec *builder.ParamSpec) *DeviceBinding {
	binding := &DeviceBinding{
		Name:        spec.Name,
		HostBinding: spec.HostBinding,
		HostType:    spec.DataType,
		DeviceType:  spec.GetEffectiveType(),
		Size:        spec.Size,
		IsMatrix:    spec.IsMatrix,
		MatrixRows:  spec.MatrixRows,
		MatrixCols:  spec.MatrixCols,
		Pinned:      spec.Pinned,
		IsOutput:    !spec.IsConst(),
		ParamSpec:   spec,
	}

	switch spec.Direction {
	case builder.DirectionScalar:
		binding.IsScalar = true
		binding.DeviceType = spec.DataType // Scalars don't convert
		binding.Size = 1
	case builder.DirectionTemp:
		binding.IsTemp = true
	case builder.DirectionLocal:
		binding.IsLocal = true
	}
	binding.ElementSize = int(builder.SizeOf(binding.DeviceType))
	return binding
}

// GetBinding returns the binding called name, or nil
func (kr *Runner) GetBinding(name string) *DeviceBinding {
	return kr.Bindings[name]
}

// AllocateDevice allocates device memory for every array binding. Scalars
// and local arrays have no device allocation.
func (kr *Runner) AllocateDevice() error {
	if kr.IsAllocated {
		return fmt.Errorf("device memory already allocated")
	}

	for _, name := range kr.bindingOrder {
		binding := kr.Bindings[name]
		if binding.IsScalar || binding.IsLocal {
			continue
		}
		mem, err := kr.allocateBinding(binding)
		if err != nil {
			kr.releasePooled()
			return fmt.Errorf("failed to allocate %s: %w", name, err)
		}
		kr.PooledMemory[name] = mem
	}

	kr.IsAllocated = true
	return nil
}

func (kr *Runner) allocateBinding(binding *DeviceBinding) (*cl.Buffer[byte], error) {
	flags := native.MemReadWrite
	switch binding.ParamSpec.Direction {
	case builder.DirectionInput:
		flags = native.MemReadOnly
	case builder.DirectionOutput:
		flags = native.MemWriteOnly
	}

	mem := &cl.Buffer[byte]{}
	var err error
	if binding.Pinned {
		err = mem.MallocHost(&kr.Context, binding.Bytes(), flags)
	} else {
		err = mem.MallocDevice(&kr.Context, binding.Bytes(), flags)
	}
	if err != nil {
		return nil, err
	}
	mem.BindQueue(&kr.Queue)

	cl.Logger().WithFields(logrus.Fields{
		"binding": binding.Name,
		"bytes":   binding.Bytes(),
		"pinned":  binding.Pinned,
	}).Debug("runner: allocated")
	return mem, nil
}

func (kr *Runner) releasePooled() {
	for name, mem := range kr.PooledMemory {
		mem.Release()
		delete(kr.PooledMemory, name)
	}
}

// GetAllocatedArrays returns the names of bindings with device memory in
// definition order
func (kr *Runner) GetAllocatedArrays() []string {
	var names []string
	for _, name := range kr.bindingOrder {
		if _, ok := kr.PooledMemory[name]; ok {
			names = append(names, name)
		}
	}
	return names
}
