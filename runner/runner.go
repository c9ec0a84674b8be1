package runner

import (
	"fmt"
	"github.com/notargets/clkit/cl"
	"github.com/notargets/clkit/native"
	"github.com/notargets/clkit/runner/builder"
	"github.com/sirupsen/logrus"
)

// Runner owns one platform/device/context/queue setup together with the
// programs, kernels and pooled device memory built on it
type Runner struct {
	Config builder.Config
	API    native.API

	Platform cl.Platform
	Device   cl.Device
	Context  cl.Context
	Queue    cl.CommandQueue

	Programs      []*cl.Program
	Kernels       map[string]*cl.Kernel
	PooledMemory  map[string]*cl.Buffer[byte]
	Bindings      map[string]*DeviceBinding
	KernelConfigs map[string]*KernelConfig
	IsAllocated   bool

	bindingOrder []string
	kernelOrder  []string
}

// Setup selects the first platform and the first device of the configured
// type, then creates a context and a queue on them. Call Free when done.
func Setup(api native.API, cfg builder.Config) (*Runner, error) {
	if api == nil {
		return nil, fmt.Errorf("runner setup: nil API")
	}
	kr := &Runner{
		Config:        cfg,
		API:           api,
		Kernels:       make(map[string]*cl.Kernel),
		PooledMemory:  make(map[string]*cl.Buffer[byte]),
		Bindings:      make(map[string]*DeviceBinding),
		KernelConfigs: make(map[string]*KernelConfig),
	}

	if err := kr.Platform.SelectFirst(api); err != nil {
		return nil, fmt.Errorf("failed to select platform: %w", err)
	}
	if err := kr.Device.SelectFirst(&kr.Platform, cfg.EffectiveDeviceType()); err != nil {
		return nil, fmt.Errorf("failed to select %v device: %w", cfg.EffectiveDeviceType(), err)
	}
	if err := kr.Context.Create(&kr.Platform, &kr.Device); err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}
	if err := kr.Queue.Create(&kr.Device, &kr.Context); err != nil {
		kr.Context.Release()
		return nil, fmt.Errorf("failed to create command queue: %w", err)
	}

	name, _ := kr.Device.Name()
	cl.Logger().WithFields(logrus.Fields{"device": name}).Info("runner: device selected")
	return kr, nil
}

// DeviceName returns the name of the selected device
func (kr *Runner) DeviceName() string {
	name, err := kr.Device.Name()
	if err != nil {
		return ""
	}
	return name
}

// BuildProgram compiles source in the runner context with the configured
// build options and keeps the program for Kernel lookups
func (kr *Runner) BuildProgram(source string) (*cl.Program, error) {
	p := &cl.Program{Options: kr.Config.BuildOptions}
	if err := p.BuildFromSource(&kr.Context, source); err != nil {
		p.Release()
		return nil, fmt.Errorf("failed to build program: %w", err)
	}
	kr.Programs = append(kr.Programs, p)
	return p, nil
}

// BuildProgramFromFile is BuildProgram on the contents of path
func (kr *Runner) BuildProgramFromFile(path string) (*cl.Program, error) {
	p := &cl.Program{Options: kr.Config.BuildOptions}
	if err := p.BuildFromFile(&kr.Context, path); err != nil {
		p.Release()
		return nil, fmt.Errorf("failed to build %s: %w", path, err)
	}
	kr.Programs = append(kr.Programs, p)
	return p, nil
}

// BuildKernel compiles source and registers the kernel called kernelName
func (kr *Runner) BuildKernel(source, kernelName string) (*cl.Kernel, error) {
	p, err := kr.BuildProgram(source)
	if err != nil {
		return nil, fmt.Errorf("kernel %s: %w", kernelName, err)
	}
	return kr.createKernel(p, kernelName)
}

// Kernel returns the registered kernel called name, creating it from the
// most recently built program that has it
func (kr *Runner) Kernel(name string) (*cl.Kernel, error) {
	if k, ok := kr.Kernels[name]; ok {
		return k, nil
	}
	var lastErr error = native.InvalidKernelName
	for i := len(kr.Programs) - 1; i >= 0; i-- {
		k, err := kr.createKernel(kr.Programs[i], name)
		if err == nil {
			return k, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("kernel %s not found: %w", name, lastErr)
}

func (kr *Runner) createKernel(p *cl.Program, name string) (*cl.Kernel, error) {
	k := &cl.Kernel{}
	if err := k.Create(p, name); err != nil {
		return nil, err
	}
	k.BindQueue(&kr.Queue)
	if old, ok := kr.Kernels[name]; ok {
		old.Release()
	} else {
		kr.kernelOrder = append(kr.kernelOrder, name)
	}
	kr.Kernels[name] = k
	return k, nil
}

// GetMemory returns the pooled device memory for a named binding
func (kr *Runner) GetMemory(name string) *cl.Buffer[byte] {
	return kr.PooledMemory[name]
}

// Free releases kernels, device memory, programs, the queue and the context
// in that order. The runner cannot be used afterwards.
func (kr *Runner) Free() {
	for i := len(kr.kernelOrder) - 1; i >= 0; i-- {
		kr.Kernels[kr.kernelOrder[i]].Release()
	}
	for i := len(kr.bindingOrder) - 1; i >= 0; i-- {
		if mem, ok := kr.PooledMemory[kr.bindingOrder[i]]; ok {
			mem.Release()
		}
	}
	for i := len(kr.Programs) - 1; i >= 0; i-- {
		kr.Programs[i].Release()
	}
	kr.Queue.Release()
	kr.Context.Release()

	kr.Kernels = make(map[string]*cl.Kernel)
	kr.PooledMemory = make(map[string]*cl.Buffer[byte])
	kr.Programs = nil
	kr.kernelOrder = nil
	kr.IsAllocated = false
}
