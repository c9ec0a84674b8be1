// Package native describes the handle-based compute API that clkit sits on.
//
// Every resource is an opaque handle. A zero handle is the null handle. Each
// resource kind that owns memory on the runtime side has exactly one release
// function on API. Platforms and devices are owned by the runtime and have
// none.
//
// Status codes use the OpenCL numbering so that backends translating a real
// OpenCL implementation can pass codes through unchanged.
package native

import (
	"fmt"
	"unsafe"
)

// Handle types. They are distinct so that a kernel handle can never be passed
// where a memory object is expected.
type (
	Platform     uintptr
	Device       uintptr
	Context      uintptr
	CommandQueue uintptr
	Program      uintptr
	Kernel       uintptr
	Mem          uintptr
	Event        uintptr
)

// DeviceType selects devices during enumeration.
type DeviceType uint64

const (
	DeviceTypeDefault     DeviceType = 1 << 0
	DeviceTypeCPU         DeviceType = 1 << 1
	DeviceTypeGPU         DeviceType = 1 << 2
	DeviceTypeAccelerator DeviceType = 1 << 3
	DeviceTypeAll         DeviceType = 0xFFFFFFFF
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeDefault:
		return "default"
	case DeviceTypeCPU:
		return "cpu"
	case DeviceTypeGPU:
		return "gpu"
	case DeviceTypeAccelerator:
		return "accelerator"
	case DeviceTypeAll:
		return "all"
	default:
		return fmt.Sprintf("DeviceType(%#x)", uint64(t))
	}
}

// MemFlags describe how a memory object is allocated.
type MemFlags uint64

const (
	MemReadWrite    MemFlags = 1 << 0
	MemWriteOnly    MemFlags = 1 << 1
	MemReadOnly     MemFlags = 1 << 2
	MemUseHostPtr   MemFlags = 1 << 3
	MemAllocHostPtr MemFlags = 1 << 4
	MemCopyHostPtr  MemFlags = 1 << 5
)

// MapFlags describe the access requested by a map operation.
type MapFlags uint64

const (
	MapRead  MapFlags = 1 << 0
	MapWrite MapFlags = 1 << 1
)

// ArgType tags a scalar kernel argument for backends that cannot work from
// size and address alone.
type ArgType int

const (
	ArgRaw ArgType = iota
	ArgHandle
	ArgLocal
	ArgBool
	ArgInt8
	ArgUint8
	ArgInt16
	ArgUint16
	ArgInt32
	ArgUint32
	ArgInt64
	ArgUint64
	ArgFloat32
	ArgFloat64
)

// API is the native compute interface. Creation functions return the new
// handle together with a status; the handle is null unless the status is
// Success. Enqueue functions fill event, when it is non-nil, with a handle
// the caller must release.
type API interface {
	GetPlatformIDs(max int) ([]Platform, Status)
	GetDeviceIDs(platform Platform, deviceType DeviceType, max int) ([]Device, Status)
	DeviceName(device Device) (string, Status)

	CreateContext(platform Platform, devices []Device) (Context, Status)
	ReleaseContext(context Context) Status

	CreateCommandQueue(context Context, device Device) (CommandQueue, Status)
	ReleaseCommandQueue(queue CommandQueue) Status
	Finish(queue CommandQueue) Status

	CreateProgramWithSource(context Context, source string) (Program, Status)
	BuildProgram(program Program, options string) Status
	ProgramBuildLog(program Program) string
	ReleaseProgram(program Program) Status

	CreateKernel(program Program, name string) (Kernel, Status)
	ReleaseKernel(kernel Kernel) Status
	SetKernelArg(kernel Kernel, index uint32, size uintptr, value unsafe.Pointer) Status
	EnqueueNDRangeKernel(queue CommandQueue, kernel Kernel, offset, global, local []uintptr,
		waitList []Event, event *Event) Status

	CreateBuffer(context Context, flags MemFlags, size uintptr, host unsafe.Pointer) (Mem, Status)
	ReleaseMemObject(mem Mem) Status
	EnqueueMapBuffer(queue CommandQueue, mem Mem, blocking bool, flags MapFlags, offset, size uintptr,
		waitList []Event, event *Event) (unsafe.Pointer, Status)
	EnqueueUnmapMemObject(queue CommandQueue, mem Mem, ptr unsafe.Pointer, waitList []Event,
		event *Event) Status
	EnqueueCopyBuffer(queue CommandQueue, src, dst Mem, srcOffset, dstOffset, size uintptr,
		waitList []Event, event *Event) Status

	WaitForEvents(events []Event) Status
	ReleaseEvent(event Event) Status
}

// TypedArgSetter is implemented by backends that need the scalar kind of an
// argument in addition to its bytes. Callers prefer it over SetKernelArg when
// present; it counts as the single set-argument call for that index.
type TypedArgSetter interface {
	SetKernelArgTyped(kernel Kernel, index uint32, size uintptr, value unsafe.Pointer, t ArgType) Status
}
