//go:build opencl && (linux || windows || darwin)

// Package opencl implements native.API on the system OpenCL ICD loader.
// Handles are the OpenCL object pointers; status codes pass through as is.
package opencl

/*
#cgo linux CFLAGS: -I/opt/rocm/include -I/usr/include
#cgo linux LDFLAGS: -L/opt/rocm/lib -L/usr/lib/x86_64-linux-gnu -lOpenCL
#cgo darwin LDFLAGS: -framework OpenCL
#cgo windows LDFLAGS: -lOpenCL

#define CL_TARGET_OPENCL_VERSION 120
#define CL_USE_DEPRECATED_OPENCL_1_2_APIS

#ifdef __APPLE__
#include <OpenCL/opencl.h>
#else
#include <CL/cl.h>
#endif

#include <stdlib.h>

static cl_context clkit_create_context(cl_platform_id platform, cl_uint n, const cl_device_id* devices, cl_int* err) {
    cl_context_properties props[] = {CL_CONTEXT_PLATFORM, (cl_context_properties)platform, 0};
    return clCreateContext(props, n, devices, NULL, NULL, err);
}

static cl_program clkit_create_program(cl_context ctx, const char* src, size_t len, cl_int* err) {
    return clCreateProgramWithSource(ctx, 1, &src, &len, err);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"github.com/notargets/clkit/native"
	"unsafe"
)

// ErrNotAvailable is returned by New when no OpenCL platform can be found.
var ErrNotAvailable = errors.New("opencl: no OpenCL platform available")

// Runtime forwards every call to the OpenCL C API.
type Runtime struct{}

var _ native.API = (*Runtime)(nil)

// New returns the OpenCL runtime, or ErrNotAvailable when the ICD loader
// reports no platforms.
func New() (native.API, error) {
	var n C.cl_uint
	if st := native.Status(C.clGetPlatformIDs(0, nil, &n)); !st.OK() || n == 0 {
		return nil, fmt.Errorf("%w (%v)", ErrNotAvailable, st)
	}
	return &Runtime{}, nil
}

func status(err C.cl_int) native.Status { return native.Status(err) }

func handle(p unsafe.Pointer) uintptr { return uintptr(p) }

func ptr(h uintptr) unsafe.Pointer { return unsafe.Pointer(h) }

func waitList(events []native.Event) (C.cl_uint, *C.cl_event) {
	if len(events) == 0 {
		return 0, nil
	}
	list := make([]C.cl_event, len(events))
	for i, e := range events {
		list[i] = C.cl_event(ptr(uintptr(e)))
	}
	return C.cl_uint(len(list)), &list[0]
}

// eventOut returns the out parameter for an enqueue and a function that
// stores the produced event.
func eventOut(ev *native.Event) (*C.cl_event, func()) {
	if ev == nil {
		return nil, func() {}
	}
	var e C.cl_event
	return &e, func() { *ev = native.Event(handle(unsafe.Pointer(e))) }
}

func sizes(v []uintptr) *C.size_t {
	if len(v) == 0 {
		return nil
	}
	out := make([]C.size_t, len(v))
	for i, x := range v {
		out[i] = C.size_t(x)
	}
	return &out[0]
}

func (*Runtime) GetPlatformIDs(max int) ([]native.Platform, native.Status) {
	if max <= 0 {
		return nil, native.InvalidValue
	}
	ids := make([]C.cl_platform_id, max)
	var n C.cl_uint
	if st := status(C.clGetPlatformIDs(C.cl_uint(max), &ids[0], &n)); !st.OK() {
		return nil, st
	}
	out := make([]native.Platform, 0, int(n))
	for _, id := range ids[:min(int(n), max)] {
		out = append(out, native.Platform(handle(unsafe.Pointer(id))))
	}
	return out, native.Success
}

func (*Runtime) GetDeviceIDs(platform native.Platform, deviceType native.DeviceType, max int) ([]native.Device, native.Status) {
	if max <= 0 {
		return nil, native.InvalidValue
	}
	ids := make([]C.cl_device_id, max)
	var n C.cl_uint
	st := status(C.clGetDeviceIDs(C.cl_platform_id(ptr(uintptr(platform))), C.cl_device_type(deviceType),
		C.cl_uint(max), &ids[0], &n))
	if !st.OK() {
		return nil, st
	}
	out := make([]native.Device, 0, int(n))
	for _, id := range ids[:min(int(n), max)] {
		out = append(out, native.Device(handle(unsafe.Pointer(id))))
	}
	return out, native.Success
}

func (*Runtime) DeviceName(device native.Device) (string, native.Status) {
	id := C.cl_device_id(ptr(uintptr(device)))
	var size C.size_t
	if st := status(C.clGetDeviceInfo(id, C.CL_DEVICE_NAME, 0, nil, &size)); !st.OK() {
		return "", st
	}
	if size == 0 {
		return "", native.Success
	}
	buf := make([]byte, int(size))
	if st := status(C.clGetDeviceInfo(id, C.CL_DEVICE_NAME, size, unsafe.Pointer(&buf[0]), nil)); !st.OK() {
		return "", st
	}
	return C.GoString((*C.char)(unsafe.Pointer(&buf[0]))), native.Success
}

func (*Runtime) CreateContext(platform native.Platform, devices []native.Device) (native.Context, native.Status) {
	if len(devices) == 0 {
		return 0, native.InvalidValue
	}
	ids := make([]C.cl_device_id, len(devices))
	for i, d := range devices {
		ids[i] = C.cl_device_id(ptr(uintptr(d)))
	}
	var err C.cl_int
	ctx := C.clkit_create_context(C.cl_platform_id(ptr(uintptr(platform))), C.cl_uint(len(ids)), &ids[0], &err)
	if st := status(err); !st.OK() {
		return 0, st
	}
	return native.Context(handle(unsafe.Pointer(ctx))), native.Success
}

func (*Runtime) ReleaseContext(context native.Context) native.Status {
	return status(C.clReleaseContext(C.cl_context(ptr(uintptr(context)))))
}

func (*Runtime) CreateCommandQueue(context native.Context, device native.Device) (native.CommandQueue, native.Status) {
	var err C.cl_int
	q := C.clCreateCommandQueue(C.cl_context(ptr(uintptr(context))), C.cl_device_id(ptr(uintptr(device))), 0, &err)
	if st := status(err); !st.OK() {
		return 0, st
	}
	return native.CommandQueue(handle(unsafe.Pointer(q))), native.Success
}

func (*Runtime) ReleaseCommandQueue(queue native.CommandQueue) native.Status {
	return status(C.clReleaseCommandQueue(C.cl_command_queue(ptr(uintptr(queue)))))
}

func (*Runtime) Finish(queue native.CommandQueue) native.Status {
	return status(C.clFinish(C.cl_command_queue(ptr(uintptr(queue)))))
}

func (*Runtime) CreateProgramWithSource(context native.Context, source string) (native.Program, native.Status) {
	if source == "" {
		return 0, native.InvalidValue
	}
	src := C.CString(source)
	defer C.free(unsafe.Pointer(src))
	var err C.cl_int
	p := C.clkit_create_program(C.cl_context(ptr(uintptr(context))), src, C.size_t(len(source)), &err)
	if st := status(err); !st.OK() {
		return 0, st
	}
	return native.Program(handle(unsafe.Pointer(p))), native.Success
}

func (*Runtime) BuildProgram(program native.Program, options string) native.Status {
	opts := C.CString(options)
	defer C.free(unsafe.Pointer(opts))
	return status(C.clBuildProgram(C.cl_program(ptr(uintptr(program))), 0, nil, opts, nil, nil))
}

// ProgramBuildLog returns the log of the first device the program was built
// for.
func (*Runtime) ProgramBuildLog(program native.Program) string {
	p := C.cl_program(ptr(uintptr(program)))
	var dev C.cl_device_id
	if st := status(C.clGetProgramInfo(p, C.CL_PROGRAM_DEVICES, C.size_t(unsafe.Sizeof(dev)),
		unsafe.Pointer(&dev), nil)); !st.OK() {
		return ""
	}
	var size C.size_t
	if st := status(C.clGetProgramBuildInfo(p, dev, C.CL_PROGRAM_BUILD_LOG, 0, nil, &size)); !st.OK() || size == 0 {
		return ""
	}
	buf := make([]byte, int(size))
	if st := status(C.clGetProgramBuildInfo(p, dev, C.CL_PROGRAM_BUILD_LOG, size,
		unsafe.Pointer(&buf[0]), nil)); !st.OK() {
		return ""
	}
	return C.GoString((*C.char)(unsafe.Pointer(&buf[0])))
}

func (*Runtime) ReleaseProgram(program native.Program) native.Status {
	return status(C.clReleaseProgram(C.cl_program(ptr(uintptr(program)))))
}

func (*Runtime) CreateKernel(program native.Program, name string) (native.Kernel, native.Status) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	var err C.cl_int
	k := C.clCreateKernel(C.cl_program(ptr(uintptr(program))), cname, &err)
	if st := status(err); !st.OK() {
		return 0, st
	}
	return native.Kernel(handle(unsafe.Pointer(k))), native.Success
}

func (*Runtime) ReleaseKernel(kernel native.Kernel) native.Status {
	return status(C.clReleaseKernel(C.cl_kernel(ptr(uintptr(kernel)))))
}

func (*Runtime) SetKernelArg(kernel native.Kernel, index uint32, size uintptr, value unsafe.Pointer) native.Status {
	return status(C.clSetKernelArg(C.cl_kernel(ptr(uintptr(kernel))), C.cl_uint(index), C.size_t(size), value))
}

func (*Runtime) EnqueueNDRangeKernel(queue native.CommandQueue, kernel native.Kernel, offset, global, local []uintptr,
	wait []native.Event, ev *native.Event) native.Status {
	if len(global) == 0 {
		return native.InvalidWorkDimension
	}
	n, list := waitList(wait)
	out, store := eventOut(ev)
	st := status(C.clEnqueueNDRangeKernel(C.cl_command_queue(ptr(uintptr(queue))), C.cl_kernel(ptr(uintptr(kernel))),
		C.cl_uint(len(global)), sizes(offset), sizes(global), sizes(local), n, list, out))
	if st.OK() {
		store()
	}
	return st
}

// CreateBuffer rejects MemUseHostPtr: the runtime would keep a pointer into
// Go memory after the call returns.
func (*Runtime) CreateBuffer(context native.Context, flags native.MemFlags, size uintptr, host unsafe.Pointer) (native.Mem, native.Status) {
	if flags&native.MemUseHostPtr != 0 {
		return 0, native.InvalidHostPtr
	}
	var err C.cl_int
	m := C.clCreateBuffer(C.cl_context(ptr(uintptr(context))), C.cl_mem_flags(flags), C.size_t(size), host, &err)
	if st := status(err); !st.OK() {
		return 0, st
	}
	return native.Mem(handle(unsafe.Pointer(m))), native.Success
}

func (*Runtime) ReleaseMemObject(mem native.Mem) native.Status {
	return status(C.clReleaseMemObject(C.cl_mem(ptr(uintptr(mem)))))
}

func (*Runtime) EnqueueMapBuffer(queue native.CommandQueue, mem native.Mem, blocking bool, flags native.MapFlags,
	offset, size uintptr, wait []native.Event, ev *native.Event) (unsafe.Pointer, native.Status) {
	block := C.cl_bool(C.CL_FALSE)
	if blocking {
		block = C.CL_TRUE
	}
	n, list := waitList(wait)
	out, store := eventOut(ev)
	var err C.cl_int
	p := C.clEnqueueMapBuffer(C.cl_command_queue(ptr(uintptr(queue))), C.cl_mem(ptr(uintptr(mem))), block,
		C.cl_map_flags(flags), C.size_t(offset), C.size_t(size), n, list, out, &err)
	if st := status(err); !st.OK() {
		return nil, st
	}
	store()
	return p, native.Success
}

func (*Runtime) EnqueueUnmapMemObject(queue native.CommandQueue, mem native.Mem, p unsafe.Pointer,
	wait []native.Event, ev *native.Event) native.Status {
	n, list := waitList(wait)
	out, store := eventOut(ev)
	st := status(C.clEnqueueUnmapMemObject(C.cl_command_queue(ptr(uintptr(queue))), C.cl_mem(ptr(uintptr(mem))),
		p, n, list, out))
	if st.OK() {
		store()
	}
	return st
}

func (*Runtime) EnqueueCopyBuffer(queue native.CommandQueue, src, dst native.Mem, srcOffset, dstOffset, size uintptr,
	wait []native.Event, ev *native.Event) native.Status {
	n, list := waitList(wait)
	out, store := eventOut(ev)
	st := status(C.clEnqueueCopyBuffer(C.cl_command_queue(ptr(uintptr(queue))), C.cl_mem(ptr(uintptr(src))),
		C.cl_mem(ptr(uintptr(dst))), C.size_t(srcOffset), C.size_t(dstOffset), C.size_t(size), n, list, out))
	if st.OK() {
		store()
	}
	return st
}

func (*Runtime) WaitForEvents(events []native.Event) native.Status {
	if len(events) == 0 {
		return native.InvalidValue
	}
	n, list := waitList(events)
	return status(C.clWaitForEvents(n, list))
}

func (*Runtime) ReleaseEvent(event native.Event) native.Status {
	return status(C.clReleaseEvent(C.cl_event(ptr(uintptr(event)))))
}
