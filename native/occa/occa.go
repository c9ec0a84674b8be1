//go:build occa

// Package occa implements native.API on an OCCA device through gocca.
//
// OCCA exposes a single device per mode, so the runtime reports one platform
// holding one device. Programs are OKL source: every @kernel in the source is
// compiled by BuildProgram. Memory objects are mapped through a host shadow
// that is filled on map and written back on unmap when the mapping was
// writable.
//
// gocca links libocca through cgo, so this file is only built with
// -tags occa; its tests run with `go test -tags occa ./native/occa/...`.
package occa

import (
	"errors"
	"fmt"
	"github.com/notargets/clkit/native"
	"github.com/notargets/gocca"
	"regexp"
	"strings"
	"sync"
	"unsafe"
)

// ErrNotAvailable is returned by New when the OCCA device cannot be created.
var ErrNotAvailable = errors.New("occa: device not available")

var kernelDecl = regexp.MustCompile(`@kernel\s+void\s+(\w+)\s*\(([^)]*)\)`)

type program struct {
	source   string
	built    bool
	released bool
	log      string
	kernels  map[string]*gocca.OCCAKernel
	params   map[string]int
}

type kernel struct {
	program native.Program
	name    string
	args    []interface{}
}

type mapping struct {
	words []uint64
	write bool
}

type memObject struct {
	mem  *gocca.OCCAMemory
	size uintptr
	maps map[uintptr]*mapping
}

// Runtime implements native.API on one OCCA device.
type Runtime struct {
	mu sync.Mutex

	device   *gocca.OCCADevice
	mode     string
	platform native.Platform
	deviceID native.Device
	next     uintptr

	contexts map[native.Context]struct{}
	queues   map[native.CommandQueue]struct{}
	programs map[native.Program]*program
	kernels  map[native.Kernel]*kernel
	mems     map[native.Mem]*memObject
	events   map[native.Event]struct{}
}

var (
	_ native.API            = (*Runtime)(nil)
	_ native.TypedArgSetter = (*Runtime)(nil)
)

// New opens an OCCA device from JSON properties such as {"mode": "OpenMP"}.
// Close frees the device.
func New(props string) (*Runtime, error) {
	device, err := gocca.NewDevice(props)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAvailable, err)
	}
	r := &Runtime{
		device:   device,
		mode:     device.Mode(),
		next:     0x1000,
		contexts: make(map[native.Context]struct{}),
		queues:   make(map[native.CommandQueue]struct{}),
		programs: make(map[native.Program]*program),
		kernels:  make(map[native.Kernel]*kernel),
		mems:     make(map[native.Mem]*memObject),
		events:   make(map[native.Event]struct{}),
	}
	r.platform = native.Platform(r.newHandle())
	r.deviceID = native.Device(r.newHandle())
	return r, nil
}

// Close frees the OCCA device. Objects not yet released are freed with it.
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kernels = make(map[native.Kernel]*kernel)
	for h, p := range r.programs {
		freeKernels(p)
		delete(r.programs, h)
	}
	for h, m := range r.mems {
		m.mem.Free()
		delete(r.mems, h)
	}
	if r.device != nil {
		r.device.Free()
		r.device = nil
	}
}

func (r *Runtime) newHandle() uintptr {
	h := r.next
	r.next += 0x10
	return h
}

func (r *Runtime) deviceType() native.DeviceType {
	switch r.mode {
	case "Serial", "OpenMP":
		return native.DeviceTypeCPU | native.DeviceTypeDefault
	default:
		return native.DeviceTypeGPU | native.DeviceTypeDefault
	}
}

func (r *Runtime) GetPlatformIDs(max int) ([]native.Platform, native.Status) {
	if max <= 0 {
		return nil, native.InvalidValue
	}
	return []native.Platform{r.platform}, native.Success
}

func (r *Runtime) GetDeviceIDs(platform native.Platform, deviceType native.DeviceType, max int) ([]native.Device, native.Status) {
	switch {
	case platform != r.platform:
		return nil, native.InvalidPlatform
	case max <= 0:
		return nil, native.InvalidValue
	case deviceType == 0:
		return nil, native.InvalidDeviceType
	case r.deviceType()&deviceType == 0:
		return nil, native.DeviceNotFound
	}
	return []native.Device{r.deviceID}, native.Success
}

func (r *Runtime) DeviceName(device native.Device) (string, native.Status) {
	if device != r.deviceID {
		return "", native.InvalidDevice
	}
	return "occa-" + strings.ToLower(r.mode), native.Success
}

func (r *Runtime) CreateContext(platform native.Platform, devices []native.Device) (native.Context, native.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if platform != r.platform {
		return 0, native.InvalidPlatform
	}
	if len(devices) == 0 {
		return 0, native.InvalidValue
	}
	for _, d := range devices {
		if d != r.deviceID {
			return 0, native.InvalidDevice
		}
	}
	h := native.Context(r.newHandle())
	r.contexts[h] = struct{}{}
	return h, native.Success
}

func (r *Runtime) ReleaseContext(context native.Context) native.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.contexts[context]; !ok {
		return native.InvalidContext
	}
	delete(r.contexts, context)
	return native.Success
}

func (r *Runtime) CreateCommandQueue(context native.Context, device native.Device) (native.CommandQueue, native.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.contexts[context]; !ok {
		return 0, native.InvalidContext
	}
	if device != r.deviceID {
		return 0, native.InvalidDevice
	}
	h := native.CommandQueue(r.newHandle())
	r.queues[h] = struct{}{}
	return h, native.Success
}

func (r *Runtime) ReleaseCommandQueue(queue native.CommandQueue) native.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.queues[queue]; !ok {
		return native.InvalidCommandQueue
	}
	delete(r.queues, queue)
	return native.Success
}

func (r *Runtime) Finish(queue native.CommandQueue) native.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.queues[queue]; !ok {
		return native.InvalidCommandQueue
	}
	r.device.Finish()
	return native.Success
}

func (r *Runtime) CreateProgramWithSource(context native.Context, source string) (native.Program, native.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.contexts[context]; !ok {
		return 0, native.InvalidContext
	}
	if strings.TrimSpace(source) == "" {
		return 0, native.InvalidValue
	}
	h := native.Program(r.newHandle())
	r.programs[h] = &program{source: source}
	return h, native.Success
}

// buildProps turns OpenCL style build options into OCCA kernel properties.
// Options that already are a JSON object are passed through. OpenMP gets -O3
// by default because OCCA does not add it for that mode.
func (r *Runtime) buildProps(options string) string {
	options = strings.TrimSpace(options)
	switch {
	case strings.HasPrefix(options, "{"):
		return options
	case options != "":
		return fmt.Sprintf(`{"compiler_flags": %q}`, options)
	case r.mode == "OpenMP":
		return `{"compiler_flags": "-O3"}`
	default:
		return ""
	}
}

func (r *Runtime) BuildProgram(ph native.Program, options string) native.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.programs[ph]
	if !ok {
		return native.InvalidProgram
	}
	freeKernels(p)
	p.built, p.log = false, ""
	p.kernels = make(map[string]*gocca.OCCAKernel)
	p.params = make(map[string]int)

	decls := kernelDecl.FindAllStringSubmatch(p.source, -1)
	if len(decls) == 0 {
		p.log = "error: no @kernel declarations\n"
		return native.BuildProgramFailure
	}
	var log strings.Builder
	for _, m := range decls {
		name := m[1]
		var k *gocca.OCCAKernel
		var err error
		if props := r.buildProps(options); props != "" {
			kprops := gocca.JsonParse(props)
			k, err = r.device.BuildKernelFromString(p.source, name, kprops)
			kprops.Free()
		} else {
			k, err = r.device.BuildKernelFromString(p.source, name, nil)
		}
		if err != nil {
			fmt.Fprintf(&log, "error: kernel '%s': %v\n", name, err)
			continue
		}
		p.kernels[name] = k
		p.params[name] = countParams(m[2])
	}
	p.log = log.String()
	if p.log != "" {
		freeKernels(p)
		return native.BuildProgramFailure
	}
	p.built = true
	return native.Success
}

func countParams(list string) int {
	list = strings.TrimSpace(list)
	if list == "" || list == "void" {
		return 0
	}
	return strings.Count(list, ",") + 1
}

func freeKernels(p *program) {
	for name, k := range p.kernels {
		k.Free()
		delete(p.kernels, name)
	}
}

func (r *Runtime) ProgramBuildLog(ph native.Program) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.programs[ph]; ok {
		return p.log
	}
	return ""
}

func (r *Runtime) ReleaseProgram(ph native.Program) native.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.programs[ph]
	if !ok {
		return native.InvalidProgram
	}
	if p.released {
		return native.InvalidProgram
	}
	p.released = true
	r.collect(ph)
	return native.Success
}

// collect frees a released program once no kernel created from it is left.
func (r *Runtime) collect(ph native.Program) {
	p := r.programs[ph]
	if p == nil || !p.released {
		return
	}
	for _, k := range r.kernels {
		if k.program == ph {
			return
		}
	}
	freeKernels(p)
	delete(r.programs, ph)
}

func (r *Runtime) CreateKernel(ph native.Program, name string) (native.Kernel, native.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.programs[ph]
	if !ok || p.released {
		return 0, native.InvalidProgram
	}
	if !p.built {
		return 0, native.InvalidProgramExecutable
	}
	n, ok := p.params[name]
	if !ok {
		return 0, native.InvalidKernelName
	}
	h := native.Kernel(r.newHandle())
	r.kernels[h] = &kernel{program: ph, name: name, args: make([]interface{}, n)}
	return h, native.Success
}

func (r *Runtime) ReleaseKernel(kh native.Kernel) native.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.kernels[kh]
	if !ok {
		return native.InvalidKernel
	}
	delete(r.kernels, kh)
	r.collect(k.program)
	return native.Success
}

// SetKernelArg only accepts memory objects; scalars need their kind and go
// through SetKernelArgTyped.
func (r *Runtime) SetKernelArg(kh native.Kernel, index uint32, size uintptr, value unsafe.Pointer) native.Status {
	return r.SetKernelArgTyped(kh, index, size, value, native.ArgHandle)
}

func (r *Runtime) SetKernelArgTyped(kh native.Kernel, index uint32, size uintptr, value unsafe.Pointer, t native.ArgType) native.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.kernels[kh]
	if !ok {
		return native.InvalidKernel
	}
	if int(index) >= len(k.args) {
		return native.InvalidArgIndex
	}
	if size == 0 {
		return native.InvalidArgSize
	}
	v, st := r.argValue(size, value, t)
	if !st.OK() {
		return st
	}
	k.args[index] = v
	return native.Success
}

func (r *Runtime) argValue(size uintptr, value unsafe.Pointer, t native.ArgType) (interface{}, native.Status) {
	if value == nil {
		// OKL declares shared memory inside the kernel
		return nil, native.InvalidArgValue
	}
	switch t {
	case native.ArgHandle:
		if size != unsafe.Sizeof(native.Mem(0)) {
			return nil, native.InvalidArgSize
		}
		m, ok := r.mems[*(*native.Mem)(value)]
		if !ok {
			return nil, native.InvalidMemObject
		}
		return m.mem, native.Success
	case native.ArgBool:
		return *(*bool)(value), native.Success
	case native.ArgInt8:
		return *(*int8)(value), native.Success
	case native.ArgUint8:
		return *(*uint8)(value), native.Success
	case native.ArgInt16:
		return *(*int16)(value), native.Success
	case native.ArgUint16:
		return *(*uint16)(value), native.Success
	case native.ArgInt32:
		return *(*int32)(value), native.Success
	case native.ArgUint32:
		return *(*uint32)(value), native.Success
	case native.ArgInt64:
		return *(*int64)(value), native.Success
	case native.ArgUint64:
		return *(*uint64)(value), native.Success
	case native.ArgFloat32:
		return *(*float32)(value), native.Success
	case native.ArgFloat64:
		return *(*float64)(value), native.Success
	default:
		return nil, native.InvalidArgValue
	}
}

// EnqueueNDRangeKernel launches the kernel. OKL kernels carry their own loop
// bounds, so the range is only validated.
func (r *Runtime) EnqueueNDRangeKernel(queue native.CommandQueue, kh native.Kernel, offset, global, local []uintptr,
	wait []native.Event, ev *native.Event) native.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.queues[queue]; !ok {
		return native.InvalidCommandQueue
	}
	k, ok := r.kernels[kh]
	if !ok {
		return native.InvalidKernel
	}
	if len(global) < 1 || len(global) > 3 {
		return native.InvalidWorkDimension
	}
	if offset != nil && len(offset) != len(global) {
		return native.InvalidGlobalOffset
	}
	if local != nil && len(local) != len(global) {
		return native.InvalidWorkGroupSize
	}
	if st := r.checkWaitList(wait); !st.OK() {
		return st
	}
	for _, a := range k.args {
		if a == nil {
			return native.InvalidKernelArgs
		}
	}
	compiled := r.programs[k.program].kernels[k.name]
	if err := compiled.RunWithArgs(k.args...); err != nil {
		return native.OutOfResources
	}
	r.newEvent(ev)
	return native.Success
}

func (r *Runtime) CreateBuffer(context native.Context, flags native.MemFlags, size uintptr, host unsafe.Pointer) (native.Mem, native.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.contexts[context]; !ok {
		return 0, native.InvalidContext
	}
	if size == 0 {
		return 0, native.InvalidBufferSize
	}
	needsHost := flags&(native.MemUseHostPtr|native.MemCopyHostPtr) != 0
	if needsHost != (host != nil) {
		return 0, native.InvalidHostPtr
	}
	if flags&native.MemUseHostPtr != 0 {
		return 0, native.InvalidHostPtr
	}
	mem := r.device.Malloc(int64(size), host, nil)
	if mem == nil {
		return 0, native.MemObjectAllocationFailure
	}
	h := native.Mem(r.newHandle())
	r.mems[h] = &memObject{mem: mem, size: size, maps: make(map[uintptr]*mapping)}
	return h, native.Success
}

func (r *Runtime) ReleaseMemObject(mh native.Mem) native.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.mems[mh]
	if !ok {
		return native.InvalidMemObject
	}
	m.mem.Free()
	delete(r.mems, mh)
	return native.Success
}

func (r *Runtime) EnqueueMapBuffer(queue native.CommandQueue, mh native.Mem, blocking bool, flags native.MapFlags,
	offset, size uintptr, wait []native.Event, ev *native.Event) (unsafe.Pointer, native.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.queues[queue]; !ok {
		return nil, native.InvalidCommandQueue
	}
	m, ok := r.mems[mh]
	if !ok {
		return nil, native.InvalidMemObject
	}
	if flags == 0 || flags&^(native.MapRead|native.MapWrite) != 0 {
		return nil, native.InvalidValue
	}
	if size == 0 || offset+size > m.size {
		return nil, native.InvalidValue
	}
	if st := r.checkWaitList(wait); !st.OK() {
		return nil, st
	}
	shadow := &mapping{words: make([]uint64, (m.size+7)/8), write: flags&native.MapWrite != 0}
	base := unsafe.Pointer(&shadow.words[0])
	// the whole object is read so a partial write-back cannot clobber the rest
	m.mem.CopyTo(base, int64(m.size))
	ptr := unsafe.Add(base, offset)
	m.maps[uintptr(ptr)] = shadow
	r.newEvent(ev)
	return ptr, native.Success
}

func (r *Runtime) EnqueueUnmapMemObject(queue native.CommandQueue, mh native.Mem, ptr unsafe.Pointer,
	wait []native.Event, ev *native.Event) native.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.queues[queue]; !ok {
		return native.InvalidCommandQueue
	}
	m, ok := r.mems[mh]
	if !ok {
		return native.InvalidMemObject
	}
	shadow, ok := m.maps[uintptr(ptr)]
	if !ok {
		return native.InvalidValue
	}
	if st := r.checkWaitList(wait); !st.OK() {
		return st
	}
	if shadow.write {
		m.mem.CopyFrom(unsafe.Pointer(&shadow.words[0]), int64(m.size))
	}
	delete(m.maps, uintptr(ptr))
	r.newEvent(ev)
	return native.Success
}

func (r *Runtime) EnqueueCopyBuffer(queue native.CommandQueue, src, dst native.Mem, srcOffset, dstOffset, size uintptr,
	wait []native.Event, ev *native.Event) native.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.queues[queue]; !ok {
		return native.InvalidCommandQueue
	}
	s, ok := r.mems[src]
	if !ok {
		return native.InvalidMemObject
	}
	d, ok := r.mems[dst]
	if !ok {
		return native.InvalidMemObject
	}
	if size == 0 || srcOffset+size > s.size || dstOffset+size > d.size {
		return native.InvalidValue
	}
	if src == dst && srcOffset < dstOffset+size && dstOffset < srcOffset+size {
		return native.MemCopyOverlap
	}
	if st := r.checkWaitList(wait); !st.OK() {
		return st
	}
	d.mem.CopyDeviceToDevice(int64(dstOffset), s.mem, int64(srcOffset), int64(size))
	r.newEvent(ev)
	return native.Success
}

func (r *Runtime) newEvent(out *native.Event) {
	if out == nil {
		return
	}
	h := native.Event(r.newHandle())
	r.events[h] = struct{}{}
	*out = h
}

func (r *Runtime) checkWaitList(wait []native.Event) native.Status {
	for _, e := range wait {
		if _, ok := r.events[e]; !ok {
			return native.InvalidEventWaitList
		}
	}
	return native.Success
}

// WaitForEvents synchronizes the device; events themselves carry no state.
func (r *Runtime) WaitForEvents(events []native.Event) native.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(events) == 0 {
		return native.InvalidValue
	}
	for _, e := range events {
		if _, ok := r.events[e]; !ok {
			return native.InvalidEvent
		}
	}
	r.device.Finish()
	return native.Success
}

func (r *Runtime) ReleaseEvent(event native.Event) native.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[event]; !ok {
		return native.InvalidEvent
	}
	delete(r.events, event)
	return native.Success
}
