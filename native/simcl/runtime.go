// Package simcl is an in-process implementation of native.API.
//
// Kernels are Go functions registered by name; a program builds when every
// kernel declared in its source has an implementation. Work is executed
// synchronously in enqueue order, so every event handed out is already
// complete. The runtime records calls and releases so tests can check the
// layers above it.
package simcl

import (
	"github.com/notargets/clkit/native"
	"sync"
)

const maxAlloc = 1 << 30

// DeviceSpec describes one simulated device.
type DeviceSpec struct {
	Name string
	Type native.DeviceType
}

// PlatformSpec describes one simulated platform and its devices.
type PlatformSpec struct {
	Name    string
	Devices []DeviceSpec
}

// DefaultPlatforms is used by New when no platform is given.
var DefaultPlatforms = []PlatformSpec{
	{
		Name: "clkit simulated platform",
		Devices: []DeviceSpec{
			{Name: "sim-gpu0", Type: native.DeviceTypeGPU | native.DeviceTypeDefault},
			{Name: "sim-cpu0", Type: native.DeviceTypeCPU},
		},
	},
}

// SetArgCall is one recorded SetKernelArg invocation.
type SetArgCall struct {
	Kernel native.Kernel
	Index  uint32
	Size   uintptr
	Nil    bool
	Status native.Status
}

type platform struct {
	name    string
	devices []native.Device
}

type device struct {
	name     string
	typ      native.DeviceType
	platform native.Platform
}

type context struct {
	platform native.Platform
	devices  []native.Device
}

type queue struct {
	context native.Context
	device  native.Device
}

type event struct{}

// Runtime implements native.API. The zero value is not usable; call New.
type Runtime struct {
	mu sync.Mutex

	next uintptr

	platformOrder []native.Platform
	platforms     map[native.Platform]*platform
	devices       map[native.Device]*device
	contexts      map[native.Context]*context
	queues        map[native.CommandQueue]*queue
	programs      map[native.Program]*program
	kernels       map[native.Kernel]*kernel
	mems          map[native.Mem]*memObject
	events        map[native.Event]*event

	impls map[string]KernelFunc

	calls       map[string]int
	released    map[uintptr]int
	setArgCalls []SetArgCall
	argFailures map[uint32]native.Status
	injected    map[string]native.Status
}

var _ native.API = (*Runtime)(nil)

// New creates a runtime with the given platforms, or DefaultPlatforms when
// none are given. The reference kernels are registered.
func New(platforms ...PlatformSpec) *Runtime {
	if len(platforms) == 0 {
		platforms = DefaultPlatforms
	}
	r := &Runtime{
		next:        0x1000,
		platforms:   make(map[native.Platform]*platform),
		devices:     make(map[native.Device]*device),
		contexts:    make(map[native.Context]*context),
		queues:      make(map[native.CommandQueue]*queue),
		programs:    make(map[native.Program]*program),
		kernels:     make(map[native.Kernel]*kernel),
		mems:        make(map[native.Mem]*memObject),
		events:      make(map[native.Event]*event),
		impls:       make(map[string]KernelFunc),
		calls:       make(map[string]int),
		released:    make(map[uintptr]int),
		argFailures: make(map[uint32]native.Status),
		injected:    make(map[string]native.Status),
	}
	for _, ps := range platforms {
		pid := native.Platform(r.newHandle())
		p := &platform{name: ps.Name}
		for _, ds := range ps.Devices {
			did := native.Device(r.newHandle())
			r.devices[did] = &device{name: ds.Name, typ: ds.Type, platform: pid}
			p.devices = append(p.devices, did)
		}
		r.platforms[pid] = p
		r.platformOrder = append(r.platformOrder, pid)
	}
	for name, fn := range referenceKernels {
		r.impls[name] = fn
	}
	return r
}

// newHandle hands out handles from a single sequence so that no two objects
// of any kind share a value.
func (r *Runtime) newHandle() uintptr {
	h := r.next
	r.next += 0x10
	return h
}

// record counts a call and returns an injected failure for it, if any.
func (r *Runtime) record(call string) native.Status {
	r.calls[call]++
	if st, ok := r.injected[call]; ok {
		delete(r.injected, call)
		return st
	}
	return native.Success
}

// RegisterKernel makes fn available to programs declaring a kernel called name.
func (r *Runtime) RegisterKernel(name string, fn KernelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.impls[name] = fn
}

// Inject makes the next call to the named API method fail with st.
func (r *Runtime) Inject(call string, st native.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.injected[call] = st
}

// FailArg makes every SetKernelArg at index fail with st after it is recorded.
func (r *Runtime) FailArg(index uint32, st native.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.argFailures[index] = st
}

// Calls returns how many times the named API method was invoked.
func (r *Runtime) Calls(call string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[call]
}

// Released returns how many times handle h was successfully released.
func (r *Runtime) Released(h uintptr) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released[h]
}

// SetArgCalls returns a copy of the recorded SetKernelArg calls.
func (r *Runtime) SetArgCalls() []SetArgCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SetArgCall, len(r.setArgCalls))
	copy(out, r.setArgCalls)
	return out
}

// ResetRecording clears call counts and recorded argument calls.
func (r *Runtime) ResetRecording() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = make(map[string]int)
	r.setArgCalls = nil
}

// Live returns the number of live objects that need a release.
func (r *Runtime) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.contexts) + len(r.queues) + len(r.programs) + len(r.kernels) +
		len(r.mems) + len(r.events)
}

func (r *Runtime) GetPlatformIDs(max int) ([]native.Platform, native.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st := r.record("GetPlatformIDs"); !st.OK() {
		return nil, st
	}
	if max <= 0 {
		return nil, native.InvalidValue
	}
	if len(r.platformOrder) == 0 {
		return nil, native.InvalidPlatform
	}
	n := min(max, len(r.platformOrder))
	out := make([]native.Platform, n)
	copy(out, r.platformOrder[:n])
	return out, native.Success
}

func (r *Runtime) GetDeviceIDs(pid native.Platform, deviceType native.DeviceType, max int) ([]native.Device, native.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st := r.record("GetDeviceIDs"); !st.OK() {
		return nil, st
	}
	p, ok := r.platforms[pid]
	if !ok {
		return nil, native.InvalidPlatform
	}
	if max <= 0 {
		return nil, native.InvalidValue
	}
	if deviceType == 0 {
		return nil, native.InvalidDeviceType
	}
	var out []native.Device
	for _, did := range p.devices {
		if r.devices[did].typ&deviceType != 0 {
			out = append(out, did)
			if len(out) == max {
				break
			}
		}
	}
	if len(out) == 0 {
		return nil, native.DeviceNotFound
	}
	return out, native.Success
}

func (r *Runtime) DeviceName(did native.Device) (string, native.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("DeviceName")
	d, ok := r.devices[did]
	if !ok {
		return "", native.InvalidDevice
	}
	return d.name, native.Success
}

func (r *Runtime) CreateContext(pid native.Platform, devices []native.Device) (native.Context, native.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st := r.record("CreateContext"); !st.OK() {
		return 0, st
	}
	if _, ok := r.platforms[pid]; !ok {
		return 0, native.InvalidPlatform
	}
	if len(devices) == 0 {
		return 0, native.InvalidValue
	}
	for _, did := range devices {
		d, ok := r.devices[did]
		if !ok || d.platform != pid {
			return 0, native.InvalidDevice
		}
	}
	h := native.Context(r.newHandle())
	r.contexts[h] = &context{platform: pid, devices: append([]native.Device(nil), devices...)}
	return h, native.Success
}

func (r *Runtime) ReleaseContext(h native.Context) native.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st := r.record("ReleaseContext"); !st.OK() {
		return st
	}
	if _, ok := r.contexts[h]; !ok {
		return native.InvalidContext
	}
	delete(r.contexts, h)
	r.released[uintptr(h)]++
	return native.Success
}

func (r *Runtime) CreateCommandQueue(ch native.Context, did native.Device) (native.CommandQueue, native.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st := r.record("CreateCommandQueue"); !st.OK() {
		return 0, st
	}
	c, ok := r.contexts[ch]
	if !ok {
		return 0, native.InvalidContext
	}
	member := false
	for _, d := range c.devices {
		if d == did {
			member = true
			break
		}
	}
	if !member {
		return 0, native.InvalidDevice
	}
	h := native.CommandQueue(r.newHandle())
	r.queues[h] = &queue{context: ch, device: did}
	return h, native.Success
}

func (r *Runtime) ReleaseCommandQueue(h native.CommandQueue) native.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st := r.record("ReleaseCommandQueue"); !st.OK() {
		return st
	}
	if _, ok := r.queues[h]; !ok {
		return native.InvalidCommandQueue
	}
	delete(r.queues, h)
	r.released[uintptr(h)]++
	return native.Success
}

// Finish returns immediately; simulated work completes at enqueue time.
func (r *Runtime) Finish(h native.CommandQueue) native.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st := r.record("Finish"); !st.OK() {
		return st
	}
	if _, ok := r.queues[h]; !ok {
		return native.InvalidCommandQueue
	}
	return native.Success
}

// newEvent fills out with a completed event when the caller asked for one.
func (r *Runtime) newEvent(out *native.Event) {
	if out == nil {
		return
	}
	h := native.Event(r.newHandle())
	r.events[h] = &event{}
	*out = h
}

func (r *Runtime) checkWaitList(waitList []native.Event) native.Status {
	for _, e := range waitList {
		if _, ok := r.events[e]; !ok {
			return native.InvalidEventWaitList
		}
	}
	return native.Success
}

func (r *Runtime) WaitForEvents(events []native.Event) native.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st := r.record("WaitForEvents"); !st.OK() {
		return st
	}
	if len(events) == 0 {
		return native.InvalidValue
	}
	for _, e := range events {
		if _, ok := r.events[e]; !ok {
			return native.InvalidEvent
		}
	}
	return native.Success
}

func (r *Runtime) ReleaseEvent(h native.Event) native.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st := r.record("ReleaseEvent"); !st.OK() {
		return st
	}
	if _, ok := r.events[h]; !ok {
		return native.InvalidEvent
	}
	delete(r.events, h)
	r.released[uintptr(h)]++
	return native.Success
}
