package simcl

import (
	"fmt"
	"github.com/notargets/clkit/native"
	"regexp"
	"strings"
	"unsafe"
)

var (
	kernelDecl = regexp.MustCompile(`__kernel\s+void\s+(\w+)\s*\(([^)]*)\)`)
	errorDecl  = regexp.MustCompile(`(?m)^\s*#error\s*(.*)$`)
	localQual  = regexp.MustCompile(`\b(?:__)?local\b`)
)

type program struct {
	context  native.Context
	source   string
	built    bool
	buildLog string
	params   map[string][]bool // kernel name -> per parameter, declared as a memory object
}

type argSlot struct {
	set       bool
	bytes     []byte
	localSize uintptr
}

type kernel struct {
	name    string
	program native.Program
	args    []argSlot
	mems    []bool
	impl    KernelFunc
}

// memParams reports, for each declared parameter, whether it is a pointer to
// global or constant memory and so takes a memory object handle.
func memParams(list string) []bool {
	list = strings.TrimSpace(list)
	if list == "" || list == "void" {
		return nil
	}
	decls := strings.Split(list, ",")
	mems := make([]bool, len(decls))
	for i, d := range decls {
		mems[i] = strings.Contains(d, "*") && !localQual.MatchString(d)
	}
	return mems
}

func (r *Runtime) CreateProgramWithSource(ch native.Context, source string) (native.Program, native.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st := r.record("CreateProgramWithSource"); !st.OK() {
		return 0, st
	}
	if _, ok := r.contexts[ch]; !ok {
		return 0, native.InvalidContext
	}
	if strings.TrimSpace(source) == "" {
		return 0, native.InvalidValue
	}
	h := native.Program(r.newHandle())
	r.programs[h] = &program{context: ch, source: source}
	return h, native.Success
}

// BuildProgram "compiles" by scanning the source for kernel declarations. A
// #error directive or a kernel without a registered implementation fails the
// build and leaves a log behind.
func (r *Runtime) BuildProgram(ph native.Program, options string) native.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st := r.record("BuildProgram"); !st.OK() {
		return st
	}
	p, ok := r.programs[ph]
	if !ok {
		return native.InvalidProgram
	}
	if strings.Contains(options, "-Werror-unknown") {
		return native.InvalidBuildOptions
	}
	var log strings.Builder
	if m := errorDecl.FindStringSubmatch(p.source); m != nil {
		fmt.Fprintf(&log, "error: %s\n", strings.TrimSpace(m[1]))
	}
	params := make(map[string][]bool)
	for _, m := range kernelDecl.FindAllStringSubmatch(p.source, -1) {
		name := m[1]
		if _, ok := r.impls[name]; !ok {
			fmt.Fprintf(&log, "error: kernel '%s' has no simulated implementation\n", name)
			continue
		}
		params[name] = memParams(m[2])
	}
	p.buildLog = log.String()
	if p.buildLog != "" {
		p.built = false
		return native.BuildProgramFailure
	}
	p.params = params
	p.built = true
	return native.Success
}

func (r *Runtime) ProgramBuildLog(ph native.Program) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("ProgramBuildLog")
	if p, ok := r.programs[ph]; ok {
		return p.buildLog
	}
	return ""
}

func (r *Runtime) ReleaseProgram(h native.Program) native.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st := r.record("ReleaseProgram"); !st.OK() {
		return st
	}
	if _, ok := r.programs[h]; !ok {
		return native.InvalidProgram
	}
	delete(r.programs, h)
	r.released[uintptr(h)]++
	return native.Success
}

func (r *Runtime) CreateKernel(ph native.Program, name string) (native.Kernel, native.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st := r.record("CreateKernel"); !st.OK() {
		return 0, st
	}
	p, ok := r.programs[ph]
	if !ok {
		return 0, native.InvalidProgram
	}
	if !p.built {
		return 0, native.InvalidProgramExecutable
	}
	mems, ok := p.params[name]
	if !ok {
		return 0, native.InvalidKernelName
	}
	h := native.Kernel(r.newHandle())
	r.kernels[h] = &kernel{
		name:    name,
		program: ph,
		args:    make([]argSlot, len(mems)),
		mems:    mems,
		impl:    r.impls[name],
	}
	return h, native.Success
}

func (r *Runtime) ReleaseKernel(h native.Kernel) native.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st := r.record("ReleaseKernel"); !st.OK() {
		return st
	}
	if _, ok := r.kernels[h]; !ok {
		return native.InvalidKernel
	}
	delete(r.kernels, h)
	r.released[uintptr(h)]++
	return native.Success
}

func (r *Runtime) SetKernelArg(kh native.Kernel, index uint32, size uintptr, value unsafe.Pointer) native.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.setKernelArg(kh, index, size, value)
	r.setArgCalls = append(r.setArgCalls, SetArgCall{
		Kernel: kh, Index: index, Size: size, Nil: value == nil, Status: st,
	})
	return st
}

func (r *Runtime) setKernelArg(kh native.Kernel, index uint32, size uintptr, value unsafe.Pointer) native.Status {
	if st := r.record("SetKernelArg"); !st.OK() {
		return st
	}
	if st, ok := r.argFailures[index]; ok {
		return st
	}
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
	slot := &k.args[index]
	if value == nil {
		*slot = argSlot{set: true, localSize: size}
		return native.Success
	}
	b := make([]byte, size)
	copy(b, unsafe.Slice((*byte)(value), size))
	*slot = argSlot{set: true, bytes: b}
	return native.Success
}

func (r *Runtime) EnqueueNDRangeKernel(qh native.CommandQueue, kh native.Kernel, offset, global, local []uintptr,
	waitList []native.Event, ev *native.Event) native.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st := r.record("EnqueueNDRangeKernel"); !st.OK() {
		return st
	}
	if _, ok := r.queues[qh]; !ok {
		return native.InvalidCommandQueue
	}
	k, ok := r.kernels[kh]
	if !ok {
		return native.InvalidKernel
	}
	dim := len(global)
	if dim < 1 || dim > 3 {
		return native.InvalidWorkDimension
	}
	for _, g := range global {
		if g == 0 {
			return native.InvalidGlobalWorkSize
		}
	}
	if offset != nil && len(offset) != dim {
		return native.InvalidGlobalOffset
	}
	if local != nil {
		if len(local) != dim {
			return native.InvalidWorkGroupSize
		}
		for i := range local {
			if local[i] == 0 || global[i]%local[i] != 0 {
				return native.InvalidWorkGroupSize
			}
		}
	}
	if st := r.checkWaitList(waitList); !st.OK() {
		return st
	}
	inv := &Invocation{
		Kernel: k.name,
		Global: append([]uintptr(nil), global...),
		Local:  append([]uintptr(nil), local...),
		Offset: append([]uintptr(nil), offset...),
		Args:   make([]Arg, len(k.args)),
	}
	for i, slot := range k.args {
		if !slot.set {
			return native.InvalidKernelArgs
		}
		inv.Args[i] = r.resolveArg(slot, k.mems[i])
	}
	if st := k.impl(inv); !st.OK() {
		return st
	}
	r.newEvent(ev)
	return native.Success
}

// resolveArg turns a stored argument back into something a kernel function
// can use. Only parameters declared as global or constant pointers are looked
// up as memory objects; scalars stay bytes whatever their value.
func (r *Runtime) resolveArg(slot argSlot, mem bool) Arg {
	a := Arg{Bytes: slot.bytes, LocalSize: slot.localSize}
	if mem && len(slot.bytes) == int(unsafe.Sizeof(native.Mem(0))) {
		var h native.Mem
		copy(unsafe.Slice((*byte)(unsafe.Pointer(&h)), unsafe.Sizeof(h)), slot.bytes)
		if m, ok := r.mems[h]; ok {
			a.mem = m
		}
	}
	return a
}
