package cl

import (
	"github.com/notargets/clkit/native"
)

// Kernel is one entry point of a built program. It runs on the queue it is
// bound to.
type Kernel struct {
	Handle[native.Kernel, releaseKernel]
	creation
	name  string
	queue Junction[CommandQueue]
}

// RunOptions are the optional parts of an enqueue. A non-nil Event is
// filled with the completion event of the launch.
type RunOptions struct {
	Offset   []uintptr
	WaitList []*Event
	Event    *Event
}

// WrapKernel adopts an existing kernel handle.
func WrapKernel(api native.API, h native.Kernel, releaseOnDestroy bool) *Kernel {
	k := &Kernel{}
	k.reset(api, h, releaseOnDestroy)
	return k
}

// Create resolves the entry point called name in p.
func (k *Kernel) Create(p *Program, name string) error {
	if p == nil || !p.Valid() {
		return k.done(native.InvalidProgram)
	}
	h, st := p.API().CreateKernel(p.Native(), name)
	if !st.OK() {
		k.Release()
		return k.done(st)
	}
	k.reset(p.API(), h, true)
	k.name = name
	logCreated("kernel", uintptr(h))
	return k.done(st)
}

func (k *Kernel) Name() string { return k.name }

func (k *Kernel) BindQueue(q *CommandQueue) { k.queue.Bind(q) }
func (k *Kernel) Queue() *CommandQueue      { return k.queue.Get() }

// SetArgs binds args to parameters 0..len(args)-1. See SetKernelArgs.
func (k *Kernel) SetArgs(args ...any) error {
	return k.SetArgsFrom(0, args...)
}

// SetArgsFrom binds args to parameters start, start+1, ...
func (k *Kernel) SetArgsFrom(start uint32, args ...any) error {
	if !k.Valid() {
		return native.InvalidKernel
	}
	return SetKernelArgs(k.API(), k.Native(), start, args...)
}

// SetArg sets the single parameter at index and leaves the others alone.
func (k *Kernel) SetArg(index uint32, arg any) error {
	return k.SetArgsFrom(index, arg)
}

// Run enqueues k over global work items in work groups of local (nil lets
// the runtime choose). The dimensionality is len(global).
func (k *Kernel) Run(global, local []uintptr) error {
	return k.RunWithOptions(global, local, RunOptions{})
}

func (k *Kernel) RunWithOptions(global, local []uintptr, opts RunOptions) error {
	q := k.queue.Get()
	if q == nil || !q.Valid() {
		return native.InvalidCommandQueue
	}
	if !k.Valid() {
		return native.InvalidKernel
	}
	wait, st := nativeEvents(opts.WaitList)
	if !st.OK() {
		return st
	}
	var ev native.Event
	api := k.API()
	st = api.EnqueueNDRangeKernel(q.Native(), k.Native(), opts.Offset, global, local, wait, eventOut(opts.Event, &ev))
	if !st.OK() {
		return st
	}
	adopt(opts.Event, api, ev)
	return nil
}

func (k *Kernel) Move() *Kernel {
	n := &Kernel{creation: k.creation, name: k.name, queue: k.queue}
	k.MoveTo(&n.Handle)
	return n
}
