package cl

import (
	"github.com/notargets/clkit/native"
	"unsafe"
)

const accessFlags = native.MemReadWrite | native.MemReadOnly | native.MemWriteOnly

// Buffer is a device memory object holding elements of T. It is copied
// through the queue it is bound to.
//
// A buffer is either unmapped or mapped. While mapped, Ptr and View expose
// the host view and the buffer may not be mapped again or take part in a
// copy. Unmapping invalidates the view.
type Buffer[T any] struct {
	Handle[native.Mem, releaseMem]
	creation
	size  uintptr
	queue Junction[CommandQueue]
	ptr   unsafe.Pointer
	view  []T
}

// CopyOptions control CopyWith. A nil Queue means the bound queue and a zero
// Size means the size of the source buffer.
type CopyOptions struct {
	Queue     *CommandQueue
	Size      uintptr
	SrcOffset uintptr
	DstOffset uintptr
	WaitList  []*Event
	Event     *Event
}

// WrapBuffer adopts an existing memory object of size bytes.
func WrapBuffer[T any](api native.API, h native.Mem, size uintptr, releaseOnDestroy bool) *Buffer[T] {
	b := &Buffer[T]{size: size}
	b.reset(api, h, releaseOnDestroy)
	return b
}

// MallocHost allocates size bytes in host-accessible (pinned) memory. Pinning
// is a hint to the runtime.
func (b *Buffer[T]) MallocHost(c *Context, size uintptr, flags native.MemFlags) error {
	return b.malloc(c, size, flags|native.MemAllocHostPtr)
}

// MallocDevice allocates size bytes of device memory.
func (b *Buffer[T]) MallocDevice(c *Context, size uintptr, flags native.MemFlags) error {
	return b.malloc(c, size, flags)
}

func (b *Buffer[T]) malloc(c *Context, size uintptr, flags native.MemFlags) error {
	if c == nil || !c.Valid() {
		return b.done(native.InvalidContext)
	}
	if flags&accessFlags == 0 {
		flags |= native.MemReadWrite
	}
	h, st := c.API().CreateBuffer(c.Native(), flags, size, nil)
	if !st.OK() {
		b.Release()
		return b.done(st)
	}
	b.Release()
	b.reset(c.API(), h, true)
	b.size = size
	logCreated("buffer", uintptr(h))
	return b.done(st)
}

// Release releases the memory object. A live mapping is dropped with it.
func (b *Buffer[T]) Release() {
	b.ptr, b.view = nil, nil
	b.Handle.Release()
	b.size = 0
}

// Size is the allocation size in bytes.
func (b *Buffer[T]) Size() uintptr { return b.size }

func (b *Buffer[T]) ElemSize() uintptr {
	var v T
	return unsafe.Sizeof(v)
}

// Len is the number of whole elements of T that fit in the buffer.
func (b *Buffer[T]) Len() int {
	es := b.ElemSize()
	if es == 0 {
		return 0
	}
	return int(b.size / es)
}

// Ptr returns the host address of the current mapping, or nil.
func (b *Buffer[T]) Ptr() unsafe.Pointer { return b.ptr }

// View returns the current mapping as a slice, or nil.
func (b *Buffer[T]) View() []T { return b.view }

func (b *Buffer[T]) Mapped() bool { return b.ptr != nil }

func (b *Buffer[T]) BindQueue(q *CommandQueue) { b.queue.Bind(q) }
func (b *Buffer[T]) Queue() *CommandQueue      { return b.queue.Get() }

func (b *Buffer[T]) queueOr(q *CommandQueue) (*CommandQueue, native.Status) {
	if q == nil {
		q = b.queue.Get()
	}
	if q == nil || !q.Valid() {
		return nil, native.InvalidCommandQueue
	}
	return q, native.Success
}

// Map maps the whole buffer for reading and writing and blocks until the
// view is ready. A nil q uses the bound queue.
func (b *Buffer[T]) Map(q *CommandQueue) ([]T, error) {
	return b.MapWith(q, native.MapRead|native.MapWrite, true)
}

func (b *Buffer[T]) MapWith(q *CommandQueue, flags native.MapFlags, blocking bool) ([]T, error) {
	if b.ptr != nil {
		return nil, native.InvalidOperation
	}
	q, st := b.queueOr(q)
	if !st.OK() {
		return nil, st
	}
	if !b.Valid() {
		return nil, native.InvalidMemObject
	}
	ptr, st := b.API().EnqueueMapBuffer(q.Native(), b.Native(), blocking, flags, 0, b.size, nil, nil)
	if !st.OK() {
		return nil, st
	}
	b.ptr = ptr
	if n := b.Len(); n > 0 {
		b.view = unsafe.Slice((*T)(ptr), n)
	}
	return b.view, nil
}

// Unmap releases the host view. It is an error to unmap a buffer that is
// not mapped.
func (b *Buffer[T]) Unmap(q *CommandQueue) error {
	return b.UnmapWithEvent(q, nil)
}

func (b *Buffer[T]) UnmapWithEvent(q *CommandQueue, ev *Event) error {
	if b.ptr == nil {
		return native.InvalidValue
	}
	q, st := b.queueOr(q)
	if !st.OK() {
		return st
	}
	var h native.Event
	st = b.API().EnqueueUnmapMemObject(q.Native(), b.Native(), b.ptr, nil, eventOut(ev, &h))
	if !st.OK() {
		return st
	}
	b.ptr, b.view = nil, nil
	adopt(ev, b.API(), h)
	return nil
}

// CopyTo copies the whole buffer into dst through the bound queue.
func (b *Buffer[T]) CopyTo(dst *Buffer[T]) error {
	return b.CopyWith(dst, CopyOptions{})
}

// CopyRegion copies size bytes (0 for the whole buffer) through the bound
// queue.
func (b *Buffer[T]) CopyRegion(dst *Buffer[T], size, srcOffset, dstOffset uintptr) error {
	return b.CopyWith(dst, CopyOptions{Size: size, SrcOffset: srcOffset, DstOffset: dstOffset})
}

// CopyToOn is CopyRegion on an explicit queue.
func (b *Buffer[T]) CopyToOn(q *CommandQueue, dst *Buffer[T], size, srcOffset, dstOffset uintptr) error {
	if q == nil {
		return native.InvalidCommandQueue
	}
	return b.CopyWith(dst, CopyOptions{Queue: q, Size: size, SrcOffset: srcOffset, DstOffset: dstOffset})
}

func (b *Buffer[T]) CopyWith(dst *Buffer[T], opts CopyOptions) error {
	q, st := b.queueOr(opts.Queue)
	if !st.OK() {
		return st
	}
	if dst == nil || !dst.Valid() || !b.Valid() {
		return native.InvalidMemObject
	}
	if b.ptr != nil || dst.ptr != nil {
		return native.InvalidOperation
	}
	size := opts.Size
	if size == 0 {
		size = b.size
	}
	wait, st := nativeEvents(opts.WaitList)
	if !st.OK() {
		return st
	}
	var h native.Event
	st = b.API().EnqueueCopyBuffer(q.Native(), b.Native(), dst.Native(), opts.SrcOffset, opts.DstOffset, size,
		wait, eventOut(opts.Event, &h))
	if !st.OK() {
		return st
	}
	adopt(opts.Event, b.API(), h)
	return nil
}

// Upload writes src to the start of the buffer through a write mapping.
func (b *Buffer[T]) Upload(q *CommandQueue, src []T) error {
	if len(src) > b.Len() {
		return native.InvalidValue
	}
	view, err := b.MapWith(q, native.MapWrite, true)
	if err != nil {
		return err
	}
	copy(view, src)
	return b.Unmap(q)
}

// Download reads the start of the buffer into dst and returns the number of
// elements copied.
func (b *Buffer[T]) Download(q *CommandQueue, dst []T) (int, error) {
	view, err := b.MapWith(q, native.MapRead, true)
	if err != nil {
		return 0, err
	}
	n := copy(dst, view)
	return n, b.Unmap(q)
}

func (b *Buffer[T]) Move() *Buffer[T] {
	n := &Buffer[T]{}
	b.MoveTo(n)
	return n
}

// MoveTo transfers the memory object, its size, queue binding and any live
// mapping to dst after releasing what dst held. b is left unallocated.
func (b *Buffer[T]) MoveTo(dst *Buffer[T]) {
	if dst == b {
		return
	}
	dst.Release()
	b.Handle.MoveTo(&dst.Handle)
	dst.creation, dst.size, dst.queue, dst.ptr, dst.view = b.creation, b.size, b.queue, b.ptr, b.view
	b.ptr, b.view, b.size = nil, nil, 0
}
