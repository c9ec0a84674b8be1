package simcl

import (
	"github.com/notargets/clkit/native"
	"unsafe"
)

type memObject struct {
	context native.Context
	flags   native.MemFlags
	words   []uint64 // backing store, word sized for alignment
	data    []byte
	maps    map[uintptr]int
}

func newMemObject(ch native.Context, flags native.MemFlags, size uintptr) *memObject {
	words := make([]uint64, (size+7)/8)
	data := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), size)
	return &memObject{context: ch, flags: flags, words: words, data: data, maps: make(map[uintptr]int)}
}

// pinned reports whether the object was allocated with MemAllocHostPtr.
func (m *memObject) pinned() bool {
	return m.flags&native.MemAllocHostPtr != 0
}

func (r *Runtime) CreateBuffer(ch native.Context, flags native.MemFlags, size uintptr, host unsafe.Pointer) (native.Mem, native.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st := r.record("CreateBuffer"); !st.OK() {
		return 0, st
	}
	if _, ok := r.contexts[ch]; !ok {
		return 0, native.InvalidContext
	}
	if size == 0 {
		return 0, native.InvalidBufferSize
	}
	if size > maxAlloc {
		return 0, native.MemObjectAllocationFailure
	}
	access := flags & (native.MemReadWrite | native.MemReadOnly | native.MemWriteOnly)
	if access&(access-1) != 0 {
		return 0, native.InvalidValue
	}
	needsHost := flags&(native.MemUseHostPtr|native.MemCopyHostPtr) != 0
	if needsHost != (host != nil) {
		return 0, native.InvalidHostPtr
	}
	if flags&native.MemUseHostPtr != 0 && flags&(native.MemAllocHostPtr|native.MemCopyHostPtr) != 0 {
		return 0, native.InvalidValue
	}
	m := newMemObject(ch, flags, size)
	if needsHost {
		copy(m.data, unsafe.Slice((*byte)(host), size))
	}
	h := native.Mem(r.newHandle())
	r.mems[h] = m
	return h, native.Success
}

func (r *Runtime) ReleaseMemObject(h native.Mem) native.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st := r.record("ReleaseMemObject"); !st.OK() {
		return st
	}
	if _, ok := r.mems[h]; !ok {
		return native.InvalidMemObject
	}
	delete(r.mems, h)
	r.released[uintptr(h)]++
	return native.Success
}

// EnqueueMapBuffer hands out a pointer straight into the backing store, the
// way a unified-memory device would.
func (r *Runtime) EnqueueMapBuffer(qh native.CommandQueue, mh native.Mem, blocking bool, flags native.MapFlags,
	offset, size uintptr, waitList []native.Event, ev *native.Event) (unsafe.Pointer, native.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st := r.record("EnqueueMapBuffer"); !st.OK() {
		return nil, st
	}
	q, ok := r.queues[qh]
	if !ok {
		return nil, native.InvalidCommandQueue
	}
	m, ok := r.mems[mh]
	if !ok {
		return nil, native.InvalidMemObject
	}
	if m.context != q.context {
		return nil, native.InvalidContext
	}
	if flags&^(native.MapRead|native.MapWrite) != 0 || flags == 0 {
		return nil, native.InvalidValue
	}
	if size == 0 || offset+size > uintptr(len(m.data)) {
		return nil, native.InvalidValue
	}
	if st := r.checkWaitList(waitList); !st.OK() {
		return nil, st
	}
	ptr := unsafe.Pointer(&m.data[offset])
	m.maps[uintptr(ptr)]++
	r.newEvent(ev)
	return ptr, native.Success
}

func (r *Runtime) EnqueueUnmapMemObject(qh native.CommandQueue, mh native.Mem, ptr unsafe.Pointer,
	waitList []native.Event, ev *native.Event) native.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st := r.record("EnqueueUnmapMemObject"); !st.OK() {
		return st
	}
	if _, ok := r.queues[qh]; !ok {
		return native.InvalidCommandQueue
	}
	m, ok := r.mems[mh]
	if !ok {
		return native.InvalidMemObject
	}
	key := uintptr(ptr)
	if m.maps[key] == 0 {
		return native.InvalidValue
	}
	if st := r.checkWaitList(waitList); !st.OK() {
		return st
	}
	if m.maps[key]--; m.maps[key] == 0 {
		delete(m.maps, key)
	}
	r.newEvent(ev)
	return native.Success
}

func (r *Runtime) EnqueueCopyBuffer(qh native.CommandQueue, src, dst native.Mem, srcOffset, dstOffset, size uintptr,
	waitList []native.Event, ev *native.Event) native.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st := r.record("EnqueueCopyBuffer"); !st.OK() {
		return st
	}
	q, ok := r.queues[qh]
	if !ok {
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
	if s.context != q.context || d.context != q.context {
		return native.InvalidContext
	}
	if size == 0 || srcOffset+size > uintptr(len(s.data)) || dstOffset+size > uintptr(len(d.data)) {
		return native.InvalidValue
	}
	if src == dst && srcOffset < dstOffset+size && dstOffset < srcOffset+size {
		return native.MemCopyOverlap
	}
	if st := r.checkWaitList(waitList); !st.OK() {
		return st
	}
	copy(d.data[dstOffset:dstOffset+size], s.data[srcOffset:srcOffset+size])
	r.newEvent(ev)
	return native.Success
}

// Contents returns a copy of the bytes held by a memory object, bypassing the
// queue. It is meant for assertions in tests.
func (r *Runtime) Contents(h native.Mem) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.mems[h]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), m.data...), true
}

// Pinned reports whether the memory object was allocated host-accessible.
func (r *Runtime) Pinned(h native.Mem) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.mems[h]
	return ok && m.pinned()
}

// Mapped returns the number of outstanding mappings of a memory object.
func (r *Runtime) Mapped(h native.Mem) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.mems[h]
	if !ok {
		return 0
	}
	n := 0
	for _, c := range m.maps {
		n += c
	}
	return n
}
