package simcl

import (
	"github.com/notargets/clkit/native"
	"gonum.org/v1/gonum/blas/blas32"
	"unsafe"
)

// KernelFunc executes one enqueued NDRange. It runs with the runtime lock
// held and must not call back into the runtime.
type KernelFunc func(inv *Invocation) native.Status

// Invocation is the launch geometry and resolved arguments of an enqueue.
type Invocation struct {
	Kernel string
	Global []uintptr
	Local  []uintptr
	Offset []uintptr
	Args   []Arg
}

// GroupSize returns the work-group size in dimension d. Without an explicit
// local size the whole range is one group.
func (inv *Invocation) GroupSize(d int) uintptr {
	if len(inv.Local) > d {
		return inv.Local[d]
	}
	return inv.Global[d]
}

// Base returns the global offset in dimension d.
func (inv *Invocation) Base(d int) uintptr {
	if len(inv.Offset) > d {
		return inv.Offset[d]
	}
	return 0
}

// Arg is one kernel argument as the kernel sees it: a buffer, a local
// allocation, or the raw bytes of a scalar.
type Arg struct {
	Bytes     []byte
	LocalSize uintptr
	mem       *memObject
}

// IsBuffer reports whether the argument names a memory object.
func (a Arg) IsBuffer() bool { return a.mem != nil }

// IsLocal reports whether the argument is a local memory allocation.
func (a Arg) IsLocal() bool { return a.Bytes == nil && a.LocalSize > 0 }

// Float32s views a buffer argument as float32 elements. It returns nil for
// anything else.
func (a Arg) Float32s() []float32 {
	if a.mem == nil || len(a.mem.data) < 4 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&a.mem.data[0])), len(a.mem.data)/4)
}

// Buffer returns the storage of a buffer argument, or nil.
func (a Arg) Buffer() []byte {
	if a.mem == nil {
		return nil
	}
	return a.mem.data
}

func (a Arg) Uint32() (uint32, bool)   { return scalar[uint32](a.Bytes) }
func (a Arg) Int32() (int32, bool)     { return scalar[int32](a.Bytes) }
func (a Arg) Float32() (float32, bool) { return scalar[float32](a.Bytes) }

func scalar[T uint32 | int32 | float32](b []byte) (T, bool) {
	var v T
	if len(b) != int(unsafe.Sizeof(v)) {
		return v, false
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&v)), len(b)), b)
	return v, true
}

var referenceKernels = map[string]KernelFunc{
	"dotprod":  dotprod,
	"saxpy":    saxpy,
	"fill":     fill,
	"copy_f32": copyF32,
}

// span clips the 1D global range of inv to [0,n).
func span(inv *Invocation, n int) (lo, hi int) {
	lo = int(inv.Base(0))
	hi = min(lo+int(inv.Global[0]), n)
	if lo > hi {
		lo = hi
	}
	return lo, hi
}

func vec(x []float32) blas32.Vector {
	return blas32.Vector{N: len(x), Data: x, Inc: 1}
}

// dotprod(__global float* partial, __global const float* a,
// __global const float* b, const uint n, __local float* scratch)
//
// Each work group writes the sum of a[i]*b[i] over its range to
// partial[group].
func dotprod(inv *Invocation) native.Status {
	if len(inv.Args) != 5 || len(inv.Global) != 1 {
		return native.InvalidKernelArgs
	}
	partial, a, b := inv.Args[0].Float32s(), inv.Args[1].Float32s(), inv.Args[2].Float32s()
	n, ok := inv.Args[3].Uint32()
	if partial == nil || a == nil || b == nil || !ok || !inv.Args[4].IsLocal() {
		return native.InvalidArgValue
	}
	group := inv.GroupSize(0)
	if inv.Args[4].LocalSize < group*4 {
		return native.InvalidArgSize
	}
	groups := int(inv.Global[0] / group)
	if len(partial) < groups {
		return native.OutOfResources
	}
	count := min(int(n), len(a), len(b))
	base := int(inv.Base(0))
	for g := 0; g < groups; g++ {
		lo := base + g*int(group)
		hi := min(lo+int(group), count)
		if lo >= hi {
			partial[g] = 0
			continue
		}
		partial[g] = blas32.Dot(vec(a[lo:hi]), vec(b[lo:hi]))
	}
	return native.Success
}

// saxpy(__global float* y, __global const float* x, const float alpha,
// const uint n)
func saxpy(inv *Invocation) native.Status {
	if len(inv.Args) != 4 || len(inv.Global) != 1 {
		return native.InvalidKernelArgs
	}
	y, x := inv.Args[0].Float32s(), inv.Args[1].Float32s()
	alpha, ok1 := inv.Args[2].Float32()
	n, ok2 := inv.Args[3].Uint32()
	if y == nil || x == nil || !ok1 || !ok2 {
		return native.InvalidArgValue
	}
	lo, hi := span(inv, min(int(n), len(x), len(y)))
	if lo < hi {
		blas32.Axpy(alpha, vec(x[lo:hi]), vec(y[lo:hi]))
	}
	return native.Success
}

// fill(__global float* dst, const float value, const uint n)
func fill(inv *Invocation) native.Status {
	if len(inv.Args) != 3 || len(inv.Global) != 1 {
		return native.InvalidKernelArgs
	}
	dst := inv.Args[0].Float32s()
	value, ok1 := inv.Args[1].Float32()
	n, ok2 := inv.Args[2].Uint32()
	if dst == nil || !ok1 || !ok2 {
		return native.InvalidArgValue
	}
	lo, hi := span(inv, min(int(n), len(dst)))
	for i := lo; i < hi; i++ {
		dst[i] = value
	}
	return native.Success
}

// copy_f32(__global float* dst, __global const float* src, const uint n)
func copyF32(inv *Invocation) native.Status {
	if len(inv.Args) != 3 || len(inv.Global) != 1 {
		return native.InvalidKernelArgs
	}
	dst, src := inv.Args[0].Float32s(), inv.Args[1].Float32s()
	n, ok := inv.Args[2].Uint32()
	if dst == nil || src == nil || !ok {
		return native.InvalidArgValue
	}
	lo, hi := span(inv, min(int(n), len(dst), len(src)))
	if lo < hi {
		blas32.Copy(vec(src[lo:hi]), vec(dst[lo:hi]))
	}
	return native.Success
}
