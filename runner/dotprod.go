package runner

import (
	_ "embed"
	"fmt"
	"github.com/notargets/clkit/cl"
	"github.com/notargets/clkit/native"
	"gonum.org/v1/gonum/floats"
)

// DotProductSource is the OpenCL C source of the dotprod kernel. Each work
// group reduces its slice of a*b in local memory and writes one partial sum.
//
//go:embed kernels/dotprod.cl
var DotProductSource string

const dotProductKernel = "dotprod"

// DotProduct computes a·b on the device. The vectors live in pinned buffers
// filled through mappings; the kernel leaves one partial sum per work group
// and the partials are summed on the host. local must be a power of two.
func (kr *Runner) DotProduct(a, b []float32, local int) (float32, error) {
	n := len(a)
	switch {
	case n == 0 || n != len(b):
		return 0, fmt.Errorf("dot product: vector lengths %d and %d", len(a), len(b))
	case local <= 0 || local&(local-1) != 0:
		return 0, fmt.Errorf("dot product: work-group size %d is not a power of two", local)
	}

	kernel, err := kr.dotProductKernel()
	if err != nil {
		return 0, err
	}

	groups := (n + local - 1) / local
	var bufA, bufB, partial cl.Buffer[float32]
	defer bufA.Release()
	defer bufB.Release()
	defer partial.Release()
	for _, s := range []struct {
		buf   *cl.Buffer[float32]
		n     int
		flags native.MemFlags
	}{
		{&bufA, n, native.MemReadOnly},
		{&bufB, n, native.MemReadOnly},
		{&partial, groups, native.MemWriteOnly},
	} {
		if err := s.buf.MallocHost(&kr.Context, uintptr(s.n)*s.buf.ElemSize(), s.flags); err != nil {
			return 0, fmt.Errorf("dot product: allocate: %w", err)
		}
		s.buf.BindQueue(&kr.Queue)
	}

	if err := bufA.Upload(nil, a); err != nil {
		return 0, fmt.Errorf("dot product: write a: %w", err)
	}
	if err := bufB.Upload(nil, b); err != nil {
		return 0, fmt.Errorf("dot product: write b: %w", err)
	}

	if err := kernel.SetArgs(&partial, &bufA, &bufB, uint32(n), cl.LocalFor[float32](local)); err != nil {
		return 0, fmt.Errorf("dot product: arguments: %w", err)
	}
	global := []uintptr{uintptr(groups * local)}
	if err := kernel.Run(global, []uintptr{uintptr(local)}); err != nil {
		return 0, fmt.Errorf("dot product: run: %w", err)
	}
	if err := kr.Queue.Finish(); err != nil {
		return 0, fmt.Errorf("dot product: finish: %w", err)
	}

	sums := make([]float32, groups)
	if _, err := partial.Download(nil, sums); err != nil {
		return 0, fmt.Errorf("dot product: read partial sums: %w", err)
	}
	wide := make([]float64, groups)
	for i, v := range sums {
		wide[i] = float64(v)
	}
	return float32(floats.Sum(wide)), nil
}

func (kr *Runner) dotProductKernel() (*cl.Kernel, error) {
	if k, ok := kr.Kernels[dotProductKernel]; ok {
		return k, nil
	}
	k, err := kr.BuildKernel(DotProductSource, dotProductKernel)
	if err != nil {
		return nil, fmt.Errorf("dot product: %w", err)
	}
	return k, nil
}
