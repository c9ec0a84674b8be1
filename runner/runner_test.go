package runner

import (
	"errors"
	"github.com/notargets/clkit/cl"
	"github.com/notargets/clkit/native"
	"github.com/notargets/clkit/native/simcl"
	"github.com/notargets/clkit/runner/builder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
)

const saxpySource = `
__kernel void saxpy(__global float* y, __global const float* x, const float alpha, const uint n)
{
    uint i = get_global_id(0);
    if (i < n) y[i] += alpha * x[i];
}
`

const fillSource = `
__kernel void fill(__global float* dst, const float value, const uint n)
{
    uint i = get_global_id(0);
    if (i < n) dst[i] = value;
}
`

const copySource = `
__kernel void copy_f32(__global float* dst, __global const float* src, const uint n)
{
    uint i = get_global_id(0);
    if (i < n) dst[i] = src[i];
}
`

func newRunner(t *testing.T) (*Runner, *simcl.Runtime) {
	t.Helper()
	rt := simcl.New()
	kr, err := Setup(rt, builder.Config{})
	require.NoError(t, err)
	t.Cleanup(kr.Free)
	return kr, rt
}

func TestRunner_Setup(t *testing.T) {
	t.Run("DefaultDevice", func(t *testing.T) {
		kr, _ := newRunner(t)
		assert.Equal(t, "sim-gpu0", kr.DeviceName())
		assert.True(t, kr.Context.Valid())
		assert.True(t, kr.Queue.Valid())
		assert.Same(t, &kr.Device, kr.Queue.Device())
	})

	t.Run("CPU", func(t *testing.T) {
		kr, err := Setup(simcl.New(), builder.Config{DeviceType: native.DeviceTypeCPU})
		require.NoError(t, err)
		defer kr.Free()
		assert.Equal(t, "sim-cpu0", kr.DeviceName())
	})

	t.Run("NilAPI", func(t *testing.T) {
		_, err := Setup(nil, builder.Config{})
		assert.Error(t, err)
	})

	t.Run("ContextFailure", func(t *testing.T) {
		rt := simcl.New()
		rt.Inject("CreateContext", native.OutOfHostMemory)
		_, err := Setup(rt, builder.Config{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, native.OutOfHostMemory))
		assert.Equal(t, 0, rt.Live())
	})

	t.Run("QueueFailureReleasesContext", func(t *testing.T) {
		rt := simcl.New()
		rt.Inject("CreateCommandQueue", native.OutOfResources)
		_, err := Setup(rt, builder.Config{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, native.OutOfResources))
		assert.Equal(t, 0, rt.Live())
	})
}

func TestRunner_BuildKernel(t *testing.T) {
	kr, rt := newRunner(t)

	k, err := kr.BuildKernel(saxpySource, "saxpy")
	require.NoError(t, err)
	assert.Equal(t, "saxpy", k.Name())
	assert.Same(t, &kr.Queue, k.Queue())

	again, err := kr.Kernel("saxpy")
	require.NoError(t, err)
	assert.Same(t, k, again)

	t.Run("BuildFailure", func(t *testing.T) {
		_, err := kr.BuildKernel("#error nope\n__kernel void fill(__global float* d, const float v, const uint n) {}", "fill")
		var be *cl.BuildError
		require.True(t, errors.As(err, &be))
		assert.Contains(t, be.Log, "nope")
	})

	t.Run("UnknownKernel", func(t *testing.T) {
		_, err := kr.Kernel("missing")
		assert.True(t, errors.Is(err, native.InvalidKernelName))
	})

	t.Run("FromFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "fill.cl")
		require.NoError(t, os.WriteFile(path, []byte(fillSource), 0o644))
		_, err := kr.BuildProgramFromFile(path)
		require.NoError(t, err)
		k, err := kr.Kernel("fill")
		require.NoError(t, err)
		assert.Equal(t, "fill", k.Name())

		_, err = kr.BuildProgramFromFile(filepath.Join(t.TempDir(), "absent.cl"))
		assert.True(t, errors.Is(err, cl.ErrSourceFile))
	})

	assert.Equal(t, 0, rt.Calls("ReleaseKernel"))
}

func TestRunner_Bindings(t *testing.T) {
	kr, rt := newRunner(t)

	require.NoError(t, kr.DefineBindings(
		builder.Input("x").Bind(make([]float32, 8)),
		builder.Output("y").Bind(make([]float64, 8)).Convert(builder.Float32),
		builder.Temp("work").Type(builder.Float64).Size(16),
		builder.InOut("z").Bind(make([]int32, 4)).Device(),
		builder.Scalar("n").Bind(uint32(8)),
		builder.Local("scratch").Type(builder.Float32).Size(32),
	))

	y := kr.GetBinding("y")
	require.NotNil(t, y)
	assert.Equal(t, builder.Float64, y.HostType)
	assert.Equal(t, builder.Float32, y.DeviceType)
	assert.Equal(t, 4, y.ElementSize)
	assert.True(t, y.IsOutput)
	assert.False(t, kr.GetBinding("x").IsOutput)
	assert.True(t, kr.GetBinding("n").IsScalar)
	assert.True(t, kr.GetBinding("scratch").IsLocal)
	assert.Equal(t, uintptr(128), kr.GetBinding("scratch").Bytes())

	t.Run("Duplicate", func(t *testing.T) {
		assert.Error(t, kr.DefineBindings(builder.Input("x").Bind(make([]float32, 2))))
	})
	t.Run("Invalid", func(t *testing.T) {
		assert.Error(t, kr.DefineBindings(builder.Temp("t2").Type(builder.Float32)))
	})

	_, err := kr.ConfigureKernel("early", kr.Param("x"))
	assert.Error(t, err)

	require.NoError(t, kr.AllocateDevice())
	assert.Equal(t, []string{"x", "y", "work", "z"}, kr.GetAllocatedArrays())
	assert.Equal(t, uintptr(32), kr.GetMemory("x").Size())
	assert.Equal(t, uintptr(32), kr.GetMemory("y").Size())
	assert.Equal(t, uintptr(128), kr.GetMemory("work").Size())
	assert.Nil(t, kr.GetMemory("n"))
	assert.Nil(t, kr.GetMemory("scratch"))

	assert.True(t, rt.Pinned(kr.GetMemory("x").Native()))
	assert.False(t, rt.Pinned(kr.GetMemory("work").Native()))
	assert.False(t, rt.Pinned(kr.GetMemory("z").Native()))

	assert.Error(t, kr.AllocateDevice())
	assert.Error(t, kr.DefineBindings(builder.Input("late").Bind([]float32{1})))

	_, err = kr.ConfigureKernel("k", kr.Param("nope"))
	assert.Error(t, err)
}

func TestRunner_AllocateFailure(t *testing.T) {
	kr, rt := newRunner(t)
	require.NoError(t, kr.DefineBindings(
		builder.Input("a").Bind(make([]float32, 4)),
		builder.Input("b").Bind(make([]float32, 4)),
	))
	before := rt.Live()
	rt.Inject("CreateBuffer", native.MemObjectAllocationFailure)
	err := kr.AllocateDevice()
	require.Error(t, err)
	assert.True(t, errors.Is(err, native.MemObjectAllocationFailure))
	assert.False(t, kr.IsAllocated)
	assert.Equal(t, before, rt.Live())
}

func TestRunner_Free(t *testing.T) {
	rt := simcl.New()
	kr, err := Setup(rt, builder.Config{})
	require.NoError(t, err)

	require.NoError(t, kr.DefineBindings(builder.InOut("y").Bind(make([]float32, 4))))
	require.NoError(t, kr.AllocateDevice())
	_, err = kr.BuildKernel(fillSource, "fill")
	require.NoError(t, err)
	_, err = kr.DotProduct([]float32{1, 2}, []float32{3, 4}, 2)
	require.NoError(t, err)
	assert.Greater(t, rt.Live(), 2)

	ctx := uintptr(kr.Context.Native())
	kr.Free()
	assert.Equal(t, 0, rt.Live())
	assert.Equal(t, 1, rt.Released(ctx))
	assert.False(t, kr.IsAllocated)

	kr.Free()
	assert.Equal(t, 1, rt.Released(ctx))
}
