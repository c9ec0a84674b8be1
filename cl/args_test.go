package cl

import (
	"github.com/notargets/clkit/native"
	"github.com/notargets/clkit/native/simcl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"unsafe"
)

func indices(calls []simcl.SetArgCall) []uint32 {
	out := make([]uint32, len(calls))
	for i, c := range calls {
		out[i] = c.Index
	}
	return out
}

func TestSetArgs_OneCallPerArgument(t *testing.T) {
	env := newTestEnv(t)
	k := env.kernel(t, mixedArgsSource, "mixed_args")
	buf := env.buffer(t, 8)

	env.rt.ResetRecording()
	require.NoError(t, k.SetArgs(buf, float32(1), uint32(2), LocalFor[float32](4)))

	calls := env.rt.SetArgCalls()
	assert.Equal(t, []uint32{0, 1, 2, 3}, indices(calls))
	assert.Equal(t, unsafe.Sizeof(native.Mem(0)), calls[0].Size)
	assert.Equal(t, uintptr(4), calls[1].Size)
	assert.Equal(t, uintptr(16), calls[3].Size)
	assert.True(t, calls[3].Nil)
}

func TestSetArgs_NoShortCircuit(t *testing.T) {
	t.Run("SingleFailure", func(t *testing.T) {
		env := newTestEnv(t)
		k := env.kernel(t, mixedArgsSource, "mixed_args")
		buf := env.buffer(t, 8)
		env.rt.FailArg(0, native.InvalidArgValue)

		env.rt.ResetRecording()
		err := k.SetArgs(buf, float32(1), uint32(2), LocalFor[float32](4))
		assert.Equal(t, native.InvalidArgValue, err)
		assert.Equal(t, []uint32{0, 1, 2, 3}, indices(env.rt.SetArgCalls()))
	})

	t.Run("CombinedFailures", func(t *testing.T) {
		env := newTestEnv(t)
		k := env.kernel(t, mixedArgsSource, "mixed_args")
		buf := env.buffer(t, 8)
		env.rt.FailArg(1, native.InvalidArgValue)
		env.rt.FailArg(2, native.InvalidArgSize)

		env.rt.ResetRecording()
		err := k.SetArgs(buf, float32(1), uint32(2), LocalFor[float32](4))
		assert.Equal(t, native.InvalidArgValue|native.InvalidArgSize, err)
		assert.NotEqual(t, native.InvalidArgValue, err, "the failing index is not identified")
		assert.Len(t, env.rt.SetArgCalls(), 4)
	})

	t.Run("TooManyArguments", func(t *testing.T) {
		env := newTestEnv(t)
		k := env.kernel(t, mixedArgsSource, "mixed_args")
		buf := env.buffer(t, 8)

		env.rt.ResetRecording()
		err := k.SetArgs(buf, float32(1), uint32(2), LocalFor[float32](4), uint32(9))
		assert.Equal(t, native.InvalidArgIndex, err)
		calls := env.rt.SetArgCalls()
		require.Len(t, calls, 5)
		assert.Equal(t, native.InvalidArgIndex, calls[4].Status)
	})

	t.Run("UnmarshallableArgument", func(t *testing.T) {
		env := newTestEnv(t)
		k := env.kernel(t, mixedArgsSource, "mixed_args")
		buf := env.buffer(t, 8)

		env.rt.ResetRecording()
		err := k.SetArgs(buf, "not a scalar", uint32(2), LocalFor[float32](4))
		assert.Equal(t, native.InvalidArgValue, err)
		assert.Equal(t, []uint32{0, 2, 3}, indices(env.rt.SetArgCalls()))
	})
}

func TestSetArgs_ExplicitIndex(t *testing.T) {
	env := newTestEnv(t)
	k := env.kernel(t, mixedArgsSource, "mixed_args")

	env.rt.ResetRecording()
	require.NoError(t, k.SetArgsFrom(1, float32(1), uint32(2)))
	assert.Equal(t, []uint32{1, 2}, indices(env.rt.SetArgCalls()))

	env.rt.ResetRecording()
	require.NoError(t, k.SetArg(3, LocalMemory{Size: 32}))
	calls := env.rt.SetArgCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, uint32(3), calls[0].Index)
	assert.Equal(t, uintptr(32), calls[0].Size)
}

func TestSetArgs_EmptyKernel(t *testing.T) {
	var k Kernel
	assert.Equal(t, native.InvalidKernel, k.SetArgs(uint32(1)))
}

// typedRuntime upgrades the simulated runtime with a typed setter.
type typedRuntime struct {
	*simcl.Runtime
	kinds []native.ArgType
}

func (r *typedRuntime) SetKernelArgTyped(k native.Kernel, index uint32, size uintptr, value unsafe.Pointer,
	kind native.ArgType) native.Status {
	r.kinds = append(r.kinds, kind)
	return r.Runtime.SetKernelArg(k, index, size, value)
}

func TestSetArgs_TypedSetter(t *testing.T) {
	env := newTestEnv(t)
	k := env.kernel(t, mixedArgsSource, "mixed_args")
	buf := env.buffer(t, 8)

	api := &typedRuntime{Runtime: env.rt}
	require.NoError(t, SetKernelArgs(api, k.Native(), 0, buf, float32(1), uint32(2), LocalFor[float32](4)))
	assert.Equal(t, []native.ArgType{native.ArgHandle, native.ArgFloat32, native.ArgUint32, native.ArgLocal}, api.kinds)
}
