package cl

import (
	"github.com/notargets/clkit/native"
	"github.com/notargets/clkit/native/simcl"
	"github.com/stretchr/testify/require"
	"testing"
)

const mixedArgsSource = `
__kernel void mixed_args(__global float* a, const float b, const uint c, __local float* d)
{
}
`

const dotprodSource = `
__kernel void dotprod(__global float* partial, __global const float* a,
                      __global const float* b, const uint n, __local float* scratch)
{
    uint gid = get_global_id(0);
    uint lid = get_local_id(0);
    scratch[lid] = gid < n ? a[gid] * b[gid] : 0.0f;
    barrier(CLK_LOCAL_MEM_FENCE);
    for (uint s = get_local_size(0) / 2; s > 0; s >>= 1) {
        if (lid < s) scratch[lid] += scratch[lid + s];
        barrier(CLK_LOCAL_MEM_FENCE);
    }
    if (lid == 0) partial[get_group_id(0)] = scratch[0];
}
`

type testEnv struct {
	rt       *simcl.Runtime
	platform Platform
	device   Device
	context  Context
	queue    CommandQueue
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{rt: simcl.New()}
	env.rt.RegisterKernel("mixed_args", func(*simcl.Invocation) native.Status { return native.Success })
	require.NoError(t, env.platform.SelectFirst(env.rt))
	require.NoError(t, env.device.SelectFirst(&env.platform, native.DeviceTypeGPU))
	require.NoError(t, env.context.Create(&env.platform, &env.device))
	require.NoError(t, env.queue.Create(&env.device, &env.context))
	t.Cleanup(func() {
		env.queue.Release()
		env.context.Release()
	})
	return env
}

// kernel builds src and creates the named kernel, bound to the env queue.
func (env *testEnv) kernel(t *testing.T, src, name string) *Kernel {
	t.Helper()
	var p Program
	require.NoError(t, p.BuildFromSource(&env.context, src))
	k := &Kernel{}
	require.NoError(t, k.Create(&p, name))
	k.BindQueue(&env.queue)
	t.Cleanup(func() {
		k.Release()
		p.Release()
	})
	return k
}

func (env *testEnv) buffer(t *testing.T, n int) *Buffer[float32] {
	t.Helper()
	b := &Buffer[float32]{}
	require.NoError(t, b.MallocDevice(&env.context, uintptr(n)*4, 0))
	b.BindQueue(&env.queue)
	t.Cleanup(b.Release)
	return b
}
