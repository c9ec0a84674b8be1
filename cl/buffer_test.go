package cl

import (
	"github.com/notargets/clkit/native"
	"github.com/notargets/clkit/native/simcl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"math"
	"testing"
	"unsafe"
)

// copyRecorder remembers the sizes handed to EnqueueCopyBuffer.
type copyRecorder struct {
	*simcl.Runtime
	sizes []uintptr
}

func (r *copyRecorder) EnqueueCopyBuffer(q native.CommandQueue, src, dst native.Mem, srcOffset, dstOffset, size uintptr,
	waitList []native.Event, ev *native.Event) native.Status {
	r.sizes = append(r.sizes, size)
	return r.Runtime.EnqueueCopyBuffer(q, src, dst, srcOffset, dstOffset, size, waitList, ev)
}

func TestBuffer_Malloc(t *testing.T) {
	env := newTestEnv(t)

	var host Buffer[float32]
	require.NoError(t, host.MallocHost(&env.context, 40, 0))
	defer host.Release()
	assert.Equal(t, uintptr(40), host.Size())
	assert.Equal(t, 10, host.Len())
	assert.Equal(t, uintptr(4), host.ElemSize())
	assert.True(t, env.rt.Pinned(host.Native()))

	var dev Buffer[float64]
	require.NoError(t, dev.MallocDevice(&env.context, 64, native.MemReadOnly))
	defer dev.Release()
	assert.False(t, env.rt.Pinned(dev.Native()))
	assert.Equal(t, 8, dev.Len())

	t.Run("Failure", func(t *testing.T) {
		var b Buffer[float32]
		assert.Equal(t, native.InvalidBufferSize, b.MallocDevice(&env.context, 0, 0))
		assert.Equal(t, native.InvalidBufferSize, b.Status())
		assert.False(t, b.Valid())
		assert.Equal(t, native.InvalidContext, b.MallocDevice(nil, 16, 0))
	})
}

func TestBuffer_MapUnmap(t *testing.T) {
	env := newTestEnv(t)
	b := env.buffer(t, 4)

	view, err := b.Map(nil)
	require.NoError(t, err)
	require.Len(t, view, 4)
	assert.NotNil(t, b.Ptr())
	assert.True(t, b.Mapped())
	copy(view, []float32{1, 2, 3, 4})

	t.Run("MapWhileMapped", func(t *testing.T) {
		calls := env.rt.Calls("EnqueueMapBuffer")
		_, err := b.Map(nil)
		assert.Equal(t, native.InvalidOperation, err)
		assert.Equal(t, calls, env.rt.Calls("EnqueueMapBuffer"))
	})

	require.NoError(t, b.Unmap(nil))
	assert.Nil(t, b.Ptr())
	assert.Nil(t, b.View())
	assert.Equal(t, 0, env.rt.Mapped(b.Native()))

	t.Run("UnmapWhileUnmapped", func(t *testing.T) {
		calls := env.rt.Calls("EnqueueUnmapMemObject")
		assert.Equal(t, native.InvalidValue, b.Unmap(nil))
		assert.Equal(t, calls, env.rt.Calls("EnqueueUnmapMemObject"))
	})

	raw, ok := env.rt.Contents(b.Native())
	require.True(t, ok)
	got := unsafe.Slice((*float32)(unsafe.Pointer(&raw[0])), 4)
	assert.Equal(t, []float32{1, 2, 3, 4}, got)

	t.Run("UnmapWithEvent", func(t *testing.T) {
		_, err := b.MapWith(&env.queue, native.MapRead, true)
		require.NoError(t, err)
		var ev Event
		defer ev.Release()
		require.NoError(t, b.UnmapWithEvent(&env.queue, &ev))
		assert.True(t, ev.Valid())
		assert.NoError(t, ev.Wait())
	})

	t.Run("NoQueue", func(t *testing.T) {
		var c Buffer[float32]
		require.NoError(t, c.MallocDevice(&env.context, 16, 0))
		defer c.Release()
		_, err := c.Map(nil)
		assert.Equal(t, native.InvalidCommandQueue, err)
		assert.Nil(t, c.Ptr())
	})

	t.Run("ReleaseWhileMapped", func(t *testing.T) {
		var c Buffer[float32]
		require.NoError(t, c.MallocDevice(&env.context, 16, 0))
		_, err := c.Map(&env.queue)
		require.NoError(t, err)
		c.Release()
		assert.Nil(t, c.Ptr())
		assert.Zero(t, c.Size())
	})
}

func TestBuffer_MoveTo(t *testing.T) {
	env := newTestEnv(t)

	t.Run("OntoMappedBuffer", func(t *testing.T) {
		src := env.buffer(t, 10)
		dst := env.buffer(t, 4)
		_, err := dst.Map(nil)
		require.NoError(t, err)
		old, moved := uintptr(dst.Native()), src.Native()

		src.MoveTo(dst)
		assert.Equal(t, 1, env.rt.Released(old))
		assert.Equal(t, moved, dst.Native())
		assert.Equal(t, uintptr(40), dst.Size())
		assert.Nil(t, dst.Ptr())
		assert.Nil(t, dst.View())
		assert.False(t, src.Valid())
		assert.Zero(t, src.Size())

		view, err := dst.Map(nil)
		require.NoError(t, err)
		assert.Len(t, view, 10)
		require.NoError(t, dst.Unmap(nil))
	})

	t.Run("MappingFollows", func(t *testing.T) {
		src := env.buffer(t, 4)
		view, err := src.Map(nil)
		require.NoError(t, err)
		copy(view, []float32{5, 6, 7, 8})

		var dst Buffer[float32]
		src.MoveTo(&dst)
		defer dst.Release()
		assert.True(t, dst.Mapped())
		assert.False(t, src.Mapped())
		require.NoError(t, dst.Unmap(nil))

		got := make([]float32, 4)
		_, err = dst.Download(nil, got)
		require.NoError(t, err)
		assert.Equal(t, []float32{5, 6, 7, 8}, got)
	})
}

func TestBuffer_Copy(t *testing.T) {
	env := newTestEnv(t)
	src := env.buffer(t, 16)
	dst := env.buffer(t, 32)
	require.NoError(t, src.Upload(nil, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}))

	t.Run("DefaultExtent", func(t *testing.T) {
		rec := &copyRecorder{Runtime: env.rt}
		s := WrapBuffer[float32](rec, src.Native(), src.Size(), false)
		d := WrapBuffer[float32](rec, dst.Native(), dst.Size(), false)
		s.BindQueue(&env.queue)
		require.NoError(t, s.CopyTo(d))
		assert.Equal(t, []uintptr{64}, rec.sizes)

		out := make([]float32, 32)
		n, err := dst.Download(nil, out)
		require.NoError(t, err)
		assert.Equal(t, 32, n)
		assert.Equal(t, float32(16), out[15])
		assert.Equal(t, float32(0), out[16], "copied past the source size")
	})

	t.Run("Region", func(t *testing.T) {
		require.NoError(t, src.CopyRegion(dst, 8, 0, 64))
		out := make([]float32, 32)
		_, err := dst.Download(nil, out)
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 2}, out[16:18])
	})

	t.Run("ExplicitQueue", func(t *testing.T) {
		var q CommandQueue
		require.NoError(t, q.Create(&env.device, &env.context))
		defer q.Release()
		var ev Event
		defer ev.Release()
		require.NoError(t, src.CopyWith(dst, CopyOptions{Queue: &q, Event: &ev}))
		assert.NoError(t, ev.Wait())
		assert.Equal(t, native.InvalidCommandQueue, src.CopyToOn(nil, dst, 0, 0, 0))
	})

	t.Run("Unbound", func(t *testing.T) {
		s := WrapBuffer[float32](env.rt, src.Native(), src.Size(), false)
		calls := env.rt.Calls("EnqueueCopyBuffer")
		assert.Equal(t, native.InvalidCommandQueue, s.CopyTo(dst))
		assert.Equal(t, calls, env.rt.Calls("EnqueueCopyBuffer"))
	})

	t.Run("WhileMapped", func(t *testing.T) {
		_, err := dst.Map(nil)
		require.NoError(t, err)
		assert.Equal(t, native.InvalidOperation, src.CopyTo(dst))
		require.NoError(t, dst.Unmap(nil))

		_, err = src.Map(nil)
		require.NoError(t, err)
		assert.Equal(t, native.InvalidOperation, src.CopyTo(dst))
		require.NoError(t, src.Unmap(nil))
	})

	t.Run("UploadTooLarge", func(t *testing.T) {
		assert.Equal(t, native.InvalidValue, src.Upload(nil, make([]float32, 17)))
	})
}

func TestBuffer_AsKernelArgument(t *testing.T) {
	env := newTestEnv(t)
	k := env.kernel(t, "__kernel void fill(__global float* dst, const float value, const uint n) {}", "fill")
	b := env.buffer(t, 8)

	require.NoError(t, k.SetArgs(b, float32(3), uint32(6)))
	require.NoError(t, k.Run([]uintptr{8}, nil))
	require.NoError(t, env.queue.Finish())

	out := make([]float32, 8)
	_, err := b.Download(nil, out)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 3, 3, 3, 3, 3, 0, 0}, out)
}

func TestDotProduct_PinnedBuffers(t *testing.T) {
	const (
		n     = 10000
		local = 64
	)
	env := newTestEnv(t)
	k := env.kernel(t, dotprodSource, "dotprod")

	global := uintptr((n + local - 1) / local * local)
	groups := int(global / local)

	var a, b, partial Buffer[float32]
	for _, buf := range []*Buffer[float32]{&a, &b} {
		require.NoError(t, buf.MallocHost(&env.context, n*4, native.MemReadOnly))
		defer buf.Release()
		buf.BindQueue(&env.queue)
		view, err := buf.Map(nil)
		require.NoError(t, err)
		for i := range view {
			view[i] = 2
		}
		require.NoError(t, buf.Unmap(nil))
	}
	require.NoError(t, partial.MallocHost(&env.context, uintptr(groups)*4, native.MemWriteOnly))
	defer partial.Release()
	partial.BindQueue(&env.queue)

	require.NoError(t, k.SetArgs(&partial, &a, &b, uint32(n), LocalFor[float32](local)))
	require.NoError(t, k.Run([]uintptr{global}, []uintptr{local}))
	require.NoError(t, env.queue.Finish())

	view, err := partial.Map(nil)
	require.NoError(t, err)
	var sum float64
	for _, v := range view {
		sum += float64(v)
	}
	require.NoError(t, partial.Unmap(nil))
	assert.InDelta(t, 40000.0, sum, 1e-3)
	assert.False(t, math.IsNaN(sum))
}
