package cl

import (
	"errors"
	"github.com/notargets/clkit/native"
	"github.com/notargets/clkit/native/simcl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestPlatformAndDevice(t *testing.T) {
	rt := simcl.New()

	var p Platform
	require.NoError(t, p.SelectFirst(rt))
	assert.True(t, p.Valid())
	assert.Equal(t, native.Success, p.Status())

	t.Run("SelectByType", func(t *testing.T) {
		var d Device
		require.NoError(t, d.SelectFirst(&p, native.DeviceTypeCPU))
		name, err := d.Name()
		require.NoError(t, err)
		assert.Equal(t, "sim-cpu0", name)
	})

	t.Run("NotFound", func(t *testing.T) {
		var d Device
		err := d.SelectFirst(&p, native.DeviceTypeAccelerator)
		assert.Equal(t, native.DeviceNotFound, err)
		assert.Equal(t, native.DeviceNotFound, d.Status())
		assert.False(t, d.Valid())
	})

	t.Run("Enumerate", func(t *testing.T) {
		ps, err := Platforms(rt)
		require.NoError(t, err)
		require.Len(t, ps, 1)
		ds, err := Devices(ps[0], native.DeviceTypeAll)
		require.NoError(t, err)
		assert.Len(t, ds, 2)
	})

	t.Run("PlatformFailure", func(t *testing.T) {
		rt := simcl.New()
		rt.Inject("GetPlatformIDs", native.InvalidPlatform)
		var p Platform
		assert.Equal(t, native.InvalidPlatform, p.SelectFirst(rt))
		assert.False(t, p.Valid())
	})

	t.Run("EmptyPlatform", func(t *testing.T) {
		before := rt.Calls("GetDeviceIDs")
		var d Device
		assert.Equal(t, native.InvalidPlatform, d.SelectFirst(&Platform{}, native.DeviceTypeAll))
		assert.Equal(t, before, rt.Calls("GetDeviceIDs"))
	})
}

func TestContextAndQueue(t *testing.T) {
	rt := simcl.New()
	var p Platform
	var d Device
	require.NoError(t, p.SelectFirst(rt))
	require.NoError(t, d.SelectFirst(&p, native.DeviceTypeGPU))

	var c Context
	require.NoError(t, c.Create(&p, &d))
	defer c.Release()

	var q CommandQueue
	require.NoError(t, q.Create(&d, &c))
	defer q.Release()
	assert.Same(t, &d, q.Device())
	assert.Same(t, &c, q.Context())
	assert.NoError(t, q.Finish())

	t.Run("Rebind", func(t *testing.T) {
		var d2 Device
		require.NoError(t, d2.SelectFirst(&p, native.DeviceTypeCPU))
		var c2 Context
		require.NoError(t, c2.Create(&p, &d2))
		defer c2.Release()

		q.BindDevice(&d2)
		q.BindContext(&c2)
		assert.Same(t, &d2, q.Device())
		assert.Same(t, &c2, q.Context())
		q.BindDevice(&d)
		q.BindContext(&c)
	})

	t.Run("CreateFailure", func(t *testing.T) {
		rt.Inject("CreateCommandQueue", native.OutOfResources)
		var q2 CommandQueue
		err := q2.Create(&d, &c)
		assert.Equal(t, native.OutOfResources, err)
		assert.False(t, q2.Valid())
		assert.Nil(t, q2.Device())
	})

	t.Run("Release", func(t *testing.T) {
		var c2 Context
		require.NoError(t, c2.Create(&p, &d))
		h := c2.Native()
		c2.Release()
		assert.Equal(t, 1, rt.Released(uintptr(h)))
	})
}

func TestProgram_Build(t *testing.T) {
	env := newTestEnv(t)

	t.Run("FromSource", func(t *testing.T) {
		var p Program
		defer p.Release()
		require.NoError(t, p.BuildFromSource(&env.context, dotprodSource))
		assert.True(t, p.Valid())
		assert.Same(t, &env.context, p.Context())
	})

	t.Run("BuildFailure", func(t *testing.T) {
		var p Program
		defer p.Release()
		err := p.BuildFromSource(&env.context, "#error broken on purpose\n"+mixedArgsSource)
		var be *BuildError
		require.ErrorAs(t, err, &be)
		assert.ErrorIs(t, err, native.BuildProgramFailure)
		assert.Contains(t, be.Log, "broken on purpose")
		assert.Equal(t, be.Log, p.BuildLog())
		assert.Equal(t, native.BuildProgramFailure, p.Status())

		var k Kernel
		assert.Equal(t, native.InvalidProgramExecutable, k.Create(&p, "mixed_args"))
	})

	t.Run("CreateFailure", func(t *testing.T) {
		env.rt.Inject("CreateProgramWithSource", native.OutOfHostMemory)
		var p Program
		err := p.BuildFromSource(&env.context, mixedArgsSource)
		assert.Equal(t, native.OutOfHostMemory, err)
		var be *BuildError
		assert.False(t, errors.As(err, &be))
		assert.False(t, p.Valid())
	})

	t.Run("Options", func(t *testing.T) {
		p := Program{Options: "-Werror-unknown"}
		defer p.Release()
		assert.Equal(t, native.InvalidBuildOptions, errors.Unwrap(p.BuildFromSource(&env.context, mixedArgsSource)))
	})
}

func TestProgram_BuildFromFile(t *testing.T) {
	env := newTestEnv(t)

	t.Run("MissingFile", func(t *testing.T) {
		env.rt.ResetRecording()
		var p Program
		err := p.BuildFromFile(&env.context, filepath.Join(t.TempDir(), "nope.cl"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSourceFile)
		assert.ErrorIs(t, err, fs.ErrNotExist)
		var be *BuildError
		assert.False(t, errors.As(err, &be), "file failure reported as build failure")
		assert.False(t, p.Valid())
		assert.Equal(t, 0, env.rt.Calls("CreateProgramWithSource"))

		var k Kernel
		assert.Equal(t, native.InvalidProgram, k.Create(&p, "dotprod"))
		assert.False(t, k.Valid())
		assert.Equal(t, 0, env.rt.Calls("CreateKernel"))
	})

	t.Run("ExistingFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "dotprod.cl")
		require.NoError(t, os.WriteFile(path, []byte(dotprodSource), 0o644))
		var p Program
		defer p.Release()
		require.NoError(t, p.BuildFromFile(&env.context, path))

		var k Kernel
		defer k.Release()
		require.NoError(t, k.Create(&p, "dotprod"))
		assert.Equal(t, "dotprod", k.Name())
	})
}

func TestKernel_Run(t *testing.T) {
	t.Run("Unbound", func(t *testing.T) {
		env := newTestEnv(t)
		k := env.kernel(t, mixedArgsSource, "mixed_args")
		k.BindQueue(nil)

		env.rt.ResetRecording()
		err := k.Run([]uintptr{16}, nil)
		assert.Equal(t, native.InvalidCommandQueue, err)
		assert.Equal(t, 0, env.rt.Calls("EnqueueNDRangeKernel"))
	})

	t.Run("MissingArguments", func(t *testing.T) {
		env := newTestEnv(t)
		k := env.kernel(t, mixedArgsSource, "mixed_args")
		assert.Equal(t, native.InvalidKernelArgs, k.Run([]uintptr{16}, nil))
	})

	t.Run("WithEvent", func(t *testing.T) {
		env := newTestEnv(t)
		k := env.kernel(t, mixedArgsSource, "mixed_args")
		buf := env.buffer(t, 16)
		require.NoError(t, k.SetArgs(buf, float32(1), uint32(16), LocalFor[float32](4)))

		var ev Event
		require.NoError(t, k.RunWithOptions([]uintptr{16}, []uintptr{4}, RunOptions{Event: &ev}))
		require.True(t, ev.Valid())
		assert.NoError(t, ev.Wait())

		var next Event
		require.NoError(t, k.RunWithOptions([]uintptr{16}, nil, RunOptions{
			Offset:   []uintptr{0},
			WaitList: []*Event{&ev},
			Event:    &next,
		}))
		assert.NoError(t, WaitForEvents(&ev, &next))

		h := ev.Native()
		ev.Release()
		next.Release()
		assert.Equal(t, 1, env.rt.Released(uintptr(h)))
		assert.Equal(t, native.InvalidEvent, ev.Wait())
	})

	t.Run("BadWaitList", func(t *testing.T) {
		env := newTestEnv(t)
		k := env.kernel(t, mixedArgsSource, "mixed_args")
		err := k.RunWithOptions([]uintptr{16}, nil, RunOptions{WaitList: []*Event{{}}})
		assert.Equal(t, native.InvalidEventWaitList, err)
	})

	t.Run("Rebind", func(t *testing.T) {
		env := newTestEnv(t)
		k := env.kernel(t, mixedArgsSource, "mixed_args")
		var q2 CommandQueue
		require.NoError(t, q2.Create(&env.device, &env.context))
		defer q2.Release()
		k.BindQueue(&q2)
		assert.Same(t, &q2, k.Queue())
	})
}
