package cl

import (
	"github.com/notargets/clkit/native"
	"github.com/sirupsen/logrus"
	"unsafe"
)

// releaser is the release function of a handle kind. Implementations are
// zero-size types so the function is fixed by the type of the container.
type releaser[H ~uintptr] interface {
	release(api native.API, h H) native.Status
}

type (
	noRelease[H ~uintptr] struct{}
	releaseContext        struct{}
	releaseQueue          struct{}
	releaseProgram        struct{}
	releaseKernel         struct{}
	releaseMem            struct{}
	releaseEvent          struct{}
)

func (noRelease[H]) release(native.API, H) native.Status { return native.Success }

func (releaseContext) release(api native.API, h native.Context) native.Status {
	return api.ReleaseContext(h)
}

func (releaseQueue) release(api native.API, h native.CommandQueue) native.Status {
	return api.ReleaseCommandQueue(h)
}

func (releaseProgram) release(api native.API, h native.Program) native.Status {
	return api.ReleaseProgram(h)
}

func (releaseKernel) release(api native.API, h native.Kernel) native.Status {
	return api.ReleaseKernel(h)
}

func (releaseMem) release(api native.API, h native.Mem) native.Status {
	return api.ReleaseMemObject(h)
}

func (releaseEvent) release(api native.API, h native.Event) native.Status {
	return api.ReleaseEvent(h)
}

// noCopy makes go vet flag containers copied by value.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Handle owns one native handle. When the handle is non-null and release on
// destroy is set, Release calls the release function of R exactly once.
//
// The zero value is an empty container that releases on destroy. A Handle
// must not be copied; use MoveTo to transfer ownership.
type Handle[H ~uintptr, R releaser[H]] struct {
	noCopy noCopy
	api    native.API
	h      H
	keep   bool // inverted so that the zero value releases
}

// Native returns the contained handle.
func (c *Handle[H, R]) Native() H { return c.h }

// Valid reports whether the container holds a non-null handle.
func (c *Handle[H, R]) Valid() bool { return c.h != 0 }

// API returns the compute API the handle belongs to.
func (c *Handle[H, R]) API() native.API { return c.api }

func (c *Handle[H, R]) ReleaseOnDestroy() bool { return !c.keep }

func (c *Handle[H, R]) SetReleaseOnDestroy(v bool) { c.keep = !v }

// Release ends the life of the container. The release status is logged,
// never returned. The handle is null afterwards so a second call does
// nothing.
func (c *Handle[H, R]) Release() {
	h := c.h
	c.h = 0
	if h == 0 || c.keep {
		return
	}
	var r R
	if st := r.release(c.api, h); !st.OK() {
		Logger().WithFields(logrus.Fields{
			"handle": uintptr(h),
			"status": st.String(),
		}).Warn("cl: release failed")
	}
}

// MoveTo transfers the handle and its release flag to dst, releasing
// whatever dst owned first. c is left empty. Only the handle moves; a Buffer
// destination must use Buffer.MoveTo so its mapping state follows.
func (c *Handle[H, R]) MoveTo(dst *Handle[H, R]) {
	if dst == c {
		return
	}
	dst.Release()
	dst.api, dst.h, dst.keep = c.api, c.h, c.keep
	c.h, c.keep = 0, false
}

// reset releases the current handle and takes ownership of h.
func (c *Handle[H, R]) reset(api native.API, h H, releaseOnDestroy bool) {
	c.Release()
	c.api, c.h, c.keep = api, h, !releaseOnDestroy
}

// ArgSize and ArgPointer describe the native handle, not the container, so
// entities can be passed straight to SetArgs.
func (c *Handle[H, R]) ArgSize() uintptr { return unsafe.Sizeof(c.h) }

func (c *Handle[H, R]) ArgPointer() unsafe.Pointer { return unsafe.Pointer(&c.h) }

func (c *Handle[H, R]) ArgType() native.ArgType { return native.ArgHandle }

// creation holds the status of the last creation protocol run on an entity.
// A failed creation leaves the entity empty.
type creation struct {
	status native.Status
}

// Status returns the native status of the last creation call.
func (s *creation) Status() native.Status { return s.status }

// done records st and returns it as an error.
func (s *creation) done(st native.Status) error {
	s.status = st
	return st.Err()
}

func logCreated(kind string, h uintptr) {
	Logger().WithFields(logrus.Fields{"kind": kind, "handle": h}).Debug("cl: created")
}
