package cl

import (
	"github.com/notargets/clkit/native"
)

type Context struct {
	Handle[native.Context, releaseContext]
	creation
}

// WrapContext adopts an existing context handle.
func WrapContext(api native.API, h native.Context, releaseOnDestroy bool) *Context {
	c := &Context{}
	c.reset(api, h, releaseOnDestroy)
	return c
}

// Create builds a context for the single device d on platform p.
func (c *Context) Create(p *Platform, d *Device) error {
	if p == nil || !p.Valid() {
		return c.done(native.InvalidPlatform)
	}
	if d == nil || !d.Valid() {
		return c.done(native.InvalidDevice)
	}
	h, st := p.API().CreateContext(p.Native(), []native.Device{d.Native()})
	if !st.OK() {
		c.Release()
		return c.done(st)
	}
	c.reset(p.API(), h, true)
	logCreated("context", uintptr(h))
	return c.done(st)
}

func (c *Context) Move() *Context {
	n := &Context{creation: c.creation}
	c.MoveTo(&n.Handle)
	return n
}
