package cl

import (
	"github.com/notargets/clkit/native"
)

// CommandQueue is an in-order command stream on one device. It remembers the
// device and context it was created for.
type CommandQueue struct {
	Handle[native.CommandQueue, releaseQueue]
	creation
	device  Junction[Device]
	context Junction[Context]
}

// WrapCommandQueue adopts an existing queue handle. No bindings are set.
func WrapCommandQueue(api native.API, h native.CommandQueue, releaseOnDestroy bool) *CommandQueue {
	q := &CommandQueue{}
	q.reset(api, h, releaseOnDestroy)
	return q
}

// Create makes a queue for d inside c and binds the queue to both.
func (q *CommandQueue) Create(d *Device, c *Context) error {
	if c == nil || !c.Valid() {
		return q.done(native.InvalidContext)
	}
	if d == nil || !d.Valid() {
		return q.done(native.InvalidDevice)
	}
	h, st := c.API().CreateCommandQueue(c.Native(), d.Native())
	if !st.OK() {
		q.Release()
		return q.done(st)
	}
	q.reset(c.API(), h, true)
	q.BindDevice(d)
	q.BindContext(c)
	logCreated("queue", uintptr(h))
	return q.done(st)
}

func (q *CommandQueue) BindDevice(d *Device)   { q.device.Bind(d) }
func (q *CommandQueue) BindContext(c *Context) { q.context.Bind(c) }
func (q *CommandQueue) Device() *Device        { return q.device.Get() }
func (q *CommandQueue) Context() *Context      { return q.context.Get() }

// Finish blocks until all commands enqueued on q have completed.
func (q *CommandQueue) Finish() error {
	if q == nil || !q.Valid() {
		return native.InvalidCommandQueue
	}
	return q.API().Finish(q.Native()).Err()
}

func (q *CommandQueue) Move() *CommandQueue {
	n := &CommandQueue{creation: q.creation, device: q.device, context: q.context}
	q.MoveTo(&n.Handle)
	return n
}
