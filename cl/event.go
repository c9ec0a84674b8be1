package cl

import (
	"github.com/notargets/clkit/native"
)

// Event is the completion signal of an enqueued command. Pass a *Event to
// an enqueue through its options to have it filled.
type Event struct {
	Handle[native.Event, releaseEvent]
}

// WrapEvent adopts an existing event handle.
func WrapEvent(api native.API, h native.Event, releaseOnDestroy bool) *Event {
	e := &Event{}
	e.reset(api, h, releaseOnDestroy)
	return e
}

// Wait blocks until the command behind e has completed.
func (e *Event) Wait() error {
	if e == nil || !e.Valid() {
		return native.InvalidEvent
	}
	return e.API().WaitForEvents([]native.Event{e.Native()}).Err()
}

func (e *Event) Move() *Event {
	n := &Event{}
	e.MoveTo(&n.Handle)
	return n
}

// WaitForEvents blocks until every event has completed. All events must
// come from the same API.
func WaitForEvents(events ...*Event) error {
	if len(events) == 0 {
		return native.InvalidValue
	}
	hs, st := nativeEvents(events)
	if !st.OK() {
		return st
	}
	return events[0].API().WaitForEvents(hs).Err()
}

func nativeEvents(events []*Event) ([]native.Event, native.Status) {
	if len(events) == 0 {
		return nil, native.Success
	}
	hs := make([]native.Event, len(events))
	for i, e := range events {
		if e == nil || !e.Valid() {
			return nil, native.InvalidEventWaitList
		}
		hs[i] = e.Native()
	}
	return hs, native.Success
}

// eventOut returns the out-parameter to hand to an enqueue call.
func eventOut(e *Event, h *native.Event) *native.Event {
	if e == nil {
		return nil
	}
	return h
}

// adopt stores a freshly returned event handle in e.
func adopt(e *Event, api native.API, h native.Event) {
	if e != nil && h != 0 {
		e.reset(api, h, true)
	}
}
