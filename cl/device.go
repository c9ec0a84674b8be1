package cl

import (
	"github.com/notargets/clkit/native"
)

// Device is a runtime-owned device. Release only forgets the handle.
type Device struct {
	Handle[native.Device, noRelease[native.Device]]
	creation
}

// WrapDevice adopts an existing device handle.
func WrapDevice(api native.API, h native.Device) *Device {
	d := &Device{}
	d.reset(api, h, true)
	return d
}

// SelectFirst populates d with the first device of type t on p.
func (d *Device) SelectFirst(p *Platform, t native.DeviceType) error {
	if p == nil || !p.Valid() {
		return d.done(native.InvalidPlatform)
	}
	ids, st := p.API().GetDeviceIDs(p.Native(), t, 1)
	if !st.OK() {
		d.Release()
		return d.done(st)
	}
	d.reset(p.API(), ids[0], true)
	return d.done(st)
}

// Devices returns every device of type t on p.
func Devices(p *Platform, t native.DeviceType) ([]*Device, error) {
	if p == nil || !p.Valid() {
		return nil, native.InvalidPlatform
	}
	ids, st := p.API().GetDeviceIDs(p.Native(), t, maxEnumerate)
	if !st.OK() {
		return nil, st
	}
	out := make([]*Device, len(ids))
	for i, id := range ids {
		out[i] = WrapDevice(p.API(), id)
	}
	return out, nil
}

func (d *Device) Name() (string, error) {
	if d == nil || !d.Valid() {
		return "", native.InvalidDevice
	}
	name, st := d.API().DeviceName(d.Native())
	return name, st.Err()
}

func (d *Device) Move() *Device {
	n := &Device{creation: d.creation}
	d.MoveTo(&n.Handle)
	return n
}
