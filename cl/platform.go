package cl

import (
	"github.com/notargets/clkit/native"
)

// maxEnumerate bounds platform and device enumeration.
const maxEnumerate = 64

// Platform is a runtime-owned platform. Release only forgets the handle.
type Platform struct {
	Handle[native.Platform, noRelease[native.Platform]]
	creation
}

// WrapPlatform adopts an existing platform handle.
func WrapPlatform(api native.API, h native.Platform) *Platform {
	p := &Platform{}
	p.reset(api, h, true)
	return p
}

// SelectFirst populates p with the first platform api reports.
func (p *Platform) SelectFirst(api native.API) error {
	ids, st := api.GetPlatformIDs(1)
	if !st.OK() {
		p.Release()
		return p.done(st)
	}
	p.reset(api, ids[0], true)
	return p.done(st)
}

// Platforms returns every platform api reports.
func Platforms(api native.API) ([]*Platform, error) {
	ids, st := api.GetPlatformIDs(maxEnumerate)
	if !st.OK() {
		return nil, st
	}
	out := make([]*Platform, len(ids))
	for i, id := range ids {
		out[i] = WrapPlatform(api, id)
	}
	return out, nil
}

func (p *Platform) Move() *Platform {
	n := &Platform{creation: p.creation}
	p.MoveTo(&n.Handle)
	return n
}
