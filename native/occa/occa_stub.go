//go:build !occa

// Package occa implements native.API on an OCCA device through gocca. This
// build carries no OCCA support; build with -tags occa to link it.
package occa

import (
	"errors"
	"github.com/notargets/clkit/native"
)

// ErrNotAvailable is returned by New when the OCCA device cannot be created.
var ErrNotAvailable = errors.New("occa: OCCA is not available (build without occa tag)")

// Runtime is never constructed in this build.
type Runtime struct {
	native.API
}

// New always fails in builds without the occa tag.
func New(props string) (*Runtime, error) {
	return nil, ErrNotAvailable
}

func (r *Runtime) Close() {}
