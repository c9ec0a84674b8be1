//go:build !opencl

// Package opencl implements native.API on the system OpenCL ICD loader.
// This build carries no OpenCL support; build with -tags opencl to link it.
package opencl

import (
	"errors"
	"github.com/notargets/clkit/native"
)

// ErrNotAvailable is returned by New when no OpenCL platform can be found.
var ErrNotAvailable = errors.New("opencl: OpenCL is not available (build without opencl tag)")

// New always fails in builds without the opencl tag.
func New() (native.API, error) {
	return nil, ErrNotAvailable
}
