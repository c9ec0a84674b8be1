package utils

import (
	"errors"
	"fmt"
	"github.com/notargets/clkit/cl"
	"github.com/notargets/clkit/native"
	"github.com/notargets/clkit/native/occa"
	"github.com/notargets/clkit/native/opencl"
	"github.com/notargets/clkit/native/simcl"
)

// Backend names accepted by OpenBackend
const (
	BackendAuto   = "auto"
	BackendSim    = "sim"
	BackendOpenCL = "opencl"
	BackendOCCA   = "occa"
)

// occaModes are tried in order when the occa backend is opened without an
// explicit mode
var occaModes = []string{
	`{"mode": "OpenMP"}`,
	`{"mode": "CUDA", "device_id": 0}`,
	`{"mode": "Serial"}`,
}

// CreateTestRuntime returns a simulated runtime for tests and demos
func CreateTestRuntime() *simcl.Runtime {
	return simcl.New()
}

// Closer is implemented by backends that own process-wide state
type Closer interface {
	Close()
}

// OpenBackend opens a native API by name. "auto" prefers real hardware and
// falls back to the simulator, like the device probing it replaces. occaProps
// selects an OCCA mode; empty tries OpenMP, CUDA and Serial in turn.
func OpenBackend(name, occaProps string) (native.API, error) {
	switch name {
	case BackendSim:
		return CreateTestRuntime(), nil
	case BackendOpenCL:
		return opencl.New()
	case BackendOCCA:
		return openOCCA(occaProps)
	case BackendAuto, "":
		api, clErr := opencl.New()
		if clErr == nil {
			return api, nil
		}
		api, occaErr := openOCCA(occaProps)
		if occaErr == nil {
			return api, nil
		}
		cl.Logger().WithError(errors.Join(clErr, occaErr)).Info("no hardware backend, using simulator")
		return CreateTestRuntime(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}

func openOCCA(props string) (native.API, error) {
	modes := occaModes
	if props != "" {
		modes = []string{props}
	}
	var errs []error
	for _, p := range modes {
		rt, err := occa.New(p)
		if err == nil {
			cl.Logger().WithField("props", p).Debug("opened occa device")
			return rt, nil
		}
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("occa: %w", errors.Join(errs...))
}

// CloseBackend releases backend state when the API owns any
func CloseBackend(api native.API) {
	if c, ok := api.(Closer); ok {
		c.Close()
	}
}
