package cl

import (
	"fmt"
	"github.com/notargets/clkit/native"
	"github.com/sirupsen/logrus"
)

// SetKernelArgs binds args to kernel at indices start, start+1, ... in order.
//
// Every argument is attempted even after a failure. The statuses of all
// calls are OR-combined, so a non-nil result says that some index failed but
// not which one. An argument that cannot be marshalled makes no native call
// and contributes native.InvalidArgValue.
func SetKernelArgs(api native.API, kernel native.Kernel, start uint32, args ...any) error {
	var combined native.Status
	for i, a := range args {
		combined |= setKernelArg(api, kernel, start+uint32(i), a)
	}
	return combined.Err()
}

func setKernelArg(api native.API, kernel native.Kernel, index uint32, a any) native.Status {
	size, ptr, kind, st := ResolveArg(a)
	if !st.OK() {
		Logger().WithFields(logrus.Fields{
			"index": index,
			"type":  fmt.Sprintf("%T", a),
		}).Debug("cl: argument cannot be marshalled")
		return st
	}
	if ts, ok := api.(native.TypedArgSetter); ok {
		return ts.SetKernelArgTyped(kernel, index, size, ptr, kind)
	}
	return api.SetKernelArg(kernel, index, size, ptr)
}
