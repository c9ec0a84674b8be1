package cl

import (
	"github.com/notargets/clkit/native"
	"reflect"
	"unsafe"
)

// Arg is implemented by values that know how to present themselves as a
// native kernel argument. It takes precedence over the default rule.
type Arg interface {
	ArgSize() uintptr
	ArgPointer() unsafe.Pointer
}

// typedArg is implemented by Arg values that also know their scalar kind.
type typedArg interface {
	ArgType() native.ArgType
}

// LocalMemory reserves Size bytes of work-group local memory for a kernel
// parameter. No host data is passed.
type LocalMemory struct {
	Size uintptr
}

func (l LocalMemory) ArgSize() uintptr { return l.Size }

func (LocalMemory) ArgPointer() unsafe.Pointer { return nil }

func (LocalMemory) ArgType() native.ArgType { return native.ArgLocal }

// LocalFor returns local memory for n elements of T.
func LocalFor[T any](n int) LocalMemory {
	var v T
	return LocalMemory{Size: uintptr(n) * unsafe.Sizeof(v)}
}

var argTypes = map[reflect.Kind]native.ArgType{
	reflect.Bool:    native.ArgBool,
	reflect.Int8:    native.ArgInt8,
	reflect.Uint8:   native.ArgUint8,
	reflect.Int16:   native.ArgInt16,
	reflect.Uint16:  native.ArgUint16,
	reflect.Int32:   native.ArgInt32,
	reflect.Uint32:  native.ArgUint32,
	reflect.Int64:   native.ArgInt64,
	reflect.Uint64:  native.ArgUint64,
	reflect.Float32: native.ArgFloat32,
	reflect.Float64: native.ArgFloat64,
	reflect.Uintptr: native.ArgHandle,
}

// ResolveArg returns the byte size and address to hand to the native
// set-argument call for v, along with its scalar kind.
//
// Arg implementations describe themselves. Any other value must be of a
// fixed-size type free of Go pointers; it is copied and the copy's address
// is returned. Everything else resolves to native.InvalidArgValue.
func ResolveArg(v any) (size uintptr, ptr unsafe.Pointer, kind native.ArgType, st native.Status) {
	if a, ok := v.(Arg); ok {
		kind = native.ArgRaw
		if t, ok := a.(typedArg); ok {
			kind = t.ArgType()
		}
		return a.ArgSize(), a.ArgPointer(), kind, native.Success
	}
	if v == nil {
		return 0, nil, native.ArgRaw, native.InvalidArgValue
	}
	rv := reflect.ValueOf(v)
	t := rv.Type()
	if !marshallable(t) {
		return 0, nil, native.ArgRaw, native.InvalidArgValue
	}
	cp := reflect.New(t)
	cp.Elem().Set(rv)
	kind = argTypes[t.Kind()]
	switch {
	case t.Kind() == reflect.Int && t.Size() == 8:
		kind = native.ArgInt64
	case t.Kind() == reflect.Uint && t.Size() == 8:
		kind = native.ArgUint64
	}
	return t.Size(), cp.UnsafePointer(), kind, native.Success
}

// marshallable reports whether values of t can be passed as raw bytes.
func marshallable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return marshallable(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !marshallable(t.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
