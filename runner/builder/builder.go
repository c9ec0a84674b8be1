package builder

import (
	"fmt"
	"github.com/notargets/clkit/native"
)

// DataType represents the element type of device data
type DataType int

const (
	Float32 DataType = iota + 1
	Float64
	INT32
	INT64
	UINT32
)

// Config holds the runner configuration
type Config struct {
	// DeviceType selects the device; zero means native.DeviceTypeDefault
	DeviceType native.DeviceType
	// BuildOptions are passed to every program build
	BuildOptions string
}

// EffectiveDeviceType returns the device type to select
func (c Config) EffectiveDeviceType() native.DeviceType {
	if c.DeviceType == 0 {
		return native.DeviceTypeDefault
	}
	return c.DeviceType
}

// SizeOf returns the size in bytes of a data type
func SizeOf(dt DataType) int64 {
	switch dt {
	case Float32, INT32, UINT32:
		return 4
	case Float64, INT64:
		return 8
	default:
		return 8
	}
}

// TypeName returns the OpenCL C type name for a data type
func TypeName(dt DataType) string {
	switch dt {
	case Float32:
		return "float"
	case Float64:
		return "double"
	case INT32:
		return "int"
	case INT64:
		return "long"
	case UINT32:
		return "uint"
	default:
		return "double"
	}
}

func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "Float32"
	case Float64:
		return "Float64"
	case INT32:
		return "INT32"
	case INT64:
		return "INT64"
	case UINT32:
		return "UINT32"
	default:
		return fmt.Sprintf("DataType(%d)", int(dt))
	}
}
