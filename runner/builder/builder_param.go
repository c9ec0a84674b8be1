package builder

import (
	"fmt"
	"gonum.org/v1/gonum/mat"
	"reflect"
)

// Direction indicates parameter data flow
type Direction int

const (
	DirectionInput Direction = iota
	DirectionOutput
	DirectionInOut
	DirectionTemp
	DirectionScalar
	DirectionLocal
)

// ParamBuilder provides a fluent interface for building kernel parameters
type ParamBuilder struct {
	Spec ParamSpec
}

// ParamSpec holds the complete specification for a kernel parameter
type ParamSpec struct {
	Name        string
	Direction   Direction
	HostBinding interface{}

	// Type and size (inferred or explicit)
	DataType DataType
	Size     int64

	// Data movement
	DoCopyTo    bool
	DoCopyBack  bool
	ConvertType DataType // 0 means no conversion

	// Pinned requests host-accessible device memory
	Pinned bool

	// Matrix attributes
	IsMatrix   bool
	MatrixRows int
	MatrixCols int
}

func newParam(name string, dir Direction) *ParamBuilder {
	return &ParamBuilder{
		Spec: ParamSpec{
			Name:      name,
			Direction: dir,
			Pinned:    dir != DirectionTemp,
		},
	}
}

// Input creates a parameter specification for a const input
func Input(deviceName string) *ParamBuilder { return newParam(deviceName, DirectionInput) }

// Output creates a parameter specification for a non-const output
func Output(deviceName string) *ParamBuilder { return newParam(deviceName, DirectionOutput) }

// InOut creates a parameter specification for a non-const input/output
func InOut(deviceName string) *ParamBuilder { return newParam(deviceName, DirectionInOut) }

// Scalar creates a parameter specification for a value passed by copy
func Scalar(deviceName string) *ParamBuilder { return newParam(deviceName, DirectionScalar) }

// Temp creates a parameter specification for a device-only temporary array
func Temp(deviceName string) *ParamBuilder { return newParam(deviceName, DirectionTemp) }

// Local creates a parameter specification for work-group local scratch
// memory. Size is in elements of the parameter type.
func Local(deviceName string) *ParamBuilder { return newParam(deviceName, DirectionLocal) }

// Bind associates a host variable with this parameter
func (p *ParamBuilder) Bind(hostVar interface{}) *ParamBuilder {
	p.Spec.HostBinding = hostVar
	p.inferFromBinding()
	return p
}

// Copy sets bidirectional copy (host→device before, device→host after)
func (p *ParamBuilder) Copy() *ParamBuilder {
	p.Spec.DoCopyTo = true
	p.Spec.DoCopyBack = true
	return p
}

// CopyTo sets host→device copy before kernel execution
func (p *ParamBuilder) CopyTo() *ParamBuilder {
	p.Spec.DoCopyTo = true
	return p
}

// CopyBack sets device→host copy after kernel execution
func (p *ParamBuilder) CopyBack() *ParamBuilder {
	p.Spec.DoCopyBack = true
	return p
}

// NoCopy explicitly disables data movement
func (p *ParamBuilder) NoCopy() *ParamBuilder {
	p.Spec.DoCopyTo = false
	p.Spec.DoCopyBack = false
	return p
}

// Convert sets type conversion during copy operations
func (p *ParamBuilder) Convert(toType DataType) *ParamBuilder {
	p.Spec.ConvertType = toType
	return p
}

// Type sets explicit type (mainly for Temp and Local)
func (p *ParamBuilder) Type(dataType DataType) *ParamBuilder {
	p.Spec.DataType = dataType
	return p
}

// Size sets explicit size in elements (mainly for Temp and Local)
func (p *ParamBuilder) Size(elements int) *ParamBuilder {
	p.Spec.Size = int64(elements)
	return p
}

// Device allocates plain device memory instead of pinned host memory
func (p *ParamBuilder) Device() *ParamBuilder {
	p.Spec.Pinned = false
	return p
}

// inferFromBinding extracts type and size information from the host binding
func (p *ParamBuilder) inferFromBinding() {
	if p.Spec.HostBinding == nil {
		return
	}

	// Handle mat.Matrix
	if m, ok := p.Spec.HostBinding.(mat.Matrix); ok {
		rows, cols := m.Dims()
		p.Spec.Size = int64(rows * cols)
		p.Spec.DataType = Float64 // gonum matrices are float64
		p.Spec.IsMatrix = true
		p.Spec.MatrixRows = rows
		p.Spec.MatrixCols = cols
		return
	}

	v := reflect.ValueOf(p.Spec.HostBinding)
	t := v.Type()

	if t.Kind() == reflect.Slice {
		p.Spec.Size = int64(v.Len())
		p.Spec.DataType = DataTypeOf(t.Elem().Kind())
		return
	}

	// Scalars
	p.Spec.DataType = DataTypeOf(t.Kind())
	p.Spec.Size = 1
}

// DataTypeOf maps a reflect.Kind to a DataType, or 0 if none matches
func DataTypeOf(kind reflect.Kind) DataType {
	switch kind {
	case reflect.Float32:
		return Float32
	case reflect.Float64:
		return Float64
	case reflect.Int32:
		return INT32
	case reflect.Int, reflect.Int64:
		return INT64
	case reflect.Uint32:
		return UINT32
	default:
		return 0
	}
}

// Validate checks if the parameter specification is complete and valid
func (p *ParamSpec) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("parameter name cannot be empty")
	}

	switch p.Direction {
	case DirectionScalar:
		if p.HostBinding == nil {
			return fmt.Errorf("scalar %s needs binding", p.Name)
		}
		if p.DataType == 0 {
			return fmt.Errorf("scalar %s has unsupported type %T", p.Name, p.HostBinding)
		}
		return nil
	case DirectionLocal, DirectionTemp:
		if p.HostBinding != nil {
			return fmt.Errorf("%s %s cannot have host binding", p.kind(), p.Name)
		}
		if p.DoCopyTo || p.DoCopyBack {
			return fmt.Errorf("%s %s cannot have copy operations", p.kind(), p.Name)
		}
	}

	if p.Size == 0 {
		return fmt.Errorf("array %s needs size", p.Name)
	}
	if p.DataType == 0 {
		return fmt.Errorf("array %s needs type", p.Name)
	}
	if p.NeedsConversion() && !convertible(p.DataType, p.ConvertType) {
		return fmt.Errorf("array %s cannot convert %v to %v", p.Name, p.DataType, p.ConvertType)
	}
	return nil
}

func (p *ParamSpec) kind() string {
	if p.Direction == DirectionLocal {
		return "local array"
	}
	return "temp array"
}

// convertible reports whether host data of type from can be stored as to
func convertible(from, to DataType) bool {
	switch {
	case from == to:
		return true
	case (from == Float64 || from == Float32) && (to == Float64 || to == Float32):
		return true
	case (from == INT64 || from == INT32) && (to == INT64 || to == INT32):
		return true
	default:
		return false
	}
}

// IsConst returns whether this parameter should be const in the kernel signature
func (p *ParamSpec) IsConst() bool {
	switch p.Direction {
	case DirectionInput, DirectionScalar:
		return true
	default:
		return false
	}
}

// NeedsCopyTo returns whether this parameter needs host→device copy
func (p *ParamSpec) NeedsCopyTo() bool {
	return p.DoCopyTo && p.HostBinding != nil
}

// NeedsCopyBack returns whether this parameter needs device→host copy
func (p *ParamSpec) NeedsCopyBack() bool {
	return p.DoCopyBack && p.HostBinding != nil
}

// NeedsConversion reports whether host and device types differ
func (p *ParamSpec) NeedsConversion() bool {
	return p.ConvertType != 0 && p.ConvertType != p.DataType
}

// GetEffectiveType returns the type to use on device (considering conversion)
func (p *ParamSpec) GetEffectiveType() DataType {
	if p.ConvertType != 0 {
		return p.ConvertType
	}
	return p.DataType
}
