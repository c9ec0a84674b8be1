package runner

import (
	"fmt"
	"github.com/notargets/clkit/runner/builder"
	"gonum.org/v1/gonum/mat"
	"unsafe"
)

// number is the set of element types a binding may hold on either side
type number interface {
	~float32 | ~float64 | ~int32 | ~int64 | ~uint32
}

// viewAs reinterprets mapped device bytes as elements of E
func viewAs[E number](b []byte) []E {
	var e E
	n := len(b) / int(unsafe.Sizeof(e))
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*E)(unsafe.Pointer(&b[0])), n)
}

func convertInto[D, S number](dst []D, src []S) {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i] = D(src[i])
	}
}

// encode writes src into device bytes as elements of deviceType
func encode[S number](dst []byte, src []S, deviceType builder.DataType) error {
	switch deviceType {
	case builder.Float32:
		convertInto(viewAs[float32](dst), src)
	case builder.Float64:
		convertInto(viewAs[float64](dst), src)
	case builder.INT32:
		convertInto(viewAs[int32](dst), src)
	case builder.INT64:
		convertInto(viewAs[int64](dst), src)
	case builder.UINT32:
		convertInto(viewAs[uint32](dst), src)
	default:
		return fmt.Errorf("unsupported device type %v", deviceType)
	}
	return nil
}

// decode reads device bytes holding deviceType elements into dst
func decode[D number](dst []D, src []byte, deviceType builder.DataType) error {
	switch deviceType {
	case builder.Float32:
		convertInto(dst, viewAs[float32](src))
	case builder.Float64:
		convertInto(dst, viewAs[float64](src))
	case builder.INT32:
		convertInto(dst, viewAs[int32](src))
	case builder.INT64:
		convertInto(dst, viewAs[int64](src))
	case builder.UINT32:
		convertInto(dst, viewAs[uint32](src))
	default:
		return fmt.Errorf("unsupported device type %v", deviceType)
	}
	return nil
}

// encodeHost dispatches on the host slice type
func encodeHost(dst []byte, host interface{}, deviceType builder.DataType) error {
	switch data := host.(type) {
	case []float32:
		return encode(dst, data, deviceType)
	case []float64:
		return encode(dst, data, deviceType)
	case []int32:
		return encode(dst, data, deviceType)
	case []int64:
		return encode(dst, data, deviceType)
	case []int:
		return encode(dst, intsAs64(data), deviceType)
	case []uint32:
		return encode(dst, data, deviceType)
	default:
		return fmt.Errorf("unsupported host type %T", host)
	}
}

func decodeHost(host interface{}, src []byte, deviceType builder.DataType) error {
	switch data := host.(type) {
	case []float32:
		return decode(data, src, deviceType)
	case []float64:
		return decode(data, src, deviceType)
	case []int32:
		return decode(data, src, deviceType)
	case []int64:
		return decode(data, src, deviceType)
	case []int:
		tmp := make([]int64, len(data))
		if err := decode(tmp, src, deviceType); err != nil {
			return err
		}
		for i, v := range tmp {
			data[i] = int(v)
		}
		return nil
	case []uint32:
		return decode(data, src, deviceType)
	default:
		return fmt.Errorf("unsupported host type %T", host)
	}
}

func intsAs64(data []int) []int64 {
	out := make([]int64, len(data))
	for i, v := range data {
		out[i] = int64(v)
	}
	return out
}

// columnMajor flattens m column by column, the layout kernels index as
// A[col*rows+row]
func columnMajor(m mat.Matrix) []float64 {
	rows, cols := m.Dims()
	out := make([]float64, rows*cols)
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			out[j*rows+i] = m.At(i, j)
		}
	}
	return out
}

// setColumnMajor stores column-major data back into m
func setColumnMajor(m mat.Mutable, data []float64) {
	rows, cols := m.Dims()
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			m.Set(i, j, data[j*rows+i])
		}
	}
}
