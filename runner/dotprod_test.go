package runner

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestRunner_DotProduct(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		local int
	}{
		{"exact groups", 256, 64},
		{"ragged tail", 1000, 64},
		{"single item groups", 7, 1},
		{"one group", 10, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kr, _ := newRunner(t)
			a := make([]float32, tt.n)
			b := make([]float32, tt.n)
			var want float32
			for i := range a {
				a[i] = float32(i % 5)
				b[i] = 2
				want += a[i] * b[i]
			}
			got, err := kr.DotProduct(a, b, tt.local)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	t.Run("ReusesKernel", func(t *testing.T) {
		kr, _ := newRunner(t)
		_, err := kr.DotProduct([]float32{1}, []float32{1}, 1)
		require.NoError(t, err)
		k := kr.Kernels["dotprod"]
		require.NotNil(t, k)
		_, err = kr.DotProduct([]float32{1}, []float32{1}, 1)
		require.NoError(t, err)
		assert.Same(t, k, kr.Kernels["dotprod"])
	})

	t.Run("Errors", func(t *testing.T) {
		kr, _ := newRunner(t)
		_, err := kr.DotProduct(nil, nil, 2)
		assert.Error(t, err)
		_, err = kr.DotProduct([]float32{1, 2}, []float32{1}, 2)
		assert.Error(t, err)
		_, err = kr.DotProduct([]float32{1, 2}, []float32{1, 2}, 3)
		assert.Error(t, err)
	})

	t.Run("ReleasesBuffers", func(t *testing.T) {
		kr, rt := newRunner(t)
		_, err := kr.DotProduct([]float32{1, 2}, []float32{3, 4}, 2)
		require.NoError(t, err)
		live := rt.Live()
		_, err = kr.DotProduct([]float32{1, 2}, []float32{3, 4}, 2)
		require.NoError(t, err)
		assert.Equal(t, live, rt.Live())
	})
}
