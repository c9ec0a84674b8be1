package commands

import (
	"bytes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&logs)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestDevices(t *testing.T) {
	t.Run("All", func(t *testing.T) {
		out, err := run(t, "--backend", "sim", "--device", "all", "devices")
		require.NoError(t, err)
		assert.Contains(t, out, "platform 0")
		assert.Contains(t, out, "sim-gpu0")
		assert.Contains(t, out, "sim-cpu0")
	})

	t.Run("CPUOnly", func(t *testing.T) {
		out, err := run(t, "--backend", "sim", "--device", "cpu", "devices")
		require.NoError(t, err)
		assert.Contains(t, out, "sim-cpu0")
		assert.NotContains(t, out, "sim-gpu0")
	})
}

func TestDotProd(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		out, err := run(t, "--backend", "sim", "dotprod")
		require.NoError(t, err)
		assert.Contains(t, out, "device: sim-gpu0")
		assert.Contains(t, out, "result: 40000\n")
		assert.Contains(t, out, "expected: 40000\n")
	})

	t.Run("Flags", func(t *testing.T) {
		out, err := run(t, "--backend", "sim", "dotprod", "-n", "100", "-l", "16", "--value", "3")
		require.NoError(t, err)
		assert.Contains(t, out, "result: 900\n")
	})

	t.Run("ConfigFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "clkit.yaml")
		require.NoError(t, os.WriteFile(path, []byte("backend: sim\ndevice: cpu\ndot:\n  length: 64\n  work_group_size: 8\n"), 0o644))
		out, err := run(t, "--config", path, "dotprod", "--value", "1")
		require.NoError(t, err)
		assert.Contains(t, out, "device: sim-cpu0")
		assert.Contains(t, out, "result: 64\n")
	})

	t.Run("BadLocal", func(t *testing.T) {
		_, err := run(t, "--backend", "sim", "dotprod", "-l", "12")
		assert.Error(t, err)
	})
}

func TestRoot_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown backend", []string{"--backend", "metal", "devices"}},
		{"unknown device", []string{"--backend", "sim", "--device", "fpga", "devices"}},
		{"missing config", []string{"--config", "/nonexistent/clkit.yaml", "devices"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			assert.Error(t, err)
		})
	}
}
