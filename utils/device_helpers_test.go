package utils

import (
	"github.com/notargets/clkit/native/simcl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestOpenBackend(t *testing.T) {
	t.Run("Sim", func(t *testing.T) {
		api, err := OpenBackend(BackendSim, "")
		require.NoError(t, err)
		assert.IsType(t, &simcl.Runtime{}, api)
		CloseBackend(api)
	})

	t.Run("Auto", func(t *testing.T) {
		api, err := OpenBackend(BackendAuto, "")
		require.NoError(t, err)
		require.NotNil(t, api)
		defer CloseBackend(api)
		platforms, st := api.GetPlatformIDs(4)
		require.True(t, st.OK())
		assert.NotEmpty(t, platforms)
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := OpenBackend("metal", "")
		assert.Error(t, err)
	})
}
