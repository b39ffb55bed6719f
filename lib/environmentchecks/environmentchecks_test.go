package environmentchecks

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleRequired(t *testing.T) {
	t.Setenv("ENVCHECK_PRESENT", "yes")
	t.Setenv("ENVCHECK_EMPTY", "")

	require.NoError(t, HandleRequired([]string{"ENVCHECK_PRESENT"}))

	err := HandleRequired([]string{"ENVCHECK_PRESENT", "ENVCHECK_EMPTY", "ENVCHECK_UNSET_7f3a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ENVCHECK_EMPTY")
	assert.Contains(t, err.Error(), "ENVCHECK_UNSET_7f3a")
	assert.NotContains(t, err.Error(), "ENVCHECK_PRESENT")
}

func TestHandleDefaults(t *testing.T) {
	t.Setenv("ENVCHECK_SET", "custom")
	t.Setenv("ENVCHECK_BLANK", "")
	// Registered so t restores the environment afterwards
	t.Setenv("ENVCHECK_DEFAULTED", "")
	os.Unsetenv("ENVCHECK_DEFAULTED")

	applied := HandleDefaults(map[string]string{
		"ENVCHECK_SET":       "default",
		"ENVCHECK_BLANK":     "default",
		"ENVCHECK_DEFAULTED": "default",
	})

	assert.Equal(t, []string{"ENVCHECK_DEFAULTED"}, applied)
	assert.Equal(t, "custom", os.Getenv("ENVCHECK_SET"))
	assert.Equal(t, "", os.Getenv("ENVCHECK_BLANK"))
	assert.Equal(t, "default", os.Getenv("ENVCHECK_DEFAULTED"))
}
