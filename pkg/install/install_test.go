package install

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserBaseFromXDGDataHome(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	assert.Equal(t, filepath.Join("/custom/data", "depotctl"), userBase())
}

func TestNewInstallationHoldsLayout(t *testing.T) {
	base := t.TempDir()
	i := New(base, true)
	assert.Equal(t, base, i.Layout.Base)
	assert.True(t, i.System)
}
