package override

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depotctl/depotctl/pkg/ref"
)

func TestLoadAbsentYieldsEmpty(t *testing.T) {
	layout := ref.NewLayout(t.TempDir())
	kf, err := Load(layout, "org.x.App")
	require.NoError(t, err)
	assert.Empty(t, kf.Groups())
}

func TestLoadMalformedFails(t *testing.T) {
	base := t.TempDir()
	layout := ref.NewLayout(base)
	require.NoError(t, writeRaw(t, layout.OverrideFile("org.x.App"), "[[[not valid"))
	_, err := Load(layout, "org.x.App")
	require.Error(t, err)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	layout := ref.NewLayout(t.TempDir())
	kf, err := Load(layout, "org.x.App")
	require.NoError(t, err)
	kf.Set("Context", "filesystems", "host")

	require.NoError(t, Save(layout, "org.x.App", kf))

	loaded, err := Load(layout, "org.x.App")
	require.NoError(t, err)
	v, ok := loaded.Get("Context", "filesystems")
	require.True(t, ok)
	assert.Equal(t, "host", v)
}

func TestMerged(t *testing.T) {
	layout := ref.NewLayout(t.TempDir())
	sys, _ := Load(layout, "org.x.App")
	sys.Set("Context", "filesystems", "host")
	user, _ := Load(layout, "org.x.App")
	user.Set("Context", "shared", "network")

	merged := Merged(sys, user)
	v1, _ := merged.Get("Context", "filesystems")
	v2, _ := merged.Get("Context", "shared")
	assert.Equal(t, "host", v1)
	assert.Equal(t, "network", v2)
}

func writeRaw(t *testing.T, path, content string) error {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}
