package deploy

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depotctl/depotctl/internal/pkg/errs"
	"github.com/depotctl/depotctl/pkg/ref"
)

func TestLoadDeployedNotDeployed(t *testing.T) {
	e, _ := newTestEngine(t)
	r := ref.Ref{Kind: ref.App, Name: "org.x.App", Arch: "x86_64", Branch: "stable"}
	_, err := e.LoadDeployed(r, hexChecksum(0xaa))
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.NotDeployed)
}

func TestLoadDeployedViaActive(t *testing.T) {
	e, layout := newTestEngine(t)
	r := ref.Ref{Kind: ref.App, Name: "org.x.App", Arch: "x86_64", Branch: "stable"}
	checksum := hexChecksum(0xaa)

	require.NoError(t, os.MkdirAll(layout.DeploymentDir(r, checksum), 0755))
	require.NoError(t, os.WriteFile(layout.MetadataFile(r, checksum), []byte("[Application]\nname=org.x.App\n"), 0644))
	require.NoError(t, os.Symlink(checksum, layout.ActiveLink(r)))

	d, err := e.LoadDeployed(r, "")
	require.NoError(t, err)
	assert.Equal(t, layout.DeploymentDir(r, checksum), d.Path)

	name, ok := d.Metadata.Get("Application", "name")
	require.True(t, ok)
	assert.Equal(t, "org.x.App", name)
}

func TestDeployedContextUserOnlyForUserInstallation(t *testing.T) {
	e, layout := newTestEngine(t)
	r := ref.Ref{Kind: ref.App, Name: "org.x.App", Arch: "x86_64", Branch: "stable"}
	checksum := hexChecksum(0xaa)
	require.NoError(t, os.MkdirAll(layout.DeploymentDir(r, checksum), 0755))
	require.NoError(t, os.MkdirAll(layout.OverridesDir(), 0755))
	require.NoError(t, os.WriteFile(layout.OverrideFile("org.x.App"), []byte("[Context]\nshared=network\n"), 0644))

	d, err := e.LoadDeployed(r, checksum)
	require.NoError(t, err)
	ctx, err := d.Context()
	require.NoError(t, err)
	v, ok := ctx.Get("Context", "shared")
	require.True(t, ok)
	assert.Equal(t, "network", v)
}

func TestDeployedContextMergesSystemForSystemInstallation(t *testing.T) {
	systemBase := t.TempDir()
	userBase := t.TempDir()
	systemLayout := ref.NewLayout(systemBase)
	userLayout := ref.NewLayout(userBase)

	e := &Engine{Layout: systemLayout, System: true, UserLayout: userLayout}
	r := ref.Ref{Kind: ref.App, Name: "org.x.App", Arch: "x86_64", Branch: "stable"}
	checksum := hexChecksum(0xaa)
	require.NoError(t, os.MkdirAll(systemLayout.DeploymentDir(r, checksum), 0755))

	require.NoError(t, os.MkdirAll(systemLayout.OverridesDir(), 0755))
	require.NoError(t, os.WriteFile(systemLayout.OverrideFile("org.x.App"), []byte("[Context]\nfilesystems=host\n"), 0644))
	require.NoError(t, os.MkdirAll(userLayout.OverridesDir(), 0755))
	require.NoError(t, os.WriteFile(userLayout.OverrideFile("org.x.App"), []byte("[Context]\nshared=network\n"), 0644))

	d, err := e.LoadDeployed(r, checksum)
	require.NoError(t, err)
	ctx, err := d.Context()
	require.NoError(t, err)

	fs, _ := ctx.Get("Context", "filesystems")
	shared, _ := ctx.Get("Context", "shared")
	assert.Equal(t, "host", fs)
	assert.Equal(t, "network", shared)
}
