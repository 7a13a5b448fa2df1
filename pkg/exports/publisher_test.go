package exports

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depotctl/depotctl/pkg/ref"
)

func setupDeployedApp(t *testing.T) (ref.Layout, ref.Ref, string) {
	t.Helper()
	base := t.TempDir()
	layout := ref.NewLayout(base)
	r := ref.Ref{Kind: ref.App, Name: "org.x.App", Arch: "x86_64", Branch: "stable"}
	checksum := "aa" + strings.Repeat("0", 62)

	exportDir := layout.ExportDir(r, checksum)
	require.NoError(t, os.MkdirAll(exportDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(exportDir, "org.x.App.desktop"), []byte("data"), 0644))

	require.NoError(t, os.MkdirAll(filepath.Dir(layout.ActiveLink(r)), 0755))
	require.NoError(t, os.Symlink(checksum, layout.ActiveLink(r)))

	require.NoError(t, os.MkdirAll(filepath.Dir(layout.CurrentLink(r.Name)), 0755))
	require.NoError(t, os.Symlink(filepath.Join(r.Arch, r.Branch), layout.CurrentLink(r.Name)))

	return layout, r, checksum
}

func TestUpdateExportsMirrorsFiles(t *testing.T) {
	layout, r, checksum := setupDeployedApp(t)
	p := Publisher{Layout: layout, Helper: "/bin/true", TriggerDir: filepath.Join(layout.Base, "triggers")}

	require.NoError(t, p.UpdateExports(context.Background(), "org.x.App"))

	linkPath := filepath.Join(layout.ExportsDir(), "org.x.App.desktop")
	target, err := os.Readlink(linkPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("..", "app", "org.x.App", "current", "active", "export", "org.x.App.desktop"), target)

	resolved, err := filepath.EvalSymlinks(linkPath)
	require.NoError(t, err)
	want, err := filepath.EvalSymlinks(filepath.Join(layout.ExportDir(r, checksum), "org.x.App.desktop"))
	require.NoError(t, err)
	assert.Equal(t, want, resolved)
}

// TestExportSymlinkFollowsActiveRepoint confirms the literal
// current/active path components in the mirrored symlink's target mean
// a later repoint of those links (e.g. by MakeCurrent or a new deploy)
// changes what the exported symlink resolves to, without another mirror
// pass, per spec.md:55's "transitively resolves into a file within
// *some* app's current/active/export/ subtree" invariant.
func TestExportSymlinkFollowsActiveRepoint(t *testing.T) {
	layout, r, _ := setupDeployedApp(t)
	p := Publisher{Layout: layout, Helper: "/bin/true", TriggerDir: filepath.Join(layout.Base, "triggers")}
	require.NoError(t, p.UpdateExports(context.Background(), "org.x.App"))

	newChecksum := "bb" + strings.Repeat("0", 62)
	newR := ref.Ref{Kind: ref.App, Name: r.Name, Arch: "aarch64", Branch: r.Branch}
	newExportDir := layout.ExportDir(newR, newChecksum)
	require.NoError(t, os.MkdirAll(newExportDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(newExportDir, "org.x.App.desktop"), []byte("new data"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Dir(layout.ActiveLink(newR)), 0755))
	require.NoError(t, os.Symlink(newChecksum, layout.ActiveLink(newR)))

	require.NoError(t, os.Remove(layout.CurrentLink(r.Name)))
	require.NoError(t, os.Symlink(filepath.Join(newR.Arch, newR.Branch), layout.CurrentLink(r.Name)))

	linkPath := filepath.Join(layout.ExportsDir(), "org.x.App.desktop")
	resolved, err := filepath.EvalSymlinks(linkPath)
	require.NoError(t, err)
	want, err := filepath.EvalSymlinks(filepath.Join(newExportDir, "org.x.App.desktop"))
	require.NoError(t, err)
	assert.Equal(t, want, resolved)
}

func TestUpdateExportsSweepsDangling(t *testing.T) {
	base := t.TempDir()
	layout := ref.NewLayout(base)
	require.NoError(t, os.MkdirAll(layout.ExportsDir(), 0755))
	dangling := filepath.Join(layout.ExportsDir(), "stale.desktop")
	require.NoError(t, os.Symlink(filepath.Join(base, "nope"), dangling))

	p := Publisher{Layout: layout, Helper: "/bin/true", TriggerDir: filepath.Join(base, "triggers")}
	require.NoError(t, p.UpdateExports(context.Background(), ""))

	_, err := os.Lstat(dangling)
	assert.True(t, os.IsNotExist(err))
}

func TestUpdateExportsNoCurrentLinkIsNotError(t *testing.T) {
	base := t.TempDir()
	layout := ref.NewLayout(base)
	p := Publisher{Layout: layout, Helper: "/bin/true", TriggerDir: filepath.Join(base, "triggers")}
	assert.NoError(t, p.UpdateExports(context.Background(), "org.x.App"))
}
