package ref

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLayoutPaths(t *testing.T) {
	l := NewLayout("/base")
	r := Ref{Kind: App, Name: "org.x.App", Arch: "x86_64", Branch: "stable"}
	checksum := "aa00000000000000000000000000000000000000000000000000000000000"

	assert.Equal(t, "/base/repo", l.RepoDir())
	assert.Equal(t, "/base/app/org.x.App/x86_64/stable", l.DeployDir(r))
	assert.Equal(t, "/base/app/org.x.App/x86_64/stable/"+checksum, l.DeploymentDir(r, checksum))
	assert.Equal(t, "/base/app/org.x.App/x86_64/stable/"+checksum+"/files", l.FilesDir(r, checksum))
	assert.Equal(t, "/base/app/org.x.App/x86_64/stable/"+checksum+"/files/.ref", l.RefFile(r, checksum))
	assert.Equal(t, "/base/app/org.x.App/x86_64/stable/"+checksum+"/metadata", l.MetadataFile(r, checksum))
	assert.Equal(t, "/base/app/org.x.App/x86_64/stable/"+checksum+"/export", l.ExportDir(r, checksum))
	assert.Equal(t, "/base/app/org.x.App/x86_64/stable/"+checksum+"/origin", l.OriginFile(r, checksum))
	assert.Equal(t, "/base/app/org.x.App/x86_64/stable/active", l.ActiveLink(r))
	assert.Equal(t, "/base/app/org.x.App/current", l.CurrentLink("org.x.App"))
	assert.Equal(t, "/base/exports", l.ExportsDir())
	assert.Equal(t, "/base/overrides/org.x.App", l.OverrideFile("org.x.App"))
	assert.Equal(t, "/base/.removed", l.RemovedDir())
	assert.Equal(t, "/base/.removed/tmp-"+checksum, l.QuarantinePath("tmp-"+checksum))
}
