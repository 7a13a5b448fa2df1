package ref

import "path/filepath"

// Layout resolves logical identifiers into on-disk paths rooted at one
// installation's base directory. Every method is a pure string/path
// computation; none of them touch the filesystem.
type Layout struct {
	Base string
}

// NewLayout returns a Layout rooted at base.
func NewLayout(base string) Layout {
	return Layout{Base: base}
}

// RepoDir is the content-addressed object store directory.
func (l Layout) RepoDir() string {
	return filepath.Join(l.Base, "repo")
}

// KindDir is the top-level directory for one deployment kind ("app" or "runtime").
func (l Layout) KindDir(kind Kind) string {
	return filepath.Join(l.Base, string(kind))
}

// NameDir is kind/name.
func (l Layout) NameDir(kind Kind, name string) string {
	return filepath.Join(l.KindDir(kind), name)
}

// ArchDir is kind/name/arch.
func (l Layout) ArchDir(kind Kind, name, arch string) string {
	return filepath.Join(l.NameDir(kind, name), arch)
}

// BranchDir is kind/name/arch/branch, the directory whose children are the
// deployed checksums of one ref plus its active symlink.
func (l Layout) BranchDir(r Ref) string {
	return filepath.Join(l.ArchDir(r.Kind, r.Name, r.Arch), r.Branch)
}

// DeployDir is the literal base/ref join, get_deploy_dir in §4.1: the
// directory whose children are this ref's deployed checksums.
func (l Layout) DeployDir(r Ref) string {
	return filepath.Join(l.Base, r.Kind.String(), r.Name, r.Arch, r.Branch)
}

// String returns the kind as a plain string, used by DeployDir's literal join.
func (k Kind) String() string { return string(k) }

// DeploymentDir is the checkout directory of one commit of one ref.
func (l Layout) DeploymentDir(r Ref, checksum string) string {
	return filepath.Join(l.DeployDir(r), checksum)
}

// FilesDir is {deployment}/files.
func (l Layout) FilesDir(r Ref, checksum string) string {
	return filepath.Join(l.DeploymentDir(r, checksum), "files")
}

// RefFile is {deployment}/files/.ref, the zero-byte lock anchor.
func (l Layout) RefFile(r Ref, checksum string) string {
	return filepath.Join(l.FilesDir(r, checksum), ".ref")
}

// MetadataFile is {deployment}/metadata.
func (l Layout) MetadataFile(r Ref, checksum string) string {
	return filepath.Join(l.DeploymentDir(r, checksum), "metadata")
}

// ExportDir is {deployment}/export.
func (l Layout) ExportDir(r Ref, checksum string) string {
	return filepath.Join(l.DeploymentDir(r, checksum), "export")
}

// OriginFile is {deployment}/origin.
func (l Layout) OriginFile(r Ref, checksum string) string {
	return filepath.Join(l.DeploymentDir(r, checksum), "origin")
}

// ActiveLink is {branch-dir}/active.
func (l Layout) ActiveLink(r Ref) string {
	return filepath.Join(l.BranchDir(r), "active")
}

// CurrentLink is {installation}/app/{name}/current, valid only for app kind.
func (l Layout) CurrentLink(name string) string {
	return filepath.Join(l.NameDir(App, name), "current")
}

// ExportsDir is the installation-wide published-exports tree.
func (l Layout) ExportsDir() string {
	return filepath.Join(l.Base, "exports")
}

// OverridesDir is the per-app override files directory.
func (l Layout) OverridesDir() string {
	return filepath.Join(l.Base, "overrides")
}

// OverrideFile is {installation}/overrides/{app-id}.
func (l Layout) OverrideFile(appID string) string {
	return filepath.Join(l.OverridesDir(), appID)
}

// RemovedDir is the quarantine directory for undeployed-but-locked checkouts.
func (l Layout) RemovedDir() string {
	return filepath.Join(l.Base, ".removed")
}

// QuarantinePath is {.removed}/{tmp}, where tmp is caller-generated
// ("{random}-{checksum}" per §4.8 step 3).
func (l Layout) QuarantinePath(tmp string) string {
	return filepath.Join(l.RemovedDir(), tmp)
}
