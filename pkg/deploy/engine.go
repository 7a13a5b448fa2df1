// Package deploy implements the Deployment Engine (§4.8): the central
// orchestrator for pull, checkout, export rewrite, active/current
// symlink maintenance, undeploy, prune, and ref listing.
package deploy

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/coreos/pkg/capnslog"

	"github.com/depotctl/depotctl/internal/pkg/atomicfile"
	"github.com/depotctl/depotctl/internal/pkg/errs"
	"github.com/depotctl/depotctl/pkg/exports"
	"github.com/depotctl/depotctl/pkg/lock"
	"github.com/depotctl/depotctl/pkg/objectstore"
	"github.com/depotctl/depotctl/pkg/progress"
	"github.com/depotctl/depotctl/pkg/ref"
)

var plog = capnslog.NewPackageLogger("github.com/depotctl/depotctl", "deploy")

// Engine owns one installation's base directory and object store handle.
type Engine struct {
	Layout     ref.Layout
	Store      *objectstore.Store
	SandboxBin string
	System     bool // true for the system-wide installation, false for per-user

	// UserLayout is the companion per-user installation's layout,
	// consulted by the Deploy Inspector's override merge when this
	// Engine is the system-wide installation (§4.10). Unused otherwise.
	UserLayout ref.Layout

	Publisher exports.Publisher
}

// checkoutMode returns CheckoutUser for per-user installations (preserve
// calling-user uid/gid) and CheckoutNone for the system installation.
func (e *Engine) checkoutMode() objectstore.CheckoutMode {
	if e.System {
		return objectstore.CheckoutNone
	}
	return objectstore.CheckoutUser
}

// ResolveRemote implements the origin-resolution order for Deploy's
// remote argument: an explicit remote wins;
// otherwise the deployment's origin file is consulted (an empty
// originPath means no existing deployment to read one from); otherwise
// the operation fails with errs.NotFound.
func ResolveRemote(explicit string, originPath string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if originPath == "" {
		return "", errs.New(errs.NotFound, "no remote given and no existing deployment to read an origin from")
	}
	data, err := os.ReadFile(originPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errs.Newf(errs.NotFound, "no remote given and no origin file at %s", originPath)
		}
		return "", errs.Wrapf(errs.IOError, err, "reading origin file %s", originPath)
	}
	remote := strings.TrimSpace(string(data))
	if remote == "" {
		return "", errs.Newf(errs.NotFound, "origin file %s is empty", originPath)
	}
	return remote, nil
}

// activeOriginPath returns the origin file path of ref's currently
// active deployment, or "" if ref has no active deployment.
func (e *Engine) activeOriginPath(r ref.Ref) (string, error) {
	active, err := e.ReadActive(r)
	if err != nil {
		return "", err
	}
	if active == "" {
		return "", nil
	}
	return e.Layout.OriginFile(r, active), nil
}

// Deploy installs ref at checksum (resolving the latest commit for
// remote if checksum is empty), following §4.8 steps 1-8.
func (e *Engine) Deploy(ctx context.Context, r ref.Ref, checksum, remote string, ph progress.Handle) (string, error) {
	if ph == nil {
		ph = progress.Noop
	}

	if checksum == "" {
		originPath, err := e.activeOriginPath(r)
		if err != nil {
			return "", err
		}
		resolvedRemote, err := ResolveRemote(remote, originPath)
		if err != nil {
			return "", err
		}
		checksum, err = e.Store.Resolve(ctx, resolvedRemote+":"+r.String())
		if err != nil {
			return "", errs.Wrapf(errs.NotFound, err, "resolving %s from %s", r, resolvedRemote)
		}
		remote = resolvedRemote
	} else if !e.Store.HasCommit(ctx, checksum) {
		originPath, err := e.activeOriginPath(r)
		if err != nil {
			return "", err
		}
		resolvedRemote, err := ResolveRemote(remote, originPath)
		if err != nil {
			return "", err
		}
		if err := e.Store.PullChecksum(ctx, resolvedRemote, checksum); err != nil {
			return "", err
		}
		remote = resolvedRemote
	}

	checkoutDir := e.Layout.DeploymentDir(r, checksum)
	if _, err := os.Stat(checkoutDir); err == nil {
		return "", errs.Newf(errs.AlreadyDeployed, "%s at %s is already deployed", r, checksum)
	}

	if err := e.Store.CheckoutTree(ctx, checksum, checkoutDir, e.checkoutMode()); err != nil {
		return "", err
	}

	refFile := filepath.Join(checkoutDir, "files", ".ref")
	if err := os.WriteFile(refFile, nil, 0644); err != nil {
		return "", errs.Wrapf(errs.IOError, err, "writing %s", refFile)
	}

	if remote != "" {
		originFile := filepath.Join(checkoutDir, "origin")
		if err := os.WriteFile(originFile, []byte(remote+"\n"), 0644); err != nil {
			return "", errs.Wrapf(errs.IOError, err, "writing %s", originFile)
		}
	}

	exportDir := filepath.Join(checkoutDir, "export")
	if _, err := os.Stat(exportDir); err == nil {
		if err := exports.RewriteTree(exportDir, exports.RewriteParams{
			SandboxBin: e.SandboxBin,
			AppID:      r.Name,
			Branch:     r.Branch,
			Arch:       r.Arch,
		}); err != nil {
			return "", err
		}
	}

	if err := atomicfile.Symlink(checksum, e.Layout.ActiveLink(r)); err != nil {
		return "", errs.Wrapf(errs.IOError, err, "updating active link for %s", r)
	}

	if r.Kind == ref.App {
		if err := e.Publisher.UpdateExports(ctx, r.Name); err != nil {
			plog.Warningf("updating exports for %s: %v", r.Name, err)
		}
	}

	ph.Progress(progress.State{Ref: r.String(), Done: true})
	plog.Infof("deployed %s at %s", r, checksum)
	return checksum, nil
}

// Pull fetches ref from remote into the local store without deploying it.
func (e *Engine) Pull(ctx context.Context, remote string, r ref.Ref, ph progress.Handle) error {
	if ph == nil {
		ph = progress.Noop
	}
	if err := e.Store.Pull(ctx, remote, r.String()); err != nil {
		return err
	}
	ph.Progress(progress.State{Ref: r.String(), Done: true})
	return nil
}

// Undeploy removes the checksum deployment of ref, following §4.8's
// undeploy steps: repoint active if needed, quarantine, delete if unlocked.
func (e *Engine) Undeploy(r ref.Ref, checksum string, force bool) error {
	checkoutDir := e.Layout.DeploymentDir(r, checksum)
	if _, err := os.Stat(checkoutDir); err != nil {
		return errs.Newf(errs.AlreadyUndeployed, "%s at %s is not deployed", r, checksum)
	}

	activeLink := e.Layout.ActiveLink(r)
	if activeChecksum, err := os.Readlink(activeLink); err == nil && activeChecksum == checksum {
		deployed, err := e.ListDeployed(r)
		if err != nil {
			return err
		}
		var next string
		for _, c := range deployed {
			if c != checksum {
				next = c
				break
			}
		}
		if next == "" {
			os.Remove(activeLink)
		} else if err := atomicfile.Symlink(next, activeLink); err != nil {
			return errs.Wrapf(errs.IOError, err, "repointing active link for %s", r)
		}
	}

	removedDir := e.Layout.RemovedDir()
	if err := os.MkdirAll(removedDir, 0755); err != nil {
		return errs.Wrap(errs.IOError, err, "creating quarantine directory")
	}
	quarantinePath := e.Layout.QuarantinePath(atomicfile.RandomName() + "-" + checksum)
	if err := os.Rename(checkoutDir, quarantinePath); err != nil {
		return errs.Wrapf(errs.IOError, err, "quarantining %s", checkoutDir)
	}

	refFile := filepath.Join(quarantinePath, "files", ".ref")
	if force || !lock.IsLocked(refFile) {
		if err := os.RemoveAll(quarantinePath); err != nil {
			return errs.Wrapf(errs.IOError, err, "deleting quarantined %s", quarantinePath)
		}
	}
	plog.Infof("undeployed %s at %s", r, checksum)

	if r.Kind == ref.App {
		if err := e.Publisher.UpdateExports(context.Background(), ""); err != nil {
			plog.Warningf("sweeping exports after undeploy of %s: %v", r, err)
		}
	}
	return nil
}

// CleanupRemoved deletes every quarantined checkout that is no longer locked.
func (e *Engine) CleanupRemoved() error {
	removedDir := e.Layout.RemovedDir()
	entries, err := os.ReadDir(removedDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errs.Wrap(errs.IOError, err, "reading quarantine directory")
	}
	for _, entry := range entries {
		path := filepath.Join(removedDir, entry.Name())
		refFile := filepath.Join(path, "files", ".ref")
		if !lock.IsLocked(refFile) {
			if err := os.RemoveAll(path); err != nil {
				plog.Warningf("failed to clean up quarantined %s: %v", path, err)
			}
		}
	}
	return nil
}

// Prune invokes the object store's refs-only prune.
func (e *Engine) Prune(ctx context.Context) (objectstore.PruneResult, error) {
	result, err := e.Store.Prune(ctx)
	if err != nil {
		return result, err
	}
	plog.Infof("pruned %d/%d objects, %d bytes freed", result.PrunedObjects, result.TotalObjects, result.FreedBytes)
	return result, nil
}

var hexCharset = "0123456789abcdef"

func isChecksumDirName(name string) bool {
	if len(name) != 64 {
		return false
	}
	for _, c := range name {
		if strings.IndexRune(hexCharset, c) < 0 {
			return false
		}
	}
	return true
}

// ListDeployed enumerates the 64-hex-character checksum subdirectories
// of ref's deploy directory. A non-existent base yields an empty list.
func (e *Engine) ListDeployed(r ref.Ref) ([]string, error) {
	dir := e.Layout.DeployDir(r)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrapf(errs.IOError, err, "listing deployments of %s", r)
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() && isChecksumDirName(entry.Name()) {
			out = append(out, entry.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// ListRefs enumerates kind/ two levels deep (name, then arch/branch
// pairs), skipping the "data" legacy carve-out, returning sorted
// "kind/name/arch/branch" strings.
func (e *Engine) ListRefs(kind ref.Kind) ([]string, error) {
	return e.listRefsUnder(kind, "")
}

// ListRefsForName restricts ListRefs to one app/runtime name.
func (e *Engine) ListRefsForName(kind ref.Kind, name string) ([]string, error) {
	return e.listRefsUnder(kind, name)
}

func (e *Engine) listRefsUnder(kind ref.Kind, onlyName string) ([]string, error) {
	kindDir := e.Layout.KindDir(kind)
	names, err := listDirs(kindDir)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, name := range names {
		if name == "data" {
			continue
		}
		if onlyName != "" && name != onlyName {
			continue
		}
		arches, err := listDirs(e.Layout.NameDir(kind, name))
		if err != nil {
			return nil, err
		}
		for _, arch := range arches {
			if arch == "data" {
				continue
			}
			branches, err := listDirs(e.Layout.ArchDir(kind, name, arch))
			if err != nil {
				return nil, err
			}
			for _, branch := range branches {
				if branch == "data" {
					continue
				}
				out = append(out, ref.Ref{Kind: kind, Name: name, Arch: arch, Branch: branch}.String())
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func listDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrapf(errs.IOError, err, "listing %s", dir)
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() {
			out = append(out, entry.Name())
		}
	}
	return out, nil
}

// MakeCurrent points name's current link at ref's arch/branch. Fails
// unless ref.Kind is App.
func (e *Engine) MakeCurrent(r ref.Ref) error {
	if r.Kind != ref.App {
		return errs.Newf(errs.Unsupported, "make-current requires an app ref, got %s", r.Kind)
	}
	currentLink := e.Layout.CurrentLink(r.Name)
	os.Remove(currentLink)
	target := filepath.Join(r.Arch, r.Branch)
	if err := atomicfile.Symlink(target, currentLink); err != nil {
		return errs.Wrapf(errs.IOError, err, "updating current link for %s", r.Name)
	}
	return nil
}

// DropCurrent removes name's current link, ignoring absence.
func (e *Engine) DropCurrent(name string) error {
	currentLink := e.Layout.CurrentLink(name)
	if err := os.Remove(currentLink); err != nil && !os.IsNotExist(err) {
		return errs.Wrapf(errs.IOError, err, "removing current link for %s", name)
	}
	return nil
}

// ReadActive returns the checksum ref's active link points to, or "" if absent.
func (e *Engine) ReadActive(r ref.Ref) (string, error) {
	checksum, err := os.Readlink(e.Layout.ActiveLink(r))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errs.Wrapf(errs.IOError, err, "reading active link for %s", r)
	}
	return checksum, nil
}
