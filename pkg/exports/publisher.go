package exports

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/coreos/pkg/capnslog"

	"github.com/depotctl/depotctl/internal/pkg/atomicfile"
	"github.com/depotctl/depotctl/pkg/ref"
	"github.com/depotctl/depotctl/util"
)

// Publisher maintains the installation-wide exports/ tree and runs
// post-export trigger scripts (§4.7).
type Publisher struct {
	Layout     ref.Layout
	Helper     string // path to the sandbox update-exports helper
	TriggerDir string // directory scanned for *.trigger scripts
}

// UpdateExports mirrors changedApp's current/active export/ subtree
// into the installation-wide exports/ tree, sweeps dangling symlinks,
// then runs triggers. changedApp may be empty to skip the mirror step
// and only sweep + run triggers.
func (p Publisher) UpdateExports(ctx context.Context, changedApp string) error {
	if changedApp != "" {
		if err := p.mirror(changedApp); err != nil {
			return err
		}
	}

	if err := p.sweep(); err != nil {
		return err
	}

	p.runTriggers(ctx)
	return nil
}

func (p Publisher) mirror(appID string) error {
	currentLink := p.Layout.CurrentLink(appID)
	currentTarget, err := os.Readlink(currentLink)
	if err != nil {
		return nil // no current link: nothing to mirror
	}

	parts := strings.SplitN(currentTarget, string(os.PathSeparator), 2)
	if len(parts) != 2 {
		return nil
	}
	r := ref.Ref{Kind: ref.App, Name: appID, Arch: parts[0], Branch: parts[1]}

	activeLink := p.Layout.ActiveLink(r)
	checksum, err := os.Readlink(activeLink)
	if err != nil {
		return nil // no active deployment
	}

	exportDir := p.Layout.ExportDir(r, checksum)
	if _, err := os.Stat(exportDir); err != nil {
		return nil // no export/ subtree to publish
	}

	return mirrorDir(exportDir, p.Layout.ExportsDir(), p.Layout.Base, appID, nil)
}

// mirrorDir walks src and replaces every regular file under dst with a
// relative symlink built through the literal current/active path
// components (spec.md:116: "../…/app/{app}/current/active/export/{…}"),
// not through the resolved checksum directory. Since current and active
// are themselves symlinks, the written link transparently follows
// whichever deployment they resolve to at access time, rather than
// pinning the checksum that was active when the mirror ran.
func mirrorDir(src, dst, base, appID string, rel []string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := os.MkdirAll(dst, 0755); err != nil {
		return err
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		childRel := append(append([]string{}, rel...), entry.Name())

		if entry.IsDir() {
			if err := mirrorDir(srcPath, dstPath, base, appID, childRel); err != nil {
				return err
			}
			continue
		}

		target, err := exportSymlinkTarget(base, dst, appID, childRel)
		if err != nil {
			return err
		}
		if err := atomicfile.Symlink(target, dstPath); err != nil {
			return err
		}
	}
	return nil
}

// exportSymlinkTarget builds the relative path from dstDir (a directory
// under the installation-wide exports/ tree) up to base and back down
// through the literal "app/{appID}/current/active/export" components to
// rel, the entry's path within the export/ subtree.
func exportSymlinkTarget(base, dstDir, appID string, rel []string) (string, error) {
	relToBase, err := filepath.Rel(base, dstDir)
	if err != nil {
		return "", err
	}
	var ups []string
	if relToBase != "." {
		segments := strings.Split(relToBase, string(filepath.Separator))
		ups = make([]string, len(segments))
		for i := range ups {
			ups[i] = ".."
		}
	}
	down := append([]string{"app", appID, "current", "active", "export"}, rel...)
	return filepath.Join(append(ups, down...)...), nil
}

// sweep removes symlinks under exports/ whose target no longer resolves.
func (p Publisher) sweep() error {
	root := p.Layout.ExportsDir()
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, statErr := os.Stat(path) // follows symlinks
		if statErr != nil || info == nil {
			return os.Remove(path)
		}
		return nil
	})
}

// runTriggers executes every *.trigger script in TriggerDir. Failures
// are logged as warnings and swallowed, per §7.
func (p Publisher) runTriggers(ctx context.Context) {
	entries, err := os.ReadDir(p.TriggerDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".trigger") {
			continue
		}
		triggerPath := filepath.Join(p.TriggerDir, entry.Name())
		cmd := exec.CommandContext(ctx, p.Helper, "-a", p.Layout.Base, "-e", "-F", "/usr", triggerPath)
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &out
		err := cmd.Run()
		util.LogFrom(capnslog.INFO, &out)
		if err != nil {
			plog.Warningf("trigger %s failed: %v", triggerPath, err)
		}
	}
}
