// Package exports implements the Exports Rewriter and Exports Publisher
// (§4.6, §4.7): rewriting .desktop/.service files inside a deployment's
// export/ tree to launch under the sandbox, enforcing filename/service
// policy, and maintaining the installation-wide exports/ tree of
// symlinks.
package exports

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/coreos/pkg/capnslog"
	"github.com/kballard/go-shellquote"

	"github.com/depotctl/depotctl/internal/pkg/atomicfile"
	"github.com/depotctl/depotctl/internal/pkg/errs"
	"github.com/depotctl/depotctl/internal/pkg/keyfile"
)

var plog = capnslog.NewPackageLogger("github.com/depotctl/depotctl", "exports")

// RewriteParams carries the (name, branch, arch) triple used to build
// the replacement Exec= command line.
type RewriteParams struct {
	SandboxBin string
	AppID      string
	Branch     string
	Arch       string
}

var verbatimToken = regexp.MustCompile(`^[A-Za-z0-9\-_%.=:/@]+$`)

// RewriteTree recursively walks dir (a checkout's export/ subtree),
// removing non-prefixed or non-desktop/service files and rewriting
// .desktop/.service entries in place.
func RewriteTree(dir string, params RewriteParams) error {
	return rewriteDir(dir, params)
}

func rewriteDir(dir string, params RewriteParams) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errs.Wrapf(errs.IOError, err, "reading export directory %s", dir)
	}

	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if seen[name] {
			continue
		}
		seen[name] = true

		path := filepath.Join(dir, name)
		if err := rewriteEntry(path, name, entry, params); err != nil {
			return err
		}
	}
	return nil
}

func rewriteEntry(path, name string, entry os.DirEntry, params RewriteParams) error {
	if entry.IsDir() {
		return rewriteDir(path, params)
	}

	info, err := entry.Info()
	if err != nil {
		return errs.Wrapf(errs.IOError, err, "statting %s", path)
	}

	if !strings.HasPrefix(name, params.AppID+".") {
		plog.Warningf("removing export %s: basename must start with %q", path, params.AppID+".")
		return os.Remove(path)
	}

	if !info.Mode().IsRegular() {
		plog.Warningf("removing export %s: not a regular file", path)
		return os.Remove(path)
	}

	switch {
	case strings.HasSuffix(name, ".desktop"):
		return rewriteDesktop(path, name, params)
	case strings.HasSuffix(name, ".service"):
		return rewriteService(path, name, params)
	default:
		plog.Warningf("removing export %s: not a .desktop or .service file", path)
		return os.Remove(path)
	}
}

func rewriteDesktop(path, name string, params RewriteParams) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errs.Wrapf(errs.IOError, err, "reading %s", path)
	}
	kf, err := keyfile.Parse(data)
	if err != nil {
		return err
	}
	rewriteDocument(kf, params)
	return writeDocument(path, kf)
}

func rewriteService(path, name string, params RewriteParams) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errs.Wrapf(errs.IOError, err, "reading %s", path)
	}
	doc, err := parseServiceDoc(data)
	if err != nil {
		return err
	}

	expectedName := strings.TrimSuffix(name, ".service")
	if got, ok := doc.Get("D-BUS Service", "Name"); !ok || got != expectedName {
		return errs.Newf(errs.PolicyViolation, "%s: D-BUS Service Name %q does not match filename %q", path, got, expectedName)
	}

	rewriteDocument(doc, params)
	return writeDocument(path, doc)
}

// rewriteDocument applies the §4.6 group-wide edits: drop TryExec and
// X-GNOME-Bugzilla-ExtraInfoScript, reconstruct Exec.
func rewriteDocument(doc document, params RewriteParams) {
	for _, group := range doc.Groups() {
		doc.DeleteKey(group, "TryExec")
		doc.DeleteKey(group, "X-GNOME-Bugzilla-ExtraInfoScript")

		oldExec, ok := doc.Get(group, "Exec")
		if !ok {
			continue
		}
		doc.Set(group, "Exec", rewriteExec(oldExec, params))
	}
}

// rewriteExec builds "{sandbox-bin}/launch --branch={branch}
// --arch={arch}[ --command={old-argv0}] {app-id}[ old-argv[1:]…]". An
// Exec line that already invokes the launcher is left untouched so that
// applying the rewriter twice is idempotent (§8).
func rewriteExec(oldExec string, params RewriteParams) string {
	launcher := filepath.Join(params.SandboxBin, "launch")

	argv, err := shellquote.Split(oldExec)
	if err == nil && len(argv) > 0 && argv[0] == launcher {
		return oldExec
	}

	tokens := []string{
		launcher,
		"--branch=" + params.Branch,
		"--arch=" + params.Arch,
	}

	if err != nil || len(argv) == 0 {
		tokens = append(tokens, params.AppID)
	} else {
		tokens = append(tokens, "--command="+argv[0], params.AppID)
		tokens = append(tokens, argv[1:]...)
	}

	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = quoteToken(tok)
	}
	return strings.Join(quoted, " ")
}

// quoteToken copies tok verbatim if every character is in the
// allowed set, otherwise shell-quotes it.
func quoteToken(tok string) string {
	if verbatimToken.MatchString(tok) {
		return tok
	}
	return shellquote.Join(tok)
}

func writeDocument(path string, doc document) error {
	data, err := doc.Bytes()
	if err != nil {
		return errs.Wrapf(errs.IOError, err, "serializing %s", path)
	}
	info, err := os.Stat(path)
	perm := os.FileMode(0644)
	if err == nil {
		perm = info.Mode().Perm()
	}
	if err := atomicfile.WriteFile(path, data, perm); err != nil {
		return errs.Wrapf(errs.IOError, err, "writing %s", path)
	}
	return nil
}
