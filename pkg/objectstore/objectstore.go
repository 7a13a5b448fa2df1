package objectstore

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/coreos/pkg/capnslog"

	"github.com/depotctl/depotctl/internal/pkg/errs"
)

var plog = capnslog.NewPackageLogger("github.com/depotctl/depotctl", "objectstore")

// Mode selects the on-disk repository mode used at creation time.
type Mode string

const (
	// BareUser preserves no privileged metadata; used for per-user installations.
	BareUser Mode = "bare-user"
	// Bare preserves full file ownership/xattrs; used for system installations.
	Bare Mode = "bare"
)

// CheckoutMode controls whether a checkout preserves the calling user's uid/gid.
type CheckoutMode string

const (
	CheckoutUser CheckoutMode = "user"
	CheckoutNone CheckoutMode = "none"
)

// Store is a thin wrapper over the real `ostree` CLI binary, the
// content-addressed repository's external collaborator (§4.3): this
// package implements only the queries and mutations the installation
// directory manager needs, the same way the teacher shells out to `xz`
// and `rpm-ostree` rather than reimplementing them (mantle/util/xz.go,
// mantle/kola/tests/util/rpmostree.go).
//
// §4.3's "read commit" query is satisfied entirely by CheckoutTree: the
// real `ostree` binary parses the commit's actual GVariant encoding on
// the local repo's behalf, so there is no local-repo commit-read path
// here. The wireformat.go decoders are reserved for the Metadata
// Prefetcher, which fetches raw commit/dirtree/filez bytes directly over
// HTTP before any repo or `ostree` binary is involved.
type Store struct {
	RepoDir string
}

// Ensure creates base if missing, and opens repo/ if present; otherwise
// creates a fresh repository in mode. On creation failure the
// partially-created repo/ directory is removed before returning.
func Ensure(ctx context.Context, base string, mode Mode) (*Store, error) {
	if err := os.MkdirAll(base, 0755); err != nil {
		return nil, errs.Wrapf(errs.IOError, err, "creating installation base %s", base)
	}

	repoDir := filepath.Join(base, "repo")
	s := &Store{RepoDir: repoDir}

	if _, err := os.Stat(filepath.Join(repoDir, "config")); err == nil {
		return s, nil
	}

	if err := runOstree(ctx, "", "init", "--repo="+repoDir, "--mode="+string(mode)); err != nil {
		os.RemoveAll(repoDir)
		return nil, errs.Wrapf(errs.IOError, err, "creating repository at %s", repoDir)
	}
	return s, nil
}

// Pull fetches ref from remote into the local store.
func (s *Store) Pull(ctx context.Context, remote, ref string) error {
	if err := runOstree(ctx, s.RepoDir, "pull", remote, ref); err != nil {
		return errs.Wrapf(errs.IOError, err, "pulling %s from %s", ref, remote)
	}
	return nil
}

// PullChecksum fetches a specific commit checksum from remote.
func (s *Store) PullChecksum(ctx context.Context, remote, checksum string) error {
	if err := runOstree(ctx, s.RepoDir, "pull", remote, checksum); err != nil {
		return errs.Wrapf(errs.IOError, err, "pulling %s from %s", checksum, remote)
	}
	return nil
}

// Resolve translates a symbolic ref (e.g. "remote:ref") to a commit checksum.
func (s *Store) Resolve(ctx context.Context, symbolicRef string) (string, error) {
	out, err := captureOstree(ctx, s.RepoDir, "rev-parse", symbolicRef)
	if err != nil {
		return "", errs.Wrapf(errs.NotFound, err, "resolving %s", symbolicRef)
	}
	checksum := strings.TrimSpace(out)
	if checksum == "" {
		return "", errs.Newf(errs.NotFound, "resolving %s: empty result", symbolicRef)
	}
	return checksum, nil
}

// HasCommit reports whether checksum is present in the local store.
func (s *Store) HasCommit(ctx context.Context, checksum string) bool {
	err := runOstree(ctx, s.RepoDir, "show", checksum)
	return err == nil
}

// CheckoutTree materializes checksum into dest. Overwrite policy is
// none: dest must not already exist.
func (s *Store) CheckoutTree(ctx context.Context, checksum, dest string, mode CheckoutMode) error {
	if _, err := os.Stat(dest); err == nil {
		return errs.Newf(errs.AlreadyDeployed, "checkout destination %s already exists", dest)
	}

	args := []string{"checkout", "--require-hardlinks"}
	if mode == CheckoutUser {
		args = append(args, "--user-mode")
	}
	args = append(args, checksum, dest)

	if err := runOstree(ctx, s.RepoDir, args...); err != nil {
		return errs.Wrapf(errs.IOError, err, "checking out %s to %s", checksum, dest)
	}
	return nil
}

// PruneResult reports object counts and bytes freed by a prune operation.
type PruneResult struct {
	TotalObjects   int
	PrunedObjects  int
	FreedBytes     int64
}

// Prune removes unreferenced objects, using the refs-only strategy per §4.8.
func (s *Store) Prune(ctx context.Context) (PruneResult, error) {
	out, err := captureOstree(ctx, s.RepoDir, "prune", "--refs-only", "--verbose")
	if err != nil {
		return PruneResult{}, errs.Wrap(errs.IOError, err, "pruning repository")
	}
	return parsePruneOutput(out), nil
}

// parsePruneOutput extracts the three counters `ostree prune --verbose`
// reports on its summary lines ("Total objects: N", "Deleted N objects,
// M bytes freed"); a summary line it doesn't recognize is ignored rather
// than treated as an error, since the exact wording varies by version.
func parsePruneOutput(out string) PruneResult {
	var r PruneResult
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Total objects:"):
			r.TotalObjects = atoiSafe(strings.TrimSpace(strings.TrimPrefix(line, "Total objects:")))
		case strings.HasPrefix(line, "Deleted"):
			fields := strings.Fields(line)
			for i, f := range fields {
				if f == "Deleted" && i+1 < len(fields) {
					r.PrunedObjects = atoiSafe(fields[i+1])
				}
				if strings.HasPrefix(f, "(") {
					r.FreedBytes = int64(atoiSafe(strings.Trim(f, "()")))
				}
			}
		}
	}
	return r
}

func atoiSafe(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// RemoteList returns the configured remote names.
func (s *Store) RemoteList(ctx context.Context) ([]string, error) {
	out, err := captureOstree(ctx, s.RepoDir, "remote", "list")
	if err != nil {
		return nil, errs.Wrap(errs.IOError, err, "listing remotes")
	}
	var remotes []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			remotes = append(remotes, line)
		}
	}
	return remotes, nil
}

// RemoteListRefs returns the refs a remote advertises.
func (s *Store) RemoteListRefs(ctx context.Context, remote string) ([]string, error) {
	out, err := captureOstree(ctx, s.RepoDir, "remote", "refs", remote)
	if err != nil {
		return nil, errs.Wrapf(errs.IOError, err, "listing refs for remote %s", remote)
	}
	var refs []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if idx := strings.Index(line, " "); idx >= 0 {
			line = line[idx+1:]
		}
		if line != "" {
			refs = append(refs, line)
		}
	}
	return refs, nil
}

// RemoteGetURL returns the URL configured for remote.
func (s *Store) RemoteGetURL(ctx context.Context, remote string) (string, error) {
	out, err := captureOstree(ctx, s.RepoDir, "remote", "show-url", remote)
	if err != nil {
		return "", errs.Wrapf(errs.NotFound, err, "looking up url for remote %s", remote)
	}
	return strings.TrimSpace(out), nil
}

// RemoteConfigGet reads a single key from a remote's configuration group.
func (s *Store) RemoteConfigGet(ctx context.Context, remote, key string) (string, error) {
	out, err := captureOstree(ctx, s.RepoDir, "config", "get", "remote \""+remote+"\"."+key)
	if err != nil {
		return "", errs.Wrapf(errs.NotFound, err, "reading remote %s config key %s", remote, key)
	}
	return strings.TrimSpace(out), nil
}

func ostreeBinary() string {
	if p, err := exec.LookPath("ostree"); err == nil {
		return p
	}
	return "ostree"
}

func runOstree(ctx context.Context, repoDir string, args ...string) error {
	full := ostreeArgs(repoDir, args)
	plog.Tracef("running: ostree %s", strings.Join(full, " "))
	cmd := exec.CommandContext(ctx, ostreeBinary(), full...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return errs.Newf(errs.IOError, "ostree %s: %v: %s", strings.Join(args, " "), err, stderr.String())
	}
	return nil
}

func captureOstree(ctx context.Context, repoDir string, args ...string) (string, error) {
	data, err := captureOstreeBytes(ctx, repoDir, args...)
	return string(data), err
}

func captureOstreeBytes(ctx context.Context, repoDir string, args ...string) ([]byte, error) {
	full := ostreeArgs(repoDir, args)
	plog.Tracef("running: ostree %s", strings.Join(full, " "))
	cmd := exec.CommandContext(ctx, ostreeBinary(), full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, errs.Newf(errs.IOError, "ostree %s: %v: %s", strings.Join(args, " "), err, stderr.String())
	}
	return stdout.Bytes(), nil
}

func ostreeArgs(repoDir string, args []string) []string {
	if repoDir == "" {
		return args
	}
	full := make([]string, 0, len(args)+1)
	full = append(full, "--repo="+repoDir)
	full = append(full, args...)
	return full
}
