// Package override implements the per-app override store: load/save of
// the key-value configuration files under an installation's overrides/
// directory (§4.2).
package override

import (
	"os"

	"github.com/depotctl/depotctl/internal/pkg/atomicfile"
	"github.com/depotctl/depotctl/internal/pkg/errs"
	"github.com/depotctl/depotctl/internal/pkg/keyfile"
	"github.com/depotctl/depotctl/pkg/ref"
)

// Load reads {base}/overrides/{appID}. A missing file yields an empty,
// successfully-parsed context, not an error; a malformed file fails with
// errs.ParseError.
func Load(layout ref.Layout, appID string) (*keyfile.File, error) {
	path := layout.OverrideFile(appID)
	kf, err := keyfile.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			return keyfile.New(), nil
		}
		return nil, err
	}
	return kf, nil
}

// Save writes kf to {base}/overrides/{appID}, creating the overrides
// directory (mode 0755) if needed. Any underlying failure is reported as
// errs.IOError.
func Save(layout ref.Layout, appID string, kf *keyfile.File) error {
	if err := os.MkdirAll(layout.OverridesDir(), 0755); err != nil {
		return errs.Wrap(errs.IOError, err, "creating overrides directory")
	}
	data, err := kf.Bytes()
	if err != nil {
		return errs.Wrap(errs.IOError, err, "serializing override file")
	}
	path := layout.OverrideFile(appID)
	if err := atomicfile.WriteFile(path, data, 0644); err != nil {
		return errs.Wrapf(errs.IOError, err, "saving override for %s", appID)
	}
	return nil
}

// Merged returns system ⊕ user: every key present in user replaces the
// same key in system, per-group, matching the Deploy Inspector's
// lazily-merged context (§4.10).
func Merged(system, user *keyfile.File) *keyfile.File {
	return system.Merge(user)
}
