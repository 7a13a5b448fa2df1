package deploy

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/depotctl/depotctl/internal/pkg/errs"
	"github.com/depotctl/depotctl/internal/pkg/keyfile"
	"github.com/depotctl/depotctl/pkg/override"
	"github.com/depotctl/depotctl/pkg/ref"
)

// Deployed is a handle on one loaded deployment, exposing its path,
// files/ path, parsed metadata, and a lazily-merged override context
// (§4.10).
type Deployed struct {
	Path     string
	FilesDir string
	Metadata *keyfile.File

	engine *Engine
	ref    ref.Ref

	mergeOnce sync.Once
	merged    *keyfile.File
	mergeErr  error
}

// LoadDeployed resolves r's deployment directory (checksum if given,
// else via active) and loads its metadata. Overrides are not read here;
// Context loads and merges them on first use.
func (e *Engine) LoadDeployed(r ref.Ref, checksum string) (*Deployed, error) {
	if checksum == "" {
		active, err := e.ReadActive(r)
		if err != nil {
			return nil, err
		}
		checksum = active
	}
	if checksum == "" {
		return nil, errs.Newf(errs.NotDeployed, "%s is not deployed", r)
	}

	deployDir := e.Layout.DeploymentDir(r, checksum)
	if _, err := os.Stat(deployDir); err != nil {
		return nil, errs.Newf(errs.NotDeployed, "%s at %s is not deployed", r, checksum)
	}

	metaPath := e.Layout.MetadataFile(r, checksum)
	kf, err := keyfile.Load(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			kf = keyfile.New()
		} else {
			return nil, err
		}
	}

	return &Deployed{
		Path:     deployDir,
		FilesDir: filepath.Join(deployDir, "files"),
		Metadata: kf,
		engine:   e,
		ref:      r,
	}, nil
}

// Context returns the lazily-merged system ⊕ user override context for
// this deployment's app id. The user override always loads; the system
// override additionally loads when this deployment's engine is the
// system-wide installation, and the user override wins on conflicting
// keys.
func (d *Deployed) Context() (*keyfile.File, error) {
	d.mergeOnce.Do(func() {
		userLayout := d.engine.Layout
		if d.engine.System {
			userLayout = d.engine.UserLayout
		}
		user, err := override.Load(userLayout, d.ref.Name)
		if err != nil {
			d.mergeErr = err
			return
		}
		if !d.engine.System {
			d.merged = user
			return
		}
		system, err := override.Load(d.engine.Layout, d.ref.Name)
		if err != nil {
			d.mergeErr = err
			return
		}
		d.merged = override.Merged(system, user)
	})
	return d.merged, d.mergeErr
}
