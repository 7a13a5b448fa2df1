// Package install provides the top-level Installation facade: two
// process-wide singletons (per-user, system) behind a get-or-create
// accessor, matching design note §9 ("Process-wide singletons for
// user/system installations... acceptable because identity is keyed by
// a fixed path").
package install

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/depotctl/depotctl/pkg/deploy"
	"github.com/depotctl/depotctl/pkg/exports"
	"github.com/depotctl/depotctl/pkg/objectstore"
	"github.com/depotctl/depotctl/pkg/ref"
)

const (
	sandboxBin = "/usr/bin"
	triggerDir = "/usr/libexec/sandbox/triggers"
	helperBin  = "/usr/libexec/sandbox/update-exports"
)

// Installation is a plain struct owning its base-directory handle and
// lazily-initialized object-store handle (design note §9: "plain
// struct owning its base-directory handle... construction takes (path,
// user-flag); no polymorphism is required").
type Installation struct {
	Layout ref.Layout
	System bool

	once   sync.Once
	engine *deploy.Engine
	err    error
}

// New constructs an Installation rooted at base. system selects
// bare-user vs bare object store mode and the checkout ownership mode.
func New(base string, system bool) *Installation {
	return &Installation{Layout: ref.NewLayout(base), System: system}
}

// Engine lazily ensures the object store and returns the Deployment
// Engine bound to this installation.
func (i *Installation) Engine(ctx context.Context) (*deploy.Engine, error) {
	i.once.Do(func() {
		mode := objectstore.BareUser
		if i.System {
			mode = objectstore.Bare
		}
		store, err := objectstore.Ensure(ctx, i.Layout.Base, mode)
		if err != nil {
			i.err = err
			return
		}
		e := &deploy.Engine{
			Layout:     i.Layout,
			Store:      store,
			SandboxBin: sandboxBin,
			System:     i.System,
			Publisher: exports.Publisher{
				Layout:     i.Layout,
				Helper:     helperBin,
				TriggerDir: triggerDir,
			},
		}
		if i.System {
			e.UserLayout = User().Layout
		}
		i.engine = e
	})
	return i.engine, i.err
}

var (
	userOnce   sync.Once
	userInst   *Installation
	systemOnce sync.Once
	systemInst *Installation
)

// userBase resolves the per-user installation root under
// XDG_DATA_HOME (or its platform default), matching the "XDG_DATA_HOME
// (or platform equivalent) locates user installation" requirement (§6).
func userBase() string {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, "depotctl")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".local", "share", "depotctl")
}

// User returns the per-user Installation singleton.
func User() *Installation {
	userOnce.Do(func() {
		userInst = New(userBase(), false)
	})
	return userInst
}

// System returns the system-wide Installation singleton, rooted at
// systemBase (conventionally "/var/lib/depotctl").
func System(systemBase string) *Installation {
	systemOnce.Do(func() {
		systemInst = New(systemBase, true)
	})
	return systemInst
}
