// Package ref implements the path layout: pure functions mapping logical
// identifiers (refs, app ids) to on-disk paths under a configurable base
// directory, and parsing of the kind/name/arch/branch ref string.
package ref

import (
	"regexp"
	"strings"

	"github.com/depotctl/depotctl/internal/pkg/errs"
)

// Kind is the deployment kind, either App or Runtime.
type Kind string

const (
	App     Kind = "app"
	Runtime Kind = "runtime"
)

// Ref identifies one branch of one application or runtime: kind/name/arch/branch.
type Ref struct {
	Kind   Kind
	Name   string
	Arch   string
	Branch string
}

var checksumPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// IsChecksum reports whether s looks like a 64-lowercase-hex commit id.
func IsChecksum(s string) bool {
	return checksumPattern.MatchString(s)
}

// Parse splits s on "/" into exactly four parts (kind, name, arch, branch).
// Any other part count fails with errs.ParseError.
func Parse(s string) (Ref, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 4 {
		return Ref{}, errs.Newf(errs.ParseError, "ref %q: expected kind/name/arch/branch, got %d parts", s, len(parts))
	}
	k := Kind(parts[0])
	if k != App && k != Runtime {
		return Ref{}, errs.Newf(errs.ParseError, "ref %q: kind must be %q or %q", s, App, Runtime)
	}
	for i, p := range parts {
		if p == "" {
			return Ref{}, errs.Newf(errs.ParseError, "ref %q: part %d is empty", s, i)
		}
	}
	return Ref{Kind: k, Name: parts[1], Arch: parts[2], Branch: parts[3]}, nil
}

// String reconstructs the canonical kind/name/arch/branch form.
func (r Ref) String() string {
	return strings.Join([]string{string(r.Kind), r.Name, r.Arch, r.Branch}, "/")
}
