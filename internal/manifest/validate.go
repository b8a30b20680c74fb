package manifest

import (
	"net"
	"path"
	"strings"

	"github.com/distribution/reference"

	"github.com/cruciblehq/pybox/internal/fault"
)

// Checks the manifest's invariants.
//
// The base must be a registry reference pinned by a non-latest tag or a
// digest. The workdir must be absolute. The dependency manifest must be a
// clean relative path inside the build context. The launch arguments must not
// repeat the port or address options, which are derived from the manifest.
func (m *Manifest) Validate() error {
	if m.Version != CurrentVersion {
		return fault.Wrapf(ErrInvalidManifest, "unsupported version %d", m.Version)
	}

	if err := validateBase(m.Base); err != nil {
		return err
	}

	if !path.IsAbs(m.Workdir) {
		return fault.Wrapf(ErrInvalidManifest, "workdir %q is not absolute", m.Workdir)
	}

	if err := validateRequirements(m.Requirements); err != nil {
		return err
	}

	if m.Port < 1 || m.Port > 65535 {
		return fault.Wrapf(ErrInvalidManifest, "port %d out of range", m.Port)
	}

	if net.ParseIP(m.Address) == nil {
		return fault.Wrapf(ErrInvalidManifest, "address %q is not an IP address", m.Address)
	}

	if m.Launch.Executable == "" || m.Launch.Target == "" {
		return fault.Wrapf(ErrInvalidManifest, "launch executable and target are required")
	}

	for _, arg := range m.Launch.Args {
		if hasOption(arg, PortOption) {
			return fault.Wrapf(ErrPortMismatch, "launch args must not set %s", PortOption)
		}
		if hasOption(arg, AddressOption) {
			return fault.Wrapf(ErrInvalidManifest, "launch args must not set %s", AddressOption)
		}
	}

	return nil
}

// Checks that the base image reference parses and is version pinned.
func validateBase(base string) error {
	named, err := reference.ParseNormalizedNamed(base)
	if err != nil {
		return fault.Wrapf(ErrInvalidManifest, "base %q: %w", base, err)
	}

	if _, ok := named.(reference.Digested); ok {
		return nil
	}
	if tagged, ok := named.(reference.Tagged); ok && tagged.Tag() != "latest" {
		return nil
	}

	return fault.Wrapf(ErrUnpinnedBase, "%s", base)
}

// Checks that the dependency manifest path stays inside the build context.
func validateRequirements(p string) error {
	if p == "" {
		return fault.Wrapf(ErrInvalidManifest, "requirements path is empty")
	}
	if path.IsAbs(p) {
		return fault.Wrapf(ErrInvalidManifest, "requirements %q must be relative to the build context", p)
	}
	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return fault.Wrapf(ErrInvalidManifest, "requirements %q escapes the build context", p)
	}
	return nil
}

// Whether arg sets the named option, either as "--opt=value" or "--opt".
func hasOption(arg, option string) bool {
	return arg == option || strings.HasPrefix(arg, option+"=")
}
