// Package modloader implements the modules-directory bootstrap the
// host CLI performs on startup: auto-creating the directory on first
// run and listing the manifests it finds. Sandbox loading and symbol
// resolution of the module bytecode itself are out of scope.
package modloader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/machinefabric/meshkernel-go/manifest"
)

// manifestSuffix names the file extension a module manifest must
// carry to be discovered.
const manifestSuffix = ".manifest.json"

// EnsureDir makes sure dir exists, creating it (and any parents) if
// necessary. It reports whether the directory was just created so
// the caller can print the human-readable first-run notice the CLI
// surface requires.
func EnsureDir(dir string) (created bool, err error) {
	if _, err := os.Stat(dir); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("modloader: stat %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("modloader: create %s: %w", dir, err)
	}
	return true, nil
}

// Discovered names one manifest found on disk alongside its parsed
// contents.
type Discovered struct {
	Path     string
	Manifest manifest.Manifest
}

// Discover lists every *.manifest.json file directly under dir,
// parses and validates each, and returns them sorted by path for
// deterministic ordering. A manifest that fails to parse is reported
// as part of the returned error, but does not stop other manifests
// from being discovered.
func Discover(dir string) ([]Discovered, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("modloader: read %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if hasManifestSuffix(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var (
		out    []Discovered
		errs   []string
		failed bool
	)
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", path, err))
			failed = true
			continue
		}
		m, err := manifest.Parse(data)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", path, err))
			failed = true
			continue
		}
		out = append(out, Discovered{Path: path, Manifest: m})
	}

	if failed {
		return out, fmt.Errorf("modloader: %d manifest(s) failed to load: %v", len(errs), errs)
	}
	return out, nil
}

func hasManifestSuffix(name string) bool {
	if len(name) <= len(manifestSuffix) {
		return false
	}
	return name[len(name)-len(manifestSuffix):] == manifestSuffix
}
