// Package manifest handles cfx.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/chazu/cfx/classfile"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("cfx.manifest")

// FileName is the name of the project configuration file.
const FileName = "cfx.toml"

// Manifest represents a cfx.toml project configuration.
type Manifest struct {
	Project Project           `toml:"project"`
	Flags   Flags             `toml:"options"`
	Remap   map[string]string `toml:"remap"`
	Output  Output            `toml:"output"`

	// Dir is the directory containing the cfx.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name string `toml:"name"`
}

// Flags are the classfile options, one boolean each.
type Flags struct {
	DropDebugInfo         bool `toml:"drop-debug-info"`
	DropLineNumbers       bool `toml:"drop-line-numbers"`
	DropUnknownAttributes bool `toml:"drop-unknown-attributes"`
	DropStackMaps         bool `toml:"drop-stack-maps"`
	NoPoolSharing         bool `toml:"no-pool-sharing"`
	KeepMaxStack          bool `toml:"keep-max-stack"`
}

// Output configures where and how transformed classes are written.
type Output struct {
	Dir  string `toml:"dir"`
	Jobs int    `toml:"jobs"`
}

// Parse decodes a manifest and applies defaults. Dir is left empty.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, err
	}
	for _, k := range md.Undecoded() {
		log.Warningf("unknown key %s in %s", k, FileName)
	}

	for from, to := range m.Remap {
		if err := checkRename(from, to); err != nil {
			return nil, err
		}
	}

	// Defaults
	if m.Output.Dir == "" {
		m.Output.Dir = "out"
	}
	if m.Output.Jobs <= 0 {
		m.Output.Jobs = runtime.NumCPU()
	}
	return &m, nil
}

// checkRename validates one [remap] pair. A key ending in "/" renames a
// package prefix and must map to another prefix.
func checkRename(from, to string) error {
	prefix := strings.HasSuffix(from, "/")
	if prefix != strings.HasSuffix(to, "/") {
		return fmt.Errorf("remap %q = %q: a package prefix must map to a package prefix", from, to)
	}
	if err := checkInternalName(from, prefix); err != nil {
		return fmt.Errorf("remap %q: %w", from, err)
	}
	if err := checkInternalName(to, prefix); err != nil {
		return fmt.Errorf("remap %q = %q: %w", from, to, err)
	}
	return nil
}

// checkInternalName rejects names that are not binary class names in
// internal form, such as dotted names or descriptors. A prefix carries one
// trailing "/".
func checkInternalName(name string, prefix bool) error {
	if prefix {
		name = strings.TrimSuffix(name, "/")
	}
	switch {
	case name == "":
		return fmt.Errorf("empty class name")
	case strings.ContainsAny(name, ".;[<>"):
		return fmt.Errorf("%q is not an internal class name", name)
	case strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") || strings.Contains(name, "//"):
		return fmt.Errorf("%q has an empty package segment", name)
	}
	return nil
}

// Load parses a cfx.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	log.Debugf("loaded %s: %d renames", path, len(m.Remap))
	return m, nil
}

// FindAndLoad walks up from startDir to find a cfx.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Options returns the configured flags as a classfile.Option.
func (m *Manifest) Options() classfile.Option {
	var o classfile.Option
	set := func(on bool, x classfile.Option) {
		if on {
			o |= x
		}
	}
	set(m.Flags.DropDebugInfo, classfile.DropDebugInfo)
	set(m.Flags.DropLineNumbers, classfile.DropLineNumbers)
	set(m.Flags.DropUnknownAttributes, classfile.DropUnknownAttributes)
	set(m.Flags.DropStackMaps, classfile.DropStackMaps)
	set(m.Flags.NoPoolSharing, classfile.NoPoolSharing)
	set(m.Flags.KeepMaxStack, classfile.KeepMaxStack)
	return o
}

// Renames returns a copy of the remap table, keyed by internal name.
func (m *Manifest) Renames() map[string]string {
	out := make(map[string]string, len(m.Remap))
	for k, v := range m.Remap {
		out[k] = v
	}
	return out
}

// RenamedClasses returns the source names of the remap table, sorted.
func (m *Manifest) RenamedClasses() []string {
	names := make([]string, 0, len(m.Remap))
	for k := range m.Remap {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// OutputDir returns the absolute output directory.
func (m *Manifest) OutputDir() string {
	if filepath.IsAbs(m.Output.Dir) || m.Dir == "" {
		return m.Output.Dir
	}
	return filepath.Join(m.Dir, m.Output.Dir)
}
