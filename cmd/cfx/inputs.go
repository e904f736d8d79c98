package main

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chazu/cfx/classfile"
	"github.com/chazu/cfx/components"
	"github.com/chazu/cfx/desc"
	"github.com/chazu/cfx/manifest"
)

// classInput is one classfile read from a file, a directory or a jar.
// Name is the path shown to the user; for jar entries it is jar!entry.
type classInput struct {
	Name string
	Data []byte
}

func isJar(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".jar" || ext == ".zip"
}

// readClasses expands paths into classfiles. Directories are walked for
// .class files; jars contribute their .class entries.
func readClasses(paths []string) ([]classInput, error) {
	var out []classInput
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		switch {
		case info.IsDir():
			files, err := classFilesUnder(p)
			if err != nil {
				return nil, err
			}
			for _, f := range files {
				data, err := os.ReadFile(f)
				if err != nil {
					return nil, err
				}
				out = append(out, classInput{Name: f, Data: data})
			}
		case isJar(p):
			entries, err := readJar(p)
			if err != nil {
				return nil, err
			}
			for _, e := range entries {
				if isClassEntry(e.Name) {
					out = append(out, classInput{Name: p + "!" + e.Name, Data: e.Data})
				}
			}
		default:
			data, err := os.ReadFile(p)
			if err != nil {
				return nil, err
			}
			out = append(out, classInput{Name: p, Data: data})
		}
	}
	return out, nil
}

func classFilesUnder(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".class") {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// jarEntry is a file of a jar, kept in archive order.
type jarEntry struct {
	Name string
	Data []byte
}

func isClassEntry(name string) bool {
	return strings.HasSuffix(name, ".class") && !strings.HasSuffix(name, "module-info.class")
}

func readJar(path string) ([]jarEntry, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer zr.Close()

	var entries []jarEntry
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%s!%s: %w", path, f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%s!%s: %w", path, f.Name, err)
		}
		entries = append(entries, jarEntry{Name: f.Name, Data: data})
	}
	return entries, nil
}

func writeJar(path string, entries []jarEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e.Name)
		if err != nil {
			f.Close()
			return err
		}
		if _, err := w.Write(e.Data); err != nil {
			f.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// loadManifest returns the manifest at path, or the one found by walking
// up from the working directory when path is empty. It may return nil.
func loadManifest(path string) (*manifest.Manifest, error) {
	if path == "" {
		return manifest.FindAndLoad(".")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return manifest.Load(path)
	}
	if filepath.Base(path) != manifest.FileName {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		m, err := manifest.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse error in %s: %w", path, err)
		}
		m.Dir = filepath.Dir(path)
		return m, nil
	}
	return manifest.Load(filepath.Dir(path))
}

// optionsFrom returns the classfile options of m, none when m is nil.
func optionsFrom(m *manifest.Manifest) classfile.Option {
	if m == nil {
		return 0
	}
	return m.Options()
}

// mapFlag collects repeated -map old=new flags.
type mapFlag map[string]string

func (m mapFlag) String() string {
	parts := make([]string, 0, len(m))
	for k, v := range m {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func (m mapFlag) Set(s string) error {
	from, to, ok := strings.Cut(s, "=")
	if !ok || from == "" || to == "" {
		return fmt.Errorf("want old=new, got %q", s)
	}
	m[from] = to
	return nil
}

// renamer maps internal names by exact match first, then by the longest
// matching package prefix (a key ending in "/").
type renamer struct {
	exact    map[string]string
	prefixes []string
	renames  map[string]string
}

func newRenamer(renames map[string]string) *renamer {
	r := &renamer{exact: map[string]string{}, renames: renames}
	for k, v := range renames {
		if strings.HasSuffix(k, "/") {
			r.prefixes = append(r.prefixes, k)
		} else {
			r.exact[k] = v
		}
	}
	sort.Slice(r.prefixes, func(i, j int) bool { return len(r.prefixes[i]) > len(r.prefixes[j]) })
	return r
}

func (r *renamer) rename(name string) string {
	if n, ok := r.exact[name]; ok {
		return n
	}
	for _, p := range r.prefixes {
		if strings.HasPrefix(name, p) {
			return r.renames[p] + name[len(p):]
		}
	}
	return name
}

func (r *renamer) remapper() *components.ClassRemapper {
	return components.NewClassRemapper(func(d desc.ClassDesc) desc.ClassDesc {
		if !d.IsClass() {
			return d
		}
		return desc.OfInternalName(r.rename(d.InternalName()))
	})
}
