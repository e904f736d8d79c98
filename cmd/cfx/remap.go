package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/chazu/cfx/classfile"
	"github.com/chazu/cfx/components"
	"github.com/chazu/cfx/manifest"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// remapJob carries one class through the remapper. Out is the new entry
// name and Result the new bytes, both set on success.
type remapJob struct {
	Name   string
	Data   []byte
	Out    string
	Result []byte
}

// remapper applies one set of renames to many classes concurrently.
type remapper struct {
	r    *components.ClassRemapper
	opts classfile.Option
	jobs int

	mu     sync.Mutex
	errors *multierror.Error
}

func (rm *remapper) fail(err error) {
	rm.mu.Lock()
	rm.errors = multierror.Append(rm.errors, err)
	rm.mu.Unlock()
}

// run remaps every job. Failed jobs are reported and left without Result.
func (rm *remapper) run(jobs []*remapJob) {
	var g errgroup.Group
	g.SetLimit(rm.jobs)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			m, err := classfile.Parse(job.Data, rm.opts)
			if err != nil {
				rm.fail(fmt.Errorf("%s: %w", job.Name, err))
				return nil
			}
			out, err := rm.r.RemapClass(m)
			if err != nil {
				rm.fail(fmt.Errorf("%s: %w", job.Name, err))
				return nil
			}
			job.Out = rm.r.MapInternalName(m.ThisClass().InternalName()) + ".class"
			job.Result = out
			log.Debugf("remapped %s -> %s", job.Name, job.Out)
			return nil
		})
	}
	_ = g.Wait()
}

// runRemap renames classes in class files, class directories and jars and
// writes the results under the output directory.
func runRemap(args []string, stdout io.Writer) error {
	fs := newFlagSet("remap", "[-config cfx.toml] [-o DIR] [-j N] [-map old=new]... PATH...")
	config := fs.String("config", "", "Project configuration (default: nearest cfx.toml)")
	outDir := fs.String("o", "", "Output directory (default: [output] dir, or out)")
	jobs := fs.Int("j", 0, "Classes processed in parallel (default: [output] jobs, or CPU count)")
	renames := mapFlag{}
	fs.Var(renames, "map", "Rename a class, or a package prefix ending in /, as old=new (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errFailed
	}

	m, err := loadManifest(*config)
	if err != nil {
		return err
	}
	table := map[string]string{}
	dir, n := "out", runtime.NumCPU()
	if m != nil {
		table = m.Renames()
		dir, n = m.OutputDir(), m.Output.Jobs
	}
	for k, v := range renames {
		table[k] = v
	}
	if *outDir != "" {
		dir = *outDir
	}
	if *jobs > 0 {
		n = *jobs
	}
	if len(table) == 0 {
		return fmt.Errorf("no renames: pass -map or add a [remap] table to %s", manifest.FileName)
	}

	rm := &remapper{r: newRenamer(table).remapper(), opts: optionsFrom(m), jobs: n}
	written := 0
	for _, path := range fs.Args() {
		c, err := rm.remapPath(path, dir)
		if err != nil {
			rm.fail(err)
		}
		written += c
	}
	fmt.Fprintf(stdout, "%s %d classes to %s\n", green("remapped"), written, dir)
	return rm.errors.ErrorOrNil()
}

// remapPath remaps one input and returns the number of classes written.
func (rm *remapper) remapPath(path, dir string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if isJar(path) {
		return rm.remapJar(path, filepath.Join(dir, filepath.Base(path)))
	}

	var jobs []*remapJob
	if info.IsDir() {
		files, err := classFilesUnder(path)
		if err != nil {
			return 0, err
		}
		for _, f := range files {
			data, err := os.ReadFile(f)
			if err != nil {
				return 0, err
			}
			jobs = append(jobs, &remapJob{Name: f, Data: data})
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return 0, err
		}
		jobs = append(jobs, &remapJob{Name: path, Data: data})
	}

	rm.run(jobs)
	written := 0
	for _, job := range jobs {
		if job.Result == nil {
			continue
		}
		dest := filepath.Join(dir, filepath.FromSlash(job.Out))
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return written, err
		}
		if err := os.WriteFile(dest, job.Result, 0644); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// remapJar writes a copy of the jar at src to dest with every class
// remapped and moved to its new entry name. Other entries are copied.
// Nothing is written when any class fails.
func (rm *remapper) remapJar(src, dest string) (int, error) {
	entries, err := readJar(src)
	if err != nil {
		return 0, err
	}
	var jobs []*remapJob
	index := map[int]*remapJob{}
	for i, e := range entries {
		if isClassEntry(e.Name) {
			job := &remapJob{Name: src + "!" + e.Name, Data: e.Data}
			jobs = append(jobs, job)
			index[i] = job
		}
	}
	rm.run(jobs)
	for _, job := range jobs {
		if job.Result == nil {
			// Already reported by run.
			log.Warningf("skipping %s: not every class could be remapped", dest)
			return 0, nil
		}
	}

	written := 0
	for i := range entries {
		job, ok := index[i]
		if !ok {
			continue
		}
		prefix := ""
		// Multi-release entries stay under their version directory.
		if rest, ok := strings.CutPrefix(entries[i].Name, "META-INF/versions/"); ok {
			if v, _, ok := strings.Cut(rest, "/"); ok {
				prefix = "META-INF/versions/" + v + "/"
			}
		}
		entries[i] = jarEntry{Name: prefix + job.Out, Data: job.Result}
		written++
	}
	if err := writeJar(dest, entries); err != nil {
		return written, err
	}
	return written, nil
}
