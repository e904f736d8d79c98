package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chazu/cfx/classfile"
	"github.com/chazu/cfx/inspect"
	"github.com/hashicorp/go-multierror"
)

func newFlagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: cfx %s %s\n", name, usage)
		fs.PrintDefaults()
	}
	return fs
}

// parseClasses decodes every input, collecting the failures.
func parseClasses(inputs []classInput, opts classfile.Option) ([]*classfile.ClassModel, error) {
	var result *multierror.Error
	models := make([]*classfile.ClassModel, 0, len(inputs))
	for _, in := range inputs {
		m, err := classfile.Parse(in.Data, opts)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", in.Name, err))
			continue
		}
		models = append(models, m)
	}
	return models, result.ErrorOrNil()
}

// runDump prints the listing of every class.
func runDump(args []string, stdout io.Writer) error {
	fs := newFlagSet("dump", "[-config cfx.toml] PATH...")
	config := fs.String("config", "", "Project configuration (default: nearest cfx.toml)")
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
	inputs, err := readClasses(fs.Args())
	if err != nil {
		return err
	}
	models, perr := parseClasses(inputs, optionsFrom(m))
	var result *multierror.Error
	if perr != nil {
		result = multierror.Append(result, perr)
	}
	for i, cm := range models {
		if i > 0 {
			fmt.Fprintln(stdout)
		}
		if err := inspect.Dump(stdout, cm); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", cm.ThisClass().InternalName(), err))
		}
	}
	return result.ErrorOrNil()
}

// runSummary writes the CBOR summary of one class to -o, or prints it.
// A .cbor argument is decoded and printed.
func runSummary(args []string, stdout io.Writer) error {
	fs := newFlagSet("summary", "[-o OUT] FILE")
	out := fs.String("o", "", "Write the CBOR summary to this file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errFailed
	}
	path := fs.Arg(0)

	var s *inspect.Summary
	if strings.HasSuffix(path, ".cbor") {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if s, err = inspect.UnmarshalSummary(data); err != nil {
			return err
		}
	} else {
		inputs, err := readClasses([]string{path})
		if err != nil {
			return err
		}
		if len(inputs) != 1 {
			return fmt.Errorf("%s: want one class, found %d", path, len(inputs))
		}
		m, err := classfile.Parse(inputs[0].Data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if s, err = inspect.Summarize(m); err != nil {
			return err
		}
	}

	if *out != "" {
		data, err := inspect.MarshalSummary(s)
		if err != nil {
			return err
		}
		log.Infof("writing %d byte summary to %s", len(data), *out)
		return os.WriteFile(*out, data, 0644)
	}
	printSummary(stdout, s)
	return nil
}

func printSummary(w io.Writer, s *inspect.Summary) {
	fmt.Fprintf(w, "%s %s (%d.%d)\n", cyan("class"), s.Name, s.Major, s.Minor)
	fmt.Fprintf(w, "  flags      %s\n", classfile.AccessFlags(s.Flags))
	if s.Super != "" {
		fmt.Fprintf(w, "  super      %s\n", s.Super)
	}
	if len(s.Interfaces) > 0 {
		fmt.Fprintf(w, "  interfaces %s\n", strings.Join(s.Interfaces, ", "))
	}
	if len(s.Attributes) > 0 {
		fmt.Fprintf(w, "  attributes %s\n", strings.Join(s.Attributes, ", "))
	}
	fmt.Fprintf(w, "  pool       %d\n", s.PoolSize)
	for _, f := range s.Fields {
		fmt.Fprintf(w, "%s %s %s [%s]\n", cyan("field"), f.Name, f.Descriptor, classfile.AccessFlags(f.Flags))
	}
	for _, m := range s.Methods {
		fmt.Fprintf(w, "%s %s%s [%s]", cyan("method"), m.Name, m.Descriptor, classfile.AccessFlags(m.Flags))
		if m.CodeLength > 0 {
			fmt.Fprintf(w, " code=%d stack=%d locals=%d", m.CodeLength, m.MaxStack, m.MaxLocals)
		}
		fmt.Fprintln(w)
	}
	for _, r := range s.References {
		fmt.Fprintf(w, "%s %s\n", cyan("ref"), r)
	}
}

// runDiff prints a colored unified diff of the listings of two classes.
func runDiff(args []string, stdout io.Writer) error {
	fs := newFlagSet("diff", "A B")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return errFailed
	}
	var dumps [2]string
	for i, path := range fs.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		m, err := classfile.Parse(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if dumps[i], err = inspect.DumpString(m); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	d := inspect.Diff(fs.Arg(0), dumps[0], fs.Arg(1), dumps[1])
	if d == "" {
		return nil
	}
	printColoredDiff(stdout, d)
	return errFailed
}

func printColoredDiff(w io.Writer, d string) {
	for _, line := range strings.SplitAfter(d, "\n") {
		switch {
		case line == "":
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			fmt.Fprint(w, yellow(line))
		case strings.HasPrefix(line, "@@"):
			fmt.Fprint(w, cyan(line))
		case strings.HasPrefix(line, "+"):
			fmt.Fprint(w, green(line))
		case strings.HasPrefix(line, "-"):
			fmt.Fprint(w, red(line))
		default:
			fmt.Fprint(w, line)
		}
	}
}

// runRoundtrip decodes each class, rebuilds it with and without constant
// pool sharing, and compares the listings.
func runRoundtrip(args []string, stdout io.Writer) error {
	fs := newFlagSet("roundtrip", "PATH...")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errFailed
	}
	inputs, err := readClasses(fs.Args())
	if err != nil {
		return err
	}
	failed := 0
	for _, in := range inputs {
		d, err := roundtrip(in)
		switch {
		case err != nil:
			failed++
			fmt.Fprintf(stdout, "%s %s: %v\n", red("FAIL"), in.Name, err)
		case d != "":
			failed++
			fmt.Fprintf(stdout, "%s %s\n", red("DIFF"), in.Name)
			printColoredDiff(stdout, d)
		default:
			fmt.Fprintf(stdout, "%s %s\n", green("ok"), in.Name)
		}
	}
	if failed > 0 {
		fmt.Fprintf(stdout, "%d of %d classes failed\n", failed, len(inputs))
		return errFailed
	}
	return nil
}

func roundtrip(in classInput) (string, error) {
	m, err := classfile.Parse(in.Data)
	if err != nil {
		return "", err
	}
	want, err := inspect.DumpString(m)
	if err != nil {
		return "", err
	}
	for _, opts := range []classfile.Option{classfile.KeepMaxStack, classfile.NoPoolSharing | classfile.KeepMaxStack} {
		src, err := classfile.Parse(in.Data, opts)
		if err != nil {
			return "", err
		}
		out, err := src.Transform(classfile.ClassPassThrough)
		if err != nil {
			return "", err
		}
		back, err := classfile.Parse(out)
		if err != nil {
			return "", fmt.Errorf("re-encoded class does not decode: %w", err)
		}
		got, err := inspect.DumpString(back)
		if err != nil {
			return "", err
		}
		if d := inspect.Diff(in.Name, want, in.Name+" (rebuilt)", got); d != "" {
			return d, nil
		}
	}
	return "", nil
}

// runMaxStack compares the max stack recomputed from each method body with
// the declared value.
func runMaxStack(args []string, stdout io.Writer) error {
	fs := newFlagSet("maxstack", "PATH...")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errFailed
	}
	inputs, err := readClasses(fs.Args())
	if err != nil {
		return err
	}
	models, perr := parseClasses(inputs, 0)
	mismatches := 0
	for _, m := range models {
		for _, mm := range m.Methods() {
			c, err := mm.Code()
			if err != nil {
				return err
			}
			if c == nil {
				continue
			}
			declared := c.(*classfile.CodeAttribute).MaxStack()
			computed, known, err := computeMaxStack(m, mm)
			if err != nil {
				return fmt.Errorf("%s.%s%s: %w", m.ThisClass().InternalName(), mm.Name(), mm.Descriptor(), err)
			}
			status := green("ok")
			switch {
			case !known:
				status = yellow("unknown")
			case computed != declared:
				status = red("mismatch")
				mismatches++
			}
			fmt.Fprintf(stdout, "%s %s.%s%s declared=%d computed=%d\n",
				status, m.ThisClass().InternalName(), mm.Name(), mm.Descriptor(), declared, computed)
		}
	}
	if perr != nil {
		return perr
	}
	if mismatches > 0 {
		return errFailed
	}
	return nil
}

func computeMaxStack(m *classfile.ClassModel, target classfile.MethodModel) (int, bool, error) {
	tr := classfile.NewStackTracker()
	_, err := m.Transform(classfile.TransformingMethodBodies(func(mm classfile.MethodModel) bool {
		return mm.Name().Equals(target.Name().String()) && mm.Descriptor().Equals(target.Descriptor().String())
	}, tr))
	if err != nil {
		return 0, false, err
	}
	max, ok := tr.MaxStackSize()
	return max, ok, nil
}
