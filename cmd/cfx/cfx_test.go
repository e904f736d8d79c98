package main

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/cfx/classfile"
	"github.com/chazu/cfx/desc"
	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

// greeter builds demo/Greeter, which extends demo/Base and calls demo/Helper.
func greeter(t *testing.T, line int) []byte {
	t.Helper()
	b, err := classfile.Build("demo/Greeter", "demo/Base", func(cb classfile.ClassBuilder) error {
		helper := cb.ConstantPool().ClassEntry("demo/Helper")
		cb.WithField("helper", "Ldemo/Helper;", classfile.AccPrivate, func(classfile.FieldBuilder) error { return nil })
		cb.WithMethod("greet", "()Ljava/lang/String;", classfile.AccPublic|classfile.AccStatic, func(mb classfile.MethodBuilder) error {
			mb.WithCode(func(c classfile.CodeBuilder) error {
				c.LineNumber(line)
				c.New(helper)
				c.Op(classfile.OpDup)
				c.Invoke(classfile.OpInvokespecial, helper, "<init>", "()V", false)
				c.Invoke(classfile.OpInvokevirtual, helper, "name", "()Ljava/lang/String;", false)
				c.Return(desc.Reference)
				return nil
			})
			return nil
		})
		return nil
	})
	require.NoError(t, err)
	return b
}

func writeFile(t *testing.T, path string, data []byte) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	return writeFile(t, filepath.Join(t.TempDir(), "cfx.toml"), []byte(body))
}

func TestDumpCommand(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "Greeter.class"), greeter(t, 7))
	cfg := writeConfig(t, "[options]\ndrop-line-numbers = true\n")

	var out bytes.Buffer
	require.NoError(t, runDump([]string{"-config", cfg, path}, &out))
	require.Contains(t, out.String(), "class demo/Greeter\n")
	require.Contains(t, out.String(), "invokevirtual demo/Helper.name:()Ljava/lang/String;")
	require.NotContains(t, out.String(), "line 7")
}

func TestDumpCommandReportsBadInput(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, filepath.Join(dir, "Greeter.class"), greeter(t, 1))
	bad := writeFile(t, filepath.Join(dir, "Bad.class"), []byte{0xCA, 0xFE})

	var out bytes.Buffer
	err := runDump([]string{"-config", writeConfig(t, ""), bad, good}, &out)
	require.ErrorContains(t, err, "Bad.class")
	require.Contains(t, out.String(), "class demo/Greeter")
}

func TestSummaryCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "Greeter.class"), greeter(t, 1))
	cbor := filepath.Join(dir, "greeter.cbor")

	var out bytes.Buffer
	require.NoError(t, runSummary([]string{"-o", cbor, path}, &out))
	require.Empty(t, out.String())
	require.FileExists(t, cbor)

	require.NoError(t, runSummary([]string{cbor}, &out))
	s := out.String()
	require.Contains(t, s, "class demo/Greeter (52.0)\n")
	require.Contains(t, s, "  super      demo/Base\n")
	require.Contains(t, s, "method greet()Ljava/lang/String; [public static] code=")
	require.Contains(t, s, "stack=2 locals=0")
	require.Contains(t, s, "ref demo/Helper\n")
}

func TestDiffCommand(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, filepath.Join(dir, "a", "Greeter.class"), greeter(t, 1))
	b := writeFile(t, filepath.Join(dir, "b", "Greeter.class"), greeter(t, 2))

	var out bytes.Buffer
	require.NoError(t, runDiff([]string{a, a}, &out))
	require.Empty(t, out.String())

	err := runDiff([]string{a, b}, &out)
	require.ErrorIs(t, err, errFailed)
	require.Contains(t, out.String(), "-    line 1\n")
	require.Contains(t, out.String(), "+    line 2\n")
}

func TestRemapDirectory(t *testing.T) {
	in := t.TempDir()
	writeFile(t, filepath.Join(in, "demo", "Greeter.class"), greeter(t, 1))
	out := t.TempDir()
	cfg := writeConfig(t, "[remap]\n\"demo/Base\" = \"base/Root\"\n[output]\njobs = 2\n")

	var buf bytes.Buffer
	require.NoError(t, runRemap([]string{"-config", cfg, "-o", out, "-map", "demo/=shaded/demo/", in}, &buf))
	require.Contains(t, buf.String(), "remapped 1 classes")

	data, err := os.ReadFile(filepath.Join(out, "shaded", "demo", "Greeter.class"))
	require.NoError(t, err)
	m, err := classfile.Parse(data)
	require.NoError(t, err)
	require.Equal(t, "shaded/demo/Greeter", m.ThisClass().InternalName())
	require.Equal(t, "base/Root", m.Superclass().InternalName())
	require.Equal(t, "Lshaded/demo/Helper;", m.Fields()[0].Descriptor().String())
}

func TestRemapJar(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "app.jar")
	require.NoError(t, writeJar(jar, []jarEntry{
		{Name: "META-INF/MANIFEST.MF", Data: []byte("Manifest-Version: 1.0\n")},
		{Name: "demo/Greeter.class", Data: greeter(t, 1)},
		{Name: "META-INF/versions/11/demo/Greeter.class", Data: greeter(t, 2)},
	}))
	out := t.TempDir()

	var buf bytes.Buffer
	require.NoError(t, runRemap([]string{"-config", writeConfig(t, ""), "-o", out, "-j", "1", "-map", "demo/Greeter=demo/Hello", jar}, &buf))

	zr, err := zip.OpenReader(filepath.Join(out, "app.jar"))
	require.NoError(t, err)
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	require.Equal(t, []string{
		"META-INF/MANIFEST.MF",
		"demo/Hello.class",
		"META-INF/versions/11/demo/Hello.class",
	}, names)
}

func TestRemapJarWithBrokenClassWritesNothing(t *testing.T) {
	jar := filepath.Join(t.TempDir(), "app.jar")
	require.NoError(t, writeJar(jar, []jarEntry{
		{Name: "demo/Greeter.class", Data: greeter(t, 1)},
		{Name: "demo/Broken.class", Data: []byte("not a class")},
	}))
	out := t.TempDir()

	var buf bytes.Buffer
	err := runRemap([]string{"-config", writeConfig(t, ""), "-o", out, "-map", "demo/=x/", jar}, &buf)
	require.ErrorContains(t, err, "app.jar!demo/Broken.class")
	require.NoFileExists(t, filepath.Join(out, "app.jar"))
	require.Contains(t, buf.String(), "remapped 0 classes")
}

func TestRemapPrefixFromConfig(t *testing.T) {
	in := t.TempDir()
	writeFile(t, filepath.Join(in, "demo", "Greeter.class"), greeter(t, 1))
	out := t.TempDir()
	cfg := writeConfig(t, `[remap]
"demo/" = "vendored/demo/"
`)

	require.NoError(t, runRemap([]string{"-config", cfg, "-o", out, in}, &bytes.Buffer{}))
	data, err := os.ReadFile(filepath.Join(out, "vendored", "demo", "Greeter.class"))
	require.NoError(t, err)
	m, err := classfile.Parse(data)
	require.NoError(t, err)
	require.Equal(t, "vendored/demo/Greeter", m.ThisClass().InternalName())
	require.Equal(t, "Lvendored/demo/Helper;", m.Fields()[0].Descriptor().String())
}

func TestRemapWithoutRenames(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "Greeter.class"), greeter(t, 1))
	err := runRemap([]string{"-config", writeConfig(t, ""), path}, &bytes.Buffer{})
	require.ErrorContains(t, err, "no renames")
}

func TestRemapCollectsFailures(t *testing.T) {
	in := t.TempDir()
	writeFile(t, filepath.Join(in, "a", "Greeter.class"), greeter(t, 1))
	writeFile(t, filepath.Join(in, "b", "Broken.class"), []byte("not a class"))
	out := t.TempDir()

	var buf bytes.Buffer
	err := runRemap([]string{"-config", writeConfig(t, ""), "-o", out, "-map", "demo/=x/", in}, &buf)
	require.ErrorContains(t, err, "Broken.class")
	require.FileExists(t, filepath.Join(out, "x", "Greeter.class"))
}

func TestRoundtripCommand(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "Greeter.class"), greeter(t, 3))
	var out bytes.Buffer
	require.NoError(t, runRoundtrip([]string{path}, &out))
	require.Contains(t, out.String(), "ok "+path)
}

func TestMaxStackCommand(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "Greeter.class"), greeter(t, 3))
	var out bytes.Buffer
	require.NoError(t, runMaxStack([]string{path}, &out))
	require.Contains(t, out.String(), "ok demo/Greeter.greet()Ljava/lang/String; declared=2 computed=2")
}

func TestRenamer(t *testing.T) {
	r := newRenamer(map[string]string{
		"a/":     "x/",
		"a/b/":   "y/",
		"a/b/C":  "z/C",
		"q/Only": "q/Renamed",
	})
	tests := []struct{ in, want string }{
		{"a/A", "x/A"},
		{"a/b/B", "y/B"},
		{"a/b/C", "z/C"},
		{"q/Only", "q/Renamed"},
		{"q/Other", "q/Other"},
		{"ab/A", "ab/A"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, r.rename(tt.in), "rename(%s)", tt.in)
	}
}

func TestMapFlag(t *testing.T) {
	m := mapFlag{}
	require.NoError(t, m.Set("a/A=b/B"))
	require.NoError(t, m.Set("c/=d/"))
	require.Equal(t, "a/A=b/B,c/=d/", m.String())
	require.Error(t, m.Set("novalue"))
	require.Error(t, m.Set("=x"))
}

func TestVerbosityCounts(t *testing.T) {
	var v verbosity
	require.NoError(t, v.Set("true"))
	require.NoError(t, v.Set("true"))
	require.NoError(t, v.Set("false"))
	require.Equal(t, "2", v.String())
}
