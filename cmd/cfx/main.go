// cfx - inspect, compare and transform JVM classfiles
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("cfx.cli")

// errFailed is returned by commands that already reported what went wrong.
var errFailed = errors.New("failed")

var (
	red    = color.New(color.FgRed).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
)

// verbosity counts repeated -v flags.
type verbosity int

func (v *verbosity) String() string   { return strconv.Itoa(int(*v)) }
func (v *verbosity) IsBoolFlag() bool { return true }

func (v *verbosity) Set(s string) error {
	on, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	if on {
		*v++
	}
	return nil
}

type command struct {
	name    string
	summary string
	run     func(args []string, stdout io.Writer) error
}

var commands = []command{
	{"dump", "print a listing of each class", runDump},
	{"summary", "write or print the CBOR summary of a class", runSummary},
	{"diff", "show a unified diff of two class listings", runDiff},
	{"remap", "rename classes in files, directories and jars", runRemap},
	{"roundtrip", "check that classes survive decode and re-encode", runRoundtrip},
	{"maxstack", "compare computed and declared max stack per method", runMaxStack},
}

func main() {
	var verbose verbosity
	flag.Var(&verbose, "v", "Verbose output (repeat for more)")
	noColor := flag.Bool("no-color", false, "Disable colored output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cfx [options] <command> [command options] [paths...]\n\n")
		fmt.Fprintf(os.Stderr, "Reads .class files, directories of classes and jars.\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		for _, c := range commands {
			fmt.Fprintf(os.Stderr, "  %-10s %s\n", c.name, c.summary)
		}
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  cfx dump Foo.class\n")
		fmt.Fprintf(os.Stderr, "  cfx summary -o foo.cbor Foo.class\n")
		fmt.Fprintf(os.Stderr, "  cfx diff old/Foo.class new/Foo.class\n")
		fmt.Fprintf(os.Stderr, "  cfx remap -map com/google/=shaded/google/ -o out app.jar\n")
		fmt.Fprintf(os.Stderr, "  cfx -v roundtrip classes/\n")
	}
	flag.Parse()

	if *noColor {
		color.NoColor = true
	}
	commonlog.Configure(int(verbose), nil)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	for _, c := range commands {
		if c.name != args[0] {
			continue
		}
		if err := c.run(args[1:], os.Stdout); err != nil {
			if !errors.Is(err, errFailed) {
				fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), err)
			}
			os.Exit(1)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "%s unknown command %q\n", red("Error:"), args[0])
	flag.Usage()
	os.Exit(2)
}
