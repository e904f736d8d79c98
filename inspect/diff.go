package inspect

import (
	"strings"

	"github.com/chazu/cfx/classfile"
	difflib "github.com/pmezard/go-difflib/difflib"
)

// DiffContext is the number of context lines in a diff hunk.
const DiffContext = 3

// Diff returns a unified diff from a to b, or "" when they are equal.
func Diff(aName, a, bName, b string) string {
	if a == b {
		return ""
	}
	u := difflib.UnifiedDiff{
		A:        splitLinesKeepNL(a),
		B:        splitLinesKeepNL(b),
		FromFile: aName,
		ToFile:   bName,
		Context:  DiffContext,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil {
		log.Warningf("diff %s %s: %s", aName, bName, err)
		return "--- " + aName + "\n+++ " + bName + "\n"
	}
	return s
}

// DiffModels dumps both classes and diffs the listings.
func DiffModels(aName string, a *classfile.ClassModel, bName string, b *classfile.ClassModel) (string, error) {
	da, err := DumpString(a)
	if err != nil {
		return "", err
	}
	db, err := DumpString(b)
	if err != nil {
		return "", err
	}
	return Diff(aName, da, bName, db), nil
}

func splitLinesKeepNL(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	} else {
		lines[len(lines)-1] += "\n"
	}
	return lines
}
