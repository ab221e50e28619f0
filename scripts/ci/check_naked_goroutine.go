//go:build ignore

// check_naked_goroutine.go fails when non-test code under internal/ starts a
// goroutine with a bare `go` statement. Background work goes through
// internal/pkg/worker so panics are recovered and logged.
//
// Usage: go run scripts/ci/check_naked_goroutine.go
//
// A `nolint:naked-goroutine` comment suppresses its own line and the next.

package main

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const root = "internal"

var exempt = []string{
	"internal/pkg/worker",
}

func main() {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		fmt.Println("[naked-goroutine] SKIP: internal/ not present")
		return
	}

	var violations []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if isExempt(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		found, err := nakedGoroutines(path)
		if err != nil {
			return err
		}
		violations = append(violations, found...)
		return nil
	})
	if err != nil {
		fmt.Printf("[naked-goroutine] FAIL: walk %s: %v\n", root, err)
		os.Exit(1)
	}

	if len(violations) > 0 {
		fmt.Println("[naked-goroutine] FAIL: naked goroutines found")
		for _, v := range violations {
			fmt.Println(v)
		}
		os.Exit(1)
	}
	fmt.Println("[naked-goroutine] OK")
}

func isExempt(path string) bool {
	slash := filepath.ToSlash(path)
	for _, p := range exempt {
		if slash == p || strings.HasPrefix(slash, p+"/") {
			return true
		}
	}
	return false
}

func nakedGoroutines(path string) ([]string, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	suppressed := map[int]bool{}
	for _, cg := range file.Comments {
		for _, c := range cg.List {
			if strings.Contains(c.Text, "nolint:naked-goroutine") {
				line := fset.Position(c.Pos()).Line
				suppressed[line] = true
				suppressed[line+1] = true
			}
		}
	}

	var out []string
	ast.Inspect(file, func(n ast.Node) bool {
		stmt, ok := n.(*ast.GoStmt)
		if !ok {
			return true
		}
		pos := fset.Position(stmt.Pos())
		if !suppressed[pos.Line] {
			out = append(out, fmt.Sprintf("%s:%d: naked goroutine; submit to a worker pool instead", path, pos.Line))
		}
		return true
	})
	return out, nil
}
