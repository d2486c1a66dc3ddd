package internal

import (
	"bytes"
	"go/format"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestGofmtCompliance verifies that every Go source file under internal/
// and cmd/codelooper is gofmt-clean.
//
// If this test fails, run: gofmt -w ./internal/ ./cmd/codelooper/
func TestGofmtCompliance(t *testing.T) {
	root := repoRoot(t)

	var unformatted []string
	for _, dir := range []string{
		filepath.Join(root, "internal"),
		filepath.Join(root, "cmd", "codelooper"),
	} {
		err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				if info.Name() == "vendor" || strings.HasPrefix(info.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(path, ".go") {
				return nil
			}

			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			formatted, err := format.Source(content)
			if err != nil {
				// Unparseable files are someone else's problem (build tags,
				// generated code); the compiler reports those.
				return nil
			}
			if !bytes.Equal(content, formatted) {
				rel, _ := filepath.Rel(root, path)
				unformatted = append(unformatted, rel)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Failed to walk %s: %v", dir, err)
		}
	}

	if len(unformatted) > 0 {
		for _, f := range unformatted {
			t.Errorf("not gofmt-clean: %s", f)
		}
		t.Errorf("\nRun 'gofmt -w ./internal/ ./cmd/codelooper/' to fix formatting.")
	}
}

// repoRoot resolves the module root whether the test runs from internal/
// or from the repository root.
func repoRoot(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	if filepath.Base(wd) == "internal" {
		return filepath.Dir(wd)
	}
	return wd
}
