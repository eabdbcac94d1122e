package testutil

import (
	"debug/elf"
	"os"
	"path/filepath"
	"testing"
)

// SelfBinary returns the path of the running test binary, skipping the test
// unless it is an ELF file with DWARF debug info.
func SelfBinary(t *testing.T) string {
	t.Helper()

	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("failed to locate test binary: %v", err)
	}

	f, err := elf.Open(exe)
	if err != nil {
		t.Skipf("test binary is not ELF: %v", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.DWARF(); err != nil {
		t.Skipf("test binary has no DWARF: %v", err)
	}
	return exe
}

// WriteFile writes content to name inside a fresh temporary directory and
// returns the full path.
func WriteFile(t *testing.T, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}
