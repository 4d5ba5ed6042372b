package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gwsandbox/gwsandbox-ctl/internal/errors"
	"github.com/gwsandbox/gwsandbox-ctl/internal/generator"
)

const testID = "0123456789abcdef0123456789abcdef"

func TestWrite(t *testing.T) {
	w := NewWriter(t.TempDir())

	p, err := w.Write(testID, generator.Output{Manifest: "services: {}\n", EnvFile: "A=1\n"})
	if err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	if filepath.Base(p.Dir) != testID {
		t.Errorf("Dir = %q, want id directory", p.Dir)
	}
	got, err := os.ReadFile(p.Manifest)
	if err != nil || string(got) != "services: {}\n" {
		t.Errorf("manifest = %q, %v", got, err)
	}
	got, err = os.ReadFile(p.EnvFile)
	if err != nil || string(got) != "A=1\n" {
		t.Errorf("env file = %q, %v", got, err)
	}
	if !w.Exists(testID) {
		t.Error("Exists() = false after Write")
	}
}

func TestWrite_Overwrites(t *testing.T) {
	w := NewWriter(t.TempDir())

	if _, err := w.Write(testID, generator.Output{Manifest: "old", EnvFile: "old"}); err != nil {
		t.Fatal(err)
	}
	p, err := w.Write(testID, generator.Output{Manifest: "new", EnvFile: "new"})
	if err != nil {
		t.Fatal(err)
	}

	got, _ := os.ReadFile(p.Manifest)
	if string(got) != "new" {
		t.Errorf("manifest = %q, want new", got)
	}

	// No temp files are left behind.
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestWrite_RejectsBadID(t *testing.T) {
	w := NewWriter(t.TempDir())

	for _, id := range []string{"", "../escape", "abc"} {
		if _, err := w.Write(id, generator.Output{}); !errors.Is(err, errors.ErrInvalidPath) {
			t.Errorf("Write(%q) error = %v, want InvalidPath", id, err)
		}
	}
}

func TestWrite_Unwritable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	root := t.TempDir()
	if err := os.Chmod(root, 0500); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(root, 0755)

	_, err := NewWriter(root).Write(testID, generator.Output{Manifest: "x"})
	if !errors.Is(err, errors.ErrWriteError) {
		t.Errorf("Write() error = %v, want WriteError", err)
	}
}

func TestWriteSecret(t *testing.T) {
	w := NewWriter(t.TempDir())

	path, err := w.WriteSecret(testID, "gateway-admin-password", []byte("hunter22hunter22"))
	if err != nil {
		t.Fatalf("WriteSecret() error: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("secret mode = %v, want 0600", info.Mode().Perm())
	}

	if _, err := w.WriteSecret(testID, "../x", []byte("v")); !errors.Is(err, errors.ErrInvalidPath) {
		t.Errorf("WriteSecret(../x) error = %v, want InvalidPath", err)
	}
}

func TestRemove(t *testing.T) {
	w := NewWriter(t.TempDir())
	p, err := w.Write(testID, generator.Output{Manifest: "x", EnvFile: "y"})
	if err != nil {
		t.Fatal(err)
	}

	if err := w.Remove(testID); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if _, err := os.Stat(p.Dir); !os.IsNotExist(err) {
		t.Errorf("artifact dir still present: %v", err)
	}
	// Removing again is fine.
	if err := w.Remove(testID); err != nil {
		t.Errorf("second Remove() error: %v", err)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "record.json")

	for _, content := range []string{"first", "second"} {
		if err := WriteFileAtomic(path, []byte(content), 0640); err != nil {
			t.Fatalf("WriteFileAtomic() error: %v", err)
		}
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != content {
			t.Errorf("content = %q, want %q", got, content)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("temp files left behind: %v", names)
	}
}

func TestSyncDir(t *testing.T) {
	if err := syncDir(t.TempDir()); err != nil {
		t.Errorf("syncDir() error: %v", err)
	}
	if err := syncDir(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("syncDir() on a missing directory should fail")
	}
}
