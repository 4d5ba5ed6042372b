package artifact

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gwsandbox/gwsandbox-ctl/internal/config"
	"github.com/gwsandbox/gwsandbox-ctl/internal/errors"
	"github.com/gwsandbox/gwsandbox-ctl/internal/generator"
	"github.com/gwsandbox/gwsandbox-ctl/internal/logging"
)

const (
	dirMode       fs.FileMode = 0750
	secretDirMode fs.FileMode = 0700
	fileMode      fs.FileMode = 0640
	secretMode    fs.FileMode = 0600
	secretsSubdir             = "secrets"
)

// Paths locates the artifacts written for one environment.
type Paths struct {
	Dir      string `json:"dir"`
	Manifest string `json:"manifest"`
	EnvFile  string `json:"envFile"`
}

// Writer persists rendered artifacts under a per-environment directory.
type Writer struct {
	Root string
}

// NewWriter creates a writer rooted at root.
func NewWriter(root string) *Writer {
	return &Writer{Root: root}
}

// Dir returns the artifact directory for id.
func (w *Writer) Dir(id string) (string, error) {
	if err := config.ValidateID(id); err != nil {
		return "", errors.InvalidPath(id, err.Error())
	}
	dir, err := config.SafePath(w.Root, id, "")
	if err != nil {
		return "", errors.InvalidPath(id, err.Error())
	}
	return dir, nil
}

// PathsFor returns the artifact locations for id without touching disk.
func (w *Writer) PathsFor(id string) (Paths, error) {
	dir, err := w.Dir(id)
	if err != nil {
		return Paths{}, err
	}
	return Paths{
		Dir:      dir,
		Manifest: filepath.Join(dir, generator.ManifestFileName),
		EnvFile:  filepath.Join(dir, generator.EnvFileName),
	}, nil
}

// Write stores out for id, replacing any previous artifacts atomically.
// A reader never sees a partially written file.
func (w *Writer) Write(id string, out generator.Output) (Paths, error) {
	p, err := w.PathsFor(id)
	if err != nil {
		return Paths{}, err
	}
	if err := os.MkdirAll(p.Dir, dirMode); err != nil {
		return Paths{}, errors.WriteError(p.Dir, err)
	}

	if err := writeAtomic(p.Manifest, []byte(out.Manifest), fileMode); err != nil {
		return Paths{}, err
	}
	if err := writeAtomic(p.EnvFile, []byte(out.EnvFile), fileMode); err != nil {
		return Paths{}, err
	}

	logging.Debug("wrote artifacts", "id", id, "dir", p.Dir)
	return p, nil
}

// WriteSecret materializes a secret value for id and returns its path.
// The file is readable by the owner only.
func (w *Writer) WriteSecret(id, name string, value []byte) (string, error) {
	dir, err := w.Dir(id)
	if err != nil {
		return "", err
	}
	secretsDir := filepath.Join(dir, secretsSubdir)
	if err := os.MkdirAll(secretsDir, secretDirMode); err != nil {
		return "", errors.WriteError(secretsDir, err)
	}

	path, err := config.SafePath(secretsDir, name, "")
	if err != nil {
		return "", errors.InvalidPath(name, err.Error())
	}
	if err := writeAtomic(path, value, secretMode); err != nil {
		return "", err
	}
	return path, nil
}

// Remove deletes all artifacts for id. Missing artifacts are not an error.
func (w *Writer) Remove(id string) error {
	dir, err := w.Dir(id)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return errors.WriteError(dir, err)
	}
	return nil
}

// Exists reports whether the manifest for id is present.
func (w *Writer) Exists(id string) bool {
	p, err := w.PathsFor(id)
	if err != nil {
		return false
	}
	_, err = os.Stat(p.Manifest)
	return err == nil
}

// writeAtomic writes data to a temp file in the target directory, syncs
// it, renames it over path and syncs the directory so the rename survives
// a crash. The rename is atomic on one filesystem.
func writeAtomic(path string, data []byte, mode fs.FileMode) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.WriteError(path, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return errors.WriteError(path, err)
	}
	if err = tmp.Chmod(mode); err != nil {
		tmp.Close()
		return errors.WriteError(path, err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return errors.WriteError(path, err)
	}
	if err = tmp.Close(); err != nil {
		return errors.WriteError(path, err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return errors.WriteError(path, fmt.Errorf("rename: %w", err))
	}
	if err := syncDir(dir); err != nil {
		return errors.WriteError(path, fmt.Errorf("sync directory: %w", err))
	}
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	if err := d.Sync(); err != nil {
		d.Close()
		return err
	}
	return d.Close()
}

// WriteFileAtomic exposes the atomic write for other state files.
func WriteFileAtomic(path string, data []byte, mode fs.FileMode) error {
	return writeAtomic(path, data, mode)
}
