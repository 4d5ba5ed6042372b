package paths

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/gwsandbox/gwsandbox-ctl/internal/definition"
	"github.com/gwsandbox/gwsandbox-ctl/internal/errors"
	"github.com/gwsandbox/gwsandbox-ctl/internal/logging"
)

// Well-known directories under the environments root.
const (
	ProjectsDir = "projects"
	BackupsDir  = "backups"
	TagsDir     = "tags"
	ModulesDir  = "modules"
	DriversDir  = "drivers"
	SecretsDir  = "secrets"
	DataDir     = "data"
)

// Directory permissions for created directories.
const (
	DirMode       fs.FileMode = 0750
	SecretDirMode fs.FileMode = 0700
)

// Secret file names recognized in a secrets directory.
const (
	SecretActivationToken = "activation-token"
	SecretLicenseKey      = "license-key"
	SecretAdminPassword   = "gateway-admin-password"
)

// KnownSecrets lists the recognized secret names in rendering order.
var KnownSecrets = []string{SecretActivationToken, SecretAdminPassword, SecretLicenseKey}

const (
	moduleExt   = ".modl"
	driverExt   = ".jar"
	projectFile = "project.json"
)

// Project is a resolved gateway project directory.
type Project struct {
	Name     string
	HostPath string
}

// Resolved is the result of resolving a definition's host references.
type Resolved struct {
	Root       string
	Backup     string
	TagExport  string
	DataSource string
	Projects   []Project
	Bundle     ResourceBundle
}

// Resolver validates host references against a fixed root.
type Resolver struct {
	Root string
}

// NewResolver creates a resolver rooted at root.
func NewResolver(root string) *Resolver {
	return &Resolver{Root: filepath.Clean(root)}
}

// Resolve validates every host reference in def, creates missing
// directories and detects resource bundles. All references are checked
// for traversal before anything is created.
func (r *Resolver) Resolve(def *definition.Definition) (*Resolved, error) {
	refs := []string{def.Backup, def.TagExport, def.ModulesDir, def.DriversDir, def.SecretsDir,
		def.ActivationTokenFile, def.LicenseKeyFile}
	refs = append(refs, def.Projects...)
	if def.DataMount.Type == definition.MountBind {
		refs = append(refs, def.DataMount.Source)
	}
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if _, err := r.lexical(ref); err != nil {
			return nil, err
		}
	}

	if err := r.ensureLayout(); err != nil {
		return nil, err
	}

	res := &Resolved{Root: r.Root}
	var err error

	if def.Backup != "" {
		if res.Backup, err = r.ResolveFile(def.Backup); err != nil {
			return nil, err
		}
	}
	if def.TagExport != "" {
		if res.TagExport, err = r.ResolveFile(def.TagExport); err != nil {
			return nil, err
		}
	}
	if def.DataMount.Type == definition.MountBind && def.DataMount.Source != "" {
		if res.DataSource, err = r.ResolveDir(def.DataMount.Source, DirMode); err != nil {
			return nil, err
		}
	}

	for _, ref := range def.Projects {
		project, err := r.resolveProject(ref)
		if err != nil {
			return nil, err
		}
		res.Projects = append(res.Projects, project)
	}

	if res.Bundle, err = r.detectBundle(def); err != nil {
		return nil, err
	}

	logging.Debug("resolved host references", "root", r.Root, "projects", len(res.Projects),
		"resources", len(res.Bundle.Resources))
	return res, nil
}

// ResolveDir resolves ref to a directory inside the root, creating it with
// mode if absent.
func (r *Resolver) ResolveDir(ref string, mode fs.FileMode) (string, error) {
	path, err := r.scoped(ref)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	switch {
	case err == nil:
		if !info.IsDir() {
			return "", errors.InvalidPath(ref, "not a directory")
		}
		return path, nil
	case os.IsNotExist(err):
		if err := os.MkdirAll(path, mode); err != nil {
			return "", errors.PermissionDenied(path, err)
		}
		return path, nil
	default:
		return "", errors.PermissionDenied(path, err)
	}
}

// ResolveFile resolves ref to an existing readable regular file inside the root.
func (r *Resolver) ResolveFile(ref string) (string, error) {
	path, err := r.scoped(ref)
	if err != nil {
		return "", err
	}
	if err := checkReadableFile(ref, path); err != nil {
		return "", err
	}
	return path, nil
}

// lexical rejects references that leave the root without touching the
// filesystem and returns the cleaned root-relative form.
func (r *Resolver) lexical(ref string) (string, error) {
	if strings.ContainsRune(ref, 0) {
		return "", errors.InvalidPath(ref, "contains a NUL byte")
	}

	clean := filepath.Clean(ref)
	rel := clean
	if filepath.IsAbs(clean) {
		var err error
		rel, err = filepath.Rel(r.Root, clean)
		if err != nil {
			return "", errors.InvalidPath(ref, "escapes the environments root")
		}
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.InvalidPath(ref, "escapes the environments root")
	}
	return rel, nil
}

// scoped returns the host path for ref. Symlinks are resolved inside the
// root; a symlink pointing outside it is rejected.
func (r *Resolver) scoped(ref string) (string, error) {
	rel, err := r.lexical(ref)
	if err != nil {
		return "", err
	}

	joined, err := securejoin.SecureJoin(r.Root, rel)
	if err != nil {
		return "", errors.InvalidPath(ref, err.Error())
	}

	// SecureJoin clamps escaping symlinks to the root. Check the real target
	// of the deepest existing ancestor so such links are rejected instead.
	target, ok := realExisting(filepath.Join(r.Root, rel))
	if ok {
		realRoot, err := filepath.EvalSymlinks(r.Root)
		if err != nil {
			return "", errors.PermissionDenied(r.Root, err)
		}
		if target != realRoot && !strings.HasPrefix(target, realRoot+string(filepath.Separator)) {
			return "", errors.InvalidPath(ref, "symlink escapes the environments root")
		}
	}

	return joined, nil
}

// realExisting evaluates symlinks on the longest existing prefix of path.
func realExisting(path string) (string, bool) {
	for p := path; ; p = filepath.Dir(p) {
		if target, err := filepath.EvalSymlinks(p); err == nil {
			return target, true
		}
		if parent := filepath.Dir(p); parent == p {
			return "", false
		}
	}
}

func (r *Resolver) ensureLayout() error {
	if err := os.MkdirAll(r.Root, DirMode); err != nil {
		return errors.PermissionDenied(r.Root, err)
	}
	for _, name := range []string{ProjectsDir, BackupsDir, TagsDir, ModulesDir, DriversDir, DataDir} {
		if _, err := r.ResolveDir(name, DirMode); err != nil {
			return err
		}
	}
	_, err := r.ResolveDir(SecretsDir, SecretDirMode)
	return err
}

func (r *Resolver) resolveProject(ref string) (Project, error) {
	path, err := r.scoped(ref)
	if err != nil {
		return Project{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Project{}, errors.InvalidPath(ref, "project directory does not exist")
		}
		return Project{}, errors.PermissionDenied(path, err)
	}
	if !info.IsDir() {
		return Project{}, errors.InvalidPath(ref, "project is not a directory")
	}

	if fileExists(filepath.Join(path, projectFile)) {
		return Project{Name: filepath.Base(path), HostPath: path}, nil
	}

	// Exported projects are often wrapped in a single directory.
	entries, err := os.ReadDir(path)
	if err != nil {
		return Project{}, errors.PermissionDenied(path, err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	if len(dirs) == 1 {
		nested := filepath.Join(path, dirs[0])
		if fileExists(filepath.Join(nested, projectFile)) {
			return Project{Name: dirs[0], HostPath: nested}, nil
		}
	}

	return Project{}, errors.InvalidPath(ref, "project directory has no project.json")
}

func (r *Resolver) detectBundle(def *definition.Definition) (ResourceBundle, error) {
	var bundle ResourceBundle

	modulesDir, err := r.ResolveDir(orDefault(def.ModulesDir, ModulesDir), DirMode)
	if err != nil {
		return bundle, err
	}
	files, err := readableFiles(modulesDir, moduleExt)
	if err != nil {
		return bundle, err
	}
	if len(files) > 0 {
		bundle.add(Resource{Kind: KindModule, Name: "modules", HostPath: modulesDir, Files: files})
	}

	driversDir, err := r.ResolveDir(orDefault(def.DriversDir, DriversDir), DirMode)
	if err != nil {
		return bundle, err
	}
	if files, err = readableFiles(driversDir, driverExt); err != nil {
		return bundle, err
	}
	if len(files) > 0 {
		bundle.add(Resource{Kind: KindDriver, Name: "drivers", HostPath: driversDir, Files: files})
	}

	secretsDir, err := r.ResolveDir(orDefault(def.SecretsDir, SecretsDir), SecretDirMode)
	if err != nil {
		return bundle, err
	}
	explicit := map[string]string{
		SecretActivationToken: def.ActivationTokenFile,
		SecretLicenseKey:      def.LicenseKeyFile,
	}
	for _, name := range KnownSecrets {
		if ref := explicit[name]; ref != "" {
			path, err := r.ResolveFile(ref)
			if err != nil {
				return bundle, err
			}
			bundle.add(Resource{Kind: KindSecret, Name: name, HostPath: path})
			continue
		}

		path := filepath.Join(secretsDir, name)
		ok, err := secretPresent(path)
		if err != nil {
			return bundle, err
		}
		if ok {
			bundle.add(Resource{Kind: KindSecret, Name: name, HostPath: path})
		}
	}

	bundle.sort()
	return bundle, nil
}

// AttachSecret verifies a secret file outside the root (such as one the
// controller materialized) and adds it to the bundle, replacing any entry
// with the same name.
func AttachSecret(res *Resolved, name, path string) error {
	if err := checkReadableFile(path, path); err != nil {
		return err
	}
	res.Bundle.remove(KindSecret, name)
	res.Bundle.add(Resource{Kind: KindSecret, Name: name, HostPath: path})
	res.Bundle.sort()
	return nil
}

func secretPresent(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.PermissionDenied(path, err)
	}
	if !info.Mode().IsRegular() {
		return false, nil
	}
	if info.Size() == 0 {
		logging.Debug("ignoring empty secret file", "path", path)
		return false, nil
	}
	if err := checkReadableFile(path, path); err != nil {
		return false, err
	}
	return true, nil
}

func readableFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.PermissionDenied(dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		f, err := os.Open(filepath.Join(dir, e.Name()))
		if err != nil {
			logging.Warn("skipping unreadable bundle file", "path", filepath.Join(dir, e.Name()), "error", err)
			continue
		}
		f.Close()
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, nil
}

func checkReadableFile(ref, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.InvalidPath(ref, "file does not exist")
		}
		return errors.PermissionDenied(path, err)
	}
	if !info.Mode().IsRegular() {
		return errors.InvalidPath(ref, fmt.Sprintf("not a regular file (%s)", info.Mode().Type()))
	}
	f, err := os.Open(path)
	if err != nil {
		return errors.PermissionDenied(path, err)
	}
	return f.Close()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
