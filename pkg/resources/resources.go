// Package resources materializes the script libraries bundled with the binary
// onto the filesystem.
package resources

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/chattriggers/ctjs/pkg/logger"
	"github.com/chattriggers/ctjs/pkg/types"
	"github.com/chattriggers/ctjs/pkg/utils"
)

//go:embed js/*.js
var bundled embed.FS

// Bundled returns the libraries compiled into the binary, rooted so that
// "/providedLibs.js" resolves to js/providedLibs.js.
func Bundled() fs.FS {
	sub, err := fs.Sub(bundled, "js")
	if err != nil {
		panic(err)
	}
	return sub
}

// Materializer copies resources out of a read-only filesystem
type Materializer struct {
	fsys   fs.FS
	logger logger.Logger
}

// NewMaterializer creates a materializer over fsys. A nil fsys selects the
// bundled libraries.
func NewMaterializer(fsys fs.FS, log logger.Logger) *Materializer {
	if fsys == nil {
		fsys = Bundled()
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Materializer{
		fsys:   fsys,
		logger: log.WithComponent("resources"),
	}
}

// Normalize turns a resource path like "\providedLibs.js" or "/providedLibs.js"
// into an fs.FS name.
func Normalize(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	return strings.TrimLeft(name, "/")
}

// Exists reports whether the named resource is available
func (m *Materializer) Exists(name string) bool {
	name = Normalize(name)
	if name == "" || !fs.ValidPath(name) {
		return false
	}
	info, err := fs.Stat(m.fsys, name)
	return err == nil && !info.IsDir()
}

// Materialize writes the named resource to dest. Parent directories are
// created. An existing dest is left untouched unless overwrite is set.
func (m *Materializer) Materialize(name, dest string, overwrite bool) error {
	if name == "" {
		return fmt.Errorf("empty resource path: %w", types.ErrResourceMissing)
	}

	normalized := Normalize(name)
	if normalized == "" || !fs.ValidPath(normalized) {
		return fmt.Errorf("resource %q: %w", name, types.ErrResourceMissing)
	}

	src, err := m.fsys.Open(normalized)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("resource %q: %w", name, types.ErrResourceMissing)
		}
		return fmt.Errorf("open resource %q: %w: %w", name, types.ErrFileIO, err)
	}
	defer src.Close()

	if info, err := src.Stat(); err == nil && info.IsDir() {
		return fmt.Errorf("resource %q is a directory: %w", name, types.ErrResourceMissing)
	}

	if !overwrite && utils.FileExists(dest) {
		m.logger.Debug("Keeping existing file",
			logger.WithField("resource", normalized),
			logger.WithField("dest", dest))
		return nil
	}

	if err := utils.WriteStreamAtomic(dest, src); err != nil {
		return fmt.Errorf("write resource %q to %s: %w: %w", name, dest, types.ErrFileIO, err)
	}

	m.logger.Debug("Materialized resource",
		logger.WithField("resource", normalized),
		logger.WithField("dest", dest))
	return nil
}
