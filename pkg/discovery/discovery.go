// Package discovery finds import bundles under the imports root and copies
// their assets into the host asset directory.
package discovery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chattriggers/ctjs/pkg/aggregator"
	"github.com/chattriggers/ctjs/pkg/types"
	"github.com/chattriggers/ctjs/pkg/utils"
)

// AssetsDirName is the per-import folder whose files are propagated
const AssetsDirName = "assets"

// Discover treats every immediate subdirectory of root as one import and
// aggregates its direct children. root is created if missing. Imports that
// fail to aggregate are left out and reported through the joined error;
// the remaining imports are still returned.
func Discover(root string, agg *aggregator.Aggregator) ([]types.Import, error) {
	if err := utils.EnsureDirectory(root); err != nil {
		return nil, fmt.Errorf("create imports root %s: %w: %w", root, types.ErrFileIO, err)
	}

	dirs, err := utils.ListSubdirectories(root)
	if err != nil {
		return nil, fmt.Errorf("list imports root %s: %w: %w", root, types.ErrFileIO, err)
	}

	imports := make([]types.Import, 0, len(dirs))
	var errs []error

	for _, dir := range dirs {
		name := filepath.Base(dir)

		files, err := utils.ListFiles(dir)
		if err != nil {
			errs = append(errs, &ImportError{Name: name, Err: fmt.Errorf("%w: %w", types.ErrFileIO, err)})
			continue
		}

		script, err := agg.Aggregate(files...)
		if err != nil {
			errs = append(errs, &ImportError{Name: name, Err: err})
			continue
		}

		imports = append(imports, types.Import{Name: name, Script: script})
	}

	return imports, errors.Join(errs...)
}

// PropagateAssets flat-copies the files of every <root>/<import>/assets
// directory into destination. Per-file failures are joined into the returned
// error and do not stop the remaining copies.
func PropagateAssets(root, destination string) ([]string, error) {
	dirs, err := utils.ListSubdirectories(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list imports root %s: %w: %w", root, types.ErrFileIO, err)
	}

	var copied []string
	var errs []error

	for _, dir := range dirs {
		assetsDir := filepath.Join(dir, AssetsDirName)
		if !utils.DirectoryExists(assetsDir) {
			continue
		}

		assets, err := utils.ListFiles(assetsDir)
		if err != nil {
			errs = append(errs, &ImportError{Name: filepath.Base(dir), Err: fmt.Errorf("%w: %w", types.ErrFileIO, err)})
			continue
		}

		for _, asset := range assets {
			if !utils.IsRegularFile(asset) {
				continue
			}
			dst, err := utils.CopyFileToDirectory(asset, destination)
			if err != nil {
				errs = append(errs, &ImportError{
					Name: filepath.Base(dir),
					Err:  fmt.Errorf("copy asset %s: %w: %w", filepath.Base(asset), types.ErrFileIO, err),
				})
				continue
			}
			copied = append(copied, dst)
		}
	}

	return copied, errors.Join(errs...)
}

// ImportError ties a failure to the import it came from
type ImportError struct {
	Name string
	Err  error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import %q: %v", e.Name, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// Errors splits a joined error back into its parts
func Errors(err error) []error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
