// Package validation checks a mod root for problems that would make a load
// fail or behave unexpectedly
package validation

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chattriggers/ctjs/pkg/aggregator"
	"github.com/chattriggers/ctjs/pkg/config"
	"github.com/chattriggers/ctjs/pkg/discovery"
	"github.com/chattriggers/ctjs/pkg/types"
	"github.com/chattriggers/ctjs/pkg/utils"
)

// ErrInvalidLayout is wrapped by Err when a result holds error level issues
var ErrInvalidLayout = errors.New("invalid mod root layout")

// LayoutValidator inspects the on-disk layout of a mod root
type LayoutValidator struct {
	paths      config.Paths
	aggregator *aggregator.Aggregator
}

// NewLayoutValidator creates a validator for paths. agg decides which files
// are scripts and which lines are illegal.
func NewLayoutValidator(paths config.Paths, agg *aggregator.Aggregator) *LayoutValidator {
	return &LayoutValidator{
		paths:      paths,
		aggregator: agg,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Subject string
	Field   string
	Message string
	Level   ValidationLevel
}

// ValidationLevel represents error severity
type ValidationLevel string

const (
	ValidationLevelError   ValidationLevel = "error"
	ValidationLevelWarning ValidationLevel = "warning"
	ValidationLevelInfo    ValidationLevel = "info"
)

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s.%s: %s", e.Level, e.Subject, e.Field, e.Message)
}

// ValidationResult contains validation results
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// AddError adds an error to the validation result
func (r *ValidationResult) AddError(subject, field, message string, level ValidationLevel) {
	r.Errors = append(r.Errors, ValidationError{
		Subject: subject,
		Field:   field,
		Message: message,
		Level:   level,
	})
	if level == ValidationLevelError {
		r.Valid = false
	}
}

// Issues returns the issues recorded at level
func (r *ValidationResult) Issues(level ValidationLevel) []ValidationError {
	var issues []ValidationError
	for _, e := range r.Errors {
		if e.Level == level {
			issues = append(issues, e)
		}
	}
	return issues
}

// Err joins the error level issues under ErrInvalidLayout, or returns nil
func (r *ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	errs := []error{ErrInvalidLayout}
	for _, e := range r.Issues(ValidationLevelError) {
		errs = append(errs, &e)
	}
	return errors.Join(errs...)
}

// Validate inspects the imports, libs and assets locations
func (v *LayoutValidator) Validate() *ValidationResult {
	result := &ValidationResult{Valid: true}

	v.validateImportsRoot(result)
	v.validateLibs(result)
	v.validateAssets(result)

	return result
}

func (v *LayoutValidator) validateImportsRoot(result *ValidationResult) {
	root := v.paths.Imports

	info, err := os.Stat(root)
	if os.IsNotExist(err) {
		result.AddError("imports", "path", fmt.Sprintf("%s does not exist and will be created on load", root), ValidationLevelInfo)
		return
	}
	if err != nil {
		result.AddError("imports", "path", err.Error(), ValidationLevelError)
		return
	}
	if !info.IsDir() {
		result.AddError("imports", "path", fmt.Sprintf("%s is not a directory", root), ValidationLevelError)
		return
	}

	dirs, err := utils.ListSubdirectories(root)
	if err != nil {
		result.AddError("imports", "path", err.Error(), ValidationLevelError)
		return
	}
	for _, dir := range dirs {
		v.validateImport(dir, result)
	}
}

func (v *LayoutValidator) validateImport(dir string, result *ValidationResult) {
	name := filepath.Base(dir)

	files, err := utils.ListFiles(dir)
	if err != nil {
		result.AddError(name, "files", err.Error(), ValidationLevelError)
		return
	}

	scripts := 0
	for _, file := range files {
		base := filepath.Base(file)

		if base == discovery.AssetsDirName && !utils.DirectoryExists(file) {
			result.AddError(name, discovery.AssetsDirName, "is not a directory and will be ignored", ValidationLevelWarning)
			continue
		}
		if !v.aggregator.IsScript(base) || !utils.IsRegularFile(file) {
			continue
		}
		scripts++

		if dropped := v.countIllegal(file); dropped > 0 {
			result.AddError(name, base, fmt.Sprintf("%d line(s) contain illegal text and will be dropped", dropped), ValidationLevelWarning)
		}
	}

	if scripts == 0 {
		result.AddError(name, "files", "no script files, the import will be empty", ValidationLevelWarning)
	}
}

func (v *LayoutValidator) countIllegal(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	count := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	sc.Split(aggregator.ScanLines)
	for sc.Scan() {
		if v.aggregator.IsIllegal(sc.Text()) {
			count++
		}
	}
	return count
}

func (v *LayoutValidator) validateLibs(result *ValidationResult) {
	if utils.FileExists(v.paths.Libs) && !utils.DirectoryExists(v.paths.Libs) {
		result.AddError("libs", "path", fmt.Sprintf("%s is not a directory", v.paths.Libs), ValidationLevelError)
		return
	}

	if !utils.FileExists(v.paths.ProvidedLibsFile) {
		result.AddError("libs", "providedLibs", "will be written on load", ValidationLevelInfo)
	}

	if !utils.FileExists(v.paths.CustomLibsFile) {
		result.AddError("libs", "customLibs", "will be written on load", ValidationLevelInfo)
		return
	}

	data, err := os.ReadFile(v.paths.CustomLibsFile)
	if err != nil {
		result.AddError("libs", "customLibs", err.Error(), ValidationLevelWarning)
		return
	}
	for _, ep := range []types.EntryPoint{types.CustomLibsTick, types.CustomLibsWorld} {
		if !definesFunction(string(data), ep.FunctionName()) {
			result.AddError("libs", ep.String(), "not defined, the entry point will be disabled on first use", ValidationLevelInfo)
		}
	}
}

func (v *LayoutValidator) validateAssets(result *ValidationResult) {
	if utils.FileExists(v.paths.Assets) && !utils.DirectoryExists(v.paths.Assets) {
		result.AddError("assets", "path", fmt.Sprintf("%s is not a directory", v.paths.Assets), ValidationLevelError)
	}
}

// definesFunction reports whether a non-comment line of source mentions name.
// It is a hint, not a parse.
func definesFunction(source, name string) bool {
	for _, line := range strings.Split(source, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "//") || strings.HasPrefix(line, "*") {
			continue
		}
		if strings.Contains(line, name) {
			return true
		}
	}
	return false
}
