// Package aggregator concatenates script files into one evaluable source,
// dropping lines that contain illegal substrings.
package aggregator

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/chattriggers/ctjs/pkg/types"
)

// Options configures an Aggregator. Nil slices select the defaults.
type Options struct {
	IllegalLines []string
	Extensions   []string
	CacheSize    int
}

// Aggregator filters and concatenates script files. The illegal line set is
// fixed for the lifetime of the instance.
type Aggregator struct {
	illegalLines []string
	extensions   []string
	cache        *lru.Cache[string, cachedFile]
}

// mtimeGranularity is the coarsest modification time resolution trusted by
// the cache. Entries whose mtime falls within it of the moment they were read
// are re-read on every lookup.
const mtimeGranularity = 2 * time.Second

// maxLineSize bounds a single script line
const maxLineSize = 16 * 1024 * 1024

type cachedFile struct {
	size     int64
	modTime  time.Time
	cachedAt time.Time
	lines    []string
}

// fresh reports whether the entry can be served for info without reading
// the file again
func (c cachedFile) fresh(info os.FileInfo) bool {
	if c.size != info.Size() || !c.modTime.Equal(info.ModTime()) {
		return false
	}
	return info.ModTime().Before(c.cachedAt.Add(-mtimeGranularity))
}

// New creates an aggregator
func New(opts Options) (*Aggregator, error) {
	illegal := opts.IllegalLines
	if illegal == nil {
		illegal = types.DefaultIllegalLines()
	}
	extensions := opts.Extensions
	if extensions == nil {
		extensions = types.DefaultScriptExtensions()
	}

	a := &Aggregator{
		illegalLines: append([]string(nil), illegal...),
		extensions:   append([]string(nil), extensions...),
	}

	if opts.CacheSize > 0 {
		cache, err := lru.New[string, cachedFile](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create aggregation cache: %w", err)
		}
		a.cache = cache
	}

	return a, nil
}

// IllegalLines returns a copy of the configured illegal substrings
func (a *Aggregator) IllegalLines() []string {
	return append([]string(nil), a.illegalLines...)
}

// IsIllegal reports whether a line contains any illegal substring
func (a *Aggregator) IsIllegal(line string) bool {
	for _, illegal := range a.illegalLines {
		if strings.Contains(line, illegal) {
			return true
		}
	}
	return false
}

// IsScript reports whether a file name carries a recognized script extension
func (a *Aggregator) IsScript(name string) bool {
	for _, ext := range a.extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// Aggregate reads files in order and returns their surviving lines, each
// terminated by a single newline. Files that are not scripts, do not exist or
// are not regular files are skipped. A read failure aborts this call.
func (a *Aggregator) Aggregate(files ...string) (string, error) {
	var sb strings.Builder

	for _, file := range files {
		if !a.IsScript(file) {
			continue
		}

		info, err := os.Stat(file)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		lines, err := a.fileLines(file, info)
		if err != nil {
			return "", err
		}

		for _, line := range lines {
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}

	return sb.String(), nil
}

// Purge drops every cached file
func (a *Aggregator) Purge() {
	if a.cache != nil {
		a.cache.Purge()
	}
}

func (a *Aggregator) fileLines(path string, info os.FileInfo) ([]string, error) {
	if a.cache != nil {
		if cached, ok := a.cache.Get(path); ok && cached.fresh(info) {
			return cached.lines, nil
		}
	}

	cachedAt := time.Now()
	lines, err := a.readFiltered(path)
	if err != nil {
		return nil, err
	}

	if a.cache != nil {
		a.cache.Add(path, cachedFile{
			size:     info.Size(),
			modTime:  info.ModTime(),
			cachedAt: cachedAt,
			lines:    lines,
		})
	}
	return lines, nil
}

func (a *Aggregator) readFiltered(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %w", path, types.ErrFileIO, err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	sc.Split(ScanLines)
	for sc.Scan() {
		if line := sc.Text(); !a.IsIllegal(line) {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w: %w", path, types.ErrFileIO, err)
	}

	return lines, nil
}

// ScanLines is a bufio.SplitFunc that ends a line at "\n", "\r\n" or a lone
// "\r". The terminator is not part of the token.
func ScanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		if atEOF {
			return i + 1, data[:i], nil
		}
		// a trailing \r may be the first half of \r\n
		return 0, nil, nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
