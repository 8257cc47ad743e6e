package aggregator_test

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chattriggers/ctjs/pkg/aggregator"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func newAggregator(t *testing.T, opts aggregator.Options) *aggregator.Aggregator {
	t.Helper()
	agg, err := aggregator.New(opts)
	if err != nil {
		t.Fatalf("failed to create aggregator: %v", err)
	}
	return agg
}

func TestAggregate_FiltersIllegalLines(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.js", "print(1)\nload(\"http://x\")\n")
	b := writeFile(t, dir, "b.js", "print(2)\n")

	agg := newAggregator(t, aggregator.Options{})

	got, err := agg.Aggregate(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "print(1)\nprint(2)\n" {
		t.Errorf("unexpected script %q", got)
	}
}

func TestAggregate_IllegalLineAnyPosition(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "first line",
			content: "module.exports = x\nkeep()\n",
			want:    "keep()\n",
		},
		{
			name:    "middle of line",
			content: "keep()\nvar y = module.export;\nkeep2()\n",
			want:    "keep()\nkeep2()\n",
		},
		{
			name:    "last line without newline",
			content: "keep()\nload(\"https://evil\")",
			want:    "keep()\n",
		},
		{
			name:    "case sensitive",
			content: "MODULE.EXPORT\n",
			want:    "MODULE.EXPORT\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := writeFile(t, dir, "s.js", tt.content)
			agg := newAggregator(t, aggregator.Options{})

			got, err := agg.Aggregate(path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestAggregate_LineCountAndOrder(t *testing.T) {
	dir := t.TempDir()
	illegal := []string{"FORBIDDEN", "nope"}

	var files []string
	var expected []string
	for i, content := range []string{
		"one\ntwo FORBIDDEN\nthree\n",
		"nope nope\nfour\n",
		"five\r\nsix\r\n",
	} {
		files = append(files, writeFile(t, dir, string(rune('a'+i))+".js", content))
	}
	expected = []string{"one", "three", "four", "five", "six"}

	agg := newAggregator(t, aggregator.Options{IllegalLines: illegal})
	got, err := agg.Aggregate(files...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	if len(lines) != len(expected) {
		t.Fatalf("expected %d lines, got %d: %q", len(expected), len(lines), got)
	}
	for i := range expected {
		if lines[i] != expected[i] {
			t.Errorf("line %d: expected %q, got %q", i, expected[i], lines[i])
		}
	}
}

func TestAggregate_LineTerminators(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "carriage returns only",
			content: "print(1)\rload(\"http://x\")\rprint(2)\r",
			want:    "print(1)\nprint(2)\n",
		},
		{
			name:    "mixed terminators",
			content: "a()\r\nb()\rmodule.exports = b\nc()",
			want:    "a()\nb()\nc()\n",
		},
		{
			name:    "blank lines kept",
			content: "a()\r\r\nb()\n\n",
			want:    "a()\n\nb()\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "s.js", tt.content)
			agg := newAggregator(t, aggregator.Options{})

			got, err := agg.Aggregate(path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestScanLines_SplitCRLFAcrossReads(t *testing.T) {
	// a one byte reader hands the scanner "\r" and "\n" in separate reads
	sc := bufio.NewScanner(&oneByteReader{data: []byte("x\r\ny\rz")})
	sc.Split(aggregator.ScanLines)

	var got []string
	for sc.Scan() {
		got = append(got, sc.Text())
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"x", "y", "z"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("expected %q, got %q", want, got)
	}
}

type oneByteReader struct {
	data []byte
}

func (r *oneByteReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	p[0] = r.data[0]
	r.data = r.data[1:]
	return 1, nil
}

func TestAggregate_SkipsNonScripts(t *testing.T) {
	dir := t.TempDir()
	js := writeFile(t, dir, "main.js", "ok()\n")
	txt := writeFile(t, dir, "notes.txt", "not a script\n")
	missing := filepath.Join(dir, "missing.js")
	subdir := filepath.Join(dir, "folder.js")
	os.Mkdir(subdir, 0755)

	agg := newAggregator(t, aggregator.Options{})
	got, err := agg.Aggregate(txt, missing, subdir, js)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok()\n" {
		t.Errorf("expected only main.js content, got %q", got)
	}
}

func TestAggregate_EmptyInput(t *testing.T) {
	agg := newAggregator(t, aggregator.Options{})
	got, err := agg.Aggregate()
	if err != nil || got != "" {
		t.Errorf("expected empty result, got %q, %v", got, err)
	}
}

func TestAggregate_CustomExtensions(t *testing.T) {
	dir := t.TempDir()
	mjs := writeFile(t, dir, "a.mjs", "esm()\n")
	js := writeFile(t, dir, "b.js", "plain()\n")

	agg := newAggregator(t, aggregator.Options{Extensions: []string{".mjs"}})
	got, _ := agg.Aggregate(mjs, js)
	if got != "esm()\n" {
		t.Errorf("expected only .mjs content, got %q", got)
	}
}

func TestAggregate_CacheInvalidatesOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.js", "first()\n")

	agg := newAggregator(t, aggregator.Options{CacheSize: 8})

	got, _ := agg.Aggregate(path)
	if got != "first()\n" {
		t.Fatalf("unexpected first read %q", got)
	}

	os.WriteFile(path, []byte("second()\nthird()\n"), 0644)
	later := time.Now().Add(2 * time.Second)
	os.Chtimes(path, later, later)

	got, _ = agg.Aggregate(path)
	if got != "second()\nthird()\n" {
		t.Errorf("expected cache to be invalidated, got %q", got)
	}

	agg.Purge()
	got, _ = agg.Aggregate(path)
	if got != "second()\nthird()\n" {
		t.Errorf("unexpected read after purge %q", got)
	}
}

func TestAggregate_CacheRereadsRecentlyModified(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.js", "print(1)\n")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}

	agg := newAggregator(t, aggregator.Options{CacheSize: 8})
	if got, _ := agg.Aggregate(path); got != "print(1)\n" {
		t.Fatalf("unexpected first read %q", got)
	}

	// same size and mtime, as a quick edit looks on a coarse clock
	os.WriteFile(path, []byte("print(9)\n"), 0644)
	os.Chtimes(path, info.ModTime(), info.ModTime())

	if got, _ := agg.Aggregate(path); got != "print(9)\n" {
		t.Errorf("expected recently modified file to be read again, got %q", got)
	}
}

func TestIsIllegal(t *testing.T) {
	agg := newAggregator(t, aggregator.Options{})

	if !agg.IsIllegal(`var x = load("https://cdn/x.js")`) {
		t.Error("expected remote load to be illegal")
	}
	if agg.IsIllegal(`load("./local.js")`) {
		t.Error("expected local load to be allowed")
	}
	if got := agg.IllegalLines(); len(got) != 2 {
		t.Errorf("expected 2 default illegal lines, got %v", got)
	}
}
