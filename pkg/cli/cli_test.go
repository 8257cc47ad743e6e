package cli_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chattriggers/ctjs/pkg/cli"
	"github.com/chattriggers/ctjs/pkg/types"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	config := cli.NewConfig()
	config.Version = "1.2.3"

	c := cli.NewCLIWithOutput(config, &out, &errOut)
	err := c.Execute(args)
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "--version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "ctjs v1.2.3") {
		t.Errorf("expected version output, got %q", out)
	}
}

func TestInitCommand(t *testing.T) {
	tests := []struct {
		name   string
		format string
		file   string
	}{
		{"json", "json", "ctjs.config.json"},
		{"yaml", "yaml", "ctjs.config.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := filepath.Join(t.TempDir(), "ChatTriggers")

			if _, _, err := execute(t, "--root", root, "init", "--format", tt.format); err != nil {
				t.Fatalf("init failed: %v", err)
			}

			for _, path := range []string{
				filepath.Join(root, tt.file),
				filepath.Join(root, types.DefaultLibsDir, types.DefaultProvidedLibs),
				filepath.Join(root, types.DefaultLibsDir, types.DefaultCustomLibs),
			} {
				if _, err := os.Stat(path); err != nil {
					t.Errorf("expected %s to exist: %v", path, err)
				}
			}
			if info, err := os.Stat(filepath.Join(root, types.DefaultImportsDir)); err != nil || !info.IsDir() {
				t.Errorf("expected imports directory, got %v", err)
			}

			if _, _, err := execute(t, "--root", root, "init"); err == nil {
				t.Error("expected second init without --force to fail")
			}
		})
	}
}

func TestInitCommand_ForceKeepsCustomLibs(t *testing.T) {
	root := t.TempDir()
	if _, _, err := execute(t, "--root", root, "init"); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	custom := filepath.Join(root, types.DefaultLibsDir, types.DefaultCustomLibs)
	writeFile(t, custom, "function mine() {}\n")

	if _, _, err := execute(t, "--root", root, "init", "--force"); err != nil {
		t.Fatalf("forced init failed: %v", err)
	}

	data, _ := os.ReadFile(custom)
	if string(data) != "function mine() {}\n" {
		t.Errorf("expected custom libs to be kept, got %q", data)
	}
}

func TestInitCommand_UnknownFormat(t *testing.T) {
	if _, _, err := execute(t, "--root", t.TempDir(), "init", "--format", "toml"); err == nil {
		t.Error("expected unknown format to fail")
	}
}

func TestLoadCommand(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Imports", "foo", "a.js"), "print(1)\n")
	writeFile(t, filepath.Join(root, "Imports", "foo", "b.js"), "print(2)\n")

	out, _, err := execute(t, "--root", root, "load", "--ticks", "2", "--world")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	for _, want := range []string{"foo", "updateProvidedLibsTick", "updateCustomLibsTick", "disabled", "enabled"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}

	status, _, err := execute(t, "--root", root, "status")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	for _, want := range []string{"Loads:", "foo", "Running:"} {
		if !strings.Contains(status, want) {
			t.Errorf("expected status to contain %q, got:\n%s", want, status)
		}
	}
	if strings.Contains(status, "yes (pid") {
		t.Error("expected a finished load not to be reported as running")
	}
}

func TestLoadCommand_ReportsFailures(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Imports", "bad", "x.js"), "throw new Error('nope');\n")
	writeFile(t, filepath.Join(root, "Imports", "good", "y.js"), "var ok = true;\n")

	out, _, err := execute(t, "--root", root, "load")
	if err == nil {
		t.Fatal("expected load with a failing import to return an error")
	}
	if !strings.Contains(out, "Failures:") || !strings.Contains(out, "bad") {
		t.Errorf("expected failure listing, got:\n%s", out)
	}
}

func TestStatusCommand_NoState(t *testing.T) {
	out, _, err := execute(t, "--root", t.TempDir(), "status")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "No load recorded") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestImportsCommand(t *testing.T) {
	root := t.TempDir()

	out, _, err := execute(t, "--root", root, "imports")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "No imports found") {
		t.Errorf("expected empty listing, got %q", out)
	}

	writeFile(t, filepath.Join(root, "Imports", "foo", "a.js"), "var a = 1;\nmodule.exports = a;\nvar b = 2;\n")

	out, _, err = execute(t, "--root", root, "imports")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var row string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "foo") {
			row = line
		}
	}
	if fields := strings.Fields(row); len(fields) < 2 || fields[1] != "2" {
		t.Errorf("expected foo with 2 lines, got %q", row)
	}
}

func TestValidateCommand(t *testing.T) {
	root := t.TempDir()

	out, _, err := execute(t, "--root", root, "validate")
	if err != nil || !strings.Contains(out, "defaults apply") {
		t.Errorf("expected defaults message, got %q, %v", out, err)
	}

	writeFile(t, filepath.Join(root, "ctjs.config.json"), `{"version": "1.0", "importsDir": "Modules"}`)
	out, _, err = execute(t, "--root", root, "validate")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "is valid") || !strings.Contains(out, filepath.Join(root, "Modules")) {
		t.Errorf("unexpected output:\n%s", out)
	}

	writeFile(t, filepath.Join(root, "ctjs.config.json"), `{"version": "2.0"}`)
	if _, _, err := execute(t, "--root", root, "validate"); err == nil {
		t.Error("expected invalid config to fail")
	}
}

func TestValidateCommand_Layout(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Imports", "net", "main.js"), "var a = 1;\nmodule.exports = a;\n")

	out, _, err := execute(t, "--root", root, "validate")
	if err != nil {
		t.Fatalf("expected warnings not to fail validation: %v", err)
	}
	if !strings.Contains(out, "illegal text") {
		t.Errorf("expected illegal line warning, got:\n%s", out)
	}

	writeFile(t, filepath.Join(root, "assets"), "not a directory")
	if _, _, err := execute(t, "--root", root, "validate"); err == nil {
		t.Error("expected an assets file to fail validation")
	}
}

func TestDotEnvSelectsConfig(t *testing.T) {
	root := t.TempDir()
	alt := filepath.Join(t.TempDir(), "alt.yaml")

	writeFile(t, alt, "version: \"1.0\"\nimportsDir: Modules\n")
	writeFile(t, filepath.Join(root, ".env"), "CTJS_CONFIG="+alt+"\n")
	writeFile(t, filepath.Join(root, "Modules", "bar", "x.js"), "var bar = 1;\n")
	t.Cleanup(func() { os.Unsetenv("CTJS_CONFIG") })

	out, _, err := execute(t, "--root", root, "imports")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "bar") {
		t.Errorf("expected import from the .env selected config, got:\n%s", out)
	}
}

func TestVerbosityFromEnvironment(t *testing.T) {
	t.Setenv("CTJS_VERBOSITY", "debug")

	_, errOut, err := execute(t, "--root", t.TempDir(), "validate")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(errOut, "Configuration resolved") {
		t.Errorf("expected debug logging, got %q", errOut)
	}
}

func TestRunCommand_StopsAfterDuration(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Imports", "counter", "main.js"),
		"var ticks = 0;\nregisterTick(function () { ticks++; });\n")

	out, _, err := execute(t, "--root", root, "run", "--for", "200ms")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(out, "counter") {
		t.Errorf("expected load report, got:\n%s", out)
	}

	status, _, err := execute(t, "--root", root, "status")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if strings.Contains(status, "yes (pid") {
		t.Errorf("expected state to be released after run, got:\n%s", status)
	}
}
