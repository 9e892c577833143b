package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	runtime "github.com/chazu/tulip/lib/runtime"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--no-manifest"}, args...))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		cacheDB = ""
	})
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func writeScript(t *testing.T, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.tulip")
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func exitStatus(err error) runtime.Status {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.status
	}
	if err != nil {
		return -1
	}
	return runtime.StatusOK
}

func TestRunScript(t *testing.T) {
	path := writeScript(t, `println("hi", args[1])`)
	out, _, err := execute(t, path, "there")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "hi there\n" {
		t.Errorf("stdout = %q", out)
	}
	if runtime.Global() != nil {
		t.Error("runtime left initialized after the script")
	}
}

func TestRunScriptStatuses(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   runtime.Status
		stderr string
	}{
		{"ok", "1", runtime.StatusOK, ""},
		{"compile error", "let = ;", runtime.StatusCompileError, "compile error:"},
		{"runtime error", "1 / 0", runtime.StatusRuntimeError, "Division by zero."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errOut, err := execute(t, writeScript(t, tt.source))
			if got := exitStatus(err); got != tt.want {
				t.Errorf("status = %v, want %v", got, tt.want)
			}
			if !strings.Contains(errOut, tt.stderr) {
				t.Errorf("stderr = %q, want %q", errOut, tt.stderr)
			}
		})
	}
}

func TestRunMissingFile(t *testing.T) {
	_, errOut, err := execute(t, "run", filepath.Join(t.TempDir(), "missing.tulip"))
	if got := exitStatus(err); got != runtime.StatusIOError {
		t.Errorf("status = %v, want %v", got, runtime.StatusIOError)
	}
	if !strings.Contains(errOut, "Could not open file") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "tulip version "+runtime.Version+"\n") {
		t.Errorf("stdout = %q", out)
	}
}

func TestCacheCommands(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cache.db")
	script := writeScript(t, "2 + 2")

	if _, _, err := execute(t, "--cache-db", db, script); err != nil {
		t.Fatalf("run: %v", err)
	}

	out, _, err := execute(t, "--cache-db", db, "cache", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, script) || !strings.Contains(out, "1 cached in") {
		t.Errorf("cache list = %q", out)
	}

	out, _, err = execute(t, "--cache-db", db, "cache", "clear")
	if err != nil {
		t.Fatal(err)
	}
	if out != "removed 1 cached units\n" {
		t.Errorf("cache clear = %q", out)
	}
}

func TestCacheWithoutDatabase(t *testing.T) {
	t.Setenv("TULIP_CACHE_DB", "")
	if _, _, err := execute(t, "cache", "list"); err == nil {
		t.Error("expected an error without a cache path")
	}
}

func TestRunUsesManifestEntry(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "tulip.toml"), []byte("[project]\nname = \"demo\"\nentry = \"app.tulip\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "app.tulip"), []byte(`print("from entry")`), 0o644); err != nil {
		t.Fatal(err)
	}

	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"run"})
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		noManifest = false
	}()
	noManifest = false
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.String() != "from entry" {
		t.Errorf("stdout = %q", out.String())
	}
}
