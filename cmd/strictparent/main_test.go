package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const dogManifest = `[[class]]
name = "Animal"
  [[class.member]]
  name = "speak"
  kind = "method"

[[class]]
name = "Dog"
bases = ["Animal"]
  [[class.member]]
  name = "speak"
  kind = "method"
`

type cliResult struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, stdin string, args ...string) cliResult {
	t.Helper()
	var out, errOut bytes.Buffer
	code := execute(context.Background(), args, strings.NewReader(stdin), &out, &errOut)
	return cliResult{code: code, stdout: out.String(), stderr: errOut.String()}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestVersionJSON(t *testing.T) {
	res := runCLI(t, "", "version", "--format", "json", "--full")
	if res.code != 0 {
		t.Fatalf("exit %d: %s", res.code, res.stderr)
	}
	var payload versionPayload
	if err := json.Unmarshal([]byte(res.stdout), &payload); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, res.stdout)
	}
	if payload.Tool != "strictparent" || payload.Version == "" || payload.GitCommit == "" {
		t.Errorf("unexpected payload: %+v", payload)
	}

	if res := runCLI(t, "", "version", "--format", "xml"); res.code != 2 {
		t.Errorf("unsupported format should fail, got %d", res.code)
	}
}

func TestExplain(t *testing.T) {
	res := runCLI(t, "", "explain")
	if res.code != 0 || !strings.Contains(res.stdout, "HIE3002") || !strings.Contains(res.stdout, "MAN1001") {
		t.Fatalf("unexpected list (exit %d):\n%s", res.code, res.stdout)
	}
	res = runCLI(t, "", "explain", "hie3003")
	if res.code != 0 || !strings.HasPrefix(res.stdout, "HIE3003: ") {
		t.Fatalf("unexpected explanation (exit %d):\n%s", res.code, res.stdout)
	}
	res = runCLI(t, "", "explain", "XYZ9999")
	if res.code != 2 || !strings.Contains(res.stderr, "unknown diagnostic code") {
		t.Fatalf("unknown code: exit %d, stderr %q", res.code, res.stderr)
	}
}

func TestInitThenCheck(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "zoo")
	res := runCLI(t, "", "init", dir)
	if res.code != 0 {
		t.Fatalf("init failed: %d %s", res.code, res.stderr)
	}
	for _, name := range []string{"strictparent.toml", exampleManifestName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("%s not created: %v", name, err)
		}
	}

	res = runCLI(t, "", "check", "--ui", "off", dir)
	if res.code != 0 {
		t.Fatalf("example manifest must pass, exit %d:\n%s%s", res.code, res.stdout, res.stderr)
	}
	if !strings.Contains(res.stdout, "checked 1 file(s): 2 class(es) valid, 0 rejected; 0 error(s), 0 warning(s)") {
		t.Errorf("unexpected summary:\n%s", res.stdout)
	}

	if res := runCLI(t, "", "init", dir); res.code != 2 {
		t.Errorf("second init without --force should fail, got %d", res.code)
	}
	if res := runCLI(t, "", "init", "--force", dir); res.code != 0 {
		t.Errorf("init --force failed: %s", res.stderr)
	}
}

func TestCheckReportsUndeclaredOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dog.classes.toml")
	writeFile(t, path, dogManifest)

	res := runCLI(t, "", "check", "--format", "short", path)
	if res.code != 1 {
		t.Fatalf("exit %d, want 1:\n%s%s", res.code, res.stdout, res.stderr)
	}
	if !strings.Contains(res.stdout, "error HIE3002 dog.classes.toml:11:") {
		t.Errorf("unexpected output:\n%s", res.stdout)
	}

	res = runCLI(t, "", "check", "--quiet", path)
	if res.code != 1 || !strings.Contains(res.stdout, "ERROR HIE3002") {
		t.Errorf("pretty output (exit %d):\n%s", res.code, res.stdout)
	}
	if strings.Contains(res.stdout, "checked ") {
		t.Errorf("--quiet must hide the summary:\n%s", res.stdout)
	}
}

func TestCheckJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dog.classes.toml")
	writeFile(t, path, dogManifest)

	res := runCLI(t, "", "check", "--format", "json", "--with-notes", "--suggest", "--timings", path)
	if res.code != 1 {
		t.Fatalf("exit %d, want 1: %s", res.code, res.stderr)
	}
	var report checkReport
	if err := json.Unmarshal([]byte(res.stdout), &report); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, res.stdout)
	}
	if report.Errors != 1 || report.Count != 1 {
		t.Fatalf("unexpected counts: %+v", report.DiagnosticsOutput)
	}
	d := report.Diagnostics[0]
	if d.Code != "HIE3002" || len(d.Notes) == 0 || len(d.Fixes) == 0 {
		t.Errorf("unexpected diagnostic: %+v", d)
	}
	if len(report.Files) != 1 || len(report.Files[0].Classes) != 2 {
		t.Fatalf("unexpected files: %+v", report.Files)
	}
	if got := report.Files[0].Classes[1]; got.Name != "Dog" || got.State != "rejected" {
		t.Errorf("Dog verdict = %+v", got)
	}
	if report.Timings == nil || len(report.Timings.Phases) == 0 {
		t.Error("timings missing from JSON report")
	}
}

func TestCheckShadowFlag(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deep.classes.toml")
	writeFile(t, path, `[[class]]
name = "A"
  [[class.member]]
  name = "run"

[[class]]
name = "B"
bases = ["A"]

[[class]]
name = "C"
bases = ["B"]
  [[class.member]]
  name = "run"
`)
	if res := runCLI(t, "", "check", "--ui", "off", path); res.code != 0 {
		t.Fatalf("direct scope must accept C.run, exit %d:\n%s", res.code, res.stdout)
	}
	res := runCLI(t, "", "check", "--shadow", "ancestry", "--format", "short", path)
	if res.code != 1 || !strings.Contains(res.stdout, "HIE3002") {
		t.Fatalf("ancestry scope must reject C.run, exit %d:\n%s", res.code, res.stdout)
	}
	if res := runCLI(t, "", "check", "--shadow", "sideways", path); res.code != 2 {
		t.Errorf("invalid --shadow should fail, got %d", res.code)
	}
}

func TestCheckStdin(t *testing.T) {
	res := runCLI(t, dogManifest, "check", "--format", "short", "-")
	if res.code != 1 || !strings.Contains(res.stdout, "HIE3002") {
		t.Fatalf("stdin check (exit %d):\n%s%s", res.code, res.stdout, res.stderr)
	}
}

func TestCheckInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "strictparent.toml"), "[check]\nshadow = \"sideways\"\n")
	writeFile(t, filepath.Join(dir, "dog.classes.toml"), dogManifest)

	res := runCLI(t, "", "check", "--format", "short", "--ui", "off", dir)
	if res.code != 1 || !strings.Contains(res.stdout, "error PRJ5001 strictparent.toml:1:1") {
		t.Fatalf("invalid config (exit %d):\n%s%s", res.code, res.stdout, res.stderr)
	}
}

func TestCheckFlagErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		args []string
	}{
		{"missing path", []string{"check", filepath.Join(dir, "nope.classes.toml")}},
		{"bad format", []string{"check", "--format", "sarif", dir}},
		{"bad ui", []string{"check", "--ui", "maybe", dir}},
		{"conflicting warnings", []string{"check", "--no-warnings", "--warnings-as-errors", dir}},
		{"no manifests", []string{"check", "--ui", "off", dir}},
		{"bad color", []string{"--color", "purple", "check", dir}},
		{"bad trace level", []string{"--trace-level", "loud", "check", dir}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if res := runCLI(t, "", tt.args...); res.code != 2 {
				t.Errorf("exit %d, want 2 (stderr %q)", res.code, res.stderr)
			}
		})
	}
}

func TestCheckTraceToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dog.classes.toml")
	writeFile(t, path, dogManifest)
	tracePath := filepath.Join(dir, "trace.ndjson")

	res := runCLI(t, "", "--trace", tracePath, "--trace-level", "detail", "check", "--format", "short", path)
	if res.code != 1 {
		t.Fatalf("exit %d: %s", res.code, res.stderr)
	}
	data, err := os.ReadFile(tracePath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"check"`) {
		t.Errorf("trace lacks the check span:\n%s", data)
	}
}

func TestReadUIMode(t *testing.T) {
	for in, want := range map[string]uiMode{"": uiModeAuto, "ON": uiModeOn, " off ": uiModeOff} {
		got, err := readUIMode(in)
		if err != nil || got != want {
			t.Errorf("readUIMode(%q) = %q, %v", in, got, err)
		}
	}
	if shouldUseTUI(uiModeAuto, &bytes.Buffer{}) {
		t.Error("buffers are never terminals")
	}
	if !shouldUseTUI(uiModeOn, &bytes.Buffer{}) {
		t.Error("--ui on forces the TUI")
	}
}

func TestMemProfileFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.pprof")
	if res := runCLI(t, "", "--mem-profile", path, "version"); res.code != 0 {
		t.Fatalf("exit %d: %s", res.code, res.stderr)
	}
	if st, err := os.Stat(path); err != nil || st.Size() == 0 {
		t.Fatalf("heap profile not written: %v", err)
	}
}

func TestDiskCacheAcrossRuns(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "dog.classes.toml")
	writeFile(t, path, dogManifest)

	first := runCLI(t, "", "check", "--disk-cache", "--ui", "off", path)
	second := runCLI(t, "", "check", "--disk-cache", "--ui", "off", path)
	if first.code != 1 || second.code != 1 {
		t.Fatalf("exit codes %d/%d", first.code, second.code)
	}
	if !strings.Contains(second.stdout, "(1 from cache)") {
		t.Errorf("second run must hit the cache:\n%s", second.stdout)
	}
	if !strings.Contains(second.stdout, "HIE3002") {
		t.Errorf("cached diagnostics must be replayed:\n%s", second.stdout)
	}

	res := runCLI(t, "", "cache", "dir")
	if res.code != 0 || !strings.Contains(res.stdout, "strictparent") {
		t.Fatalf("cache dir (exit %d): %s", res.code, res.stdout)
	}
	if res := runCLI(t, "", "cache", "clean"); res.code != 0 {
		t.Fatalf("cache clean failed: %s", res.stderr)
	}
	third := runCLI(t, "", "check", "--disk-cache", "--ui", "off", path)
	if strings.Contains(third.stdout, "from cache") {
		t.Errorf("clean must drop cached verdicts:\n%s", third.stdout)
	}
}
