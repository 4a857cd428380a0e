package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abverdict/abverdict/internal/config"
	"github.com/abverdict/abverdict/internal/experiment"
	"github.com/abverdict/abverdict/internal/stats"
)

// setupWorkspace returns a directory holding a fast, quiet config file.
func setupWorkspace(t *testing.T) string {
	t.Helper()
	for _, k := range []string{config.EnvDBPath, config.EnvPort, config.EnvConfidence} {
		t.Setenv(k, "")
	}

	dir := t.TempDir()
	data := "[analysis]\niterations = 5000\nseed = 7\n\n[log]\nlevel = \"error\"\n"
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(data), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return dir
}

func runCLI(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{
		"--db", filepath.Join(dir, "abv.db"),
		"--config", filepath.Join(dir, "config.toml"),
	}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func TestParseArm(t *testing.T) {
	tests := []struct {
		input   string
		want    stats.Arm
		wantErr bool
	}{
		{"V0:67662:1461", stats.Arm{Name: "V0", Trials: 67662, Successes: 1461}, false},
		{" V1 : 100 : 5 ", stats.Arm{Name: "V1", Trials: 100, Successes: 5}, false},
		{"v2: new:200:10", stats.Arm{Name: "v2: new", Trials: 200, Successes: 10}, false},
		{"V0:100", stats.Arm{}, true},
		{"V0:abc:5", stats.Arm{}, true},
		{"V0:100:x", stats.Arm{}, true},
		{"V0:100:101", stats.Arm{}, true},
		{"V0:-1:0", stats.Arm{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseArm(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseArm(%q) expected error, got %+v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseArm(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("parseArm(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseArms_RequiresBothGroups(t *testing.T) {
	if _, _, err := parseArms("", []string{"V1:10:1"}); !stats.IsValidation(err) {
		t.Errorf("expected validation error without control, got %v", err)
	}
	if _, _, err := parseArms("V0:10:1", nil); !stats.IsValidation(err) {
		t.Errorf("expected validation error without variants, got %v", err)
	}
}

func TestFormatNumber(t *testing.T) {
	tests := map[int]string{
		0:       "0",
		999:     "999",
		1000:    "1,000",
		67662:   "67,662",
		1234567: "1,234,567",
		-4200:   "-4,200",
	}
	for n, want := range tests {
		if got := formatNumber(n); got != want {
			t.Errorf("formatNumber(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestRenderTable_AlignsWideRunes(t *testing.T) {
	out := RenderTable(Table{
		Headers: []string{"Variant", "Uplift"},
		Rows: [][]string{
			{"V1", "∞"},
			{"V2", "12.50%"},
		},
	})

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 6 {
		t.Fatalf("expected 6 lines, got %d:\n%s", len(lines), out)
	}
	width := len([]rune(lines[0]))
	for i, line := range lines {
		if got := len([]rune(line)); got != width {
			t.Errorf("line %d has width %d, want %d:\n%s", i, got, width, out)
		}
	}
}

func TestAnalyzeCommand_JSON(t *testing.T) {
	dir := setupWorkspace(t)

	out, err := runCLI(t, dir, "analyze",
		"--control", "V0:10000:500",
		"--variant", "V1:10000:650",
		"--days", "14",
		"--json")
	if err != nil {
		t.Fatalf("analyze failed: %v\n%s", err, out)
	}

	var res experiment.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("failed to decode output: %v\n%s", err, out)
	}
	if res.Classification.Overall != stats.VerdictWon {
		t.Errorf("got verdict %s, want won", res.Classification.Overall)
	}
	if res.Analysis.Iterations != 5000 {
		t.Errorf("got %d iterations, want the configured 5000", res.Analysis.Iterations)
	}
	if res.Analysis.DurationDays != 14 {
		t.Errorf("got duration %v, want 14", res.Analysis.DurationDays)
	}

	if _, err := os.Stat(filepath.Join(dir, "abv.db")); !os.IsNotExist(err) {
		t.Error("analyze without --save should not create the database")
	}
}

func TestAnalyzeCommand_Table(t *testing.T) {
	dir := setupWorkspace(t)

	out, err := runCLI(t, dir, "analyze",
		"--control", "V0:1000:50",
		"--variant", "V1:1000:50",
		"--variant", "V2:0:0",
		"--save", "homepage")
	if err != nil {
		t.Fatalf("analyze failed: %v\n%s", err, out)
	}

	for _, want := range []string{"Arms", "Projected impact", "V1", "V2", "INCONCLUSIVE", "Saved as 'homepage'"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	list, err := runCLI(t, dir, "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(list, "homepage") {
		t.Errorf("list missing saved experiment:\n%s", list)
	}
}

func TestAnalyzeCommand_Errors(t *testing.T) {
	dir := setupWorkspace(t)

	tests := []struct {
		name string
		args []string
	}{
		{"no variant", []string{"analyze", "--control", "V0:100:5"}},
		{"bad arm", []string{"analyze", "--control", "V0:100", "--variant", "V1:100:5"}},
		{"bad threshold", []string{"analyze", "--control", "V0:100:5", "--variant", "V1:100:5", "--threshold", "100"}},
		{"few iterations", []string{"analyze", "--control", "V0:100:5", "--variant", "V1:100:5", "--iterations", "10"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCLI(t, dir, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPeriodWorkflow(t *testing.T) {
	dir := setupWorkspace(t)

	for _, args := range [][]string{
		{"period", "add", "checkout", "--range", "Aug 1 - Aug 7, 2025", "--control", "V0:5000:250", "--variant", "V1:5000:330"},
		{"period", "add", "checkout", "--range", "2025-08-08 - 2025-08-14", "--control", "V0:5000:250", "--variant", "V1:5000:320"},
	} {
		if out, err := runCLI(t, dir, args...); err != nil {
			t.Fatalf("period add failed: %v\n%s", err, out)
		}
	}

	out, err := runCLI(t, dir, "period", "list", "checkout")
	if err != nil {
		t.Fatalf("period list failed: %v", err)
	}
	for _, want := range []string{"Aug 1, 2025 - Aug 7, 2025", "Aug 8, 2025 - Aug 14, 2025", "580", "570"} {
		if !strings.Contains(out, want) {
			t.Errorf("period list missing %q:\n%s", want, out)
		}
	}

	out, err = runCLI(t, dir, "consolidate", "checkout")
	if err != nil {
		t.Fatalf("consolidate failed: %v\n%s", err, out)
	}
	for _, want := range []string{"Aug 1, 2025 - Aug 14, 2025", "(2 periods)", "10,000", "WON"} {
		if !strings.Contains(out, want) {
			t.Errorf("consolidate output missing %q:\n%s", want, out)
		}
	}

	out, err = runCLI(t, dir, "results", "checkout", "--json")
	if err != nil {
		t.Fatalf("results failed: %v", err)
	}
	var res experiment.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("failed to decode results: %v\n%s", err, out)
	}
	if res.Consolidated == nil || res.Consolidated.Control.Successes != 500 {
		t.Errorf("unexpected consolidated period %+v", res.Consolidated)
	}

	out, err = runCLI(t, dir, "export", "checkout", "--format", "csv")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	for _, want := range []string{"Test Name,checkout", "Date Range,\"Aug 1, 2025 - Aug 14, 2025\"", "V0,10000,500"} {
		if !strings.Contains(out, want) {
			t.Errorf("export missing %q:\n%s", want, out)
		}
	}

	out, err = runCLI(t, dir, "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "checkout") || !strings.Contains(out, "WON") {
		t.Errorf("list missing experiment or verdict:\n%s", out)
	}

	if _, err := runCLI(t, dir, "period", "clear", "checkout", "--yes"); err != nil {
		t.Fatalf("period clear failed: %v", err)
	}
	out, err = runCLI(t, dir, "period", "list", "checkout")
	if err != nil {
		t.Fatalf("period list failed: %v", err)
	}
	if !strings.Contains(out, "No periods stored.") {
		t.Errorf("expected empty period list, got:\n%s", out)
	}

	if _, err := runCLI(t, dir, "results", "checkout"); err == nil {
		t.Error("expected results to fail after clearing periods")
	}
}

func TestPeriodCommands_NotFound(t *testing.T) {
	dir := setupWorkspace(t)

	if _, err := runCLI(t, dir, "period", "list", "missing"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found error, got %v", err)
	}
	if _, err := runCLI(t, dir, "period", "remove", "missing", "some-id"); err == nil {
		t.Error("expected error removing from unknown experiment")
	}
	if _, err := runCLI(t, dir, "consolidate", "missing"); err == nil {
		t.Error("expected error consolidating unknown experiment")
	}
	if _, err := runCLI(t, dir, "export", "missing", "--format", "xml"); err == nil {
		t.Error("expected error for unknown export format")
	}
}

func TestConfigSetThreshold(t *testing.T) {
	dir := setupWorkspace(t)
	path := filepath.Join(dir, "config.toml")
	t.Setenv(config.EnvDBPath, "/should/not/be/saved.db")

	out, err := runCLI(t, dir, "config", "set-threshold", "99")
	if err != nil {
		t.Fatalf("set-threshold failed: %v\n%s", err, out)
	}

	saved, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if saved.Analysis.ConfidenceThreshold != 99 {
		t.Errorf("got threshold %v, want 99", saved.Analysis.ConfidenceThreshold)
	}
	if saved.Analysis.Iterations != 5000 {
		t.Errorf("set-threshold dropped other settings: iterations %d", saved.Analysis.Iterations)
	}
	if saved.Storage.DBPath == "/should/not/be/saved.db" {
		t.Error("environment override was written to the config file")
	}

	if _, err := runCLI(t, dir, "config", "set-threshold", "100"); err == nil {
		t.Error("expected error for threshold 100")
	}

	out, err = runCLI(t, dir, "config", "path")
	if err != nil {
		t.Fatalf("config path failed: %v", err)
	}
	if strings.TrimSpace(out) != path {
		t.Errorf("config path = %q, want %q", strings.TrimSpace(out), path)
	}
}

func TestTokenCommand(t *testing.T) {
	dir := setupWorkspace(t)

	if _, err := runCLI(t, dir, "token"); err == nil || !strings.Contains(err.Error(), "abv serve") {
		t.Errorf("expected hint to start the server, got %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, ".abv-token"), []byte("abc123\n"), 0o600); err != nil {
		t.Fatalf("failed to write token file: %v", err)
	}
	out, err := runCLI(t, dir, "token")
	if err != nil {
		t.Fatalf("token failed: %v", err)
	}
	if !strings.Contains(out, "Token: abc123") || !strings.Contains(out, "Bearer abc123") {
		t.Errorf("unexpected token output:\n%s", out)
	}
}

func TestServeCommand_QuietStopsOnCancel(t *testing.T) {
	dir := setupWorkspace(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{
		"--db", filepath.Join(dir, "abv.db"),
		"--config", filepath.Join(dir, "config.toml"),
		"serve", "--quiet", "--port", "0",
	})
	if err := cmd.ExecuteContext(ctx); err != nil {
		t.Fatalf("serve failed: %v", err)
	}

	token, err := os.ReadFile(filepath.Join(dir, ".abv-token"))
	if err != nil {
		t.Fatalf("token file not written: %v", err)
	}
	if len(strings.TrimSpace(string(token))) != 32 {
		t.Errorf("got token %q, want 32 hex chars", token)
	}

	got, err := runCLI(t, dir, "token")
	if err != nil {
		t.Fatalf("token failed: %v", err)
	}
	if !strings.Contains(got, string(token)) {
		t.Errorf("token command does not show the served token:\n%s", got)
	}
}
