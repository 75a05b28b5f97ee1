package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hpungsan/phishlabel/internal/config"
	"github.com/hpungsan/phishlabel/internal/db"
	"github.com/hpungsan/phishlabel/internal/ops"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

// writeProgress writes <dir>/<id>_progress.csv; remarks are keyed by 1-based row.
func writeProgress(t *testing.T, dir, id string, labels []int, remarks map[int]string) {
	t.Helper()
	var b strings.Builder
	b.WriteString("text_cleaned,annotation_label,annotator_confidence,annotator_remarks\n")
	for i, l := range labels {
		fmt.Fprintf(&b, "item%d,%d,0.9,%s\n", i+1, l, remarks[i+1])
	}
	if err := os.WriteFile(filepath.Join(dir, id+"_progress.csv"), []byte(b.String()), 0600); err != nil {
		t.Fatal(err)
	}
}

// testEnv returns an environment with a seeded progress dir and outputs in a temp dir.
func testEnv(t *testing.T) (*appEnv, *bytes.Buffer) {
	t.Helper()
	progress := t.TempDir()
	writeProgress(t, progress, "a1", []int{1, 2, 1, 3, 1}, map[int]string{3: "check sender"})
	writeProgress(t, progress, "a2", []int{1, 2, 2, 3, 1}, nil)
	writeProgress(t, progress, "a3", []int{1, 1, 1, 3, 4}, nil)

	out := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.ProgressDir = progress
	cfg.MinOverlap = 5
	cfg.DisagreementsFile = filepath.Join(out, "disagreements.csv")
	cfg.ReviewFile = filepath.Join(out, "emails_for_review.csv")

	var buf bytes.Buffer
	return &appEnv{db: setupTestDB(t), cfg: cfg, exportsDir: t.TempDir(), stdout: &buf}, &buf
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    int
		expectError bool
	}{
		{name: "valid days", input: "7d", expected: 7},
		{name: "zero days", input: "0d", expected: 0},
		{name: "large number", input: "365d", expected: 365},
		{name: "negative days", input: "-7d", expectError: true},
		{name: "no suffix", input: "7", expectError: true},
		{name: "wrong suffix", input: "7h", expectError: true},
		{name: "invalid number", input: "abcd", expectError: true},
		{name: "empty string", input: "", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseDuration(tt.input)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestCLIIAA(t *testing.T) {
	env, buf := testEnv(t)

	if err := newCLIApp(env).Run([]string{"phishlabel", "iaa"}); err != nil {
		t.Fatalf("iaa command failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Loaded 5 annotations from a1",
		"Overall Statistics",
		"Pairwise Cohen's Kappa",
		"Disagreement Analysis",
		"Run recorded:",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if _, err := os.Stat(env.cfg.DisagreementsFile); err != nil {
		t.Errorf("disagreement file not written: %v", err)
	}
}

func TestCLIIAA_JSONNoRecord(t *testing.T) {
	env, buf := testEnv(t)

	err := newCLIApp(env).Run([]string{"phishlabel", "iaa", "--json", "--no-record", "--no-write"})
	if err != nil {
		t.Fatalf("iaa command failed: %v", err)
	}

	var r ops.Report
	if err := json.Unmarshal(buf.Bytes(), &r); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, buf.String())
	}
	if r.RunID != "" {
		t.Errorf("expected no run id, got %q", r.RunID)
	}
	if len(r.Pairs) != 3 || r.Disagreements != 3 {
		t.Errorf("pairs=%d disagreements=%d, want 3 and 3", len(r.Pairs), r.Disagreements)
	}
	if _, err := os.Stat(env.cfg.DisagreementsFile); !os.IsNotExist(err) {
		t.Errorf("expected no disagreement file, stat err = %v", err)
	}

	buf.Reset()
	if err := newCLIApp(env).Run([]string{"phishlabel", "history"}); err != nil {
		t.Fatalf("history failed: %v", err)
	}
	var hist ops.HistoryOutput
	if err := json.Unmarshal(buf.Bytes(), &hist); err != nil {
		t.Fatalf("failed to parse history: %v", err)
	}
	if len(hist.Runs) != 0 {
		t.Errorf("runs = %d, want 0", len(hist.Runs))
	}
}

func TestCLIIAA_MinOverlapSkipsPairs(t *testing.T) {
	env, buf := testEnv(t)

	if err := newCLIApp(env).Run([]string{"phishlabel", "iaa", "--min-overlap", "10", "--no-record"}); err != nil {
		t.Fatalf("iaa command failed: %v", err)
	}
	if !strings.Contains(buf.String(), "a1 vs a2: Not enough overlap (5 samples, need 10)") {
		t.Errorf("expected skipped pair message:\n%s", buf.String())
	}
}

func TestCLIIAA_NoInput(t *testing.T) {
	env, buf := testEnv(t)
	env.cfg.ProgressDir = filepath.Join(t.TempDir(), "missing")

	if err := newCLIApp(env).Run([]string{"phishlabel", "iaa"}); err != nil {
		t.Fatalf("expected success on missing input, got %v", err)
	}
	if !strings.Contains(buf.String(), "No annotation progress files found") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}

func TestCLIIAA_InvalidOutput(t *testing.T) {
	env, _ := testEnv(t)

	err := newCLIApp(env).Run([]string{"phishlabel", "iaa", "--output", "report.json"})
	if err == nil || !strings.Contains(err.Error(), "[INVALID_REQUEST]") {
		t.Errorf("expected INVALID_REQUEST, got %v", err)
	}

	err = newCLIApp(env).Run([]string{"phishlabel", "iaa", "--min-overlap", "0"})
	if err == nil {
		t.Error("expected error for --min-overlap 0")
	}
}

func TestCLIReview(t *testing.T) {
	env, buf := testEnv(t)

	if err := newCLIApp(env).Run([]string{"phishlabel", "review"}); err != nil {
		t.Fatalf("review command failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Found 3 annotator file(s)") || !strings.Contains(out, "a1: 1 emails with remarks") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "Saved 1 emails for review to: "+env.cfg.ReviewFile) {
		t.Errorf("expected saved line:\n%s", out)
	}
}

func TestCLIReview_XLSX(t *testing.T) {
	env, buf := testEnv(t)
	path := filepath.Join(t.TempDir(), "review.xlsx")

	if err := newCLIApp(env).Run([]string{"phishlabel", "review", "-o", path, "--json"}); err != nil {
		t.Fatalf("review command failed: %v", err)
	}
	var out ops.ReviewOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if out.Path != path {
		t.Errorf("path = %q, want %q", out.Path, path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("xlsx not written: %v", err)
	}
}

func TestCLIHistoryPurge(t *testing.T) {
	env, buf := testEnv(t)
	app := newCLIApp(env)

	for range 2 {
		if err := app.Run([]string{"phishlabel", "iaa", "--no-write"}); err != nil {
			t.Fatalf("iaa failed: %v", err)
		}
	}

	buf.Reset()
	if err := app.Run([]string{"phishlabel", "history", "--limit", "1"}); err != nil {
		t.Fatalf("history failed: %v", err)
	}
	var hist ops.HistoryOutput
	if err := json.Unmarshal(buf.Bytes(), &hist); err != nil {
		t.Fatalf("failed to parse history: %v", err)
	}
	if len(hist.Runs) != 1 || !hist.Pagination.HasMore || hist.Pagination.Total != 2 {
		t.Errorf("unexpected history: %+v", hist.Pagination)
	}

	t.Run("invalid duration format returns error", func(t *testing.T) {
		if err := app.Run([]string{"phishlabel", "history", "purge", "--older-than=invalid"}); err == nil {
			t.Error("expected error, got nil")
		}
	})

	buf.Reset()
	if err := app.Run([]string{"phishlabel", "history", "purge"}); err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	var purged ops.PurgeOutput
	if err := json.Unmarshal(buf.Bytes(), &purged); err != nil {
		t.Fatalf("failed to parse purge output: %v", err)
	}
	if purged.Purged != 2 {
		t.Errorf("purged = %d, want 2", purged.Purged)
	}
}

func TestCLIServe_InvalidPort(t *testing.T) {
	env, _ := testEnv(t)
	err := newCLIApp(env).Run([]string{"phishlabel", "serve", "--port", "70000"})
	if err == nil || !strings.Contains(err.Error(), "port") {
		t.Errorf("expected port error, got %v", err)
	}
}

func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{"no args", []string{"phishlabel"}, false},
		{"iaa command", []string{"phishlabel", "iaa"}, true},
		{"serve command", []string{"phishlabel", "serve"}, true},
		{"mcp command", []string{"phishlabel", "mcp"}, true},
		{"verbose flag", []string{"phishlabel", "--verbose", "iaa"}, true},
		{"help flag", []string{"phishlabel", "--help"}, true},
		{"short version flag", []string{"phishlabel", "-v"}, true},
		{"unknown arg defaults to MCP", []string{"phishlabel", "--unknown"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if result := isCLIMode(); result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{"no args", []string{"phishlabel"}, false},
		{"help flag", []string{"phishlabel", "--help"}, true},
		{"short help flag", []string{"phishlabel", "-h"}, true},
		{"version flag", []string{"phishlabel", "--version"}, true},
		{"help subcommand", []string{"phishlabel", "help"}, true},
		{"iaa command is not help", []string{"phishlabel", "iaa"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if result := isHelpOrVersion(); result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}
