package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MinOverlap != 10 {
		t.Fatalf("MinOverlap = %d, want 10", cfg.MinOverlap)
	}
	if cfg.ProgressDir != "annotation_progress" {
		t.Errorf("ProgressDir = %q, want %q", cfg.ProgressDir, "annotation_progress")
	}
	if len(cfg.Annotators) != 4 || cfg.Annotators[0] != "Annotator_1" {
		t.Errorf("Annotators = %v, want Annotator_1..Annotator_4", cfg.Annotators)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	data := `{"min_overlap": 25, "progress_dir": "/data/progress", "disagreements_file": "out.xlsx"}`
	if err := os.WriteFile(configPath, []byte(data), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MinOverlap != 25 {
		t.Errorf("MinOverlap = %d, want 25", cfg.MinOverlap)
	}
	if cfg.ProgressDir != "/data/progress" {
		t.Errorf("ProgressDir = %q", cfg.ProgressDir)
	}
	if cfg.DisagreementsFile != "out.xlsx" {
		t.Errorf("DisagreementsFile = %q", cfg.DisagreementsFile)
	}
	// Untouched values keep their defaults
	if cfg.ReviewFile != "emails_for_review.csv" {
		t.Errorf("ReviewFile = %q, want default", cfg.ReviewFile)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{not json}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_Annotators(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{"annotators": ["alice", " bob ", "alice"]}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.Annotators) != 2 {
		t.Fatalf("Annotators = %v, want [alice bob]", cfg.Annotators)
	}
	if cfg.Annotators[0] != "alice" || cfg.Annotators[1] != "bob" {
		t.Errorf("Annotators = %v, want [alice bob]", cfg.Annotators)
	}
}

func TestLoadWithRepo_BothPresent(t *testing.T) {
	globalDir := t.TempDir()
	repoRoot := t.TempDir()

	globalConfig := `{"min_overlap": 20, "disabled_tools": ["iaa_history"]}`
	if err := os.WriteFile(filepath.Join(globalDir, "config.json"), []byte(globalConfig), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	repoDir := filepath.Join(repoRoot, ".phishlabel")
	if err := os.MkdirAll(repoDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	repoConfig := `{"min_overlap": 5, "disabled_tools": ["review_extract"]}`
	if err := os.WriteFile(filepath.Join(repoDir, "config.json"), []byte(repoConfig), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := LoadWithRepo(globalDir, repoRoot)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	if cfg.MinOverlap != 5 {
		t.Errorf("MinOverlap = %d, want 5 (repo override)", cfg.MinOverlap)
	}
	if len(cfg.DisabledTools) != 2 {
		t.Errorf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
}

func TestLoadWithRepo_NeitherPresent(t *testing.T) {
	cfg, err := LoadWithRepo(t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	if cfg.MinOverlap != 10 {
		t.Errorf("MinOverlap = %d, want 10", cfg.MinOverlap)
	}
	if cfg.Port != 8501 {
		t.Errorf("Port = %d, want 8501", cfg.Port)
	}
	if len(cfg.DisabledTools) != 0 {
		t.Errorf("DisabledTools = %v, want empty", cfg.DisabledTools)
	}
}

func TestMerge_ScalarOverride(t *testing.T) {
	base := &Config{MinOverlap: 10, DBMaxOpenConns: 5, Bind: "127.0.0.1"}
	overlay := &Config{MinOverlap: 3}

	result := Merge(base, overlay)

	if result.MinOverlap != 3 {
		t.Errorf("MinOverlap = %d, want 3 (overlay)", result.MinOverlap)
	}
	if result.DBMaxOpenConns != 5 {
		t.Errorf("DBMaxOpenConns = %d, want 5 (base, overlay is zero)", result.DBMaxOpenConns)
	}
	if result.Bind != "127.0.0.1" {
		t.Errorf("Bind = %q, want base value", result.Bind)
	}
}

func TestMerge_AnnotatorsReplaced(t *testing.T) {
	base := &Config{Annotators: []string{"a", "b"}}
	overlay := &Config{Annotators: []string{"c"}}

	result := Merge(base, overlay)

	if len(result.Annotators) != 1 || result.Annotators[0] != "c" {
		t.Errorf("Annotators = %v, want [c]", result.Annotators)
	}

	result = Merge(base, &Config{})
	if len(result.Annotators) != 2 {
		t.Errorf("Annotators = %v, want base [a b]", result.Annotators)
	}
}

func TestMerge_DisabledToolsDedup(t *testing.T) {
	base := &Config{DisabledTools: []string{"iaa_report", "iaa_history"}}
	overlay := &Config{DisabledTools: []string{"iaa_history", "review_extract"}}

	result := Merge(base, overlay)

	if len(result.DisabledTools) != 3 {
		t.Errorf("DisabledTools = %v, want 3 entries", result.DisabledTools)
	}
}

func TestFindRepoConfig_InParentDir(t *testing.T) {
	tmpDir := t.TempDir()
	repoDir := filepath.Join(tmpDir, ".phishlabel")
	if err := os.MkdirAll(repoDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	configPath := filepath.Join(repoDir, "config.json")
	if err := os.WriteFile(configPath, []byte(`{}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	subdir := filepath.Join(tmpDir, "subdir", "deeper")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	found := FindRepoConfig(subdir)
	if found != configPath {
		t.Errorf("FindRepoConfig() = %q, want %q", found, configPath)
	}
}

func TestFindRepoConfig_NotFound(t *testing.T) {
	found := FindRepoConfig(t.TempDir())
	if found != "" {
		t.Errorf("FindRepoConfig() = %q, want empty string", found)
	}
}

func TestMerge_AllowedPaths(t *testing.T) {
	base := &Config{AllowedPaths: []string{"/srv/exports"}}
	overlay := &Config{AllowedPaths: []string{"/srv/exports", "/tmp/iaa"}, AllowUnsafePaths: true}

	result := Merge(base, overlay)

	if len(result.AllowedPaths) != 2 {
		t.Errorf("AllowedPaths = %v, want 2 entries", result.AllowedPaths)
	}
	if !result.AllowUnsafePaths {
		t.Error("AllowUnsafePaths = false, want true")
	}
}
