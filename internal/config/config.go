package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Config holds application configuration.
type Config struct {
	// ProgressDir is the directory holding <annotator_id>_progress.csv files.
	ProgressDir string `json:"progress_dir"`

	// DisagreementsFile is where the iaa command writes flagged disagreements.
	// A .xlsx extension selects the spreadsheet writer; anything else is CSV.
	DisagreementsFile string `json:"disagreements_file"`

	// ReviewFile is where the review command writes remarks for the chief annotator.
	ReviewFile string `json:"review_file"`

	// MinOverlap is the minimum number of jointly labeled items a pair needs
	// before kappa is reported for it.
	MinOverlap int `json:"min_overlap"`

	// Annotators lists the identities offered on the login screen of the web UI.
	Annotators []string `json:"annotators,omitempty"`

	// LabelsFile optionally points at a YAML label scheme.
	// Empty means the built-in four-class scheme.
	LabelsFile string `json:"labels_file,omitempty"`

	// Bind and Port control the web UI listener.
	Bind string `json:"bind"`
	Port int    `json:"port"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// AllowedPaths lists extra absolute directories MCP tools may write exports to,
	// besides the exports directory under the base dir.
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths lifts the directory restriction on MCP export paths.
	// Traversal, extension and symlink checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultAnnotators are the login identities used when none are configured.
var DefaultAnnotators = []string{"Annotator_1", "Annotator_2", "Annotator_3", "Annotator_4"}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ProgressDir:       "annotation_progress",
		DisagreementsFile: "disagreements.csv",
		ReviewFile:        "emails_for_review.csv",
		MinOverlap:        10,
		Annotators:        append([]string(nil), DefaultAnnotators...),
		Bind:              "127.0.0.1",
		Port:              8501,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.phishlabel.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.phishlabel) and repo (.phishlabel) directories.
// Repo config is found by walking upward from startDir to find the nearest .phishlabel/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repoConfigPath := FindRepoConfig(startDir)
	repo, err := loadFileRaw(repoConfigPath)
	if err != nil {
		return nil, err
	}

	// Apply defaults, then global, then repo
	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .phishlabel/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".phishlabel", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; allowed paths and disabled tools are
// merged and deduplicated. AllowUnsafePaths is true if either config sets it.
// Annotators are replaced wholesale by a non-empty overlay, since the login
// screen order is meaningful.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.ProgressDir = pickString(overlay.ProgressDir, base.ProgressDir)
	result.DisagreementsFile = pickString(overlay.DisagreementsFile, base.DisagreementsFile)
	result.ReviewFile = pickString(overlay.ReviewFile, base.ReviewFile)
	result.LabelsFile = pickString(overlay.LabelsFile, base.LabelsFile)
	result.Bind = pickString(overlay.Bind, base.Bind)

	result.MinOverlap = pickInt(overlay.MinOverlap, base.MinOverlap)
	result.Port = pickInt(overlay.Port, base.Port)
	result.DBMaxOpenConns = pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	result.Annotators = mergeStringSlice(nil, base.Annotators)
	if over := mergeStringSlice(nil, overlay.Annotators); len(over) > 0 {
		result.Annotators = over
	}

	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func pickString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
