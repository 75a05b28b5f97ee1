package mcp

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/phishlabel/internal/config"
	"github.com/hpungsan/phishlabel/internal/db"
	"github.com/hpungsan/phishlabel/internal/errors"
)

type testEnv struct {
	db       *sql.DB
	cfg      *config.Config
	exports  string
	progress string
	h        *Handlers
}

// testSetup creates a temporary database, exports dir, config and a progress
// directory seeded with three annotators.
func testSetup(t *testing.T) *testEnv {
	t.Helper()

	base := t.TempDir()
	database, err := db.Init(base)
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	progress := t.TempDir()
	writeProgress(t, progress, "a1", []int{1, 2, 1, 3, 1}, map[int]string{2: "spoofed sender"})
	writeProgress(t, progress, "a2", []int{1, 2, 2, 3, 1}, nil)
	writeProgress(t, progress, "a3", []int{1, 1, 1, 3, 4}, nil)

	cfg := config.DefaultConfig()
	cfg.ProgressDir = progress
	cfg.MinOverlap = 5

	exports := filepath.Join(base, db.ExportsDir)
	return &testEnv{
		db:       database,
		cfg:      cfg,
		exports:  exports,
		progress: progress,
		h:        NewHandlers(database, cfg, exports, nil),
	}
}

func writeProgress(t *testing.T, dir, id string, labels []int, remarks map[int]string) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, id+"_progress.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	_ = w.Write([]string{"text_cleaned", "annotation_label", "annotator_remarks"})
	for i, l := range labels {
		_ = w.Write([]string{fmt.Sprintf("item%d", i+1), fmt.Sprint(l), remarks[i+1]})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		t.Fatal(err)
	}
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func TestHandleReport(t *testing.T) {
	env := testSetup(t)
	ctx := context.Background()

	result, err := env.h.HandleReport(ctx, makeRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("HandleReport failed: %v", err)
	}
	output := parseOutput(t, result)

	if output["run_id"] == nil || output["run_id"] == "" {
		t.Error("expected run_id when recording is on by default")
	}
	pairs := output["pairs"].([]any)
	if len(pairs) != 3 {
		t.Fatalf("pairs = %d, want 3", len(pairs))
	}
	first := pairs[0].(map[string]any)
	if first["annotator_a"] != "a1" || first["annotator_b"] != "a2" {
		t.Errorf("first pair = %v vs %v, want a1 vs a2", first["annotator_a"], first["annotator_b"])
	}
	if k := first["kappa"].(float64); k < 0.6874 || k > 0.6876 {
		t.Errorf("kappa = %v, want 0.6875", k)
	}
	if output["disagreements"].(float64) != 3 {
		t.Errorf("disagreements = %v, want 3", output["disagreements"])
	}
	if _, ok := output["disagreements_file"]; ok {
		t.Error("expected no file without write=true")
	}
}

func TestHandleReport_NoRecord(t *testing.T) {
	env := testSetup(t)
	ctx := context.Background()

	result, _ := env.h.HandleReport(ctx, makeRequest(map[string]any{"record": false}))
	output := parseOutput(t, result)
	if _, ok := output["run_id"]; ok {
		t.Error("expected no run_id with record=false")
	}

	hist, _ := env.h.HandleHistory(ctx, makeRequest(map[string]any{}))
	runs := parseOutput(t, hist)["runs"].([]any)
	if len(runs) != 0 {
		t.Errorf("runs = %d, want 0", len(runs))
	}
}

func TestHandleReport_WriteDefaultsToExportsDir(t *testing.T) {
	env := testSetup(t)

	result, _ := env.h.HandleReport(context.Background(), makeRequest(map[string]any{"write": true}))
	output := parseOutput(t, result)

	path, _ := output["disagreements_file"].(string)
	if filepath.Dir(path) != env.exports {
		t.Fatalf("disagreements_file = %q, want a file in %s", path, env.exports)
	}
	if !strings.HasPrefix(filepath.Base(path), "disagreements-") {
		t.Errorf("unexpected file name %q", filepath.Base(path))
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("export not written: %v", err)
	}
}

func TestHandleReport_WriteOutsideExportsRejected(t *testing.T) {
	env := testSetup(t)

	result, _ := env.h.HandleReport(context.Background(), makeRequest(map[string]any{
		"write":  true,
		"output": filepath.Join(t.TempDir(), "d.csv"),
	}))
	assertErrorCode(t, result, string(errors.ErrInvalidRequest))
}

func TestHandleReport_NoInput(t *testing.T) {
	env := testSetup(t)

	result, _ := env.h.HandleReport(context.Background(), makeRequest(map[string]any{
		"progress_dir": filepath.Join(t.TempDir(), "none"),
	}))
	output := parseOutput(t, result)
	if output["no_input"] != true {
		t.Errorf("no_input = %v, want true", output["no_input"])
	}
}

func TestHandleReport_InvalidArgs(t *testing.T) {
	env := testSetup(t)

	result, _ := env.h.HandleReport(context.Background(), makeRequest(map[string]any{"min_overlap": "ten"}))
	assertErrorCode(t, result, string(errors.ErrInvalidRequest))

	result, _ = env.h.HandleReport(context.Background(), makeRequest(map[string]any{"min_overlap": -1}))
	assertErrorCode(t, result, string(errors.ErrInvalidRequest))
}

func TestDecode(t *testing.T) {
	req, err := decode[ReportRequest](makeRequest(map[string]any{"min_overlap": 12, "write": true}))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.MinOverlap != 12 || !req.Write || req.Record != nil {
		t.Errorf("unexpected request: %+v", req)
	}

	if _, err := decode[ReportRequest](makeRequest(nil)); err != nil {
		t.Errorf("nil arguments: %v", err)
	}

	_, err = decode[ReportRequest](makeRequest(map[string]any{"min_overlap": "ten"}))
	if err == nil || !strings.Contains(err.Error(), "min_overlap must be of type int") {
		t.Errorf("expected typed field error, got %v", err)
	}

	_, err = decode[HistoryRequest](makeRequest(map[string]any{"limt": 5}))
	if !errors.Is(err, errors.ErrInvalidRequest) || !strings.Contains(err.Error(), `unknown argument "limt"`) {
		t.Errorf("expected unknown argument error, got %v", err)
	}
}

func TestHandleDisagreements(t *testing.T) {
	env := testSetup(t)

	result, _ := env.h.HandleDisagreements(context.Background(), makeRequest(map[string]any{"limit": 1}))
	output := parseOutput(t, result)

	items := output["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	item := items[0].(map[string]any)
	if item["text_cleaned"] != "item2" {
		t.Errorf("first item = %v, want item2", item["text_cleaned"])
	}
	pagination := output["pagination"].(map[string]any)
	if pagination["has_more"] != true || pagination["total"].(float64) != 3 {
		t.Errorf("pagination = %v", pagination)
	}
}

func TestHandleHistoryAndPurge(t *testing.T) {
	env := testSetup(t)
	ctx := context.Background()

	for range 2 {
		result, _ := env.h.HandleReport(ctx, makeRequest(map[string]any{}))
		parseOutput(t, result)
	}

	result, _ := env.h.HandleHistory(ctx, makeRequest(map[string]any{"limit": 1}))
	output := parseOutput(t, result)
	if runs := output["runs"].([]any); len(runs) != 1 {
		t.Errorf("runs = %d, want 1", len(runs))
	}
	if output["pagination"].(map[string]any)["has_more"] != true {
		t.Error("expected has_more")
	}

	result, _ = env.h.HandlePurge(ctx, makeRequest(map[string]any{"older_than_days": -1}))
	assertErrorCode(t, result, string(errors.ErrInvalidRequest))

	result, _ = env.h.HandlePurge(ctx, makeRequest(map[string]any{}))
	output = parseOutput(t, result)
	if output["purged"].(float64) != 2 {
		t.Errorf("purged = %v, want 2", output["purged"])
	}
}

func TestHandleReview(t *testing.T) {
	env := testSetup(t)
	out := filepath.Join(env.exports, "review.xlsx")

	result, _ := env.h.HandleReview(context.Background(), makeRequest(map[string]any{
		"write":  true,
		"output": out,
	}))
	output := parseOutput(t, result)
	if output["items"].(float64) != 1 {
		t.Errorf("items = %v, want 1", output["items"])
	}
	if output["path"] != out {
		t.Errorf("path = %v, want %s", output["path"], out)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("review not written: %v", err)
	}
}

func TestServerRegistration(t *testing.T) {
	env := testSetup(t)

	s := NewServer(env.db, env.cfg, Options{ExportsDir: env.exports, Version: "test"})
	tools := s.ListTools()

	expected := AllToolNames()
	if len(tools) != len(expected) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expected))
	}
	for _, name := range expected {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	env := testSetup(t)
	env.cfg.DisabledTools = []string{"iaa_purge", "iaa_purge", "review_extract"}

	tools := NewServer(env.db, env.cfg, Options{ExportsDir: env.exports}).ListTools()
	if len(tools) != len(AllToolNames())-2 {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(AllToolNames())-2)
	}
	for _, name := range []string{"iaa_purge", "review_extract"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	env := testSetup(t)
	env.cfg.DisabledTools = AllToolNames()

	if tools := NewServer(env.db, env.cfg, Options{}).ListTools(); len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", len(tools))
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{"all valid", []string{"iaa_purge", "iaa_history"}, 0},
		{"one unknown", []string{"iaa_purge", "fake_tool"}, 1},
		{"all unknown", []string{"foo", "bar", "baz"}, 3},
		{"empty list", []string{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if unknown := ValidateDisabledTools(tt.input); len(unknown) != tt.wantLen {
				t.Errorf("ValidateDisabledTools() returned %d unknown, want %d", len(unknown), tt.wantLen)
			}
		})
	}
}

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()
	if len(names) != 5 {
		t.Errorf("AllToolNames() returned %d names, want 5", len(names))
	}
	if unknown := ValidateDisabledTools(names); len(unknown) != 0 {
		t.Errorf("AllToolNames() returned invalid names: %v", unknown)
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if strings.Contains(errObj["message"].(string), "secret.db") {
		t.Fatal("expected INTERNAL errors to hide the message")
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
}

func TestErrorResult_WrappedErrorPreservesContext(t *testing.T) {
	wrapped := fmt.Errorf("a1_progress.csv: %w", errors.NewMalformedRow("a1_progress.csv", 3, "annotation_label", "x"))

	errObj := errorObject(t, errorResult(wrapped))
	if errObj["code"] != string(errors.ErrMalformedRow) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrMalformedRow)
	}
	if !strings.HasPrefix(errObj["message"].(string), "a1_progress.csv:") {
		t.Errorf("message should keep wrapper context, got: %v", errObj["message"])
	}
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	errObj := errorObject(t, errorResult(errors.NewNotFound("abc")))
	if errObj["code"] != string(errors.ErrNotFound) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrNotFound)
	}
	if _, ok := errObj["details"]; !ok {
		t.Fatal("expected non-INTERNAL errors to include details when present")
	}
}

func TestErrorResult_PlainError(t *testing.T) {
	errObj := errorObject(t, errorResult(fmt.Errorf("boom")))
	if errObj["code"] != "INTERNAL" {
		t.Errorf("code=%v, want INTERNAL", errObj["code"])
	}
}

// Helper functions

func errorObject(t *testing.T, r *mcp.CallToolResult) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	return payload["error"].(map[string]any)
}

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()
	if !result.IsError {
		t.Fatalf("expected error %s, got success: %v", expectedCode, extractErrorMessage(result))
	}
	if code := errorObject(t, result)["code"]; code != expectedCode {
		t.Errorf("got error code %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}
	return text.Text
}
