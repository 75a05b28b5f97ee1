package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/hpungsan/phishlabel/internal/config"
	"github.com/hpungsan/phishlabel/internal/errors"
	"github.com/hpungsan/phishlabel/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db         *sql.DB
	cfg        *config.Config
	exportsDir string
	log        *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config, exportsDir string, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{db: db, cfg: cfg, exportsDir: exportsDir, log: log}
}

// Request types for each tool

// ReportRequest represents the arguments for iaa_report.
type ReportRequest struct {
	ProgressDir string `json:"progress_dir,omitempty"`
	MinOverlap  int    `json:"min_overlap,omitempty"`
	Write       bool   `json:"write,omitempty"`
	Output      string `json:"output,omitempty"`
	Record      *bool  `json:"record,omitempty"`
}

// DisagreementsRequest represents the arguments for iaa_disagreements.
type DisagreementsRequest struct {
	ProgressDir string `json:"progress_dir,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	Offset      int    `json:"offset,omitempty"`
}

// HistoryRequest represents the arguments for iaa_history.
type HistoryRequest struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// PurgeRequest represents the arguments for iaa_purge.
type PurgeRequest struct {
	OlderThanDays *int `json:"older_than_days,omitempty"`
}

// ReviewRequest represents the arguments for review_extract.
type ReviewRequest struct {
	ProgressDir string `json:"progress_dir,omitempty"`
	Write       bool   `json:"write,omitempty"`
	Output      string `json:"output,omitempty"`
}

// exportPath resolves and checks the path a tool may write to.
func (h *Handlers) exportPath(requested, kind string) (string, error) {
	policy, err := ops.NewExportPolicy(h.exportsDir, h.cfg)
	if err != nil {
		return "", err
	}
	return policy.Resolve(requested, kind, time.Now())
}

// HandleReport handles the iaa_report tool call.
func (h *Handlers) HandleReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ReportRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if input.MinOverlap < 0 {
		return errorResult(errors.NewInvalidRequest("min_overlap must be positive")), nil
	}

	scheme, err := ops.LoadScheme(h.cfg)
	if err != nil {
		return errorResult(errors.NewInternal(err)), nil
	}

	in := ops.AnalyzeInput{
		ProgressDir: input.ProgressDir,
		MinOverlap:  input.MinOverlap,
		NoWrite:     !input.Write,
		Record:      input.Record == nil || *input.Record,
		Scheme:      scheme,
		Logger:      h.log,
	}
	if input.Write {
		if in.Output, err = h.exportPath(input.Output, "disagreements"); err != nil {
			return errorResult(err), nil
		}
	}

	result, err := ops.Analyze(ctx, h.db, h.cfg, in)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result.Report())
}

// HandleDisagreements handles the iaa_disagreements tool call.
func (h *Handlers) HandleDisagreements(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DisagreementsRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	scheme, err := ops.LoadScheme(h.cfg)
	if err != nil {
		return errorResult(errors.NewInternal(err)), nil
	}

	result, err := ops.Disagreements(ctx, h.cfg, ops.DisagreementsInput{
		ProgressDir: input.ProgressDir,
		Limit:       input.Limit,
		Offset:      input.Offset,
		Scheme:      scheme,
		Logger:      h.log,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleHistory handles the iaa_history tool call.
func (h *Handlers) HandleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.History(ctx, h.db, ops.HistoryInput{
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePurge handles the iaa_purge tool call.
func (h *Handlers) HandlePurge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PurgeRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if input.OlderThanDays != nil && *input.OlderThanDays < 0 {
		return errorResult(errors.NewInvalidRequest("older_than_days must not be negative")), nil
	}

	result, err := ops.Purge(ctx, h.db, ops.PurgeInput{OlderThanDays: input.OlderThanDays})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleReview handles the review_extract tool call.
func (h *Handlers) HandleReview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ReviewRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	scheme, err := ops.LoadScheme(h.cfg)
	if err != nil {
		return errorResult(errors.NewInternal(err)), nil
	}

	in := ops.ReviewInput{
		ProgressDir: input.ProgressDir,
		NoWrite:     !input.Write,
		Scheme:      scheme,
		Logger:      h.log,
	}
	if input.Write {
		if in.Output, err = h.exportPath(input.Output, "review"); err != nil {
			return errorResult(err), nil
		}
	}

	result, err := ops.ExtractReview(ctx, h.cfg, in)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed to avoid leaking file paths or SQL errors.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var lErr *errors.LabelError
	if stderrors.As(err, &lErr) {
		msg := lErr.Message
		if err != error(lErr) {
			msg = err.Error()
		}
		errorObj := map[string]any{
			"code":    lErr.Code,
			"message": msg,
			"status":  lErr.Status,
		}
		if lErr.Code == errors.ErrInternal {
			errorObj["message"] = "an internal error occurred"
		} else if lErr.Details != nil {
			errorObj["details"] = lErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
