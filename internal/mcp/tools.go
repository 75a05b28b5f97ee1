package mcp

import "github.com/mark3labs/mcp-go/mcp"

var reportToolDef = mcp.NewTool("iaa_report",
	mcp.WithDescription("Compute inter-annotator agreement over every <annotator>_progress.csv file: "+
		"per-annotator summaries, pairwise Cohen's kappa with tiers, Fleiss' kappa, disagreement counts "+
		"and confusion tables. Set write=true to also export the flagged disagreements for adjudication."),
	mcp.WithString("progress_dir", mcp.Description("Directory holding progress files (default from config)")),
	mcp.WithNumber("min_overlap", mcp.Description("Minimum jointly labeled items for a pair to be measured (default 10)")),
	mcp.WithBoolean("write", mcp.Description("Export flagged disagreements to a .csv or .xlsx file")),
	mcp.WithString("output", mcp.Description("Export path; must be directly in the exports dir or an allowed path")),
	mcp.WithBoolean("record", mcp.Description("Store this run in history (default true)")),
)

var disagreementsToolDef = mcp.NewTool("iaa_disagreements",
	mcp.WithDescription("List items on which annotators disagree, with each annotator's label and confidence. Read-only."),
	mcp.WithString("progress_dir", mcp.Description("Directory holding progress files (default from config)")),
	mcp.WithNumber("limit", mcp.Description("Max items to return (default 50, max 500)")),
	mcp.WithNumber("offset", mcp.Description("Items to skip (default 0)")),
)

var historyToolDef = mcp.NewTool("iaa_history",
	mcp.WithDescription("List recorded agreement runs, newest first, with per-pair kappa."),
	mcp.WithNumber("limit", mcp.Description("Max runs to return (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Runs to skip (default 0)")),
)

var purgeToolDef = mcp.NewTool("iaa_purge",
	mcp.WithDescription("Permanently delete recorded runs. Without older_than_days every run is deleted."),
	mcp.WithNumber("older_than_days", mcp.Description("Only delete runs older than this many days")),
	mcp.WithDestructiveHintAnnotation(true),
)

var reviewToolDef = mcp.NewTool("review_extract",
	mcp.WithDescription("Collect every row annotators left remarks on into one review table for the chief annotator."),
	mcp.WithString("progress_dir", mcp.Description("Directory holding progress files (default from config)")),
	mcp.WithBoolean("write", mcp.Description("Write the review table to a .csv or .xlsx file")),
	mcp.WithString("output", mcp.Description("Export path; must be directly in the exports dir or an allowed path")),
)
