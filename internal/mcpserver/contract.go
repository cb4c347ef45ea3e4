package mcpserver

// UsageContract tells LLM consumers how the tools fit together and what the
// insights memo expects. Served as the fabric://usage resource.
const UsageContract = `# Fabric MCP Usage Contract

## Data access

1. Call ` + "`list_tables`" + ` first. It returns name, schema, type and an
   approximate row count for every lakehouse table.
2. Use ` + "`read_query`" + ` for every number you report. Only read-only SQL is
   accepted: any query containing INSERT, UPDATE, DELETE, DROP, CREATE, ALTER,
   TRUNCATE, EXEC or EXECUTE is refused before it reaches Fabric. The check is a
   plain substring match, so a column such as ` + "`created_at`" + ` or a table
   such as ` + "`executives`" + ` is refused as well; go through a view that
   renames it.
3. Queries time out after the configured limit (30 seconds by default). A timeout
   returns no rows; narrow the query and retry.

## Insights memo

- Record each finding with ` + "`append_insight`" + `: a short title, the finding
  itself as content, an optional category (defaults to "general") and optional
  tags.
- Insights are append-only. There is no edit or delete; record a correction as
  a new insight.
- Read the memo through the ` + "`memo://insights`" + ` resource (JSON with
  metadata) or ` + "`memo://insights.md`" + ` (Markdown only).

## Results

Every tool answers with JSON carrying ` + "`success`" + `. On failure the
body is ` + "`{\"success\": false, \"error\": \"...\"}`" + ` and the result is flagged
as an error.
`
