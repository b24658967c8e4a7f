// Package logging assembles structured slog loggers and formatting helpers used
// across archivist commands and the API server.
//
// It owns the console and JSON handlers, level and output plumbing, and
// context-aware helpers so stage code can tag log lines with node IDs, stage
// names, and batch run IDs without threading them through every call.
package logging
