// Package main hosts the archivist CLI entrypoint and command graph.
//
// The Cobra command tree drives the catalog pipeline (ingest, download,
// extract, analyze, mirror, stream), the read side (search, facets, item
// views, starring), archive maintenance (summaries, tag rules, index
// rebuild, stuck-claim recovery), the HTTP API server, and preflight checks.
// Configuration, logging, and store setup live in commandContext so
// subcommands only describe flags and output.
//
// Keep this package thin: behaviour belongs in internal packages and is
// surfaced here through flags and tables.
package main
