// Package preflight provides readiness checks for the paths and external
// services the archivist pipeline depends on.
//
// These checks run in two contexts:
//   - The CLI "archivist doctor" command runs RunAll and prints a table.
//   - Stage commands call RunAll with Live disabled before claiming work so
//     misconfiguration fails fast instead of marking every item failed.
//
// Service checks are gated by their config: a provider without an API key or
// an unconfigured mirror is reported as skipped, not failed.
package preflight
