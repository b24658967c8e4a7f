// Package services defines shared utilities consumed by the pipeline stage
// handlers and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp catalog node IDs, stage names, batch run IDs,
//     and request identifiers for logging.
//   - Structured error markers plus the Wrap helper, so a failure raised deep in
//     an OCR wrapper or provider client can still be classified by the stage
//     executor (configuration vs collaborator vs timeout).
//
// Subpackages hold the clients for external collaborators: the catalog site,
// the LLM providers, the OCR tools, and the object store.
package services
