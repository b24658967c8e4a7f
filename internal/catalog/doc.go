// Package catalog persists archival items in SQLite and drives their
// per-stage pipeline state.
//
// Each item carries four independent stage statuses (download, extract,
// analysis, mirror). Claim, Complete, and Fail move a status through an
// explicit transition table using compare-and-set updates, so concurrent
// batches never process the same item twice. Every write that touches indexed
// fields refreshes the FTS5 row for that item inside the same transaction.
//
// The package also owns archive box/folder summaries, the batch run ledger,
// and the SQLite regexp function used by regex search.
package catalog
