// Package search answers catalog queries in one of three modes.
//
// Exact mode compiles a boolean query (phrases, AND/OR/NOT, parentheses)
// into an FTS5 MATCH and ranks by bm25. Fuzzy mode ORs case-insensitive
// substring matches over title and text and orders newest first; it has no
// relevance ranking. Regex mode validates an RE2 pattern up front and scans
// title and text through the SQLite regexp function in node_id order.
//
// Every mode shares the same filters, pagination, and row shape. Rows carry
// a bounded snippet instead of the full text; callers fetch the text
// separately with Engine.GetText.
package search
