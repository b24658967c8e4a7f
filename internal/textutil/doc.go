// Package textutil provides small text helpers shared by the analysis and
// tag normalization code: rune-safe truncation and a matching-blocks
// similarity ratio for comparing short labels.
package textutil
