// Package tagnorm merges spelling variants of analysis tags.
//
// Rules are a YAML file mapping variants to a canonical tag plus an optional
// drop list. FindSimilar proposes rules from the tag counts in the catalog:
// tags that share a normalized key are exact groups, the rest are paired by
// substring containment or a similarity ratio threshold.
package tagnorm
