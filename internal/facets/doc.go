// Package facets computes corpus-wide value counts for navigation and keeps
// the latest snapshot in a time-bounded cache.
//
// Facets always describe the whole corpus, never a filtered result set. The
// cache holds a single snapshot; readers load it through an atomic pointer
// while at most one refresh runs at a time, so a half-built snapshot is never
// visible. Writes to the catalog do not invalidate the cache: a snapshot may
// lag the store by up to the TTL (five minutes by default) unless a caller
// invalidates it explicitly.
package facets
