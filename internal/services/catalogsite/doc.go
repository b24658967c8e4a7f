// Package catalogsite scrapes the digital collections search pages that list
// the archive's documents and turns each result row into a catalog item.
package catalogsite
