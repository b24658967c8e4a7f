// Package download implements the download stage: it fetches each document's
// PDF from the archive file server into the local PDF directory.
//
// The Fetcher is shared with the streaming and mirror stages, which read the
// same source without keeping a local copy.
package download
