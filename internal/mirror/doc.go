// Package mirror implements the mirror stage: copying each downloaded PDF
// into an S3-compatible bucket under box{05}/folder{05}/{doc_id}.pdf.
//
// Local files are uploaded when present. Items processed by the streaming
// variant have no local file, so their bytes are fetched again from the
// source and piped straight into the bucket.
package mirror
