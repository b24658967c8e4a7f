// Package objectstore mirrors PDFs into an S3-compatible bucket (Cloudflare
// R2 in production) through minio-go.
package objectstore
