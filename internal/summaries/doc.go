// Package summaries generates short topic labels for archive folders and
// boxes from the titles and summaries of the documents they hold.
package summaries
