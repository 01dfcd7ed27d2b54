// Package ingestion indexes document text for retrieval.
//
// The Pipeline chunks a document, embeds every chunk in one batched call
// (retried with exponential backoff), makes sure the target collection
// exists, and writes one point per chunk. Any failure aborts the document:
// a partly indexed paper would give retrieval-mode answers an incomplete
// context without anyone noticing.
package ingestion
