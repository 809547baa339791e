// Package flat provides an exact, in-memory cosine similarity index.
// It implements the driven.VectorIndex interface.
//
// Every query scans all stored vectors. Corpora of a few hundred documents
// fit comfortably; the payload codec in this package persists the vectors
// for the index store.
package flat
