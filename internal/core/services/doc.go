// Package services holds the core of lexis: ingesting a corpus into a
// vector index, retrieving passages for a question, answering from those
// passages, evaluating answers against a reference set, and resolving
// settings. Services see the outside world only through the driven ports.
package services
