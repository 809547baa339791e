// Package normalisers provides the extractor registry and helpers shared by
// the Normaliser implementations. Each normaliser subpackage extracts text
// from one file kind: pdf, image or plaintext.
//
// Normalisers are registered with the Registry at startup.
package normalisers
