// Package domain defines the core entities for Lexis.
//
// This package is part of the hexagonal architecture's innermost layer.
// It defines the fundamental types:
//
//   - Document: Extracted text of one corpus file
//   - Chunk: A bounded run of words, the unit that is embedded and retrieved
//   - RawDocument: Opaque bytes read from the corpus
//   - RetrievedChunk: A chunk paired with its similarity to a query
//   - Conversation, Answer: Inputs and outputs of question answering
//   - EvalCase, EvalRecord, EvalReport: Batch evaluation records
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. All other packages depend on
// domain, never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library, github.com/google/uuid
//   - Cannot Import: Any internal/ package
package domain
