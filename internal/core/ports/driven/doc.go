// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Corpus: Walks and watches a directory tree of source files
//   - Normaliser: Extracts text from one kind of file (PDF, image, text)
//   - NormaliserRegistry: Resolves the file kind and dispatches
//   - Chunker: Splits document text into bounded word chunks
//   - EmbeddingService: Generates vector embeddings
//   - LLMService: Generates answers from prompts
//   - VectorIndex: Stores chunks with their vectors, answers similarity queries
//   - IndexStore: Persists a VectorIndex to a directory
//   - ConfigStore: Application configuration
//   - PromptStore: Prompt templates
//
// # Optional Interfaces
//
//   - EvaluationSink: Receives per-question evaluation records
//   - ProviderProbe: Checks that AI providers answer
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
