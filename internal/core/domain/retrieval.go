package domain

// RetrievedChunk is a chunk paired with its similarity to a query.
// Query results are ordered by descending Score.
type RetrievedChunk struct {
	// Chunk is the matched chunk.
	Chunk Chunk

	// Score is the cosine similarity in [-1, 1].
	Score float64
}

// VectorHit is a raw vector index result before chunk lookup.
type VectorHit struct {
	// ChunkID identifies the matched chunk.
	ChunkID string

	// Similarity is the cosine similarity in [-1, 1].
	Similarity float64
}

// IndexInfo describes a built index.
type IndexInfo struct {
	// Path is the index directory.
	Path string

	// EmbeddingModel is the model the vectors were produced with.
	EmbeddingModel string

	// Dimensions is the established vector dimension.
	Dimensions int

	// Chunks is the number of indexed chunks.
	Chunks int

	// Documents is the number of indexed documents.
	Documents int
}
