// Package models defines core data structures for chunks, retrieval results, and calls.
package models

// Metadata describes the origin of a stored chunk. The store treats it as
// opaque; keys are only interpreted by callers.
type Metadata struct {
	Source     string `json:"source"`
	ChunkIndex int    `json:"chunk_index"`
	Path       string `json:"path,omitempty"`
}

// RetrievedChunk is a single nearest-neighbor search hit. Distance is the
// squared Euclidean distance between the query and the stored vector.
type RetrievedChunk struct {
	Chunk    string   `json:"chunk"`
	Metadata Metadata `json:"metadata"`
	Distance float64  `json:"distance"`
}
