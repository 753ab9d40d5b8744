// Package domain defines the core business entities for Docquery.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - SourceFile / Page: A corpus document and its extracted page text
//   - Chunk: The unit of embedding and retrieval
//   - Manifest: Persisted record of how an index was built
//   - RetrievedChunk / Answer: Query-time results
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
