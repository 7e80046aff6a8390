// Package embed defines the two external collaborator interfaces the
// session's auto-embed hook talks to: an opaque text embedder
// and a vector collection store. Neither has a concrete implementation
// here — the bundled LLM/embedding runtime (GGUF/SIMD tensor kernels,
// CPU/CUDA/Metal backend selection) and the vector store's HNSW index are
// explicitly out of scope; the core only needs the interface
// it calls across that boundary.
package embed
