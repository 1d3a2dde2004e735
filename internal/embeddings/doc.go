// Package embeddings turns text into fixed-length vectors.
//
// Three providers are available behind the Provider interface: FastEmbed
// (local ONNX models, requires cgo), TEI (an external Text Embeddings
// Inference service) and a deterministic feature-hashing provider that needs
// no model download. NewProvider selects one at runtime; model families such
// as "lightweight" resolve to concrete model names via ResolveModel.
//
// Vectors returned by providers are checked with ValidateVectors before use,
// and compared with CosineSimilarity.
package embeddings
