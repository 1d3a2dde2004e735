package embeddings

import "strings"

// DefaultModel is the model used when none is configured.
const DefaultModel = "BAAI/bge-small-en-v1.5"

// modelFamilies maps short family names to concrete models.
var modelFamilies = map[string]string{
	"lightweight": "BAAI/bge-small-en-v1.5",
	"minilm":      "sentence-transformers/all-MiniLM-L6-v2",
	"base":        "BAAI/bge-base-en-v1.5",
}

// knownDimensions lists dimensions of models that can be served without cgo.
var knownDimensions = map[string]int{
	"BAAI/bge-small-en-v1.5":                 384,
	"BAAI/bge-small-en":                      384,
	"BAAI/bge-base-en-v1.5":                  768,
	"BAAI/bge-base-en":                       768,
	"BAAI/bge-small-zh-v1.5":                 512,
	"sentence-transformers/all-MiniLM-L6-v2": 384,
	"fast-bge-small-en-v1.5":                 384,
	"fast-bge-small-en":                      384,
	"fast-bge-base-en-v1.5":                  768,
	"fast-bge-base-en":                       768,
	"fast-bge-small-zh-v1.5":                 512,
	"fast-all-MiniLM-L6-v2":                  384,
}

// ResolveModel maps a family name ("lightweight", "minilm", "base") to a
// concrete model name. Other names are returned unchanged; empty selects
// DefaultModel.
func ResolveModel(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultModel
	}
	if m, ok := modelFamilies[strings.ToLower(name)]; ok {
		return m
	}
	return name
}

// DimensionFor returns the embedding dimension for a model name.
// Falls back to name patterns, then to 384.
func DimensionFor(model string) int {
	if dim, ok := knownDimensions[ResolveModel(model)]; ok {
		return dim
	}
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "large"):
		return 1024
	case strings.Contains(lower, "base"):
		return 768
	default:
		return 384
	}
}
