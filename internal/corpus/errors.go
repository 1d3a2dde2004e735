package corpus

import "errors"

var (
	// ErrUnknownDocument indicates a chunk that does not belong to the document being registered.
	ErrUnknownDocument = errors.New("chunk references unknown document")

	// ErrDuplicateDocument indicates a document id that is already registered.
	ErrDuplicateDocument = errors.New("document already registered")

	// ErrEmptyChunk indicates a chunk without content tokens.
	ErrEmptyChunk = errors.New("chunk has no content")
)
