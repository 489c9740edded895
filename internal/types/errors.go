package types

import "errors"

var (
	// ErrEmbedding is returned when an embedding call fails or returns an
	// unusable vector.
	ErrEmbedding = errors.New("embedding failed")

	// ErrCorruptIndex is returned when a persisted index cannot be read back
	// consistently.
	ErrCorruptIndex = errors.New("corrupt index")

	// ErrUpstreamGeneration is returned when the language model fails or the
	// request deadline expires while generating an answer.
	ErrUpstreamGeneration = errors.New("upstream generation failed")

	// ErrValidation is returned for a missing or blank question.
	ErrValidation = errors.New("validation failed")
)
