package rag

import "errors"

var (
	ErrNoQuestion    = errors.New("no human message to answer")
	ErrEmptyAnswer   = errors.New("generator returned an empty answer")
	ErrNoRetrieval   = errors.New("no retrieval result follows the question")
	ErrNilRetriever  = errors.New("retriever is required")
	ErrNilGenerator  = errors.New("generator is required")
	ErrInvalidConfig = errors.New("invalid rag configuration")
)
