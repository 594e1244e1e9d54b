// Package domain holds the error taxonomy shared by the ingestion and query paths.
package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat indicates a file whose extension or content is not a supported document type.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrIndexBuildFailed indicates an I/O, parse or embedding failure during ingestion.
	// The previously persisted index, if any, is left untouched.
	ErrIndexBuildFailed = errors.New("index build failed")

	// ErrEmptyCorpus indicates the source produced no chunks to index.
	ErrEmptyCorpus = fmt.Errorf("%w: no indexable text", ErrIndexBuildFailed)

	// ErrServiceUnavailable indicates the embedding or language model service could not be reached.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrServiceTimeout indicates a model service call exceeded its deadline.
	ErrServiceTimeout = fmt.Errorf("%w: timed out", ErrServiceUnavailable)

	// ErrGenerationFailed indicates the model service was reached but returned an error or an empty result.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrNoCorpusAvailable indicates a query with neither a user nor a system index ready.
	ErrNoCorpusAvailable = errors.New("no corpus available")

	// ErrModelMismatch indicates a persisted index was built with a different embedding model.
	ErrModelMismatch = errors.New("embedding model mismatch")

	// ErrStorage indicates a filesystem failure while managing uploads or persisted indexes.
	ErrStorage = errors.New("storage error")
)
