package services

import "errors"

var (
	// ErrIndexUnavailable marks catalog index failures. It is the only error the pipeline propagates.
	ErrIndexUnavailable = errors.New("catalog index unavailable")
	// ErrStructuredOutput is returned when structured generation exhausts its attempts.
	ErrStructuredOutput = errors.New("structured output extraction failed")
	// ErrEmptyEmbedding is returned when the embedding model yields no values.
	ErrEmptyEmbedding = errors.New("empty embedding result")
	// ErrUnsupportedUpload rejects job description uploads that are not PDF documents.
	ErrUnsupportedUpload = errors.New("job description must be a PDF document")
	// ErrUploadTooLarge rejects job description uploads over the configured size.
	ErrUploadTooLarge = errors.New("job description file too large")
)
