// Package provider declares the language-model capabilities the trainer
// depends on. Concrete adapters live in internal/platform/openai; the mocks in
// this package back local development and fixture tests.
package provider

import (
	"context"
	"errors"
)

var (
	// ErrTimeout marks a generation call that did not finish before its deadline.
	ErrTimeout = errors.New("provider timeout")
	// ErrProvider marks any other provider failure.
	ErrProvider = errors.New("provider error")
)

// GenerationProvider returns raw model text for a prompt. schemaHint describes
// the expected JSON shape; it is advisory.
type GenerationProvider interface {
	GenerateStructured(ctx context.Context, prompt, schemaHint string) (string, error)
}

// EmbeddingProvider maps text to a fixed-length vector.
type EmbeddingProvider interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// IsTimeout reports whether err is a generation timeout, including a context
// deadline that expired inside the provider.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// Timeout wraps cause as ErrTimeout.
func Timeout(cause error) error {
	if cause == nil {
		return ErrTimeout
	}
	return errors.Join(ErrTimeout, cause)
}

// Failure wraps cause as ErrProvider.
func Failure(cause error) error {
	if cause == nil {
		return ErrProvider
	}
	return errors.Join(ErrProvider, cause)
}
