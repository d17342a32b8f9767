// Package stream turns provider-specific completion streams into a uniform
// sequence of text fragments.
package stream

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/MikeSquared-Agency/parley/internal/chat"
)

// Request is what a provider needs to produce a completion.
type Request struct {
	System   string
	Messages []chat.Message
}

// Provider streams one completion. Stream calls emit once per provider chunk,
// in arrival order, and returns when the completion ends or fails. A chunk is
// a string, a []byte or a Texter.
type Provider interface {
	Name() string
	Stream(ctx context.Context, req Request, emit func(chunk any) error) error
}

// Texter is implemented by record-shaped provider chunks.
type Texter interface {
	FragmentText() string
}

var (
	ErrUnsupportedChunk = errors.New("unsupported chunk type")

	errStopped = errors.New("fragment consumer stopped")
)

// Text extracts the text carried by a provider chunk.
func Text(chunk any) (string, error) {
	switch c := chunk.(type) {
	case string:
		return c, nil
	case []byte:
		return string(c), nil
	case Texter:
		return c.FragmentText(), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedChunk, chunk)
	}
}

// Fragments adapts a provider stream into non-empty text fragments. Each
// chunk maps to at most one fragment and nothing is buffered beyond it.
// If the provider fails, the fragments already yielded stand and the error is
// yielded once, with an empty fragment, as the last element.
func Fragments(ctx context.Context, p Provider, req Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		stopped := false
		err := p.Stream(ctx, req, func(chunk any) error {
			text, err := Text(chunk)
			if err != nil {
				return err
			}
			if text == "" {
				return nil
			}
			if !yield(text, nil) {
				stopped = true
				return errStopped
			}
			return nil
		})
		if stopped || err == nil {
			return
		}
		yield("", fmt.Errorf("%s stream: %w", p.Name(), err))
	}
}
