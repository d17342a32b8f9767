// Package relay tees a fragment stream to a network output while accumulating
// the full text for persistence.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
)

// Output is the network side of a relay. Write must not buffer beyond what
// Flush pushes to the peer.
type Output interface {
	io.Writer
	Flush() error
	Close() error
}

// Exchange is the finished prompt/response pair handed to a Recorder.
type Exchange struct {
	Prompt    string
	Response  string
	Truncated bool
}

type Recorder interface {
	Record(ctx context.Context, ex Exchange) error
}

var (
	ErrNotDrained       = errors.New("relay not drained")
	ErrAlreadyPersisted = errors.New("exchange already persisted")
	ErrNothingToPersist = errors.New("no fragments were delivered")
)

// Result describes how a drained stream ended.
type Result struct {
	Text      string
	Fragments int
	// Truncated is set when the stream ended early: a provider error, a
	// failed network write or a cancelled context.
	Truncated bool
	Err       error
}

// Relay is owned by one request. It is not safe for concurrent use.
type Relay struct {
	out       Output
	buf       strings.Builder
	result    *Result
	closed    bool
	persisted bool
}

func New(out Output) *Relay {
	return &Relay{out: out}
}

// Drain consumes the fragment sequence once. Every fragment is written and
// flushed before the next one is pulled, then appended to the buffer. A
// failed write stops the sequence; the failed fragment is not buffered.
func (r *Relay) Drain(fragments iter.Seq2[string, error]) Result {
	if r.result != nil {
		return *r.result
	}
	res := Result{}
	for frag, err := range fragments {
		if err != nil {
			res.Err = err
			res.Truncated = true
			break
		}
		if err := r.send(frag); err != nil {
			res.Err = err
			res.Truncated = true
			break
		}
		r.buf.WriteString(frag)
		res.Fragments++
	}
	res.Text = r.buf.String()
	r.result = &res
	return res
}

func (r *Relay) send(frag string) error {
	if _, err := io.WriteString(r.out, frag); err != nil {
		return fmt.Errorf("write fragment: %w", err)
	}
	if err := r.out.Flush(); err != nil {
		return fmt.Errorf("flush fragment: %w", err)
	}
	return nil
}

// Close ends the network output. It is the first phase of completion and
// must run before Persist.
func (r *Relay) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if err := r.out.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

// Persist hands the accumulated text to rec. It is the second phase of
// completion and succeeds at most once per relay. Exchanges with no
// delivered fragments are not recorded.
func (r *Relay) Persist(ctx context.Context, rec Recorder, prompt string) error {
	if r.result == nil {
		return ErrNotDrained
	}
	if r.persisted {
		return ErrAlreadyPersisted
	}
	if !r.closed {
		if err := r.Close(); err != nil {
			return err
		}
	}
	if r.result.Fragments == 0 {
		return ErrNothingToPersist
	}
	r.persisted = true
	ex := Exchange{
		Prompt:    prompt,
		Response:  r.result.Text,
		Truncated: r.result.Truncated,
	}
	if err := rec.Record(ctx, ex); err != nil {
		return fmt.Errorf("record exchange: %w", err)
	}
	return nil
}
