package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrSegmentNotStreamed is returned by Await when the stream finished
// without the requested segment.
var ErrSegmentNotStreamed = errors.New("protocol: segment not in stream")

// Result is everything a finished stream delivered.
type Result struct {
	Head     *Head
	Segments []*Segment
	Records  []*Record
	Modules  []*ModuleRef
	Redirect *Redirect
	NotFound *NotFound
	Error    *ErrorMessage
}

// Assembler collects messages in arrival order and lets other goroutines
// wait for individual segments before the stream is done. A consumer can
// begin building the tree from the first segment while later segments are
// still on the wire.
type Assembler struct {
	mu      sync.Mutex
	res     Result
	byKey   map[string]*Segment
	changed chan struct{}
	done    bool
	err     error
}

// NewAssembler returns an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{
		byKey:   make(map[string]*Segment),
		changed: make(chan struct{}),
	}
}

// Apply adds one message. Segments must arrive root to leaf: a segment
// whose depth is not greater than the previous one is malformed.
func (a *Assembler) Apply(m Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.done {
		return fmt.Errorf("%w: message after end of stream", ErrMalformedFrame)
	}
	switch m := m.(type) {
	case *Head:
		a.res.Head = m
	case *Segment:
		if n := len(a.res.Segments); n > 0 && m.Depth <= a.res.Segments[n-1].Depth {
			return fmt.Errorf("%w: segment %q at depth %d after depth %d",
				ErrMalformedFrame, m.Key, m.Depth, a.res.Segments[n-1].Depth)
		}
		a.res.Segments = append(a.res.Segments, m)
		a.byKey[m.Key] = m
	case *Record:
		a.res.Records = append(a.res.Records, m)
	case *ModuleRef:
		a.res.Modules = append(a.res.Modules, m)
	case *Redirect:
		a.res.Redirect = m
	case *NotFound:
		a.res.NotFound = m
	case *ErrorMessage:
		a.res.Error = m
	case *End:
		a.done = true
	}
	a.broadcast()
	return nil
}

// Fail ends the stream with err. Waiters return err.
func (a *Assembler) Fail(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done {
		return
	}
	a.done = true
	a.err = err
	a.broadcast()
}

func (a *Assembler) broadcast() {
	close(a.changed)
	a.changed = make(chan struct{})
}

// Consume reads r until End or the first error and applies every message.
// onMessage, if set, sees each message after it is applied. The returned
// error is also handed to Fail.
func (a *Assembler) Consume(ctx context.Context, r *StreamReader, onMessage func(Message)) error {
	for {
		if err := ctx.Err(); err != nil {
			a.Fail(err)
			return err
		}
		m, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			a.Fail(err)
			return err
		}
		if err := a.Apply(m); err != nil {
			err = &StreamError{Frame: r.frame, Err: err}
			a.Fail(err)
			return err
		}
		if onMessage != nil {
			onMessage(m)
		}
	}
}

// Await blocks until the segment with key has arrived. It returns
// ErrSegmentNotStreamed if the stream ended without it, the stream error if
// the stream failed, or the context error.
func (a *Assembler) Await(ctx context.Context, key string) (*Segment, error) {
	for {
		a.mu.Lock()
		if s, ok := a.byKey[key]; ok {
			a.mu.Unlock()
			return s, nil
		}
		if a.done {
			err := a.err
			a.mu.Unlock()
			if err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %q", ErrSegmentNotStreamed, key)
		}
		changed := a.changed
		a.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Wait blocks until the stream has ended and returns the result.
func (a *Assembler) Wait(ctx context.Context) (*Result, error) {
	for {
		a.mu.Lock()
		if a.done {
			res, err := a.res, a.err
			a.mu.Unlock()
			return &res, err
		}
		changed := a.changed
		a.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Segments returns the segments received so far in arrival order.
func (a *Assembler) Segments() []*Segment {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*Segment, len(a.res.Segments))
	copy(out, a.res.Segments)
	return out
}
