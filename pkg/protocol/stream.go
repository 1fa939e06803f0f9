package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Stream errors. A StreamError wraps one of these.
var (
	ErrMalformedFrame = errors.New("protocol: malformed frame")
	ErrUnexpectedEnd  = errors.New("protocol: stream ended before End frame")
	ErrMissingHead    = errors.New("protocol: stream does not start with Head")
	ErrVersion        = errors.New("protocol: unsupported stream version")
	ErrStreamClosed   = errors.New("protocol: write after End")
)

// StreamError is fatal to the stream it came from. Nothing after it can be
// trusted, and a reader never recovers from one.
type StreamError struct {
	// Frame is the index of the frame being read, starting at 0.
	Frame int
	Err   error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("protocol: stream error at frame %d: %v", e.Frame, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// StreamWriter writes messages as frames and flushes after each message so
// the receiver can act on it before the stream finishes. It is safe for
// concurrent use; messages are never interleaved.
type StreamWriter struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	enc     *Encoder
	frames  int
	bytes   int64
	ended   bool
}

// NewStreamWriter returns a writer over w. If w implements http.Flusher it
// is flushed after every message.
func NewStreamWriter(w io.Writer) *StreamWriter {
	flusher, _ := w.(http.Flusher)
	return &StreamWriter{w: w, flusher: flusher, enc: NewEncoder()}
}

// Write encodes m, splits it over as many frames as needed and flushes.
// Writing after an End message returns ErrStreamClosed.
func (sw *StreamWriter) Write(m Message) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.ended {
		return ErrStreamClosed
	}
	sw.enc.Reset()
	m.encode(sw.enc)
	if sw.enc.Len() > MaxMessageSize {
		return fmt.Errorf("protocol: %s message of %d bytes: %w", m.FrameType(), sw.enc.Len(), ErrFrameTooLarge)
	}

	for _, f := range SplitFrames(m.FrameType(), sw.enc.Bytes()) {
		if err := WriteFrame(sw.w, f); err != nil {
			return err
		}
		sw.frames++
		sw.bytes += int64(FrameHeaderSize + len(f.Payload))
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	if m.FrameType() == FrameEnd {
		sw.ended = true
	}
	return nil
}

// Close writes End unless it has already been written.
func (sw *StreamWriter) Close() error {
	sw.mu.Lock()
	ended := sw.ended
	sw.mu.Unlock()
	if ended {
		return nil
	}
	return sw.Write(&End{})
}

// Ended reports whether End has been written.
func (sw *StreamWriter) Ended() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.ended
}

// Stats returns the number of frames and bytes written so far.
func (sw *StreamWriter) Stats() (frames int, bytes int64) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.frames, sw.bytes
}

// StreamReader decodes messages one at a time as their frames arrive.
type StreamReader struct {
	r     *bufio.Reader
	frame int
	head  bool
	ended bool
	err   error
}

// NewStreamReader returns a reader over r.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{r: bufio.NewReader(r)}
}

// Next returns the next message. After End it returns io.EOF. Any other
// failure is a *StreamError and is returned again by every later call.
//
// The first message must be a Head of a supported version. A continued
// frame must be followed by a frame of the same type.
func (sr *StreamReader) Next() (Message, error) {
	if sr.err != nil {
		return nil, sr.err
	}
	if sr.ended {
		return nil, io.EOF
	}

	ft, payload, err := sr.readMessage()
	if err != nil {
		return nil, sr.fail(err)
	}
	m, err := DecodeMessage(ft, payload)
	if err != nil {
		return nil, sr.fail(fmt.Errorf("%w: %v", ErrMalformedFrame, err))
	}

	if !sr.head {
		h, ok := m.(*Head)
		if !ok {
			return nil, sr.fail(fmt.Errorf("%w: got %s", ErrMissingHead, ft))
		}
		if h.Version != Version {
			return nil, sr.fail(fmt.Errorf("%w: %d", ErrVersion, h.Version))
		}
		sr.head = true
	}
	if ft == FrameEnd {
		sr.ended = true
	}
	return m, nil
}

func (sr *StreamReader) readMessage() (FrameType, []byte, error) {
	var (
		ft      FrameType
		payload []byte
	)
	for first := true; ; first = false {
		f, err := ReadFrame(sr.r)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				if first && errors.Is(err, io.EOF) {
					return 0, nil, ErrUnexpectedEnd
				}
				return 0, nil, fmt.Errorf("%w: %v", ErrUnexpectedEnd, err)
			}
			return 0, nil, err
		}
		if !f.Type.valid() {
			return 0, nil, fmt.Errorf("%w: unknown frame type 0x%02x", ErrMalformedFrame, uint8(f.Type))
		}
		if first {
			ft = f.Type
		} else if f.Type != ft {
			return 0, nil, fmt.Errorf("%w: %s frame inside continued %s message", ErrMalformedFrame, f.Type, ft)
		}
		if len(payload)+len(f.Payload) > MaxMessageSize {
			return 0, nil, fmt.Errorf("%w: %v", ErrMalformedFrame, ErrAllocationTooLarge)
		}
		if first && !f.Flags.Has(FlagContinued) {
			payload = f.Payload
		} else {
			payload = append(payload, f.Payload...)
		}
		sr.frame++
		if !f.Flags.Has(FlagContinued) {
			return ft, payload, nil
		}
	}
}

func (sr *StreamReader) fail(err error) error {
	sr.err = &StreamError{Frame: sr.frame, Err: err}
	return sr.err
}
