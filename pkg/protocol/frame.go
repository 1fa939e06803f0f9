package protocol

import (
	"errors"
	"io"
)

const (
	// FrameHeaderSize is the size of the frame header in bytes.
	FrameHeaderSize = 4

	// MaxPayloadSize is the largest payload one frame carries. Bigger
	// messages are split over continued frames.
	MaxPayloadSize = 65535
)

// FrameType identifies the message a frame carries.
type FrameType uint8

const (
	FrameHead     FrameType = 0x01 // stream header
	FrameSegment  FrameType = 0x02 // one rendered route segment
	FrameData     FrameType = 0x03 // rehydration record
	FrameModule   FrameType = 0x04 // client module reference
	FrameRedirect FrameType = 0x05 // render ended in a redirect
	FrameNotFound FrameType = 0x06 // render ended in not-found
	FrameError    FrameType = 0x07 // render or action failed
	FrameEnd      FrameType = 0x08 // stream complete
)

// String returns the frame type name.
func (ft FrameType) String() string {
	switch ft {
	case FrameHead:
		return "Head"
	case FrameSegment:
		return "Segment"
	case FrameData:
		return "Data"
	case FrameModule:
		return "Module"
	case FrameRedirect:
		return "Redirect"
	case FrameNotFound:
		return "NotFound"
	case FrameError:
		return "Error"
	case FrameEnd:
		return "End"
	default:
		return "Unknown"
	}
}

func (ft FrameType) valid() bool {
	return ft >= FrameHead && ft <= FrameEnd
}

// FrameFlags modify how a frame is read.
type FrameFlags uint8

const (
	// FlagContinued means the next frame carries more of the same message.
	FlagContinued FrameFlags = 0x01
)

// Has reports whether ff contains flag.
func (ff FrameFlags) Has(flag FrameFlags) bool {
	return ff&flag != 0
}

var ErrFrameTooLarge = errors.New("protocol: frame payload too large")

// Frame is one chunk on the wire.
//
//	┌─────────────┬──────────────┬───────────────────────────────┐
//	│ Frame Type  │ Flags        │ Payload Length                │
//	│ (1 byte)    │ (1 byte)     │ (2 bytes, big-endian)         │
//	└─────────────┴──────────────┴───────────────────────────────┘
//	│  Payload (variable length)                                  │
//	└─────────────────────────────────────────────────────────────┘
type Frame struct {
	Type    FrameType
	Flags   FrameFlags
	Payload []byte
}

// Encode returns the frame header followed by the payload.
func (f *Frame) Encode() []byte {
	length := len(f.Payload)
	buf := make([]byte, FrameHeaderSize+length)
	buf[0] = byte(f.Type)
	buf[1] = byte(f.Flags)
	buf[2] = byte(length >> 8)
	buf[3] = byte(length)
	copy(buf[FrameHeaderSize:], f.Payload)
	return buf
}

// DecodeFrame decodes one frame from data, which must hold the header and
// the full payload.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) < FrameHeaderSize {
		return nil, io.ErrUnexpectedEOF
	}
	length := int(data[2])<<8 | int(data[3])
	if len(data) < FrameHeaderSize+length {
		return nil, io.ErrUnexpectedEOF
	}
	payload := make([]byte, length)
	copy(payload, data[FrameHeaderSize:FrameHeaderSize+length])
	return &Frame{
		Type:    FrameType(data[0]),
		Flags:   FrameFlags(data[1]),
		Payload: payload,
	}, nil
}

// ReadFrame reads one frame. A clean end before the header returns io.EOF;
// a partial header or payload returns io.ErrUnexpectedEOF.
func ReadFrame(r io.Reader) (*Frame, error) {
	var header [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	length := int(header[2])<<8 | int(header[3])
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
	return &Frame{
		Type:    FrameType(header[0]),
		Flags:   FrameFlags(header[1]),
		Payload: payload,
	}, nil
}

// WriteFrame writes one frame.
func WriteFrame(w io.Writer, f *Frame) error {
	if len(f.Payload) > MaxPayloadSize {
		return ErrFrameTooLarge
	}
	_, err := w.Write(f.Encode())
	return err
}

// SplitFrames cuts a message payload into frames of at most MaxPayloadSize
// bytes. Every frame but the last carries FlagContinued. An empty payload
// yields one empty frame.
func SplitFrames(ft FrameType, payload []byte) []*Frame {
	if len(payload) <= MaxPayloadSize {
		return []*Frame{{Type: ft, Payload: payload}}
	}
	frames := make([]*Frame, 0, len(payload)/MaxPayloadSize+1)
	for len(payload) > MaxPayloadSize {
		frames = append(frames, &Frame{Type: ft, Flags: FlagContinued, Payload: payload[:MaxPayloadSize]})
		payload = payload[MaxPayloadSize:]
	}
	return append(frames, &Frame{Type: ft, Payload: payload})
}
