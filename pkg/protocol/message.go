package protocol

import (
	"encoding/json"
	"fmt"
)

// Version is the stream format version written in every Head.
const Version = 1

// Message is a decoded frame payload.
type Message interface {
	FrameType() FrameType
	encode(e *Encoder)
}

// Head opens every stream. Skipped lists the segment keys the server left
// out because the client already holds them.
type Head struct {
	Version  uint64
	Pathname string
	Skipped  []string
}

// Segment is one rendered route level. Depth is the index of the match in
// the full match list, so a receiver can attach it below its cached parent.
type Segment struct {
	Key     string
	RouteID string
	Depth   int
	Params  map[string]string
	Node    *Node
}

// Record is one rehydration entry on the data channel.
type Record struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// ModuleRef tells the client which chunks to load for a client module.
type ModuleRef struct {
	ID      string   `json:"id"`
	Chunks  []string `json:"chunks"`
	Exports []string `json:"exports,omitempty"`
}

// Redirect ends a render that decided to send the client elsewhere.
type Redirect struct {
	URL    string
	Status int
}

// NotFound ends a render with no matching route, or a component that
// reported the resource missing.
type NotFound struct {
	Pathname string
}

// End closes a stream.
type End struct{}

func (*Head) FrameType() FrameType      { return FrameHead }
func (*Segment) FrameType() FrameType   { return FrameSegment }
func (*Record) FrameType() FrameType    { return FrameData }
func (*ModuleRef) FrameType() FrameType { return FrameModule }
func (*Redirect) FrameType() FrameType  { return FrameRedirect }
func (*NotFound) FrameType() FrameType  { return FrameNotFound }
func (*End) FrameType() FrameType       { return FrameEnd }

func (h *Head) encode(e *Encoder) {
	e.WriteUvarint(h.Version)
	e.WriteString(h.Pathname)
	e.WriteStrings(h.Skipped)
}

func (s *Segment) encode(e *Encoder) {
	e.WriteString(s.Key)
	e.WriteString(s.RouteID)
	e.WriteUvarint(uint64(s.Depth))
	e.WriteStringMap(s.Params)
	EncodeNode(e, s.Node)
}

func (r *Record) encode(e *Encoder) {
	e.WriteString(r.Key)
	e.WriteLenBytes(r.Value)
}

func (m *ModuleRef) encode(e *Encoder) {
	e.WriteString(m.ID)
	e.WriteStrings(m.Chunks)
	e.WriteStrings(m.Exports)
}

func (r *Redirect) encode(e *Encoder) {
	e.WriteString(r.URL)
	e.WriteUvarint(uint64(r.Status))
}

func (n *NotFound) encode(e *Encoder) {
	e.WriteString(n.Pathname)
}

func (*End) encode(*Encoder) {}

// EncodeMessage returns the payload bytes of m, without frame headers.
func EncodeMessage(m Message) []byte {
	e := NewEncoder()
	m.encode(e)
	return e.Bytes()
}

// DecodeMessage decodes a payload of frame type ft. Unknown types and
// trailing bytes are errors.
func DecodeMessage(ft FrameType, payload []byte) (Message, error) {
	d := NewDecoder(payload)
	var (
		m   Message
		err error
	)
	switch ft {
	case FrameHead:
		m, err = decodeHead(d)
	case FrameSegment:
		m, err = decodeSegment(d)
	case FrameData:
		m, err = decodeRecord(d)
	case FrameModule:
		m, err = decodeModuleRef(d)
	case FrameRedirect:
		m, err = decodeRedirect(d)
	case FrameNotFound:
		var p string
		if p, err = d.ReadString(); err == nil {
			m = &NotFound{Pathname: p}
		}
	case FrameError:
		m, err = decodeErrorMessage(d)
	case FrameEnd:
		m = &End{}
	default:
		return nil, fmt.Errorf("protocol: unknown frame type 0x%02x", uint8(ft))
	}
	if err != nil {
		return nil, fmt.Errorf("protocol: decode %s: %w", ft, err)
	}
	if err := d.done(); err != nil {
		return nil, fmt.Errorf("protocol: decode %s: %w", ft, err)
	}
	return m, nil
}

func decodeHead(d *Decoder) (*Head, error) {
	var h Head
	var err error
	if h.Version, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	if h.Pathname, err = d.ReadString(); err != nil {
		return nil, err
	}
	if h.Skipped, err = d.ReadStrings(); err != nil {
		return nil, err
	}
	return &h, nil
}

func decodeSegment(d *Decoder) (*Segment, error) {
	var s Segment
	var err error
	if s.Key, err = d.ReadString(); err != nil {
		return nil, err
	}
	if s.RouteID, err = d.ReadString(); err != nil {
		return nil, err
	}
	depth, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	if depth > MaxNodeDepth {
		return nil, ErrMaxDepthExceeded
	}
	s.Depth = int(depth)
	if s.Params, err = d.ReadStringMap(); err != nil {
		return nil, err
	}
	if s.Node, err = DecodeNode(d); err != nil {
		return nil, err
	}
	return &s, nil
}

func decodeRecord(d *Decoder) (*Record, error) {
	key, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	value, err := d.ReadLenBytes()
	if err != nil {
		return nil, err
	}
	if !json.Valid(value) {
		return nil, fmt.Errorf("record %q: value is not valid JSON", key)
	}
	return &Record{Key: key, Value: value}, nil
}

func decodeModuleRef(d *Decoder) (*ModuleRef, error) {
	var m ModuleRef
	var err error
	if m.ID, err = d.ReadString(); err != nil {
		return nil, err
	}
	if m.Chunks, err = d.ReadStrings(); err != nil {
		return nil, err
	}
	if m.Exports, err = d.ReadStrings(); err != nil {
		return nil, err
	}
	return &m, nil
}

func decodeRedirect(d *Decoder) (*Redirect, error) {
	url, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	status, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	return &Redirect{URL: url, Status: int(status)}, nil
}
