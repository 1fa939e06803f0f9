package protocol

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestMessageRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"head", &Head{Version: Version, Pathname: "/posts/42", Skipped: []string{"root", "posts"}}},
		{"segment", &Segment{
			Key:     "42",
			RouteID: "post",
			Depth:   2,
			Params:  map[string]string{"id": "42"},
			Node: Element("article", map[string]string{"class": "post"},
				Text("hello"),
				ClientRef("app/like-button", map[string]string{"id": "42"}, Text("Like")),
			),
		}},
		{"layout segment", &Segment{
			Key:     "posts",
			RouteID: "posts",
			Depth:   1,
			Node:    Fragment(Element("nav", nil), Outlet(), Raw("<hr>")),
		}},
		{"record", &Record{Key: "post:42", Value: json.RawMessage(`{"title":"Hi"}`)}},
		{"module", &ModuleRef{ID: "app/like-button", Chunks: []string{"/assets/like.js"}, Exports: []string{"default"}}},
		{"redirect", &Redirect{URL: "/login", Status: 303}},
		{"not found", &NotFound{Pathname: "/nope"}},
		{"error", NewFatalError(ErrRenderFailed, "boom")},
		{"end", &End{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			payload := EncodeMessage(tc.msg)
			got, err := DecodeMessage(tc.msg.FrameType(), payload)
			if err != nil {
				t.Fatalf("DecodeMessage() error = %v", err)
			}
			if !reflect.DeepEqual(got, tc.msg) {
				t.Errorf("round trip = %#v, want %#v", got, tc.msg)
			}
		})
	}
}

func TestDecodeMessageErrors(t *testing.T) {
	seg := EncodeMessage(&Segment{Key: "k", RouteID: "r", Node: Text("x")})

	tests := []struct {
		name    string
		ft      FrameType
		payload []byte
	}{
		{"unknown type", FrameType(0x30), nil},
		{"truncated", FrameSegment, seg[:len(seg)-1]},
		{"trailing bytes", FrameSegment, append(append([]byte{}, seg...), 0x00)},
		{"invalid json", FrameData, EncodeMessage(&Record{Key: "k", Value: json.RawMessage("{")})},
		{"bad bool", FrameError, []byte{0x00, 0x01, 0x00, 0x07}},
		{"unknown node kind", FrameSegment, []byte{0x00, 0x00, 0x00, 0x00, 0x42}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeMessage(tc.ft, tc.payload); err == nil {
				t.Error("DecodeMessage() error = nil, want error")
			}
		})
	}
}

func TestDecodeNodeDepthLimit(t *testing.T) {
	n := Text("leaf")
	for i := 0; i < MaxNodeDepth+1; i++ {
		n = Fragment(n)
	}
	e := NewEncoder()
	EncodeNode(e, n)

	_, err := DecodeNode(NewDecoder(e.Bytes()))
	if !errors.Is(err, ErrMaxDepthExceeded) {
		t.Errorf("DecodeNode() error = %v, want ErrMaxDepthExceeded", err)
	}
}

func TestStringMapEncodingIsDeterministic(t *testing.T) {
	a := map[string]string{"b": "2", "a": "1", "c": "3"}
	first := EncodeMessage(&Segment{Key: "k", Params: a})
	for i := 0; i < 20; i++ {
		if got := EncodeMessage(&Segment{Key: "k", Params: a}); string(got) != string(first) {
			t.Fatal("encoding of equal params differs between calls")
		}
	}
}

func TestHasOutlet(t *testing.T) {
	if !Element("main", nil, Fragment(Outlet())).HasOutlet() {
		t.Error("nested outlet not found")
	}
	if Element("main", nil, Text("x")).HasOutlet() {
		t.Error("outlet reported where none exists")
	}
}
