package protocol

import "fmt"

// Kind is the type of a wire node.
type Kind uint8

const (
	KindElement   Kind = 0x01
	KindText      Kind = 0x02
	KindFragment  Kind = 0x03
	KindRaw       Kind = 0x04 // pre-rendered HTML, not escaped
	KindOutlet    Kind = 0x05 // where the next segment attaches
	KindClientRef Kind = 0x06 // placeholder for a client module
)

const nullNode = 0xFF

func (k Kind) String() string {
	switch k {
	case KindElement:
		return "element"
	case KindText:
		return "text"
	case KindFragment:
		return "fragment"
	case KindRaw:
		return "raw"
	case KindOutlet:
		return "outlet"
	case KindClientRef:
		return "client-ref"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Node is the serialized form of a rendered segment tree.
//
// Text holds the content of text and raw nodes. A client-ref node names its
// module in Module and passes Attrs as props; its Children are the
// server-rendered fallback.
type Node struct {
	Kind     Kind
	Tag      string
	Attrs    map[string]string
	Children []*Node
	Text     string
	Module   string
}

// Element returns an element node.
func Element(tag string, attrs map[string]string, children ...*Node) *Node {
	return &Node{Kind: KindElement, Tag: tag, Attrs: attrs, Children: children}
}

// Text returns a text node.
func Text(s string) *Node {
	return &Node{Kind: KindText, Text: s}
}

// Fragment groups children without a wrapper element.
func Fragment(children ...*Node) *Node {
	return &Node{Kind: KindFragment, Children: children}
}

// Raw returns a node whose HTML is written as is.
func Raw(html string) *Node {
	return &Node{Kind: KindRaw, Text: html}
}

// Outlet marks the spot a child segment renders into.
func Outlet() *Node {
	return &Node{Kind: KindOutlet}
}

// ClientRef references a client module with string props.
func ClientRef(module string, props map[string]string, fallback ...*Node) *Node {
	return &Node{Kind: KindClientRef, Module: module, Attrs: props, Children: fallback}
}

// HasOutlet reports whether n or any descendant is an outlet.
func (n *Node) HasOutlet() bool {
	if n == nil {
		return false
	}
	if n.Kind == KindOutlet {
		return true
	}
	for _, c := range n.Children {
		if c.HasOutlet() {
			return true
		}
	}
	return false
}

// EncodeNode writes n. A nil node is written as a null marker.
func EncodeNode(e *Encoder, n *Node) {
	if n == nil {
		e.WriteByte(nullNode)
		return
	}
	e.WriteByte(byte(n.Kind))

	switch n.Kind {
	case KindElement:
		e.WriteString(n.Tag)
		e.WriteStringMap(n.Attrs)
		encodeChildren(e, n.Children)
	case KindText, KindRaw:
		e.WriteString(n.Text)
	case KindFragment:
		encodeChildren(e, n.Children)
	case KindOutlet:
	case KindClientRef:
		e.WriteString(n.Module)
		e.WriteStringMap(n.Attrs)
		encodeChildren(e, n.Children)
	}
}

func encodeChildren(e *Encoder, children []*Node) {
	e.WriteUvarint(uint64(len(children)))
	for _, c := range children {
		EncodeNode(e, c)
	}
}

// DecodeNode reads a node tree, rejecting trees deeper than MaxNodeDepth
// and unknown kinds.
func DecodeNode(d *Decoder) (*Node, error) {
	return decodeNode(d, 0)
}

func decodeNode(d *Decoder, depth int) (*Node, error) {
	if err := checkDepth(depth, MaxNodeDepth); err != nil {
		return nil, err
	}
	b, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	if b == nullNode {
		return nil, nil
	}

	n := &Node{Kind: Kind(b)}
	switch n.Kind {
	case KindElement:
		if n.Tag, err = d.ReadString(); err != nil {
			return nil, err
		}
		if n.Attrs, err = d.ReadStringMap(); err != nil {
			return nil, err
		}
		n.Children, err = decodeChildren(d, depth)
	case KindText, KindRaw:
		n.Text, err = d.ReadString()
	case KindFragment:
		n.Children, err = decodeChildren(d, depth)
	case KindOutlet:
	case KindClientRef:
		if n.Module, err = d.ReadString(); err != nil {
			return nil, err
		}
		if n.Attrs, err = d.ReadStringMap(); err != nil {
			return nil, err
		}
		n.Children, err = decodeChildren(d, depth)
	default:
		return nil, fmt.Errorf("protocol: unknown node kind 0x%02x", b)
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

func decodeChildren(d *Decoder, depth int) ([]*Node, error) {
	count, err := d.ReadCollectionCount()
	if err != nil || count == 0 {
		return nil, err
	}
	children := make([]*Node, count)
	for i := range children {
		if children[i], err = decodeNode(d, depth+1); err != nil {
			return nil, err
		}
	}
	return children, nil
}
