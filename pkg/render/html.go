package render

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/vango-dev/flight/pkg/protocol"
	"github.com/vango-dev/flight/pkg/rehydrate"
)

// Document holds the parts of the HTML shell around the rendered segments.
type Document struct {
	Lang  string
	Title string
	// Head is raw HTML appended to <head>.
	Head string
	// ClientScript is the src of the module script that boots the client.
	ClientScript string
}

// HTMLWriter turns a segment stream into an HTML document for requests that
// did not ask for one.
//
// Each segment is cut at its outlet. The part before the outlet is written
// and flushed as soon as the segment arrives; the part after it is held
// until End, so the child segment lands inside its parent. Rehydration data
// and module preloads are written ahead of the segment that produced them.
//
// Nothing is written until the first segment, so a redirect or not-found
// that arrives earlier can still set the status code.
type HTMLWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	doc     Document

	queue   *rehydrate.Queue
	modules []protocol.ModuleRef
	closers []string

	started bool
	done    bool
	status  int
}

// NewHTMLWriter returns a writer over w.
func NewHTMLWriter(w http.ResponseWriter, doc Document) *HTMLWriter {
	flusher, _ := w.(http.Flusher)
	if doc.Lang == "" {
		doc.Lang = "en"
	}
	return &HTMLWriter{w: w, flusher: flusher, doc: doc, queue: rehydrate.NewQueue()}
}

// Status returns the status code sent, or 0 before anything was written.
func (h *HTMLWriter) Status() int { return h.status }

// Write implements Emitter.
func (h *HTMLWriter) Write(m protocol.Message) error {
	if h.done {
		return nil
	}
	switch m := m.(type) {
	case *protocol.Head:
	case *protocol.Record:
		h.queue.Write(*m)
	case *protocol.ModuleRef:
		h.modules = append(h.modules, *m)
	case *protocol.Segment:
		if err := h.start(http.StatusOK); err != nil {
			return err
		}
		before, after := SplitAtOutlet(m.Node)
		if err := h.writePending(); err != nil {
			return err
		}
		if _, err := io.WriteString(h.w, before); err != nil {
			return err
		}
		h.closers = append(h.closers, after)
		return h.flush()
	case *protocol.Redirect:
		if !h.started {
			status := m.Status
			if status < 300 || status > 399 {
				status = http.StatusSeeOther
			}
			h.w.Header().Set("Location", m.URL)
			h.w.WriteHeader(status)
			h.status, h.done = status, true
			return nil
		}
		url, _ := json.Marshal(m.URL)
		if _, err := fmt.Fprintf(h.w, "<script>location.replace(%s)</script>", url); err != nil {
			return err
		}
		return h.flush()
	case *protocol.NotFound:
		if err := h.start(http.StatusNotFound); err != nil {
			return err
		}
		_, err := io.WriteString(h.w, `<main data-flight-status="404"><h1>Not Found</h1></main>`)
		return err
	case *protocol.ErrorMessage:
		if err := h.start(http.StatusInternalServerError); err != nil {
			return err
		}
		_, err := fmt.Fprintf(h.w, `<template data-flight-error="%s">%s</template>`,
			escapeAttr(m.Code.String()), escapeHTML(m.Message))
		return err
	case *protocol.End:
		return h.end()
	}
	return nil
}

func (h *HTMLWriter) start(status int) error {
	if h.started {
		return nil
	}
	h.started, h.status = true, status
	h.w.Header().Set("Content-Type", "text/html; charset=utf-8")
	h.w.WriteHeader(status)

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n")
	fmt.Fprintf(&b, "<html lang=\"%s\">\n<head>\n<meta charset=\"utf-8\">\n", escapeAttr(h.doc.Lang))
	if h.doc.Title != "" {
		fmt.Fprintf(&b, "<title>%s</title>\n", escapeHTML(h.doc.Title))
	}
	b.WriteString(h.doc.Head)
	b.WriteString("</head>\n<body>\n")
	if _, err := io.WriteString(h.w, b.String()); err != nil {
		return err
	}
	return h.flush()
}

// flush writes pending module preloads and data, then flushes.
func (h *HTMLWriter) flush() error {
	if err := h.writePending(); err != nil {
		return err
	}
	if h.flusher != nil {
		h.flusher.Flush()
	}
	return nil
}

func (h *HTMLWriter) writePending() error {
	var b strings.Builder
	for _, ref := range h.modules {
		for _, chunk := range ref.Chunks {
			fmt.Fprintf(&b, `<link rel="modulepreload" href="%s">`, escapeAttr(chunk))
		}
	}
	h.modules = nil
	b.WriteString(h.queue.Script())
	if b.Len() == 0 {
		return nil
	}
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *HTMLWriter) end() error {
	if err := h.start(http.StatusOK); err != nil {
		return err
	}
	for i := len(h.closers) - 1; i >= 0; i-- {
		if _, err := io.WriteString(h.w, h.closers[i]); err != nil {
			return err
		}
	}
	h.closers = nil
	if h.doc.ClientScript != "" {
		if _, err := fmt.Fprintf(h.w, `<script type="module" src="%s"></script>`, escapeAttr(h.doc.ClientScript)); err != nil {
			return err
		}
	}
	if err := h.flush(); err != nil {
		return err
	}
	h.done = true
	_, err := io.WriteString(h.w, "\n</body>\n</html>\n")
	if h.flusher != nil {
		h.flusher.Flush()
	}
	return err
}

// SplitAtOutlet renders n to HTML and cuts it at the first outlet. Without
// an outlet, after is "".
func SplitAtOutlet(n *protocol.Node) (before, after string) {
	hw := &htmlWriter{}
	hw.node(n)
	if !hw.split {
		return hw.before.String(), ""
	}
	return hw.before.String(), hw.after.String()
}

// RenderHTML renders n to HTML. Outlets render as nothing.
func RenderHTML(n *protocol.Node) string {
	before, after := SplitAtOutlet(n)
	return before + after
}

type htmlWriter struct {
	before strings.Builder
	after  strings.Builder
	split  bool
}

func (hw *htmlWriter) cur() *strings.Builder {
	if hw.split {
		return &hw.after
	}
	return &hw.before
}

func (hw *htmlWriter) node(n *protocol.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case protocol.KindElement:
		hw.element(n.Tag, n.Attrs, n.Children)
	case protocol.KindText:
		hw.cur().WriteString(escapeHTML(n.Text))
	case protocol.KindRaw:
		hw.cur().WriteString(n.Text)
	case protocol.KindFragment:
		for _, c := range n.Children {
			hw.node(c)
		}
	case protocol.KindOutlet:
		hw.split = true
	case protocol.KindClientRef:
		attrs := map[string]string{"data-module": n.Module}
		if len(n.Attrs) > 0 {
			props, _ := json.Marshal(n.Attrs)
			attrs["data-props"] = string(props)
		}
		hw.element("flight-ref", attrs, n.Children)
	}
}

func (hw *htmlWriter) element(tag string, attrs map[string]string, children []*protocol.Node) {
	b := hw.cur()
	b.WriteByte('<')
	b.WriteString(tag)

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := attrs[k]
		if isBooleanAttr(k) {
			if v == "false" {
				continue
			}
			if v == "" || v == "true" || v == k {
				b.WriteByte(' ')
				b.WriteString(k)
				continue
			}
		}
		fmt.Fprintf(b, ` %s="%s"`, k, escapeAttr(v))
	}
	b.WriteByte('>')
	if isVoidElement(tag) {
		return
	}
	for _, c := range children {
		hw.node(c)
	}
	// The outlet may have moved output to the after half.
	b = hw.cur()
	b.WriteString("</")
	b.WriteString(tag)
	b.WriteByte('>')
}

func escapeHTML(s string) string {
	return escape(s, false)
}

// escapeAttr also escapes whitespace that would break attribute parsing.
func escapeAttr(s string) string {
	return escape(s, true)
}

func escape(s string, attr bool) string {
	if !strings.ContainsAny(s, "&<>\"'\n\r\t") {
		return s
	}
	var buf strings.Builder
	buf.Grow(len(s) + 8)
	for _, r := range s {
		switch r {
		case '&':
			buf.WriteString("&amp;")
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		case '"':
			buf.WriteString("&quot;")
		case '\'':
			buf.WriteString("&#39;")
		case '\n', '\r', '\t':
			if attr {
				fmt.Fprintf(&buf, "&#%d;", r)
			} else {
				buf.WriteRune(r)
			}
		default:
			buf.WriteRune(r)
		}
	}
	return buf.String()
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

func isVoidElement(tag string) bool { return voidElements[tag] }

var booleanAttrs = map[string]bool{
	"allowfullscreen": true, "async": true, "autofocus": true, "autoplay": true,
	"checked": true, "controls": true, "default": true, "defer": true,
	"disabled": true, "formnovalidate": true, "hidden": true, "ismap": true,
	"itemscope": true, "loop": true, "multiple": true, "muted": true,
	"nomodule": true, "novalidate": true, "open": true, "playsinline": true,
	"readonly": true, "required": true, "reversed": true, "selected": true,
}

func isBooleanAttr(name string) bool { return booleanAttrs[name] }
