package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vango-dev/flight/pkg/protocol"
)

// ErrUnexpectedResponse is returned when the server does not answer with a
// segment stream.
var ErrUnexpectedResponse = errors.New("client: response is not a segment stream")

// Request is one fetch of a segment stream.
type Request struct {
	// URL is the logical target, a site-relative path with optional query.
	URL string

	// RouterState lists the segment keys already held, root first.
	RouterState []string

	// Action and Args make the request a mutation.
	Action string
	Args   json.RawMessage
}

// Response is an open segment stream. Redirect is the x-redirect header of
// a mutation: the stream renders that URL instead of the request URL.
type Response struct {
	Body     io.ReadCloser
	Redirect string
}

// Transport fetches segment streams.
type Transport interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// HTTPTransport fetches streams over plain HTTP requests.
type HTTPTransport struct {
	// BaseURL is the server origin, such as "http://localhost:3000".
	BaseURL string

	// Endpoint, when set, is requested for every navigation with the
	// target in x-navigate, instead of requesting the target itself.
	Endpoint string

	Client *http.Client
	Header http.Header
}

// NewHTTPTransport returns a transport for the server at baseURL.
func NewHTTPTransport(baseURL string) *HTTPTransport {
	return &HTTPTransport{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Client:  http.DefaultClient,
	}
}

// Do implements Transport.
func (t *HTTPTransport) Do(ctx context.Context, req Request) (*Response, error) {
	preq := protocol.Request{
		Component:   true,
		RouterState: req.RouterState,
	}
	if preq.RouterState == nil {
		preq.RouterState = []string{}
	}

	method, path := http.MethodGet, req.URL
	var body io.Reader
	if req.Action != "" {
		method = http.MethodPost
		preq.Mutation = true
		preq.Action = req.Action
		body = bytes.NewReader(req.Args)
	} else if t.Endpoint != "" {
		path = t.Endpoint
		preq.Navigate = req.URL
	}

	hreq, err := http.NewRequestWithContext(ctx, method, t.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	for k, v := range t.Header {
		hreq.Header[k] = v
	}
	if body != nil {
		hreq.Header.Set("Content-Type", "application/json")
	}
	preq.Apply(hreq)

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(hreq)
	if err != nil {
		return nil, err
	}
	if !protocol.AcceptsComponent(resp.Header.Get("Content-Type")) {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s %s: %s", ErrUnexpectedResponse, method, path, resp.Status)
	}
	return &Response{
		Body:     resp.Body,
		Redirect: resp.Header.Get(protocol.HeaderRedirect),
	}, nil
}
