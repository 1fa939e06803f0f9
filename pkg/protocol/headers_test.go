package protocol

import (
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestParseRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/_flight", nil)
	r.Header.Set("Accept", "text/html;q=0.9, text/x-component")
	r.Header.Set("X-Navigate", "/posts/42")
	r.Header.Set("X-Router-State", `["root","posts"]`)

	req := ParseRequest(r)
	want := Request{Component: true, Navigate: "/posts/42", RouterState: []string{"root", "posts"}}
	if !reflect.DeepEqual(req, want) {
		t.Errorf("ParseRequest() = %+v, want %+v", req, want)
	}
}

func TestParseRequestMalformedRouterState(t *testing.T) {
	r := httptest.NewRequest("POST", "/", nil)
	r.Header.Set("X-Router-State", `["root",`)
	r.Header.Set("X-Mutation", "1")
	r.Header.Set("X-Action", "like")

	req := ParseRequest(r)
	if req.RouterState != nil {
		t.Errorf("RouterState = %v, want nil", req.RouterState)
	}
	if !req.Mutation || req.Action != "like" || req.Component {
		t.Errorf("ParseRequest() = %+v", req)
	}
}

func TestRequestApply(t *testing.T) {
	in := Request{Component: true, Navigate: "/a", RouterState: []string{"root"}, Mutation: true, Action: "save"}
	r := httptest.NewRequest("POST", "/a", nil)
	in.Apply(r)

	if got := ParseRequest(r); !reflect.DeepEqual(got, in) {
		t.Errorf("ParseRequest(Apply(x)) = %+v, want %+v", got, in)
	}
	if got := r.Header.Get(HeaderRouterState); got != `["root"]` {
		t.Errorf("router state header = %q", got)
	}
}

func TestAcceptsComponent(t *testing.T) {
	tests := map[string]bool{
		"text/x-component":                true,
		"TEXT/X-COMPONENT; charset=utf-8": true,
		"text/html, text/x-component":     true,
		"text/html":                       false,
		"":                                false,
	}
	for accept, want := range tests {
		if got := AcceptsComponent(accept); got != want {
			t.Errorf("AcceptsComponent(%q) = %v, want %v", accept, got, want)
		}
	}
}
