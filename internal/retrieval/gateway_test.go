package retrieval

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
)

type stubSearcher struct {
	passages []Passage
	err      error

	gotQuery string
	gotK     int
}

func (s *stubSearcher) Search(ctx context.Context, query string, k int) ([]Passage, error) {
	s.gotQuery = query
	s.gotK = k
	return s.passages, s.err
}

func discard() *log.Logger { return log.New(io.Discard, "", 0) }

func TestLookupFormatsPassages(t *testing.T) {
	s := &stubSearcher{passages: []Passage{
		{Content: "Senior backend engineer at Intelswift.", Metadata: map[string]string{"section": "experience", "page": "/experience"}},
		{Content: "Works daily with Go and Kubernetes."},
	}}
	g := NewGateway(s, discard())

	text, elapsed := g.Lookup(context.Background(), "where does he work", 5)
	if elapsed < 0 {
		t.Fatalf("negative duration: %v", elapsed)
	}
	if s.gotQuery != "where does he work" || s.gotK != 5 {
		t.Fatalf("search called with (%q, %d)", s.gotQuery, s.gotK)
	}

	if !strings.HasPrefix(text, "Retrieved 2 relevant document(s):") {
		t.Fatalf("missing header: %q", text)
	}
	for _, want := range []string{
		"[Source 1]\nSenior backend engineer at Intelswift.",
		"[Source 2]\nWorks daily with Go and Kubernetes.",
		"\n\n---\n\n",
		"Metadata: page=/experience section=experience",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("formatted block missing %q:\n%s", want, text)
		}
	}
}

func TestLookupNoResults(t *testing.T) {
	g := NewGateway(&stubSearcher{}, discard())

	text, _ := g.Lookup(context.Background(), "anything", 5)
	if text != NoResultsText {
		t.Fatalf("got %q, want the no-results sentinel", text)
	}
}

func TestLookupSearchFailure(t *testing.T) {
	g := NewGateway(&stubSearcher{err: errors.New("connection refused")}, discard())

	text, _ := g.Lookup(context.Background(), "anything", 5)
	want := "Error retrieving information: connection refused"
	if text != want {
		t.Fatalf("got %q, want %q", text, want)
	}
}

func TestParseQdrantURL(t *testing.T) {
	cases := []struct {
		in      string
		host    string
		port    int
		useTLS  bool
		wantErr bool
	}{
		{in: "http://localhost:6333", host: "localhost", port: 6334},
		{in: "https://qdrant.example.com:6333", host: "qdrant.example.com", port: 6334, useTLS: true},
		{in: "http://qdrant:6334", host: "qdrant", port: 6334},
		{in: "https://qdrant.example.com:443", host: "qdrant.example.com", port: 443, useTLS: true},
		{in: "http://qdrant", host: "qdrant", port: 6334},
		{in: "not a url", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		host, port, useTLS, err := parseQdrantURL(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", tc.in, err)
		}
		if host != tc.host || port != tc.port || useTLS != tc.useTLS {
			t.Fatalf("%q: got (%s, %d, %v)", tc.in, host, port, useTLS)
		}
	}
}
