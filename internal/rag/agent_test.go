package rag

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amiinehachemi/portfolio-copilot/internal/retrieval"
	"github.com/amiinehachemi/portfolio-copilot/provider"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// fakeProvider replays scripted responses and records every request it sees.
type fakeProvider struct {
	mu          sync.Mutex
	completions []provider.ChatResponse
	requests    []provider.ChatRequest

	streamDeltas []string
	streamErr    error
}

func (f *fakeProvider) ChatCompletion(ctx context.Context, req provider.ChatRequest) (provider.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if len(f.completions) == 0 {
		return provider.ChatResponse{}, errors.New("no scripted completion left")
	}
	resp := f.completions[0]
	f.completions = f.completions[1:]
	return resp, nil
}

func (f *fakeProvider) ChatStream(ctx context.Context, req provider.ChatRequest, fn func(delta string) error) error {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	deltas := f.streamDeltas
	f.mu.Unlock()
	for _, d := range deltas {
		if err := fn(d); err != nil {
			return err
		}
	}
	return f.streamErr
}

func (f *fakeProvider) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	return [][]float32{{0.1, 0.2}}, nil
}

// fakeSearcher returns a fixed result set or a fixed error.
type fakeSearcher struct {
	passages []retrieval.Passage
	err      error
}

func (f *fakeSearcher) Search(ctx context.Context, query string, k int) ([]retrieval.Passage, error) {
	return f.passages, f.err
}

func toolCallResponse() provider.ChatResponse {
	return provider.ChatResponse{
		ToolCalls: []provider.ToolCall{{
			ID:        "call_1",
			Name:      "search_knowledge_base",
			Arguments: `{"query":"key skills"}`,
		}},
	}
}

func TestQueryRunsToolLoop(t *testing.T) {
	fp := &fakeProvider{
		completions: []provider.ChatResponse{
			toolCallResponse(),
			{Content: "Amine works mostly in **Go** and distributed systems."},
		},
	}
	gw := retrieval.NewGateway(&fakeSearcher{passages: []retrieval.Passage{
		{Content: "Go, Kubernetes, and PostgreSQL are his daily tools."},
	}}, testLogger())
	a := newAgent(fp, gw, 5, 0.7, testLogger())

	res, err := a.Query(context.Background(), "What are Amine's key skills?")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if res.Answer != "Amine works mostly in **Go** and distributed systems." {
		t.Fatalf("unexpected answer: %q", res.Answer)
	}
	if len(res.SuggestedPages) == 0 || res.SuggestedPages[0].Href != "/skills-tools" {
		t.Fatalf("expected a skills page suggestion, got %+v", res.SuggestedPages)
	}
	if res.Performance == nil {
		t.Fatal("expected performance metrics")
	}
	if res.Performance.TotalTimeMs < 0 || res.Performance.RetrievalTimeMs < 0 || res.Performance.ModelTimeMs < 0 {
		t.Fatalf("negative timing: %+v", res.Performance)
	}

	if len(fp.requests) != 2 {
		t.Fatalf("expected 2 provider calls, got %d", len(fp.requests))
	}
	if len(fp.requests[0].Tools) != 1 || fp.requests[0].Tools[0].Name != "search_knowledge_base" {
		t.Fatalf("tool decision call missing search tool: %+v", fp.requests[0].Tools)
	}
	if len(fp.requests[1].Tools) != 0 {
		t.Fatal("final generation call must not offer tools")
	}

	var toolMsg *provider.Message
	for i, m := range fp.requests[1].Messages {
		if m.Role == provider.RoleTool {
			toolMsg = &fp.requests[1].Messages[i]
		}
	}
	if toolMsg == nil {
		t.Fatal("final call carries no tool result message")
	}
	if toolMsg.ToolCallID != "call_1" {
		t.Fatalf("tool result bound to wrong call: %q", toolMsg.ToolCallID)
	}
	if !strings.Contains(toolMsg.Content, "[Source 1]") {
		t.Fatalf("tool result not formatted as sources: %q", toolMsg.Content)
	}
}

func TestQueryDirectAnswerSkipsRetrieval(t *testing.T) {
	fp := &fakeProvider{completions: []provider.ChatResponse{{Content: "Hello! Ask me about Amine."}}}
	gw := retrieval.NewGateway(&fakeSearcher{err: errors.New("must not be called")}, testLogger())
	a := newAgent(fp, gw, 5, 0.7, testLogger())

	res, err := a.Query(context.Background(), "hi")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if res.Answer != "Hello! Ask me about Amine." {
		t.Fatalf("unexpected answer: %q", res.Answer)
	}
	if len(fp.requests) != 1 {
		t.Fatalf("expected a single provider call, got %d", len(fp.requests))
	}
	if res.Performance.RetrievalTimeMs != 0 {
		t.Fatalf("retrieval time should be zero without a lookup, got %d", res.Performance.RetrievalTimeMs)
	}
}

func TestQueryRetrievalFailureStillAnswers(t *testing.T) {
	fp := &fakeProvider{
		completions: []provider.ChatResponse{
			toolCallResponse(),
			{Content: "I could not reach the knowledge base, but here is what I can say."},
		},
	}
	gw := retrieval.NewGateway(&fakeSearcher{err: errors.New("qdrant down")}, testLogger())
	a := newAgent(fp, gw, 5, 0.7, testLogger())

	res, err := a.Query(context.Background(), "Where did Amine work?")
	if err != nil {
		t.Fatalf("retrieval failure must not fail the query: %v", err)
	}
	if res.Answer == "" {
		t.Fatal("expected a degraded answer")
	}

	var toolContent string
	for _, m := range fp.requests[1].Messages {
		if m.Role == provider.RoleTool {
			toolContent = m.Content
		}
	}
	want := "Error retrieving information: qdrant down"
	if !strings.Contains(toolContent, want) {
		t.Fatalf("tool message %q does not carry %q", toolContent, want)
	}
}

func TestStreamMatchesQuery(t *testing.T) {
	deltas := []string{"Amine ", "builds ", "backend ", "systems."}
	want := strings.Join(deltas, "")

	newFixture := func() *Agent {
		fp := &fakeProvider{
			completions: []provider.ChatResponse{
				toolCallResponse(),
				{Content: want},
			},
			streamDeltas: deltas,
		}
		gw := retrieval.NewGateway(&fakeSearcher{passages: []retrieval.Passage{{Content: "bio"}}}, testLogger())
		return newAgent(fp, gw, 5, 0.7, testLogger())
	}

	res, err := newFixture().Query(context.Background(), "What does Amine do?")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}

	frames, err := newFixture().Stream(context.Background(), "What does Amine do?")
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	var streamed strings.Builder
	for frag := range frames {
		if frag.Err != nil {
			t.Fatalf("unexpected terminal error: %v", frag.Err)
		}
		streamed.WriteString(frag.Text)
	}

	if streamed.String() != res.Answer {
		t.Fatalf("stream %q != query %q", streamed.String(), res.Answer)
	}
}

func TestStreamDeliversTerminalError(t *testing.T) {
	fp := &fakeProvider{
		completions:  []provider.ChatResponse{toolCallResponse()},
		streamDeltas: []string{"partial "},
		streamErr:    errors.New("connection reset"),
	}
	gw := retrieval.NewGateway(&fakeSearcher{passages: []retrieval.Passage{{Content: "bio"}}}, testLogger())
	a := newAgent(fp, gw, 5, 0.7, testLogger())

	frames, err := a.Stream(context.Background(), "What does Amine do?")
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}

	var got []Fragment
	for frag := range frames {
		got = append(got, frag)
	}
	if len(got) != 2 {
		t.Fatalf("expected partial fragment plus terminal error, got %d fragments", len(got))
	}
	if got[0].Text != "partial " || got[0].Err != nil {
		t.Fatalf("unexpected first fragment: %+v", got[0])
	}
	var streamErr *StreamError
	if !errors.As(got[1].Err, &streamErr) {
		t.Fatalf("terminal fragment error is %T, want *StreamError", got[1].Err)
	}
}

func TestStreamCancellationStopsProducer(t *testing.T) {
	deltas := make([]string, 100)
	for i := range deltas {
		deltas[i] = "x"
	}
	fp := &fakeProvider{
		completions:  []provider.ChatResponse{toolCallResponse()},
		streamDeltas: deltas,
	}
	gw := retrieval.NewGateway(&fakeSearcher{passages: []retrieval.Passage{{Content: "bio"}}}, testLogger())
	a := newAgent(fp, gw, 5, 0.7, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	frames, err := a.Stream(ctx, "What does Amine do?")
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}

	<-frames
	cancel()

	// The producer must close the channel without surfacing an error frame:
	// nobody is listening for one after cancellation.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case frag, ok := <-frames:
			if !ok {
				return
			}
			if frag.Err != nil {
				t.Fatalf("cancelled stream delivered error fragment: %v", frag.Err)
			}
		case <-deadline:
			t.Fatal("stream channel not closed after cancellation")
		}
	}
}

func TestQueryRejectsEmptyQuestion(t *testing.T) {
	a := newAgent(&fakeProvider{}, retrieval.NewGateway(&fakeSearcher{}, testLogger()), 5, 0.7, testLogger())

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := a.Query(context.Background(), q)
		if !errors.Is(err, ErrEmptyQuestion) {
			t.Fatalf("question %q: got %v, want ErrEmptyQuestion", q, err)
		}
		var qe *QueryError
		if !errors.As(err, &qe) {
			t.Fatalf("question %q: error is %T, want *QueryError", q, err)
		}
	}
}

func TestStreamRejectsEmptyQuestion(t *testing.T) {
	a := newAgent(&fakeProvider{}, retrieval.NewGateway(&fakeSearcher{}, testLogger()), 5, 0.7, testLogger())

	frames, err := a.Stream(context.Background(), "  ")
	if !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("got %v, want ErrEmptyQuestion", err)
	}
	if frames != nil {
		t.Fatal("no channel should be produced for a rejected question")
	}
}

func TestMetricsClampNegativeModelTime(t *testing.T) {
	m := newMetrics(10*time.Millisecond, 25*time.Millisecond)
	if m.ModelTimeMs != 0 {
		t.Fatalf("model time not clamped: %d", m.ModelTimeMs)
	}
	if m.TotalTimeMs != 10 || m.RetrievalTimeMs != 25 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
}
