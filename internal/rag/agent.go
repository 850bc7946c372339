package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/amiinehachemi/portfolio-copilot/config"
	"github.com/amiinehachemi/portfolio-copilot/internal/retrieval"
	"github.com/amiinehachemi/portfolio-copilot/provider"
)

const systemPrompt = `You are a helpful assistant that answers questions about Amine Hachemi's professional background based on information retrieved from a knowledge base.

When answering questions:
1. Use the search_knowledge_base tool to find relevant information
2. Base your answers strictly on the retrieved information
3. If the retrieved information doesn't contain the answer, say so clearly
4. Cite sources when possible
5. Be concise and accurate

Format answers as structured Markdown: use headers for sections, **bold** for key terms, bullet lists for enumerations, and backtick code spans for technology names.`

const searchToolName = "search_knowledge_base"

// fragmentBuffer bounds the stream channel between the producer pulling
// provider deltas and the consumer forwarding frames.
const fragmentBuffer = 16

// Agent binds the language model, the retrieval gateway, and the system
// instructions needed to answer portfolio questions. It is safe for
// concurrent use.
type Agent struct {
	provider    provider.Provider
	gateway     *retrieval.Gateway
	topK        int
	temperature float64
	logger      *log.Logger
}

// New constructs an Agent from the application configuration, with optional
// per-construction overrides. A missing model credential fails here with a
// *ConfigurationError, synchronously and before any retrieval work.
func New(cfg *config.Config, opts *AgentConfig, logger *log.Logger) (*Agent, error) {
	llmCfg := cfg.LLM
	if opts != nil {
		if opts.Model != "" {
			llmCfg.Model = opts.Model
		}
		if opts.Temperature != nil {
			llmCfg.Temperature = *opts.Temperature
		}
	}
	if llmCfg.APIKey == "" {
		return nil, &ConfigurationError{Missing: "OPENAI_API_KEY"}
	}

	p, err := provider.NewProvider(provider.Client(llmCfg.Type), llmCfg)
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}

	if logger == nil {
		logger = log.New(log.Writer(), "[AGENT] ", log.LstdFlags)
	}

	searcher, err := retrieval.NewQdrantSearcher(cfg.Vector, p, logger)
	if err != nil {
		return nil, fmt.Errorf("vector index: %w", err)
	}

	topK := cfg.Retrieval.TopK
	if opts != nil && opts.TopK > 0 {
		topK = opts.TopK
	}

	return &Agent{
		provider:    p,
		gateway:     retrieval.NewGateway(searcher, logger),
		topK:        topK,
		temperature: llmCfg.Temperature,
		logger:      logger,
	}, nil
}

// newAgent wires an Agent from pre-built collaborators. Used by tests and by
// callers that manage their own provider and gateway.
func newAgent(p provider.Provider, gw *retrieval.Gateway, topK int, temperature float64, logger *log.Logger) *Agent {
	if logger == nil {
		logger = log.New(log.Writer(), "[AGENT] ", log.LstdFlags)
	}
	if topK <= 0 {
		topK = 5
	}
	return &Agent{provider: p, gateway: gw, topK: topK, temperature: temperature, logger: logger}
}

func (a *Agent) searchTool() provider.Tool {
	return provider.Tool{
		Name:        searchToolName,
		Description: "Search the knowledge base for relevant information to answer user questions. Use this tool when you need to find specific information from the stored documents.",
		Parameters: provider.FunctionSchema(map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query to find relevant information",
			},
		}, "query"),
	}
}

// run drives one question through the two-phase tool loop shared by Query and
// Stream. Phase one is a blocking tool-decision completion: if the model asks
// for the retrieval tool, each call is executed against the gateway with its
// wall-clock duration accumulated into the returned retrieval time, and no
// fragments are produced. Phase two generates the grounded answer; when emit
// is non-nil it streams, otherwise it blocks. Both paths see the same message
// sequence, so their answers agree up to model non-determinism.
func (a *Agent) run(ctx context.Context, question string, emit func(string) error) (string, time.Duration, error) {
	msgs := []provider.Message{
		{Role: provider.RoleSystem, Content: systemPrompt},
		{Role: provider.RoleUser, Content: question},
	}

	var retrievalTime time.Duration

	decision, err := a.provider.ChatCompletion(ctx, provider.ChatRequest{
		Messages:    msgs,
		Tools:       []provider.Tool{a.searchTool()},
		Temperature: &a.temperature,
	})
	if err != nil {
		return "", retrievalTime, fmt.Errorf("tool decision: %w", err)
	}

	if len(decision.ToolCalls) == 0 {
		// The model answered without consulting the index.
		if emit != nil && decision.Content != "" {
			if err := emit(decision.Content); err != nil {
				return "", retrievalTime, err
			}
		}
		return decision.Content, retrievalTime, nil
	}

	msgs = append(msgs, provider.Message{Role: provider.RoleAssistant, ToolCalls: decision.ToolCalls})
	for _, tc := range decision.ToolCalls {
		query := question
		var args struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal([]byte(tc.Arguments), &args); err == nil && args.Query != "" {
			query = args.Query
		}
		text, elapsed := a.gateway.Lookup(ctx, query, a.topK)
		retrievalTime += elapsed
		msgs = append(msgs, provider.Message{
			Role:       provider.RoleTool,
			Content:    text,
			ToolCallID: tc.ID,
		})
	}

	final := provider.ChatRequest{Messages: msgs, Temperature: &a.temperature}
	if emit != nil {
		var full strings.Builder
		err := a.provider.ChatStream(ctx, final, func(delta string) error {
			full.WriteString(delta)
			return emit(delta)
		})
		if err != nil {
			return "", retrievalTime, fmt.Errorf("generation: %w", err)
		}
		return full.String(), retrievalTime, nil
	}

	resp, err := a.provider.ChatCompletion(ctx, final)
	if err != nil {
		return "", retrievalTime, fmt.Errorf("generation: %w", err)
	}
	return resp.Content, retrievalTime, nil
}

// Query answers a question in one blocking call. Agent construction time is
// charged to the caller, so cold-start cost shows up in total time. The result
// carries page suggestions and the per-request timing breakdown; on failure a
// wrapped *QueryError is returned and never a partial answer.
func (a *Agent) Query(ctx context.Context, question string) (QueryResult, error) {
	if strings.TrimSpace(question) == "" {
		return QueryResult{}, &QueryError{Cause: ErrEmptyQuestion}
	}

	start := time.Now()
	answer, retrievalTime, err := a.run(ctx, question, nil)
	if err != nil {
		return QueryResult{}, &QueryError{Cause: err}
	}

	return QueryResult{
		Answer:         answer,
		SuggestedPages: Suggest(question),
		Performance:    newMetrics(time.Since(start), retrievalTime),
	}, nil
}

// Stream answers a question as an ordered sequence of fragments on a bounded
// channel. The tool phase yields no fragments. The channel is closed after
// the final fragment; a mid-stream provider failure is delivered as one
// terminal fragment whose Err is a *StreamError. Cancelling ctx stops the
// producer promptly, so an abandoned consumer costs no further provider
// calls.
func (a *Agent) Stream(ctx context.Context, question string) (<-chan Fragment, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	out := make(chan Fragment, fragmentBuffer)
	go func() {
		defer close(out)

		emit := func(delta string) error {
			select {
			case out <- Fragment{Text: delta}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if _, _, err := a.run(ctx, question, emit); err != nil {
			if ctx.Err() != nil {
				return // consumer is gone, nobody to tell
			}
			select {
			case out <- Fragment{Err: &StreamError{Cause: err}}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}
