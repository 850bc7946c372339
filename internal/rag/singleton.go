package rag

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/amiinehachemi/portfolio-copilot/config"
)

// The server constructs its own Agent and passes it to handlers; this shared
// instance exists for programmatic callers (examples, one-shot CLI) that want
// the original lazy-singleton contract.
var (
	sharedMu    sync.RWMutex
	sharedAgent *Agent
	initGroup   singleflight.Group
)

// Init lazily constructs and caches one process-wide Agent. Concurrent first
// calls are collapsed so exactly one instance is built; every caller receives
// the identical agent. Configuration passed after the first successful call
// is ignored — the cached instance wins. Use New for a differently-configured
// instance.
func Init(cfg *config.Config, opts *AgentConfig) (*Agent, error) {
	sharedMu.RLock()
	a := sharedAgent
	sharedMu.RUnlock()
	if a != nil {
		return a, nil
	}

	v, err, _ := initGroup.Do("agent", func() (interface{}, error) {
		sharedMu.RLock()
		cached := sharedAgent
		sharedMu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		built, err := New(cfg, opts, nil)
		if err != nil {
			return nil, err
		}
		sharedMu.Lock()
		sharedAgent = built
		sharedMu.Unlock()
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Agent), nil
}

// Reset drops the cached agent so the next Init builds a fresh one. Useful
// for tests and reconfiguration.
func Reset() {
	sharedMu.Lock()
	sharedAgent = nil
	sharedMu.Unlock()
}

// Query is the direct non-streaming entry point: it initializes the shared
// agent on first use and runs one blocking query with the same grounding and
// suggestion semantics as the streaming path. Cold-start construction time is
// part of the reported total time.
func Query(ctx context.Context, question string, cfg *config.Config, opts *AgentConfig) (QueryResult, error) {
	start := time.Now()
	a, err := Init(cfg, opts)
	if err != nil {
		return QueryResult{}, &QueryError{Cause: err}
	}
	res, err := a.Query(ctx, question)
	if err != nil {
		return QueryResult{}, err
	}
	if res.Performance != nil {
		total := time.Since(start)
		res.Performance = newMetrics(total, time.Duration(res.Performance.RetrievalTimeMs)*time.Millisecond)
	}
	return res, nil
}
