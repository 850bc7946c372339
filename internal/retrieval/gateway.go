package retrieval

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// Passage is one retrieved chunk of portfolio text with its source metadata.
type Passage struct {
	Content  string
	Metadata map[string]string
	Score    float32
}

// Searcher finds the k passages most relevant to a query. Implementations
// must return an empty slice (not an error) when nothing matches, so callers
// can distinguish "no results" from "search failed".
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]Passage, error)
}

// NoResultsText is the sentinel returned when the index holds nothing relevant.
const NoResultsText = "No relevant information found in the knowledge base."

// Gateway formats retrieval output for the language model. Failures are
// converted into descriptive text so generation can still proceed with a
// degraded answer instead of aborting the query.
type Gateway struct {
	searcher Searcher
	logger   *log.Logger
}

// NewGateway creates a retrieval gateway over the given searcher.
func NewGateway(searcher Searcher, logger *log.Logger) *Gateway {
	if logger == nil {
		logger = log.New(log.Writer(), "[RETRIEVAL] ", log.LstdFlags)
	}
	return &Gateway{searcher: searcher, logger: logger}
}

// Lookup searches the index for the top k passages and renders them as a
// single text block. The returned duration is the wall-clock time of the
// search call, reported per request for telemetry.
func (g *Gateway) Lookup(ctx context.Context, query string, k int) (string, time.Duration) {
	start := time.Now()
	passages, err := g.searcher.Search(ctx, query, k)
	elapsed := time.Since(start)

	if err != nil {
		g.logger.Printf("search failed: %v", err)
		return fmt.Sprintf("Error retrieving information: %v", err), elapsed
	}
	if len(passages) == 0 {
		return NoResultsText, elapsed
	}
	return formatPassages(passages), elapsed
}

// formatPassages renders passages as numbered source blocks for the prompt.
func formatPassages(passages []Passage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Retrieved %d relevant document(s):\n\n", len(passages))
	for i, p := range passages {
		if i > 0 {
			b.WriteString("\n\n---\n\n")
		}
		fmt.Fprintf(&b, "[Source %d]\n%s", i+1, p.Content)
		if len(p.Metadata) > 0 {
			b.WriteString("\nMetadata:")
			for _, key := range sortedKeys(p.Metadata) {
				fmt.Fprintf(&b, " %s=%s", key, p.Metadata[key])
			}
		}
	}
	return b.String()
}
