package retrieval

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sort"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"github.com/amiinehachemi/portfolio-copilot/config"
)

// Embedder turns query text into a vector for nearest-neighbor search.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// QdrantSearcher implements Searcher backed by a Qdrant collection of
// portfolio passages.
type QdrantSearcher struct {
	client     *qdrant.Client
	collection string
	embedder   Embedder
	logger     *log.Logger
}

// parseQdrantURL extracts host, port, and TLS flag from a Qdrant URL.
// Accepts forms like "https://host:6333", "http://host:6333", or "host:6334".
func parseQdrantURL(rawURL string) (host string, port int, useTLS bool, err error) {
	u, parseErr := url.Parse(rawURL)
	if parseErr != nil || u.Host == "" {
		return "", 0, false, fmt.Errorf("retrieval: invalid qdrant URL: %q", rawURL)
	}

	useTLS = u.Scheme == "https"
	host = u.Hostname()

	if portStr := u.Port(); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", 0, false, fmt.Errorf("retrieval: invalid port in qdrant URL: %q", portStr)
		}
		// If the user specified the REST port (6333), use the gRPC port (6334).
		if p == 6333 {
			port = 6334
		} else {
			port = p
		}
	} else {
		port = 6334
	}

	return host, port, useTLS, nil
}

// NewQdrantSearcher connects to the Qdrant server via gRPC.
func NewQdrantSearcher(cfg config.VectorConfig, embedder Embedder, logger *log.Logger) (*QdrantSearcher, error) {
	host, port, useTLS, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval: connect to qdrant at %s:%d: %w", host, port, err)
	}

	return &QdrantSearcher{
		client:     client,
		collection: cfg.Collection,
		embedder:   embedder,
		logger:     logger,
	}, nil
}

// Search embeds the query and returns the k nearest passages. An empty result
// set is returned as an empty slice, never as an error.
func (s *QdrantSearcher) Search(ctx context.Context, query string, k int) ([]Passage, error) {
	vecs, err := s.embedder.CreateEmbedding(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("retrieval: embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("retrieval: embedding provider returned no vector")
	}

	limit := uint64(k)
	scored, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQueryDense(vecs[0]),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval: qdrant query: %w", err)
	}

	passages := make([]Passage, 0, len(scored))
	for _, sp := range scored {
		p := Passage{Score: sp.Score, Metadata: map[string]string{}}
		for key, val := range sp.Payload {
			str := val.GetStringValue()
			if str == "" {
				continue
			}
			if key == "content" {
				p.Content = str
			} else {
				p.Metadata[key] = str
			}
		}
		if p.Content == "" {
			s.logger.Printf("qdrant point %s has no content payload, skipping", sp.Id)
			continue
		}
		passages = append(passages, p)
	}
	return passages, nil
}

// Healthy returns nil if Qdrant is reachable.
func (s *QdrantSearcher) Healthy(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("retrieval: qdrant unhealthy: %w", err)
	}
	return nil
}

// Close shuts down the Qdrant gRPC connection.
func (s *QdrantSearcher) Close() error {
	return s.client.Close()
}

// sortedKeys is used when rendering metadata so output is deterministic.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
