package rag

import "time"

// PageSuggestion points a visitor at a portfolio section relevant to their
// question.
type PageSuggestion struct {
	Title       string `json:"title"`
	Href        string `json:"href"`
	Description string `json:"description,omitempty"`
}

// PerformanceMetrics is the per-request timing breakdown. ModelTimeMs is
// derived as total minus retrieval and clamped at zero.
type PerformanceMetrics struct {
	TotalTimeMs     int64 `json:"total_time_ms"`
	RetrievalTimeMs int64 `json:"retrieval_time_ms"`
	ModelTimeMs     int64 `json:"model_time_ms"`
}

// newMetrics derives the timing breakdown for one finished query.
func newMetrics(total, retrieval time.Duration) *PerformanceMetrics {
	model := total - retrieval
	if model < 0 {
		model = 0
	}
	return &PerformanceMetrics{
		TotalTimeMs:     total.Milliseconds(),
		RetrievalTimeMs: retrieval.Milliseconds(),
		ModelTimeMs:     model.Milliseconds(),
	}
}

// QueryResult is the terminal aggregate of a blocking query.
type QueryResult struct {
	Answer         string              `json:"answer"`
	SuggestedPages []PageSuggestion    `json:"suggested_pages,omitempty"`
	Performance    *PerformanceMetrics `json:"performance,omitempty"`
}

// Fragment is one incremental piece of a streamed answer. A non-nil Err is
// terminal: it is always the last fragment delivered and is of type
// *StreamError.
type Fragment struct {
	Text string
	Err  error
}

// AgentConfig carries optional per-construction overrides of the configured
// defaults.
type AgentConfig struct {
	Model       string
	Temperature *float64 // within [0,2]
	TopK        int      // retrieval breadth, must be > 0 to take effect
}
