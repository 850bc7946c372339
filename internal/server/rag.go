package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/amiinehachemi/portfolio-copilot/internal/rag"
)

var ragTracer = otel.Tracer("portfolio-copilot/server")

// QueryAgent is the slice of the agent the handlers need.
type QueryAgent interface {
	Query(ctx context.Context, question string) (rag.QueryResult, error)
	Stream(ctx context.Context, question string) (<-chan rag.Fragment, error)
}

// RAGHandler serves the retrieval-augmented query endpoints.
type RAGHandler struct {
	Agent   QueryAgent
	Logger  *log.Logger
	Metrics *Metrics
}

// Register mounts the handler routes on g.
func (h *RAGHandler) Register(g *echo.Group) {
	g.POST("/rag-stream", h.stream)
	g.POST("/rag", h.query)
}

type questionRequest struct {
	Question string `json:"question"`
}

// streamFrame is one server-sent event payload. Type is chunk, suggestions,
// done, or error.
type streamFrame struct {
	Type    string               `json:"type"`
	Content string               `json:"content,omitempty"`
	Pages   []rag.PageSuggestion `json:"pages,omitempty"`
	Message string               `json:"message,omitempty"`
}

func writeFrame(w http.ResponseWriter, flusher http.Flusher, frame streamFrame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// stream answers a question over a long-lived text/event-stream response.
// Validation and agent failures before the first byte map to HTTP statuses;
// once streaming has begun errors can only be signaled in-band with a
// terminal error frame.
func (h *RAGHandler) stream(c echo.Context) error {
	req := c.Request()
	ctx, span := ragTracer.Start(req.Context(), "RAGHandler.stream")
	defer span.End()
	c.SetRequest(req.WithContext(ctx))

	var body questionRequest
	if err := c.Bind(&body); err != nil || strings.TrimSpace(body.Question) == "" {
		span.SetStatus(codes.Error, "question required")
		h.Metrics.Queries.WithLabelValues("stream", "rejected").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, "Question is required")
	}
	span.SetAttributes(attribute.Int("question_length", len(body.Question)))

	start := time.Now()
	frames, err := h.Agent.Stream(ctx, body.Question)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.Logger.Printf("stream setup failed: %v", err)
		h.Metrics.Queries.WithLabelValues("stream", "error").Inc()
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to process request")
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		span.SetStatus(codes.Error, "streaming unsupported")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}

	for frag := range frames {
		if frag.Err != nil {
			span.RecordError(frag.Err)
			span.SetStatus(codes.Error, frag.Err.Error())
			h.Logger.Printf("stream failed mid-flight: %v", frag.Err)
			h.Metrics.Queries.WithLabelValues("stream", "error").Inc()
			h.Metrics.Duration.WithLabelValues("stream").Observe(time.Since(start).Seconds())
			_ = writeFrame(resp.Writer, flusher, streamFrame{Type: "error", Message: frag.Err.Error()})
			return nil
		}
		if err := writeFrame(resp.Writer, flusher, streamFrame{Type: "chunk", Content: frag.Text}); err != nil {
			// Consumer is gone; context cancellation stops the producer.
			return nil
		}
	}

	if ctx.Err() != nil {
		return nil
	}

	if pages := rag.Suggest(body.Question); len(pages) > 0 {
		if err := writeFrame(resp.Writer, flusher, streamFrame{Type: "suggestions", Pages: pages}); err != nil {
			return nil
		}
	}
	_ = writeFrame(resp.Writer, flusher, streamFrame{Type: "done"})

	h.Metrics.Queries.WithLabelValues("stream", "ok").Inc()
	h.Metrics.Duration.WithLabelValues("stream").Observe(time.Since(start).Seconds())
	return nil
}

// query answers a question in one blocking call and returns the aggregate
// result as JSON.
func (h *RAGHandler) query(c echo.Context) error {
	req := c.Request()
	ctx, span := ragTracer.Start(req.Context(), "RAGHandler.query")
	defer span.End()
	c.SetRequest(req.WithContext(ctx))

	var body questionRequest
	if err := c.Bind(&body); err != nil || strings.TrimSpace(body.Question) == "" {
		span.SetStatus(codes.Error, "question required")
		h.Metrics.Queries.WithLabelValues("query", "rejected").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, "Question is required")
	}
	span.SetAttributes(attribute.Int("question_length", len(body.Question)))

	start := time.Now()
	result, err := h.Agent.Query(ctx, body.Question)
	h.Metrics.Duration.WithLabelValues("query").Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.Logger.Printf("query failed: %v", err)
		h.Metrics.Queries.WithLabelValues("query", "error").Inc()
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to process request")
	}
	if result.Performance != nil {
		h.Metrics.Retrieval.Observe(float64(result.Performance.RetrievalTimeMs) / 1000)
	}

	h.Metrics.Queries.WithLabelValues("query", "ok").Inc()
	return c.JSON(http.StatusOK, result)
}
