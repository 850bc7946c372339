package client

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle phase of a Chat conversation turn.
type State int

const (
	// StateIdle means no request is in flight and a new question can be sent.
	StateIdle State = iota
	// StateSending means a request has been issued but no answer content has
	// arrived yet.
	StateSending
	// StateStreamingAnswer means answer fragments are arriving.
	StateStreamingAnswer
	// StateSettledSuccess means the last turn completed with a terminal done
	// frame.
	StateSettledSuccess
	// StateSettledError means the last turn ended in an error; an apology
	// message stands in for the answer.
	StateSettledError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreamingAnswer:
		return "streaming"
	case StateSettledSuccess:
		return "settled"
	case StateSettledError:
		return "failed"
	default:
		return "unknown"
	}
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in the chat transcript.
type Message struct {
	ID             string
	Role           Role
	Content        string
	Timestamp      time.Time
	SuggestedPages []PageSuggestion
	Streaming      bool
}

const (
	emptyAnswerFallback = "I apologize, but I couldn't generate a response. Please try rephrasing your question."
	errorFallback       = "I apologize, but I encountered an error while processing your request. Please try again, or feel free to explore the portfolio pages directly."
)

// errSettled stops frame consumption once a terminal frame has been handled.
var errSettled = errors.New("stream settled")

// Chat maintains a conversation transcript against the copilot server. One
// question is in flight at a time; Send while busy is a no-op. Safe for
// concurrent use.
type Chat struct {
	client *Client

	mu       sync.Mutex
	state    State
	messages []Message

	// OnUpdate, if set, is invoked (without the lock held) after every
	// transcript or state mutation. Set it before the first Send.
	OnUpdate func()
}

// NewChat creates an idle Chat backed by c.
func NewChat(c *Client) *Chat {
	return &Chat{client: c, state: StateIdle}
}

// State returns the current lifecycle state.
func (ch *Chat) State() State {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.state
}

// Busy reports whether a question is currently in flight.
func (ch *Chat) Busy() bool {
	s := ch.State()
	return s == StateSending || s == StateStreamingAnswer
}

// Messages returns a snapshot of the transcript.
func (ch *Chat) Messages() []Message {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	out := make([]Message, len(ch.messages))
	copy(out, ch.messages)
	return out
}

// Send submits a question and blocks until the turn settles. It returns false
// without side effects when the question is blank or another question is still
// in flight. Transport failures and in-band error frames both settle the turn
// with an apology message rather than an error: the transcript always ends in
// a well-formed state.
func (ch *Chat) Send(ctx context.Context, question string) bool {
	question = strings.TrimSpace(question)
	if question == "" {
		return false
	}

	ch.mu.Lock()
	if ch.state == StateSending || ch.state == StateStreamingAnswer {
		ch.mu.Unlock()
		return false
	}
	now := time.Now()
	ch.messages = append(ch.messages,
		Message{ID: uuid.NewString(), Role: RoleUser, Content: question, Timestamp: now},
		Message{ID: uuid.NewString(), Role: RoleAssistant, Timestamp: now, Streaming: true},
	)
	assistantID := ch.messages[len(ch.messages)-1].ID
	ch.state = StateSending
	ch.mu.Unlock()
	ch.notify()

	var (
		pages   []PageSuggestion
		settled bool
	)
	err := ch.client.StreamQuestion(ctx, question, func(f Frame) error {
		switch f.Type {
		case "chunk":
			if f.Content == "" {
				return nil
			}
			ch.mu.Lock()
			ch.appendContent(assistantID, f.Content)
			ch.state = StateStreamingAnswer
			ch.mu.Unlock()
			ch.notify()
		case "suggestions":
			pages = f.Pages
		case "done":
			ch.settle(assistantID, pages)
			settled = true
			return errSettled
		case "error":
			ch.fail(assistantID)
			settled = true
			return errSettled
		}
		return nil
	})
	switch {
	case settled:
		// Terminal frame already handled; err is errSettled.
	case err != nil:
		ch.fail(assistantID) // transport failure
	default:
		// Connection closed before a terminal frame. Premature termination
		// is not success.
		ch.fail(assistantID)
	}
	return true
}

// appendContent concatenates a fragment onto the message with the given id.
// Caller holds ch.mu.
func (ch *Chat) appendContent(id, content string) {
	for i := range ch.messages {
		if ch.messages[i].ID == id {
			ch.messages[i].Content += content
			return
		}
	}
}

// settle finalizes the assistant message after a done frame, substituting a
// fallback when the stream carried no content.
func (ch *Chat) settle(id string, pages []PageSuggestion) {
	ch.mu.Lock()
	for i := range ch.messages {
		if ch.messages[i].ID != id {
			continue
		}
		if strings.TrimSpace(ch.messages[i].Content) == "" {
			ch.messages[i].Content = emptyAnswerFallback
		}
		ch.messages[i].SuggestedPages = pages
		ch.messages[i].Streaming = false
		break
	}
	ch.state = StateSettledSuccess
	ch.mu.Unlock()
	ch.notify()
}

// fail finalizes the assistant message with an apology after an error frame or
// a transport failure.
func (ch *Chat) fail(id string) {
	ch.mu.Lock()
	for i := range ch.messages {
		if ch.messages[i].ID != id {
			continue
		}
		ch.messages[i].Content = errorFallback
		ch.messages[i].Streaming = false
		break
	}
	ch.state = StateSettledError
	ch.mu.Unlock()
	ch.notify()
}

func (ch *Chat) notify() {
	if ch.OnUpdate != nil {
		ch.OnUpdate()
	}
}
