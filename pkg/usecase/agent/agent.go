package agent

import (
	"context"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/usecase/memory"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
)

// Response is one completed exchange
type Response struct {
	Answer         string
	ConversationID string
	Citations      []model.Citation

	// ShowSources reflects the topic relevance of the user's turn and
	// decides whether citations accompany the answer
	ShowSources bool
}

// Agent drives a conversation against the chat app, persisting each turn
// through the memory service when one is attached. A persistence failure
// disables memory for the remainder of the session instead of failing the
// exchange; a chat failure is returned to the caller.
type Agent struct {
	chat   adapter.Chat
	memory *memory.Service
	email  string

	userID         string
	conversationID string
	persistence    bool
}

type Option func(*Agent)

// WithMemory attaches conversational memory for the given user
func WithMemory(svc *memory.Service, email string) Option {
	return func(x *Agent) {
		x.memory = svc
		x.email = email
		x.persistence = svc != nil
	}
}

// New creates an agent session
func New(chat adapter.Chat, opts ...Option) *Agent {
	agent := &Agent{
		chat:   chat,
		userID: uuid.New().String(),
	}
	for _, opt := range opts {
		opt(agent)
	}
	return agent
}

// Send dispatches one user message and returns the assistant's reply
func (x *Agent) Send(ctx context.Context, message string) (*Response, error) {
	showSources := true
	if entry := x.persist(ctx, model.RoleUser, message); entry != nil {
		showSources = entry.TopicRelevant != model.TopicNo
	}

	reply, err := x.chat.SendMessage(ctx, message, x.conversationID, x.userID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to send chat message")
	}
	x.conversationID = reply.ConversationID

	x.persist(ctx, model.RoleAssistant, reply.Answer)

	return &Response{
		Answer:         reply.Answer,
		ConversationID: x.conversationID,
		Citations:      reply.Citations,
		ShowSources:    showSources,
	}, nil
}

// persist stores one turn. Store failures are logged and switch
// persistence off for the rest of the session.
func (x *Agent) persist(ctx context.Context, role model.Role, content string) *model.HistoryEntry {
	if !x.persistence {
		return nil
	}

	entry, err := x.memory.StoreMessage(ctx, x.email, role, content, x.conversationID)
	if err != nil {
		logging.From(ctx).Warn("disabling persistence for this session",
			"error", err, "email", x.email)
		x.persistence = false
		return nil
	}
	return entry
}

// ConversationID returns the current conversation identifier, empty until
// the first reply
func (x *Agent) ConversationID() string {
	return x.conversationID
}

// PersistenceEnabled reports whether turns are still being stored
func (x *Agent) PersistenceEnabled() bool {
	return x.persistence
}
