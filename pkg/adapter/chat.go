package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
)

// Reply is one assistant answer with its supporting metadata
type Reply struct {
	Answer         string
	ConversationID string
	Citations      []model.Citation
	Metadata       map[string]any
}

// Chat is the interface for the conversational app
type Chat interface {
	// SendMessage dispatches one user message. Passing the conversation
	// ID from a previous reply keeps the session cohesive.
	SendMessage(ctx context.Context, message, conversationID, user string) (*Reply, error)
}

type chatClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewChat creates a chat app client
func NewChat(baseURL, apiKey string) Chat {
	return &chatClient{
		endpoint: strings.TrimSuffix(baseURL, "/") + "/v1/chat-messages",
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (x *chatClient) SendMessage(ctx context.Context, message, conversationID, user string) (*Reply, error) {
	payload := map[string]any{
		"inputs":          map[string]string{},
		"query":           message,
		"response_mode":   "blocking",
		"conversation_id": conversationID,
		"user":            user,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal chat payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create chat request")
	}
	req.Header.Set("Authorization", "Bearer "+x.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "chat request failed", goerr.T(ErrTagRemoteRequest))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read chat response", goerr.T(ErrTagRemoteRequest))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, goerr.New("chat request failed",
			goerr.T(ErrTagRemoteStatus),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(body)),
		)
	}

	var result struct {
		Answer         string         `json:"answer"`
		ConversationID string         `json:"conversation_id"`
		Metadata       map[string]any `json:"metadata"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, goerr.Wrap(err, "failed to decode chat response", goerr.T(ErrTagRemoteRequest))
	}

	if result.ConversationID == "" {
		result.ConversationID = conversationID
	}

	return &Reply{
		Answer:         result.Answer,
		ConversationID: result.ConversationID,
		Citations:      model.NormalizeCitations(result.Metadata),
		Metadata:       result.Metadata,
	}, nil
}
