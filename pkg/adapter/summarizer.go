package adapter

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
)

//go:embed prompt/summarize.md
var summarizePromptRaw string

var summarizePromptTmpl = template.Must(template.New("summarize").Parse(summarizePromptRaw))

// Summary is the structured result of summarizing one chat turn
type Summary struct {
	Summary string `json:"summary"`
	Name    string `json:"name"`

	// Wire field name is fixed by the summarization app schema
	TopicRelevant string `json:"question_hie_related"`
}

// Summarizer turns raw message text into a structured summary
type Summarizer interface {
	Summarize(ctx context.Context, role model.Role, message, existingName string) (*Summary, error)
}

type summarizerClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewSummarizer creates a summarizer backed by a text completion app
func NewSummarizer(baseURL, apiKey string) Summarizer {
	return &summarizerClient{
		endpoint: strings.TrimSuffix(baseURL, "/") + "/v1/completion-messages",
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type summarizePromptArgs struct {
	ExistingName string
	Role         model.Role
	Message      string
}

func (x *summarizerClient) Summarize(ctx context.Context, role model.Role, message, existingName string) (*Summary, error) {
	if message == "" {
		return &Summary{Name: existingName, TopicRelevant: model.TopicYes}, nil
	}

	nameLabel := existingName
	if nameLabel == "" {
		nameLabel = `""`
	}

	var prompt bytes.Buffer
	if err := summarizePromptTmpl.Execute(&prompt, summarizePromptArgs{
		ExistingName: nameLabel,
		Role:         role,
		Message:      message,
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to render summarize prompt", goerr.T(ErrTagSummarization))
	}

	payload := map[string]any{
		"inputs": map[string]string{
			"query":         prompt.String(),
			"role":          string(role),
			"message":       message,
			"existing_name": nameLabel,
		},
		"query":         prompt.String(),
		"response_mode": "blocking",
		"user":          "summary-agent",
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal summarize payload", goerr.T(ErrTagSummarization))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create summarize request", goerr.T(ErrTagSummarization))
	}
	req.Header.Set("Authorization", "Bearer "+x.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "summarize request failed",
			goerr.T(ErrTagSummarization), goerr.T(ErrTagRemoteRequest))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read summarize response",
			goerr.T(ErrTagSummarization), goerr.T(ErrTagRemoteRequest))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, goerr.New("summarize request failed",
			goerr.T(ErrTagSummarization), goerr.T(ErrTagRemoteStatus),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(body)),
		)
	}

	var result struct {
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, goerr.Wrap(err, "failed to decode summarize response",
			goerr.T(ErrTagSummarization), goerr.T(ErrTagRemoteRequest))
	}

	return parseSummary(ctx, result.Answer, existingName), nil
}

// parseSummary extracts the structured summary from the raw completion
// answer. The app is instructed to reply with strict JSON, but replies
// wrapped in a markdown fence or in plain prose still occur: the fence is
// stripped, and a reply that does not decode falls back to using the
// cleaned text as the summary with the topic flag failing open.
func parseSummary(ctx context.Context, answer, fallbackName string) *Summary {
	cleaned := stripCodeFence(strings.TrimSpace(answer))
	if cleaned == "" {
		return &Summary{Name: fallbackName, TopicRelevant: model.TopicYes}
	}

	var payload Summary
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		logging.From(ctx).Warn("summarizer returned non-JSON answer, using raw text", "answer", answer)
		return &Summary{Summary: cleaned, Name: fallbackName, TopicRelevant: model.TopicYes}
	}

	if payload.Name == "" {
		payload.Name = fallbackName
	}
	payload.TopicRelevant = model.NormalizeTopicFlag(payload.TopicRelevant)
	return &payload
}

// stripCodeFence removes a surrounding markdown code fence, including an
// optional language hint on the opening line
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 && !strings.ContainsAny(s[:idx], "{}") {
		// Drop the language hint line (e.g. "json")
		s = s[idx+1:]
	}
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
