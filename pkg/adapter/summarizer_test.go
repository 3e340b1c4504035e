package adapter_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/model"
)

func summaryServer(t *testing.T, answer string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		gt.Equal(t, r.Method, http.MethodPost)
		gt.Equal(t, r.URL.Path, "/v1/completion-messages")

		var body map[string]any
		gt.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gt.Equal(t, body["response_mode"], "blocking")
		gt.Equal(t, body["user"], "summary-agent")

		_ = json.NewEncoder(w).Encode(map[string]string{"answer": answer})
	}))
}

func TestSummarizeStrictJSON(t *testing.T) {
	server := summaryServer(t, `{"summary":"asked about cooling therapy","name":"Alice","question_hie_related":"yes"}`, nil)
	defer server.Close()

	client := adapter.NewSummarizer(server.URL, "key")
	result, err := client.Summarize(context.Background(), model.RoleUser, "tell me about cooling therapy, I'm Alice", "")
	gt.NoError(t, err)
	gt.Equal(t, result.Summary, "asked about cooling therapy")
	gt.Equal(t, result.Name, "Alice")
	gt.Equal(t, result.TopicRelevant, model.TopicYes)
}

func TestSummarizeFencedAnswer(t *testing.T) {
	answer := "```json\n{\"summary\":\"fenced\",\"name\":\"\",\"question_hie_related\":\"no\"}\n```"
	server := summaryServer(t, answer, nil)
	defer server.Close()

	client := adapter.NewSummarizer(server.URL, "key")
	result, err := client.Summarize(context.Background(), model.RoleUser, "what's the weather", "Bob")
	gt.NoError(t, err)
	gt.Equal(t, result.Summary, "fenced")
	// Empty detected name falls back to the existing one
	gt.Equal(t, result.Name, "Bob")
	gt.Equal(t, result.TopicRelevant, model.TopicNo)
}

func TestSummarizeNonJSONFallback(t *testing.T) {
	server := summaryServer(t, "Sorry, I cannot produce JSON today.", nil)
	defer server.Close()

	client := adapter.NewSummarizer(server.URL, "key")
	result, err := client.Summarize(context.Background(), model.RoleUser, "hello", "Bob")
	gt.NoError(t, err)
	gt.Equal(t, result.Summary, "Sorry, I cannot produce JSON today.")
	gt.Equal(t, result.Name, "Bob")
	gt.Equal(t, result.TopicRelevant, model.TopicYes)
}

func TestSummarizeTopicFlagNormalization(t *testing.T) {
	cases := map[string]string{
		`{"summary":"s","name":"","question_hie_related":"NO"}`:    model.TopicNo,
		`{"summary":"s","name":"","question_hie_related":"maybe"}`: model.TopicYes,
		`{"summary":"s","name":""}`:                                model.TopicYes,
	}

	for answer, expected := range cases {
		server := summaryServer(t, answer, nil)
		client := adapter.NewSummarizer(server.URL, "key")
		result, err := client.Summarize(context.Background(), model.RoleUser, "msg", "")
		gt.NoError(t, err)
		gt.Equal(t, result.TopicRelevant, expected)
		server.Close()
	}
}

func TestSummarizeEmptyMessageShortCircuits(t *testing.T) {
	var calls atomic.Int32
	server := summaryServer(t, "{}", &calls)
	defer server.Close()

	client := adapter.NewSummarizer(server.URL, "key")
	result, err := client.Summarize(context.Background(), model.RoleUser, "", "Alice")
	gt.NoError(t, err)
	gt.Equal(t, result.Summary, "")
	gt.Equal(t, result.Name, "Alice")
	gt.Equal(t, result.TopicRelevant, model.TopicYes)
	gt.Equal(t, calls.Load(), int32(0))
}

func TestSummarizeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := adapter.NewSummarizer(server.URL, "key")
	_, err := client.Summarize(context.Background(), model.RoleUser, "hello", "")
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, adapter.ErrTagSummarization))
	gt.True(t, goerr.HasTag(err, adapter.ErrTagRemoteStatus))
}

func TestSummarizeTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := adapter.NewSummarizer(server.URL, "key")
	_, err := client.Summarize(context.Background(), model.RoleUser, "hello", "")
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, adapter.ErrTagSummarization))
	gt.True(t, goerr.HasTag(err, adapter.ErrTagRemoteRequest))
}
