package model

import "fmt"

// Citation is a supporting source attached to a chat reply. Citations are
// derived per response and never persisted.
type Citation struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
}

// citationKeys are the reply metadata keys known to carry citation-like
// payloads, scanned in this order. Dify has shipped several of them across
// versions.
var citationKeys = []string{
	"citations",
	"citation",
	"context",
	"contexts",
	"knowledge",
	"knowledge_context",
	"knowledge_contents",
	"retriever_resources",
}

// ragKeys are scanned one level down, under the "rag" section
var ragKeys = []string{"citations", "contexts"}

// NormalizeCitations converts heterogeneous reply metadata into canonical
// citation triples, deduplicated by (title, snippet) with first-seen order
// preserved.
func NormalizeCitations(metadata map[string]any) []Citation {
	if metadata == nil {
		return nil
	}

	var candidates []any
	for _, key := range citationKeys {
		if value := metadata[key]; !isEmpty(value) {
			candidates = append(candidates, value)
		}
	}
	if rag, ok := metadata["rag"].(map[string]any); ok {
		for _, key := range ragKeys {
			if value := rag[key]; !isEmpty(value) {
				candidates = append(candidates, value)
			}
		}
	}

	var normalized []Citation
	for _, candidate := range candidates {
		normalized = append(normalized, normalizeCandidate(candidate)...)
	}

	type dedupKey struct{ title, snippet string }
	seen := map[dedupKey]struct{}{}
	var unique []Citation
	for _, entry := range normalized {
		key := dedupKey{entry.Title, entry.Snippet}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, entry)
	}
	return unique
}

// normalizeCandidate flattens one matched payload. A candidate may be a
// list of items, a map wrapping a list under "data", a single map, or a
// bare scalar.
func normalizeCandidate(candidate any) []Citation {
	var items []any
	switch v := candidate.(type) {
	case []any:
		items = v
	case map[string]any:
		if data, ok := v["data"].([]any); ok {
			items = data
		} else {
			items = []any{v}
		}
	default:
		if isEmpty(v) {
			return nil
		}
		items = []any{v}
	}

	citations := make([]Citation, 0, len(items))
	for _, item := range items {
		data, ok := item.(map[string]any)
		if !ok {
			citations = append(citations, Citation{Snippet: fmt.Sprintf("%v", item)})
			continue
		}
		citations = append(citations, Citation{
			Title:   firstString(data, "document_name", "title", "dataset_name", "source", "provider_name"),
			Snippet: firstString(data, "content", "text", "segment_content"),
			Source:  firstString(data, "url", "link", "document_id", "segment_id"),
		})
	}
	return citations
}

// firstString returns the first non-empty string value among keys
func firstString(data map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := asString(data[key]); s != "" {
			return s
		}
	}
	return ""
}

func isEmpty(v any) bool {
	switch value := v.(type) {
	case nil:
		return true
	case string:
		return value == ""
	case []any:
		return len(value) == 0
	case map[string]any:
		return len(value) == 0
	default:
		return false
	}
}
