package model

import (
	"encoding/json"
	"strings"
	"time"
)

// DecodeRecord parses raw segment content into a MemoryRecord. Stored
// content has accumulated several shapes over time, tried in this order:
//
//  1. canonical: {"email": ..., "name": ..., "history": [...]}
//  2. legacy flat: summary/role/timestamp fields on the top-level object,
//     treated as a single-entry history
//  3. anything unparseable or non-object: empty record
//
// DecodeRecord never fails. Each raw history item is coerced independently
// and malformed items are dropped rather than aborting the whole decode.
func DecodeRecord(raw string) *MemoryRecord {
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil || payload == nil {
		return &MemoryRecord{}
	}

	record := &MemoryRecord{
		Email: asString(payload["email"]),
		Name:  asString(payload["name"]),
	}

	if items, ok := payload["history"].([]any); ok {
		for _, item := range items {
			if entry, ok := coerceEntry(item); ok {
				record.History = append(record.History, entry)
			}
		}
		return record
	}

	// Legacy flat shape: the record itself is the entry
	if entry, ok := coerceEntry(payload); ok {
		record.History = append(record.History, entry)
	}
	return record
}

// Encode serializes the record into segment content
func (x *MemoryRecord) Encode() (string, error) {
	data, err := json.Marshal(x)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// coerceEntry converts one raw history item into a HistoryEntry. Field
// precedence per attribute:
//
//	summary:   "summary", then "content"
//	role:      "role", defaulting to user
//	timestamp: "timestamp" (string or epoch seconds), else now
//	topic:     "topic_relevant", then legacy "question_hie_related";
//	           kept only for user turns
//
// Non-object items are rejected.
func coerceEntry(item any) (HistoryEntry, bool) {
	data, ok := item.(map[string]any)
	if !ok {
		return HistoryEntry{}, false
	}

	summary := asString(data["summary"])
	if summary == "" {
		summary = asString(data["content"])
	}

	role := Role(asString(data["role"]))
	if role == "" {
		role = RoleUser
	}

	timestamp := asTimestamp(data["timestamp"])
	if timestamp == "" {
		timestamp = Now()
	}

	entry := HistoryEntry{
		Timestamp:      timestamp,
		Role:           role,
		Summary:        summary,
		ConversationID: asString(data["conversation_id"]),
	}

	if role == RoleUser {
		flag := asString(data["topic_relevant"])
		if flag == "" {
			flag = asString(data["question_hie_related"])
		}
		if flag != "" {
			entry.TopicRelevant = NormalizeTopicFlag(flag)
		}
	}

	return entry, true
}

// NormalizeTopicFlag maps a raw topic relevance value to TopicYes or
// TopicNo. Unknown values become TopicYes so sources are shown rather than
// hidden when the classifier misbehaves.
func NormalizeTopicFlag(raw string) string {
	if strings.ToLower(strings.TrimSpace(raw)) == TopicNo {
		return TopicNo
	}
	return TopicYes
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// asTimestamp normalizes a raw timestamp value to the canonical string
// form. Numeric values are epoch seconds left over from an early format
// and are rewritten as RFC3339 so all timestamps compare as one shape.
func asTimestamp(v any) string {
	switch ts := v.(type) {
	case string:
		return ts
	case float64:
		sec, frac := int64(ts), ts-float64(int64(ts))
		return epochToTimestamp(sec, int64(frac*1e9))
	default:
		return ""
	}
}

func epochToTimestamp(sec, nsec int64) string {
	return time.Unix(sec, nsec).UTC().Format(time.RFC3339)
}
