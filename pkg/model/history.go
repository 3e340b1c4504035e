package model

import (
	"sort"
	"time"
)

// Role identifies the speaker of a conversation turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Topic relevance values attached to user turns. Anything else observed on
// the wire is normalized to TopicYes: the policy fails open toward showing
// supporting sources.
const (
	TopicYes = "yes"
	TopicNo  = "no"
)

// HistoryEntry is one summarized chat turn
type HistoryEntry struct {
	Timestamp      string `json:"timestamp"`
	Role           Role   `json:"role"`
	Summary        string `json:"summary"`
	ConversationID string `json:"conversation_id,omitempty"`

	// Set only for user turns
	TopicRelevant string `json:"topic_relevant,omitempty"`
}

// MemoryRecord is the logical per-user document serialized into a single
// knowledge segment. One record per email address.
type MemoryRecord struct {
	Email   string         `json:"email"`
	Name    string         `json:"name"`
	History []HistoryEntry `json:"history"`
}

// Now returns the canonical timestamp representation for new entries
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// parseTimestamp accepts the timestamp shapes found in stored records:
// RFC3339 (canonical) and RFC3339 with fractional seconds.
func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// SortHistory orders entries by ascending timestamp. When both timestamps
// parse they are compared as instants; otherwise the raw strings are
// compared, so unparseable values still sort deterministically.
func SortHistory(entries []HistoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		ti, okI := parseTimestamp(entries[i].Timestamp)
		tj, okJ := parseTimestamp(entries[j].Timestamp)
		if okI && okJ {
			return ti.Before(tj)
		}
		return entries[i].Timestamp < entries[j].Timestamp
	})
}
