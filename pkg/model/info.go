package model

// StoredInfo summarizes what is persisted for one user
type StoredInfo struct {
	HasData          bool     `json:"has_data"`
	Name             string   `json:"name"`
	MessageCount     int      `json:"message_count"`
	FirstInteraction string   `json:"first_interaction,omitempty"`
	LastInteraction  string   `json:"last_interaction,omitempty"`
	SampleTopics     []string `json:"sample_topics,omitempty"`
}

// BuildStoredInfo derives the stored-data summary from a decoded record.
// Interaction bounds use the same ordering as SortHistory; sample topics
// are the last (up to) three user-turn summaries.
func BuildStoredInfo(record *MemoryRecord) *StoredInfo {
	info := &StoredInfo{
		HasData:      true,
		Name:         record.Name,
		MessageCount: len(record.History),
	}

	sorted := make([]HistoryEntry, len(record.History))
	copy(sorted, record.History)
	SortHistory(sorted)

	var topics []string
	for _, entry := range sorted {
		if entry.Timestamp != "" {
			if info.FirstInteraction == "" {
				info.FirstInteraction = entry.Timestamp
			}
			info.LastInteraction = entry.Timestamp
		}
		if entry.Role == RoleUser && entry.Summary != "" {
			topics = append(topics, entry.Summary)
		}
	}
	if len(topics) > 3 {
		topics = topics[len(topics)-3:]
	}
	info.SampleTopics = topics

	return info
}
