package memory

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
)

// StoreMessage appends one summarized turn to the user's record and
// rewrites the backing segment. Empty content is a no-op and returns nil
// without any remote call. Store failures propagate to the caller;
// summarizer failures never do, the turn is stored with its raw content
// instead.
func (x *Service) StoreMessage(ctx context.Context, email string, role model.Role, content, conversationID string) (*model.HistoryEntry, error) {
	if content == "" {
		return nil, nil
	}

	segment, record, err := x.findSegment(ctx, email)
	if err != nil {
		return nil, err
	}

	var existingName string
	var history []model.HistoryEntry
	if record != nil {
		existingName = record.Name
		history = record.History
	}

	summary, detectedName, topicFlag := x.summarize(ctx, role, content, existingName)

	entry := model.HistoryEntry{
		Timestamp:      model.Now(),
		Role:           role,
		Summary:        summary,
		ConversationID: conversationID,
	}
	if role == model.RoleUser {
		entry.TopicRelevant = topicFlag
	}
	history = append(history, entry)

	mergedName := detectedName
	if mergedName == "" {
		mergedName = existingName
	}
	x.rememberName(email, mergedName)

	updated := &model.MemoryRecord{
		Email:   email,
		Name:    mergedName,
		History: history,
	}
	encoded, err := updated.Encode()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode memory record", goerr.V("email", email))
	}

	// Replace is delete-then-create: the store has no atomic update. A
	// segment deleted by a concurrent writer reports 404 on delete, which
	// counts as success.
	if segment != nil {
		if err := x.knowledge.DeleteSegment(ctx, segment.ID); err != nil {
			return nil, goerr.Wrap(err, "failed to delete stale segment", goerr.V("email", email))
		}
	}
	if _, err := x.knowledge.CreateSegment(ctx, encoded, email); err != nil {
		return nil, goerr.Wrap(err, "failed to create segment", goerr.V("email", email))
	}

	return &entry, nil
}

// summarize runs the summarizer when configured. Any summarizer failure
// degrades to storing the raw content with the topic flag failing open,
// so a broken summarization app never blocks the exchange.
func (x *Service) summarize(ctx context.Context, role model.Role, content, existingName string) (summary, name, topicFlag string) {
	if x.summarizer == nil {
		return content, existingName, model.TopicYes
	}

	result, err := x.summarizer.Summarize(ctx, role, content, existingName)
	if err != nil {
		logging.From(ctx).Warn("summarizer failed, storing raw content", "error", err)
		return content, existingName, model.TopicYes
	}

	summary = result.Summary
	if summary == "" {
		summary = content
	}
	name = result.Name
	if name == "" {
		name = existingName
	}
	return summary, name, model.NormalizeTopicFlag(result.TopicRelevant)
}
