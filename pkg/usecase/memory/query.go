package memory

import (
	"context"

	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
)

// FetchUserHistory returns every stored entry for email, oldest first.
// It scans up to limit segments (the service default when limit is zero or
// negative), decodes each, and flattens the histories of those owned by
// email. An absent document yields an empty history, not an error.
func (x *Service) FetchUserHistory(ctx context.Context, email string, limit int) ([]model.HistoryEntry, error) {
	if limit <= 0 {
		limit = x.listLimit
	}

	segments, err := x.knowledge.ListSegments(ctx, limit, 0)
	if err != nil {
		return nil, err
	}

	var combined []model.HistoryEntry
	for _, segment := range segments {
		record := model.DecodeRecord(segment.Content)

		effectiveEmail := segment.Metadata.UserEmail
		if effectiveEmail == "" {
			effectiveEmail = record.Email
		}
		if effectiveEmail != email {
			continue
		}

		if record.Name != "" {
			x.rememberName(email, record.Name)
		}
		combined = append(combined, record.History...)
	}

	model.SortHistory(combined)

	logging.From(ctx).Debug("fetched user history",
		"email", email, "entries", len(combined))
	return combined, nil
}

// DeleteUserData removes the user's segment and purges the cached name.
// Returns false when no data existed.
func (x *Service) DeleteUserData(ctx context.Context, email string) (bool, error) {
	segment, _, err := x.findSegment(ctx, email)
	if err != nil {
		return false, err
	}
	if segment == nil {
		return false, nil
	}

	if err := x.knowledge.DeleteSegment(ctx, segment.ID); err != nil {
		return false, err
	}
	x.forgetName(email)
	return true, nil
}

// StoredInfo reports what is persisted for email without returning the
// full history
func (x *Service) StoredInfo(ctx context.Context, email string) (*model.StoredInfo, error) {
	segment, record, err := x.findSegment(ctx, email)
	if err != nil {
		return nil, err
	}
	if segment == nil {
		return &model.StoredInfo{}, nil
	}
	return model.BuildStoredInfo(record), nil
}
