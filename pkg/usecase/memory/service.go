package memory

import (
	"context"
	"sync"

	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/model"
)

// defaultListLimit bounds the segment scan used to locate a user's record.
// Segments beyond this window are invisible to lookup, which is a known
// limitation of the store's pagination.
const defaultListLimit = 100

// Service persists summarized chat history, one knowledge segment per
// email. The store only supports list/create/delete of whole segments, so
// an update is a delete-then-create cycle. That cycle is not atomic:
// concurrent writers for the same email can lose an update or leave
// duplicate live segments. Correctness assumes one writer per email at a
// time.
type Service struct {
	knowledge  adapter.Knowledge
	summarizer adapter.Summarizer
	listLimit  int

	// Advisory cache of the last name observed per email. Not
	// authoritative across processes, cleared by DeleteUserData.
	mu    sync.Mutex
	names map[string]string
}

type Option func(*Service)

// WithSummarizer enables turn summarization. Without it every turn is
// stored with its raw content as the summary.
func WithSummarizer(s adapter.Summarizer) Option {
	return func(x *Service) {
		x.summarizer = s
	}
}

// WithListLimit overrides the segment lookup window
func WithListLimit(limit int) Option {
	return func(x *Service) {
		x.listLimit = limit
	}
}

// New creates a memory service on top of a knowledge store
func New(knowledge adapter.Knowledge, opts ...Option) *Service {
	svc := &Service{
		knowledge: knowledge,
		listLimit: defaultListLimit,
		names:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// findSegment locates the live segment for email within the bounded list
// window. A segment matches when its metadata email equals the target, or,
// for segments created before metadata was attached, when the email
// embedded in the decoded content matches. Returns nils when absent.
func (x *Service) findSegment(ctx context.Context, email string) (*adapter.Segment, *model.MemoryRecord, error) {
	segments, err := x.knowledge.ListSegments(ctx, x.listLimit, 0)
	if err != nil {
		return nil, nil, err
	}

	for _, segment := range segments {
		record := model.DecodeRecord(segment.Content)

		effectiveEmail := segment.Metadata.UserEmail
		if effectiveEmail == "" {
			effectiveEmail = record.Email
		}
		if effectiveEmail == email {
			return &segment, record, nil
		}
	}
	return nil, nil, nil
}

// KnownName returns the last name observed for email during StoreMessage
// or FetchUserHistory in this process. Advisory only.
func (x *Service) KnownName(email string) string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.names[email]
}

func (x *Service) rememberName(email, name string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.names[email] = name
}

func (x *Service) forgetName(email string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.names, email)
}
