package adapter

import "github.com/m-mizutani/goerr/v2"

// Error tags distinguish the failure classes of remote calls. Store
// operations propagate both remote tags to the caller; summarization
// failures are always recovered locally by the memory usecase.
var (
	// ErrTagRemoteRequest marks transport-layer failures (timeout,
	// connection refused) on any remote call.
	ErrTagRemoteRequest = goerr.NewTag("remote_request")

	// ErrTagRemoteStatus marks non-success HTTP statuses. The error
	// carries "status" and "body" values.
	ErrTagRemoteStatus = goerr.NewTag("remote_status")

	// ErrTagSummarization marks any summarizer failure
	ErrTagSummarization = goerr.NewTag("summarization")
)
