package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// Segment is one atomic unit of content in the knowledge store. The store
// supports only list/create/delete of whole segments; there is no partial
// update and no uniqueness guarantee across segments.
type Segment struct {
	ID       string          `json:"id"`
	Content  string          `json:"content"`
	Metadata SegmentMetadata `json:"metadata"`
}

// SegmentMetadata carries the owner email attached at creation time. Older
// segments may lack it, in which case the email embedded in the decoded
// content is authoritative.
type SegmentMetadata struct {
	UserEmail string `json:"user_email"`
}

// Knowledge is the interface for the segment store of a fixed
// dataset/document pair
type Knowledge interface {
	// ListSegments returns one page of segments. A missing document is
	// not an error: it returns an empty list.
	ListSegments(ctx context.Context, limit, offset int) ([]Segment, error)

	// CreateSegment stores content as a new segment owned by email and
	// returns the new segment ID when the store reports one.
	CreateSegment(ctx context.Context, content, email string) (string, error)

	// DeleteSegment removes a segment by ID. Deleting a segment that no
	// longer exists succeeds.
	DeleteSegment(ctx context.Context, segmentID string) error
}

type knowledgeClient struct {
	baseURL    string
	apiKey     string
	datasetID  string
	documentID string
	httpClient *http.Client
}

// NewKnowledge creates a knowledge store client for one dataset/document pair
func NewKnowledge(baseURL, apiKey, datasetID, documentID string) Knowledge {
	return &knowledgeClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		datasetID:  datasetID,
		documentID: documentID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (x *knowledgeClient) segmentsURL() string {
	return fmt.Sprintf("%s/v1/datasets/%s/documents/%s/segments", x.baseURL, x.datasetID, x.documentID)
}

func (x *knowledgeClient) do(req *http.Request) (*http.Response, []byte, error) {
	req.Header.Set("Authorization", "Bearer "+x.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "knowledge request failed", goerr.T(ErrTagRemoteRequest))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to read knowledge response", goerr.T(ErrTagRemoteRequest))
	}
	return resp, body, nil
}

func (x *knowledgeClient) ListSegments(ctx context.Context, limit, offset int) ([]Segment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, x.segmentsURL(), nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create list request")
	}
	query := req.URL.Query()
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))
	req.URL.RawQuery = query.Encode()

	resp, body, err := x.do(req)
	if err != nil {
		return nil, err
	}

	// The parent document not existing yet means no history, not a failure
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= 400 {
		return nil, goerr.New("knowledge list failed",
			goerr.T(ErrTagRemoteStatus),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(body)),
		)
	}

	var result struct {
		Data []Segment `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, goerr.Wrap(err, "failed to decode knowledge list response", goerr.T(ErrTagRemoteRequest))
	}
	return result.Data, nil
}

func (x *knowledgeClient) CreateSegment(ctx context.Context, content, email string) (string, error) {
	payload := map[string]any{
		"segments": []map[string]any{
			{
				"content":  content,
				"answer":   "",
				"metadata": map[string]string{"user_email": email},
			},
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", goerr.Wrap(err, "failed to marshal segment payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.segmentsURL(), bytes.NewReader(data))
	if err != nil {
		return "", goerr.Wrap(err, "failed to create segment request")
	}

	resp, body, err := x.do(req)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", goerr.New("knowledge create failed",
			goerr.T(ErrTagRemoteStatus),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(body)),
		)
	}

	var result struct {
		Data []Segment `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil || len(result.Data) == 0 {
		// Some store versions omit the created segment from the response
		return "", nil
	}
	return result.Data[0].ID, nil
}

func (x *knowledgeClient) DeleteSegment(ctx context.Context, segmentID string) error {
	url := x.segmentsURL() + "/" + segmentID
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to create delete request")
	}

	resp, body, err := x.do(req)
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return goerr.New("knowledge delete failed",
			goerr.T(ErrTagRemoteStatus),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(body)),
		)
	}
}
