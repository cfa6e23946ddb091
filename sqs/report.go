package sqs

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anoopengineer/rss-bluesky-bridge/types"
)

// FailureReport is the body of a failure queue message: one item of one run
// that a pipeline stage could not finish.
type FailureReport struct {
	ExecutionID string          `json:"execution_id"`
	GUID        string          `json:"guid"`
	Error       json.RawMessage `json:"error,omitempty"`
	ReportedAt  time.Time       `json:"reported_at"`
}

// Identifier returns the item key the report refers to.
func (r *FailureReport) Identifier() types.ItemIdentifier {
	return types.ItemIdentifier{ExecutionID: r.ExecutionID, GUID: r.GUID}
}

func (r *FailureReport) Validate() error {
	if r == nil {
		return &types.ValidationError{Field: "report", Reason: "must not be nil"}
	}

	if err := r.Identifier().Validate(); err != nil {
		return err
	}

	if len(r.Error) > 0 && !json.Valid(r.Error) {
		return &types.ValidationError{Field: "error", Reason: "must be valid JSON"}
	}

	return nil
}

// DecodeFailureReport parses a failure queue message body.
func DecodeFailureReport(body string) (*FailureReport, error) {
	report := &FailureReport{}

	if err := json.Unmarshal([]byte(body), report); err != nil {
		return nil, fmt.Errorf("failed to decode failure report: %w", err)
	}

	if err := report.Validate(); err != nil {
		return nil, err
	}

	return report, nil
}

// DedupID is the FIFO deduplication id of a report. A retried error-check
// run reporting the same item again within the SQS deduplication window is
// dropped by the queue.
func DedupID(executionID, guid string) string {
	return hash(executionID, guid)
}

func hash(input ...string) string {
	h := sha256.New()

	for _, s := range input {
		h.Write([]byte(s))
		h.Write([]byte{0}) // null byte delimiter to prevent hash collisions
	}

	bs := h.Sum(nil)

	return base64.URLEncoding.EncodeToString(bs)
}
