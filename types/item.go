package types

import (
	"strconv"
	"strings"
)

// Item kinds stored in the kind attribute of every row.
const (
	KindExecutionItem = "ExecutionItem"
	KindRecordItem    = "RecordItem"
)

// RecordKeyPrefix is prepended to a guid to form the partition key of its
// record item. No execution id may start with it.
const RecordKeyPrefix = "guid-"

// ItemIdentifier addresses one feed item within one pipeline run. It is
// threaded through every stage so the orchestrator can correlate state
// without re-sending item payloads.
type ItemIdentifier struct {
	ExecutionID string `json:"execution_id"`
	GUID        string `json:"guid"`
}

// NewItemIdentifier returns an identifier after checking that both parts are
// non-blank.
func NewItemIdentifier(executionID, guid string) (ItemIdentifier, error) {
	id := ItemIdentifier{ExecutionID: executionID, GUID: guid}

	if err := id.Validate(); err != nil {
		return ItemIdentifier{}, err
	}

	return id, nil
}

// Validate reports a *ValidationError if either part is blank or the
// execution id is not accepted by [ValidateExecutionID].
func (id ItemIdentifier) Validate() error {
	if err := ValidateExecutionID(id.ExecutionID); err != nil {
		return err
	}

	return RequireNonBlank("guid", id.GUID)
}

// ValidateExecutionID rejects blank execution ids and those starting with
// [RecordKeyPrefix], which would collide with the record items in the shared
// key space.
func ValidateExecutionID(executionID string) error {
	if err := RequireNonBlank("execution_id", executionID); err != nil {
		return err
	}

	if strings.HasPrefix(executionID, RecordKeyPrefix) {
		return &ValidationError{Field: "execution_id", Reason: "must not start with " + strconv.Quote(RecordKeyPrefix)}
	}

	return nil
}

// RequireNonBlank returns a *ValidationError naming field when value is
// empty after trimming.
func RequireNonBlank(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Reason: "must not be blank"}
	}

	return nil
}

func (id ItemIdentifier) String() string {
	return id.ExecutionID + "/" + id.GUID
}

// ExecutionItem is the staging row for one feed item within one run.
// Optional attributes are nil when absent; a nil Summary is a valid terminal
// state when summarization is disabled.
type ExecutionItem struct {
	ExecutionID string  `json:"execution_id"`
	GUID        string  `json:"guid"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Link        *string `json:"link,omitempty"`
	Summary     *string `json:"summary,omitempty"`
	TTL         *int64  `json:"ttl,omitempty"`
	PubDate     *string `json:"pub_date,omitempty"`
	Kind        string  `json:"kind"`
}

// NewExecutionItem creates an ExecutionItem with validated keys and the kind
// set. Optional attributes are filled in by the caller.
func NewExecutionItem(executionID, guid string) (*ExecutionItem, error) {
	id, err := NewItemIdentifier(executionID, guid)
	if err != nil {
		return nil, err
	}

	return &ExecutionItem{
		ExecutionID: id.ExecutionID,
		GUID:        id.GUID,
		Kind:        KindExecutionItem,
	}, nil
}

// Identifier returns the composite key of the item.
func (e *ExecutionItem) Identifier() ItemIdentifier {
	return ItemIdentifier{ExecutionID: e.ExecutionID, GUID: e.GUID}
}

// Validate checks the key invariants before any I/O is attempted.
func (e *ExecutionItem) Validate() error {
	if e == nil {
		return &ValidationError{Field: "item", Reason: "must not be nil"}
	}

	return e.Identifier().Validate()
}

// RecordItem marks a guid as processed. It has no expiry.
type RecordItem struct {
	GUID string `json:"guid"`
	Kind string `json:"kind"`
}

// NewRecordItem creates a RecordItem for a non-blank guid.
func NewRecordItem(guid string) (*RecordItem, error) {
	r := &RecordItem{GUID: guid, Kind: KindRecordItem}

	if err := r.Validate(); err != nil {
		return nil, err
	}

	return r, nil
}

// Validate reports a *ValidationError if the record is nil or its guid is
// blank.
func (r *RecordItem) Validate() error {
	if r == nil {
		return &ValidationError{Field: "record", Reason: "must not be nil"}
	}

	return RequireNonBlank("guid", r.GUID)
}

// StringValue returns the value of an optional string attribute, or "" when
// absent.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
