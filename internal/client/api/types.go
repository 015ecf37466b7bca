package api

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Record is one authoritative entity in a pull response. The full body is
// kept raw for the local cache; only id and updated_at are decoded here.
type Record struct {
	ID        string
	UpdatedAt time.Time
	Raw       json.RawMessage
}

func (r *Record) UnmarshalJSON(b []byte) error {
	r.Raw = append(r.Raw[:0], b...)

	var probe struct {
		ID        any        `json:"id"`
		UpdatedAt *time.Time `json:"updated_at"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return err
	}
	switch id := probe.ID.(type) {
	case string:
		r.ID = id
	case float64:
		r.ID = strconv.FormatInt(int64(id), 10)
	default:
		return fmt.Errorf("pulled record has no usable id")
	}
	if probe.UpdatedAt != nil {
		r.UpdatedAt = *probe.UpdatedAt
	}
	return nil
}

// PullResponse is the body of GET /tech/sync. A missing collection key means
// no changes of that type since the cursor.
type PullResponse struct {
	WorkOrders      []Record  `json:"work_orders"`
	Equipment       []Record  `json:"equipment"`
	Checklists      []Record  `json:"checklists"`
	StandardWeights []Record  `json:"standard_weights"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Count returns the total number of pulled records.
func (p *PullResponse) Count() int {
	return len(p.WorkOrders) + len(p.Equipment) + len(p.Checklists) + len(p.StandardWeights)
}

// BatchMutation is one entry of POST /tech/sync/batch. MutationID is the
// stable idempotency key minted at enqueue time; the server owns dedup by it.
type BatchMutation struct {
	MutationID string          `json:"mutation_id"`
	Type       string          `json:"type"`
	Data       json.RawMessage `json:"data"`
}

// BatchIssue is one itemized rejection in a batch response.
type BatchIssue struct {
	MutationID      string `json:"mutation_id"`
	Type            string `json:"type"`
	ID              string `json:"id"`
	Message         string `json:"message"`
	ServerUpdatedAt string `json:"server_updated_at"`
}

// BatchResponse reports per-mutation outcomes. Empty Conflicts and Errors
// with a positive Processed count means a bulk "all accepted".
type BatchResponse struct {
	Processed int          `json:"processed"`
	Conflicts []BatchIssue `json:"conflicts"`
	Errors    []BatchIssue `json:"errors"`
}

// Rejected returns every itemized rejection, conflicts first.
func (b *BatchResponse) Rejected() []BatchIssue {
	out := make([]BatchIssue, 0, len(b.Conflicts)+len(b.Errors))
	out = append(out, b.Conflicts...)
	out = append(out, b.Errors...)
	return out
}
