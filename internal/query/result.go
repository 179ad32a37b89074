package query

import (
	"bytes"
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Failure is the payload returned when no query could be produced.
type Failure struct {
	Error       string  `json:"error"`
	Transcript  string  `json:"transcript"`
	RawResponse *string `json:"raw_response,omitempty"`
}

// Result holds either the model's JSON query or a Failure, never both.
type Result struct {
	Query   json.RawMessage
	Failure *Failure
}

var emptyQuery = json.RawMessage(`{"items":[]}`)

// OK reports whether the result carries a parsed query.
func (r Result) OK() bool { return r.Failure == nil }

// JSON returns the payload that is handed to callers.
func (r Result) JSON() json.RawMessage {
	if r.Failure != nil {
		b, _ := json.Marshal(r.Failure)
		return b
	}
	if len(r.Query) == 0 {
		return emptyQuery
	}
	return r.Query
}

func (r Result) MarshalJSON() ([]byte, error) {
	return r.JSON(), nil
}

// Indented renders the payload as two-space indented JSON.
func (r Result) Indented() string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, r.JSON(), "", "  "); err != nil {
		return string(r.JSON())
	}
	return buf.String()
}

// ItemCount returns the length of the query's items array, or 0.
func (r Result) ItemCount() int {
	if !r.OK() {
		return 0
	}
	return int(gjson.GetBytes(r.Query, "items.#").Int())
}

// ErrorMessage returns the failure message, or "".
func (r Result) ErrorMessage() string {
	if r.Failure == nil {
		return ""
	}
	return r.Failure.Error
}
