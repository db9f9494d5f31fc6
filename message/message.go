// Package message defines the envelopes exchanged between a front-end and its host.
//
// A Request travels front-end → host and names the remote operation; a Response
// travels host → front-end and carries either a domain value or an error wrapper.
// Both are matched by ID, never by arrival order.
package message

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Request asks the host to run one named operation.
//
//	{"id": "windowm.close:7", "func": "windowm.close", "args": {"winId": 1}}
type Request struct {
	ID   string          `json:"id"`   // Correlation id: "<namespace>.<method>:<counter>"
	Func string          `json:"func"` // Qualified method name: "<namespace>.<method>"
	Args json.RawMessage `json:"args"` // Opaque to the bridge, passed through as-is
}

// Response settles the Request with the same ID.
//
//	{"id": "windowm.close:7", "result": "success"}
//	{"id": "windowm.close:7", "result": {"error": "no such window"}}
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Event is a host-initiated notification that names a callback the
// front-end registered earlier (a tray click, a before-close choice). It
// has no id and is never answered.
//
//	{"callback": "__TrayMenuItemClickCallback_", "args": 2001}
type Event struct {
	Callback string          `json:"callback"`
	Args     json.RawMessage `json:"args,omitempty"`
}

// NewErrorResponse builds the error wrapper form of a response.
func NewErrorResponse(id, text string) *Response {
	result, _ := json.Marshal(map[string]string{"error": text})
	return &Response{ID: id, Result: result}
}

// NewResponse marshals value into the result field.
func NewResponse(id string, value any) (*Response, error) {
	result, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return &Response{ID: id, Result: result}, nil
}

// ErrorText reports whether the result carries a truthy "error" field and,
// if so, its text. A string error is returned verbatim; any other value is
// returned as its JSON encoding.
func (r *Response) ErrorText() (string, bool) {
	if r == nil || len(r.Result) == 0 {
		return "", false
	}
	trimmed := bytes.TrimSpace(r.Result)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return "", false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return "", false
	}
	raw, ok := fields["error"]
	if !ok || !truthy(raw) {
		return "", false
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, true
	}
	return string(bytes.TrimSpace(raw)), true
}

// truthy follows the loose truthiness the front-end runtime uses for result.error.
func truthy(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	switch s {
	case "", "null", "false", `""`:
		return false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n != 0
	}
	return true
}

// SplitFunc splits "<namespace>.<method>" at its last dot.
func SplitFunc(fn string) (namespace, method string, ok bool) {
	i := strings.LastIndexByte(fn, '.')
	if i <= 0 || i == len(fn)-1 {
		return "", "", false
	}
	return fn[:i], fn[i+1:], true
}
