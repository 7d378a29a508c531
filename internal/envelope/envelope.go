// Package envelope implements the SDK wire envelope: a newline-delimited
// container holding one JSON header record followed by alternating
// item-header / item-payload records.
package envelope

import (
	"encoding/json"
	"errors"
	"time"
)

// Sentinel errors for structural failures. Both abort the whole envelope.
var (
	ErrParse      = errors.New("envelope parse error")
	ErrValidation = errors.New("envelope validation error")
)

// Well-known item types. Anything else is tolerated but not processed.
const (
	ItemTypeEvent       = "event"
	ItemTypeTransaction = "transaction"
	ItemTypeAttachment  = "attachment"
	ItemTypeSession     = "session"
)

// Envelope is the top-level wire container. It is transient: it exists only
// for the duration of one ingest call.
type Envelope struct {
	Headers map[string]any
	Items   []Item
}

// Item is one typed sub-record within an envelope.
type Item struct {
	Headers map[string]any
	Payload Payload
}

// Payload is a tagged union: a parsed JSON object, or the verbatim text for
// payloads that are not valid JSON (binary/text attachments).
type Payload struct {
	object map[string]any
	raw    string
	isJSON bool
}

// JSONPayload wraps a parsed JSON object payload.
func JSONPayload(obj map[string]any) Payload {
	return Payload{object: obj, isJSON: true}
}

// RawPayload wraps an opaque text payload.
func RawPayload(text string) Payload {
	return Payload{raw: text}
}

// Object returns the parsed JSON object and true, or nil and false for
// opaque payloads.
func (p Payload) Object() (map[string]any, bool) {
	return p.object, p.isJSON
}

// Empty reports whether the payload carries no content.
func (p Payload) Empty() bool {
	if p.isJSON {
		return len(p.object) == 0
	}
	return p.raw == ""
}

// Bytes returns the serialized payload content.
func (p Payload) Bytes() ([]byte, error) {
	if p.isJSON {
		return json.Marshal(p.object)
	}
	return []byte(p.raw), nil
}

// EventID returns the envelope-level event_id header, if present.
func (e *Envelope) EventID() string {
	id, _ := e.Headers["event_id"].(string)
	return id
}

// SentAt returns the parsed sent_at header. The zero time is returned when
// the header is absent or unparseable.
func (e *Envelope) SentAt() time.Time {
	raw, _ := e.Headers["sent_at"].(string)
	if raw == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// Type returns the item's declared type header.
func (it *Item) Type() string {
	t, _ := it.Headers["type"].(string)
	return t
}

// Length returns the declared byte length and whether one was declared.
func (it *Item) Length() (int, bool) {
	v, ok := it.Headers["length"]
	if !ok {
		return 0, false
	}
	n, err := intFromJSON(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
