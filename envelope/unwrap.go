package envelope

import (
	"bytes"
	"encoding/json"
)

// Kind discriminates the result of Unwrap.
type Kind int

const (
	// KindRaw means the input was not an envelope and is returned verbatim.
	KindRaw Kind = iota
	// KindEnvelope means the input decoded as an envelope.
	KindEnvelope
)

// String returns the kind name.
func (k Kind) String() string {
	if k == KindEnvelope {
		return "envelope"
	}
	return "raw"
}

// Decoded is the tagged result of Unwrap. Exactly one of Envelope and Raw
// is meaningful, selected by Kind.
type Decoded struct {
	Kind     Kind
	Envelope *Envelope
	Raw      []byte
}

// looseEnvelope accepts every historical top-level shape. Data stays raw so
// the current and nested legacy forms can be told apart.
type looseEnvelope struct {
	Data          json.RawMessage `json:"data"`
	Signature     *string         `json:"signature"`
	UploadedBy    *string         `json:"uploadedBy"`
	SignedMessage *string         `json:"signedMessage"`
	Timestamp     json.RawMessage `json:"timestamp"`
	Version       json.RawMessage `json:"version"` // "1.0" or 1
}

// looseData is a "data" object whose own "data" field is either the byte
// array (current form) or another wrapper (legacy nested form).
type looseData struct {
	Filename  *string         `json:"filename"`
	Type      *string         `json:"type"`
	Size      json.Number     `json:"size"`
	Data      json.RawMessage `json:"data"`
	Encrypted bool            `json:"encrypted"`
}

// Unwrap decodes b. It never fails: anything that does not match the envelope
// shape comes back as KindRaw carrying b unchanged.
//
// A legacy wrapper {"data":{"data":{"filename",...,"data":[...]}}} is
// unwrapped exactly one level, with the inner metadata promoted. Deeper
// nesting is treated as raw.
func Unwrap(b []byte) Decoded {
	raw := Decoded{Kind: KindRaw, Raw: b}

	outer, ok := decodeObject[looseEnvelope](b)
	if !ok || !isObject(outer.Data) {
		return raw
	}

	data, ok := decodeObject[looseData](outer.Data)
	if !ok {
		return raw
	}

	sigSrc := outer
	if isObject(data.Data) {
		// Legacy nesting: the middle level is itself an envelope.
		middle, ok := decodeObject[looseEnvelope](outer.Data)
		if !ok {
			return raw
		}
		inner, ok := decodeObject[looseData](data.Data)
		if !ok || isObject(inner.Data) {
			return raw
		}
		data = inner
		sigSrc = mergeSignature(outer, middle)
	}

	var payload ByteArray
	if err := json.Unmarshal(data.Data, &payload); err != nil {
		return raw
	}

	env := &Envelope{
		Payload: []byte(payload),
		Metadata: Metadata{
			Filename:      strOr(data.Filename, DefaultFilename),
			MimeType:      strOr(data.Type, DefaultMimeType),
			Size:          numOr(data.Size, int64(len(payload))),
			Encrypted:     data.Encrypted,
			Signature:     deref(sigSrc.Signature),
			SignerID:      deref(sigSrc.UploadedBy),
			SignedMessage: deref(sigSrc.SignedMessage),
			Timestamp:     rawInt(sigSrc.Timestamp),
		},
	}
	return Decoded{Kind: KindEnvelope, Envelope: env}
}

func decodeObject[T any](b []byte) (*T, bool) {
	var v T
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}
	return &v, true
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// mergeSignature prefers the outer wrapper's signing fields and falls back
// to the middle level.
func mergeSignature(outer, middle *looseEnvelope) *looseEnvelope {
	m := *outer
	if m.Signature == nil {
		m.Signature = middle.Signature
	}
	if m.UploadedBy == nil {
		m.UploadedBy = middle.UploadedBy
	}
	if m.SignedMessage == nil {
		m.SignedMessage = middle.SignedMessage
	}
	if len(m.Timestamp) == 0 {
		m.Timestamp = middle.Timestamp
	}
	return &m
}

// rawInt reads a numeric timestamp, tolerating null or non-numeric values.
func rawInt(raw json.RawMessage) int64 {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0
	}
	return numOr(n, 0)
}

func strOr(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}

func numOr(n json.Number, def int64) int64 {
	if n == "" {
		return def
	}
	if v, err := n.Int64(); err == nil {
		return v
	}
	if f, err := n.Float64(); err == nil {
		return int64(f)
	}
	return def
}
