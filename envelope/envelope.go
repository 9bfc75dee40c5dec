// Package envelope frames payloads with descriptive metadata in the JSON wire
// form stored on the content network:
//
//	{"data":{"filename","type","size","data":[..bytes..],"encrypted"},
//	 "signature","uploadedBy","signedMessage","timestamp","version"}
//
// Payload bytes are serialized as a JSON array of numbers, not base64, so
// content written by older clients stays readable.
package envelope

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

const (
	// Version is written into every new envelope.
	Version = "1.0"

	// DefaultFilename is used when metadata has no filename.
	DefaultFilename = "file"

	// DefaultMimeType is used when metadata has no MIME type.
	DefaultMimeType = "application/octet-stream"
)

// Metadata describes a payload. Signature, SignerID and SignedMessage are
// empty when the payload is unsigned.
type Metadata struct {
	Filename      string
	MimeType      string
	Size          int64 // plaintext length; 0 means len(payload) at wrap time unless Encrypted
	Encrypted     bool
	Signature     string // hex DER
	SignerID      string // hex compressed public key
	SignedMessage string
	Timestamp     int64 // unix milliseconds; 0 means now at wrap time
}

// Envelope is a decoded payload plus its metadata.
type Envelope struct {
	Payload []byte
	Metadata
}

// ByteArray is a byte slice that encodes as a JSON array of numbers.
type ByteArray []byte

// MarshalJSON implements json.Marshaler.
func (b ByteArray) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(b)*4 + 2)
	buf.WriteByte('[')
	for i, v := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Itoa(int(v)))
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler. Only number arrays are accepted.
func (b *ByteArray) UnmarshalJSON(data []byte) error {
	var nums []json.Number
	if err := json.Unmarshal(data, &nums); err != nil {
		return ErrInvalidByteArray
	}
	if nums == nil {
		return ErrInvalidByteArray
	}
	out := make([]byte, len(nums))
	for i, n := range nums {
		v, err := strconv.ParseUint(n.String(), 10, 8)
		if err != nil {
			return ErrInvalidByteArray
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}

// wireData is the inner "data" object.
type wireData struct {
	Filename  string    `json:"filename"`
	Type      string    `json:"type"`
	Size      int64     `json:"size"`
	Data      ByteArray `json:"data"`
	Encrypted bool      `json:"encrypted"`
}

// wireEnvelope is the exact field order written by Wrap.
type wireEnvelope struct {
	Data          wireData `json:"data"`
	Signature     *string  `json:"signature"`
	UploadedBy    *string  `json:"uploadedBy"`
	SignedMessage *string  `json:"signedMessage"`
	Timestamp     int64    `json:"timestamp"`
	Version       string   `json:"version"`
}

// Wrap serializes payload and meta into the envelope wire form. Missing
// filename, type, size and timestamp take their defaults; absent signature
// fields are written as null.
func Wrap(payload []byte, meta Metadata) ([]byte, error) {
	meta = withDefaults(meta, len(payload))
	if payload == nil {
		payload = []byte{}
	}

	w := wireEnvelope{
		Data: wireData{
			Filename:  meta.Filename,
			Type:      meta.MimeType,
			Size:      meta.Size,
			Data:      payload,
			Encrypted: meta.Encrypted,
		},
		Signature:     optional(meta.Signature),
		UploadedBy:    optional(meta.SignerID),
		SignedMessage: optional(meta.SignedMessage),
		Timestamp:     meta.Timestamp,
		Version:       Version,
	}
	return json.Marshal(w)
}

func withDefaults(meta Metadata, payloadLen int) Metadata {
	if meta.Filename == "" {
		meta.Filename = DefaultFilename
	}
	if meta.MimeType == "" {
		meta.MimeType = DefaultMimeType
	}
	if meta.Size == 0 && !meta.Encrypted {
		meta.Size = int64(payloadLen)
	}
	if meta.Timestamp == 0 {
		meta.Timestamp = time.Now().UnixMilli()
	}
	return meta
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
