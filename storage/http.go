package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
)

// MaxContentResponseSize is the maximum allowed response body size for content
// fetches (1 GB). This prevents memory exhaustion from malicious endpoints.
const MaxContentResponseSize = 1 << 30

// maxAPIResponseSize bounds JSON API responses (add, pin).
const maxAPIResponseSize = 1 << 20

// Auth holds optional credentials for an HTTP backend. Token takes
// precedence over User/Password.
type Auth struct {
	Token    string
	User     string
	Password string
}

func (a Auth) apply(req *http.Request) {
	switch {
	case a.Token != "":
		req.Header.Set("Authorization", "Bearer "+a.Token)
	case a.User != "":
		req.SetBasicAuth(a.User, a.Password)
	}
}

// classify maps a transport error to the storage error taxonomy.
func classify(name string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", ErrNetworkTimeout, name, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %s: %w", ErrNetworkTimeout, name, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrBackendUnavailable, name, err)
}

// statusError maps a non-200 HTTP status to the storage error taxonomy.
func statusError(name string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	msg := strings.TrimSpace(string(snippet))
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s: HTTP 404", ErrNotFound, name)
	}
	if resp.StatusCode == http.StatusGatewayTimeout || resp.StatusCode == http.StatusRequestTimeout {
		return fmt.Errorf("%w: %s: HTTP %d", ErrNetworkTimeout, name, resp.StatusCode)
	}
	return fmt.Errorf("%w: %s: HTTP %d: %s", ErrBackendUnavailable, name, resp.StatusCode, msg)
}

// do sends req and returns the response body when the status is 200.
func do(client *http.Client, name string, req *http.Request, limit int64) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, classify(name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(name, resp)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, classify(name, fmt.Errorf("read body: %w", err))
	}
	return data, nil
}

// multipartBody encodes data as a single "file" form field, the shape the
// add endpoints expect.
func multipartBody(data []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "blob")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// addResponse covers the id field names returned by add endpoints.
type addResponse struct {
	Hash string `json:"Hash"`
	CID  string `json:"cid"`
}

// parseAddResponse extracts the id from an add response. Streaming add APIs
// may emit one JSON object per line; the last object names the root.
func parseAddResponse(name string, body []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	var id string
	for dec.More() {
		var r addResponse
		if err := dec.Decode(&r); err != nil {
			return "", fmt.Errorf("%w: %s: decode add response: %w", ErrBackendUnavailable, name, err)
		}
		if r.Hash != "" {
			id = r.Hash
		} else if r.CID != "" {
			id = r.CID
		}
	}
	if id == "" {
		return "", fmt.Errorf("%w: %s: add response has no id", ErrBackendUnavailable, name)
	}
	return id, nil
}
