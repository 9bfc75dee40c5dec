package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// NetworkBackend stores content on a content-addressed storage network
// through an IPFS-compatible HTTP API:
//
//	POST {api}/api/v0/add?pin=true        multipart "file"
//	POST {api}/api/v0/cat?arg={cid}
//	POST {api}/api/v0/pin/add?arg={cid}
//	POST {api}/api/v0/pin/ls?arg={cid}
type NetworkBackend struct {
	API    string       // base URL, e.g. "http://127.0.0.1:5001"
	Auth   Auth         // optional credentials
	Client *http.Client // nil uses http.DefaultClient; deadlines come from ctx
}

// Compile-time interface checks.
var (
	_ Backend         = (*NetworkBackend)(nil)
	_ ReplicaReporter = (*NetworkBackend)(nil)
)

// NewNetworkBackend creates a NetworkBackend for api.
func NewNetworkBackend(api string, auth Auth) *NetworkBackend {
	return &NetworkBackend{
		API:  strings.TrimRight(api, "/"),
		Auth: auth,
	}
}

func (n *NetworkBackend) Name() string   { return "network" }
func (n *NetworkBackend) Source() Source { return SourceNetwork }

func (n *NetworkBackend) client() *http.Client {
	if n.Client != nil {
		return n.Client
	}
	return http.DefaultClient
}

func (n *NetworkBackend) endpoint(path string, q url.Values) string {
	u := n.API + "/api/v0/" + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (n *NetworkBackend) post(ctx context.Context, path string, q url.Values, body io.Reader, contentType string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint(path, q), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBackendUnavailable, n.Name(), err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	n.Auth.apply(req)
	return do(n.client(), n.Name(), req, limit)
}

// Store adds data to the network, pinned, and returns its CID.
func (n *NetworkBackend) Store(ctx context.Context, data []byte) (ContentID, error) {
	buf, contentType, err := multipartBody(data)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrBackendUnavailable, n.Name(), err)
	}

	q := url.Values{"pin": {"true"}}
	body, err := n.post(ctx, "add", q, buf, contentType, maxAPIResponseSize)
	if err != nil {
		return "", err
	}

	raw, err := parseAddResponse(n.Name(), body)
	if err != nil {
		return "", err
	}
	c, err := parseCID(ContentID(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrBackendUnavailable, n.Name(), err)
	}
	return ContentID(c.String()), nil
}

// Retrieve fetches the bytes for id. Local ids and malformed ids are not
// network content and return ErrNotFound without a request.
func (n *NetworkBackend) Retrieve(ctx context.Context, id ContentID) ([]byte, error) {
	if id.IsLocal() {
		return nil, ErrNotFound
	}
	c, err := parseCID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	data, err := n.post(ctx, "cat", url.Values{"arg": {c.String()}}, nil, "", MaxContentResponseSize)
	if err != nil {
		return nil, err
	}
	if err := verifyContent(c, data); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBackendUnavailable, n.Name(), err)
	}
	return data, nil
}

// Pin asks the node to retain id.
func (n *NetworkBackend) Pin(ctx context.Context, id ContentID) error {
	if id.IsLocal() {
		return nil
	}
	if _, err := parseCID(id); err != nil {
		return err
	}
	_, err := n.post(ctx, "pin/add", url.Values{"arg": {string(id)}}, nil, "", maxAPIResponseSize)
	return err
}

// pinLsResponse is the body of pin/ls.
type pinLsResponse struct {
	Keys map[string]struct {
		Type string `json:"Type"`
	} `json:"Keys"`
}

// Replicas reports how many pins the node holds for id: 1 when pinned,
// 0 when the node answers that id is not pinned.
func (n *NetworkBackend) Replicas(ctx context.Context, id ContentID) (int, error) {
	if id.IsLocal() {
		return 0, nil
	}
	c, err := parseCID(id)
	if err != nil {
		return 0, err
	}

	body, err := n.post(ctx, "pin/ls", url.Values{"arg": {c.String()}}, nil, "", maxAPIResponseSize)
	if err != nil {
		// The node reports "not pinned" as an HTTP 500 error body.
		if strings.Contains(err.Error(), "not pinned") {
			return 0, nil
		}
		return 0, err
	}

	var r pinLsResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return 0, fmt.Errorf("%w: %s: decode pin/ls: %w", ErrBackendUnavailable, n.Name(), err)
	}
	return len(r.Keys), nil
}
