package storage

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// MirrorBackend reads from (and optionally writes to) an HTTP gateway mirror:
//
//	GET  {base}/{cid}
//	POST {base}/add       multipart "file", response {"cid":...} or {"Hash":...}
//
// Public mirrors need no Auth; authenticated gateways take a bearer token
// or basic credentials.
type MirrorBackend struct {
	Base     string
	Auth     Auth
	ReadOnly bool         // refuse stores
	Client   *http.Client // nil uses http.DefaultClient; deadlines come from ctx
	name     string
}

// Compile-time interface check.
var _ Backend = (*MirrorBackend)(nil)

// NewMirrorBackend creates a mirror backend for base.
func NewMirrorBackend(base string, auth Auth, readOnly bool) *MirrorBackend {
	base = strings.TrimRight(base, "/")
	return &MirrorBackend{
		Base:     base,
		Auth:     auth,
		ReadOnly: readOnly,
		name:     "mirror:" + hostOf(base),
	}
}

func hostOf(base string) string {
	s := base
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return s
}

func (m *MirrorBackend) Name() string {
	if m.name == "" {
		return "mirror:" + hostOf(m.Base)
	}
	return m.name
}

func (m *MirrorBackend) Source() Source { return SourceMirror }

func (m *MirrorBackend) client() *http.Client {
	if m.Client != nil {
		return m.Client
	}
	return http.DefaultClient
}

// Store uploads data through the mirror's add endpoint.
func (m *MirrorBackend) Store(ctx context.Context, data []byte) (ContentID, error) {
	if m.ReadOnly {
		return "", fmt.Errorf("%w: %s: read-only mirror", ErrBackendUnavailable, m.Name())
	}

	buf, contentType, err := multipartBody(data)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrBackendUnavailable, m.Name(), err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Base+"/add", buf)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrBackendUnavailable, m.Name(), err)
	}
	req.Header.Set("Content-Type", contentType)
	m.Auth.apply(req)

	body, err := do(m.client(), m.Name(), req, maxAPIResponseSize)
	if err != nil {
		return "", err
	}
	raw, err := parseAddResponse(m.Name(), body)
	if err != nil {
		return "", err
	}
	c, err := parseCID(ContentID(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrBackendUnavailable, m.Name(), err)
	}
	return ContentID(c.String()), nil
}

// Retrieve fetches id from the mirror. Raw-block CIDs are verified against
// the body before it is trusted; a mismatch counts as a backend failure so
// the next mirror is tried.
func (m *MirrorBackend) Retrieve(ctx context.Context, id ContentID) ([]byte, error) {
	if id.IsLocal() {
		return nil, ErrNotFound
	}
	c, err := parseCID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.Base+"/"+c.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBackendUnavailable, m.Name(), err)
	}
	m.Auth.apply(req)

	data, err := do(m.client(), m.Name(), req, MaxContentResponseSize)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s: empty response", ErrBackendUnavailable, m.Name())
	}
	if err := verifyContent(c, data); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBackendUnavailable, m.Name(), err)
	}
	return data, nil
}

// Pin is a no-op; mirrors do not expose retention.
func (m *MirrorBackend) Pin(context.Context, ContentID) error { return nil }
