// Package daemon exposes the vault over HTTP.
//
//	POST /api/v1/store            raw body; X-Filename, Content-Type, X-Password, X-Anchor, X-Sign
//	GET  /api/v1/retrieve/{id}    X-Password
//	GET  /api/v1/anchor/{id}      StorageOrder or null
//	GET  /api/v1/resolve/{domain} DNSLink lookup
//	GET  /health
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/bitfsorg/anchorgate-go/anchor"
	"github.com/bitfsorg/anchorgate-go/cryptobox"
	"github.com/bitfsorg/anchorgate-go/dnslink"
	"github.com/bitfsorg/anchorgate-go/envelope"
	"github.com/bitfsorg/anchorgate-go/logging"
	"github.com/bitfsorg/anchorgate-go/storage"
	"github.com/bitfsorg/anchorgate-go/vault"
)

// DefaultMaxBodySize bounds a store request body.
const DefaultMaxBodySize = 64 << 20

// Request headers.
const (
	HeaderFilename = "X-Filename"
	HeaderPassword = "X-Password"
	HeaderAnchor   = "X-Anchor"
	HeaderSign     = "X-Sign"
)

// Service is the vault surface the server drives. *vault.Vault implements it.
type Service interface {
	Store(ctx context.Context, payload []byte, opts vault.StoreOptions) (*vault.StoreResult, error)
	Retrieve(ctx context.Context, id storage.ContentID, password string) (*vault.Retrieved, error)
	AnchorStatus(ctx context.Context, id storage.ContentID) (*anchor.StorageOrder, error)
	ResolveName(domain string) (storage.ContentID, error)
}

var _ Service = (*vault.Vault)(nil)

// Server is the HTTP API handler.
type Server struct {
	svc     Service
	log     *logrus.Entry
	maxBody int64
	mux     *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *logrus.Entry) Option {
	return func(s *Server) { s.log = l }
}

// WithMaxBodySize overrides DefaultMaxBodySize.
func WithMaxBodySize(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// New creates a Server with all routes registered.
func New(svc Service, opts ...Option) *Server {
	s := &Server{svc: svc, maxBody: DefaultMaxBodySize, mux: http.NewServeMux()}
	for _, o := range opts {
		o(s)
	}
	s.log = logging.OrDiscard(s.log)
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logRequests(s.log, s.mux).ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("POST /api/v1/store", s.handleStore)
	s.mux.HandleFunc("GET /api/v1/retrieve/{id}", s.handleRetrieve)
	s.mux.HandleFunc("GET /api/v1/anchor/{id}", s.handleAnchorStatus)
	s.mux.HandleFunc("GET /api/v1/resolve/{domain}", s.handleResolve)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "anchorgate",
	})
}

type storeResponse struct {
	ContentID   string               `json:"contentId"`
	Source      string               `json:"source"`
	Backend     string               `json:"backend"`
	Order       *anchor.StorageOrder `json:"order"`
	AnchorError string               `json:"anchorError,omitempty"`
}

func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	mode, err := anchorMode(r.Header.Get(HeaderAnchor))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sign, err := optionalBool(r.Header.Get(HeaderSign))
	if err != nil {
		writeError(w, http.StatusBadRequest, HeaderSign+": "+err.Error())
		return
	}

	res, err := s.svc.Store(r.Context(), body, vault.StoreOptions{
		Filename: r.Header.Get(HeaderFilename),
		MimeType: mimeType(r.Header.Get("Content-Type")),
		Password: r.Header.Get(HeaderPassword),
		Sign:     sign,
		Anchor:   mode,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := storeResponse{
		ContentID: res.ID.String(),
		Source:    string(res.Source),
		Backend:   res.Backend,
		Order:     res.Order,
	}
	if res.AnchorErr != nil {
		resp.AnchorError = res.AnchorErr.Error()
	}
	writeJSON(w, http.StatusCreated, resp)
}

// retrieveData mirrors the envelope's inner data object.
type retrieveData struct {
	Filename  string              `json:"filename"`
	Type      string              `json:"type"`
	Size      int64               `json:"size"`
	Data      *envelope.ByteArray `json:"data"` // null for partial results
	Encrypted bool                `json:"encrypted"`
}

type retrieveResponse struct {
	ContentID      string       `json:"contentId"`
	Source         string       `json:"source"`
	Partial        bool         `json:"partial"`
	Raw            bool         `json:"raw"`
	Decrypted      bool         `json:"decrypted"`
	Data           retrieveData `json:"data"`
	Signature      *string      `json:"signature"`
	UploadedBy     *string      `json:"uploadedBy"`
	SignedMessage  *string      `json:"signedMessage"`
	SignatureValid bool         `json:"signatureValid"`
	Timestamp      int64        `json:"timestamp"`
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	id := storage.ContentID(r.PathValue("id"))

	got, err := s.svc.Retrieve(r.Context(), id, r.Header.Get(HeaderPassword))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	m := got.Metadata
	resp := retrieveResponse{
		ContentID:      got.ID.String(),
		Source:         string(got.Source),
		Partial:        got.Partial,
		Raw:            got.Raw,
		Decrypted:      got.Decrypted,
		Signature:      nonEmpty(m.Signature),
		UploadedBy:     nonEmpty(m.SignerID),
		SignedMessage:  nonEmpty(m.SignedMessage),
		SignatureValid: got.SignatureValid,
		Timestamp:      m.Timestamp,
		Data: retrieveData{
			Filename:  m.Filename,
			Type:      m.MimeType,
			Size:      m.Size,
			Encrypted: m.Encrypted && !got.Decrypted,
		},
	}
	if !got.Partial {
		b := envelope.ByteArray(got.Payload)
		resp.Data.Data = &b
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAnchorStatus(w http.ResponseWriter, r *http.Request) {
	order, err := s.svc.AnchorStatus(r.Context(), storage.ContentID(r.PathValue("id")))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	// A nil order encodes as null.
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	domain := r.PathValue("domain")
	id, err := s.svc.ResolveName(domain)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"domain": domain, "contentId": id.String()})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var failed *storage.AllBackendsFailedError
	if errors.As(err, &failed) {
		// Every backend answering not-found means absent, not unreachable.
		if failed.NotFound() {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	}

	switch {
	case errors.Is(err, storage.ErrEmptyContent),
		errors.Is(err, storage.ErrInvalidContentID),
		errors.Is(err, vault.ErrNoSigningKey),
		errors.Is(err, vault.ErrEncryptionConflict),
		errors.Is(err, anchor.ErrInvalidOrder):
		return http.StatusBadRequest
	case errors.Is(err, cryptobox.ErrDecryption):
		return http.StatusUnauthorized
	case errors.Is(err, dnslink.ErrNoRecord),
		errors.Is(err, dnslink.ErrUnsupportedPath):
		return http.StatusNotFound
	case errors.Is(err, vault.ErrAnchorDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, dnslink.ErrLookupFailed),
		errors.Is(err, dnslink.ErrDNSSECValidationFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.WithError(err).WithField("path", r.URL.Path).Warn("request failed")
	}
	msg := err.Error()
	if status == http.StatusUnauthorized {
		msg = "wrong password"
	}
	writeError(w, status, msg)
}

func anchorMode(v string) (vault.AnchorMode, error) {
	if v == "" {
		return vault.AnchorDefault, nil
	}
	on, err := strconv.ParseBool(v)
	if err != nil {
		return vault.AnchorDefault, fmt.Errorf("%s: %w", HeaderAnchor, err)
	}
	if on {
		return vault.AnchorAlways, nil
	}
	return vault.AnchorNever, nil
}

func optionalBool(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

// mimeType drops Content-Type parameters; the envelope default applies
// when empty.
func mimeType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
