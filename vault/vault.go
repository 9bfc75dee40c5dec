// Package vault is the facade the HTTP daemon and the CLI call. It turns a
// caller payload into a stored envelope (optionally encrypted and signed),
// hands it to the storage gateway, records descriptive metadata, and places
// a storage order on the ledger when asked.
package vault

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/sirupsen/logrus"

	"github.com/bitfsorg/anchorgate-go/anchor"
	"github.com/bitfsorg/anchorgate-go/cryptobox"
	"github.com/bitfsorg/anchorgate-go/dnslink"
	"github.com/bitfsorg/anchorgate-go/envelope"
	"github.com/bitfsorg/anchorgate-go/logging"
	"github.com/bitfsorg/anchorgate-go/storage"
)

// Config holds facade behavior that does not come from a dependency.
type Config struct {
	// SigningKey signs envelopes when StoreOptions.Sign is set.
	SigningKey *ec.PrivateKey

	// AnchorByDefault places an order for every store unless the caller
	// opts out.
	AnchorByDefault bool
}

// Deps are the collaborators a Vault drives. Only Gateway is required.
type Deps struct {
	Gateway  *storage.Gateway
	Anchor   *anchor.Anchor      // nil disables anchoring
	Resolver dnslink.DNSResolver // nil means dnslink.DefaultResolver
	Sealer   cryptobox.Sealer    // nil returns raw keys marked insecure
	Logger   *logrus.Entry
}

// Vault is the shared business logic layer.
type Vault struct {
	cfg      Config
	gateway  *storage.Gateway
	anchor   *anchor.Anchor
	resolver dnslink.DNSResolver
	sealer   cryptobox.Sealer
	log      *logrus.Entry
	now      func() time.Time

	closers []func() error
	lock    *os.File
}

// New assembles a Vault from already-built dependencies.
func New(cfg Config, deps Deps) (*Vault, error) {
	if deps.Gateway == nil {
		return nil, ErrNoGateway
	}
	resolver := deps.Resolver
	if resolver == nil {
		resolver = dnslink.DefaultResolver
	}
	return &Vault{
		cfg:      cfg,
		gateway:  deps.Gateway,
		anchor:   deps.Anchor,
		resolver: resolver,
		sealer:   deps.Sealer,
		log:      logging.OrDiscard(deps.Logger),
		now:      time.Now,
	}, nil
}

// Close releases the databases and the data directory lock taken by Open.
func (v *Vault) Close() error {
	var errs []error
	for i := len(v.closers) - 1; i >= 0; i-- {
		if err := v.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	v.closers = nil
	unlockDataDir(v.lock)
	v.lock = nil
	return errors.Join(errs...)
}

// Anchor returns the ChainAnchor, or nil when anchoring is disabled.
func (v *Vault) Anchor() *anchor.Anchor { return v.anchor }

// Gateway returns the storage gateway.
func (v *Vault) Gateway() *storage.Gateway { return v.gateway }

// AnchorMode selects whether a store places a storage order.
type AnchorMode int

const (
	AnchorDefault AnchorMode = iota // follow Config.AnchorByDefault
	AnchorAlways
	AnchorNever
)

// StoreOptions describe how a payload is stored.
type StoreOptions struct {
	Filename string
	MimeType string

	// Password encrypts the payload with a password-derived key.
	Password string

	// EncryptKey encrypts the payload under a fresh random key which is
	// returned in StoreResult.Key, sealed for Recipient when set.
	EncryptKey bool
	Recipient  *[32]byte

	// Sign signs SignMessage, or the hex SHA-256 of the stored payload when
	// empty, with Config.SigningKey.
	Sign        bool
	SignMessage string

	Anchor AnchorMode
}

// StoreResult describes a completed store.
type StoreResult struct {
	ID       storage.ContentID
	Source   storage.Source
	Backend  string
	Size     int64 // envelope bytes handed to the gateway
	Metadata envelope.Metadata

	// Key is set for EncryptKey stores.
	Key *cryptobox.SealedKey

	// Order is the storage order as placed; Submission resolves when the
	// order reaches a final state. Both are nil when no order was placed.
	Order      *anchor.StorageOrder
	Submission *anchor.Submission

	// AnchorErr records a failed placement. The store itself succeeded.
	AnchorErr error
}

func (v *Vault) wantAnchor(mode AnchorMode) bool {
	switch mode {
	case AnchorAlways:
		return true
	case AnchorNever:
		return false
	default:
		return v.cfg.AnchorByDefault
	}
}

// Store wraps payload in an envelope and stores it. Anchoring failures are
// logged and reported in the result; they never fail the store.
func (v *Vault) Store(ctx context.Context, payload []byte, opts StoreOptions) (*StoreResult, error) {
	if opts.Password != "" && opts.EncryptKey {
		return nil, ErrEncryptionConflict
	}
	if opts.Sign && v.cfg.SigningKey == nil {
		return nil, ErrNoSigningKey
	}

	meta := envelope.Metadata{
		Filename:  opts.Filename,
		MimeType:  opts.MimeType,
		Size:      int64(len(payload)),
		Timestamp: v.now().UnixMilli(),
	}
	body := payload
	var sealed *cryptobox.SealedKey

	switch {
	case opts.Password != "":
		enc, err := cryptobox.Encrypt(payload, opts.Password)
		if err != nil {
			return nil, fmt.Errorf("vault: encrypt: %w", err)
		}
		body, meta.Encrypted = enc, true
	case opts.EncryptKey:
		key, err := cryptobox.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("vault: encrypt: %w", err)
		}
		enc, err := cryptobox.EncryptWithKey(payload, key)
		if err != nil {
			return nil, fmt.Errorf("vault: encrypt: %w", err)
		}
		if sealed, err = cryptobox.SealKey(v.sealer, key, opts.Recipient); err != nil {
			return nil, fmt.Errorf("vault: seal key: %w", err)
		}
		if sealed.Insecure {
			v.log.Warn("no sealing capability; returning raw content key")
		}
		body, meta.Encrypted = enc, true
	}

	if opts.Sign {
		msg := opts.SignMessage
		if msg == "" {
			sum := sha256.Sum256(body)
			msg = hex.EncodeToString(sum[:])
		}
		if err := envelope.Sign(&meta, v.cfg.SigningKey, msg); err != nil {
			return nil, err
		}
	}

	wrapped, err := envelope.Wrap(body, meta)
	if err != nil {
		return nil, fmt.Errorf("vault: wrap: %w", err)
	}

	stored, err := v.gateway.Store(ctx, wrapped)
	if err != nil {
		return nil, err
	}

	res := &StoreResult{
		ID:       stored.ID,
		Source:   stored.Source,
		Backend:  stored.Backend,
		Size:     int64(len(wrapped)),
		Metadata: meta,
		Key:      sealed,
	}
	log := v.log.WithField("content_id", stored.ID.String())

	if err := v.gateway.PutMetadata(objectMeta(stored, meta, v.now())); err != nil {
		log.WithError(err).Warn("record metadata")
	}

	if v.wantAnchor(opts.Anchor) {
		v.placeOrder(ctx, res, log)
	}
	return res, nil
}

func (v *Vault) placeOrder(ctx context.Context, res *StoreResult, log *logrus.Entry) {
	if v.anchor == nil {
		res.AnchorErr = ErrAnchorDisabled
		return
	}
	sub, err := v.anchor.PlaceOrder(ctx, res.ID, res.Size)
	if err != nil {
		log.WithError(err).Warn("place storage order")
		res.AnchorErr = err
		if errors.Is(err, anchor.ErrTransactionInvalid) {
			// The rejected order was recorded as Failed.
			if o, gerr := v.anchor.GetOrderStatus(ctx, res.ID); gerr == nil {
				res.Order = o
			}
		}
		return
	}
	res.Order, res.Submission = sub.Order, sub
	log.WithFields(logrus.Fields{
		"status":      sub.Order.Status.String(),
		"placeholder": sub.Order.Placeholder,
	}).Info("storage order placed")
}

func objectMeta(r *storage.StoreResult, m envelope.Metadata, now time.Time) storage.ObjectMeta {
	return storage.ObjectMeta{
		ID:            r.ID,
		Filename:      m.Filename,
		MimeType:      m.MimeType,
		Size:          m.Size,
		Encrypted:     m.Encrypted,
		Signature:     m.Signature,
		SignerID:      m.SignerID,
		SignedMessage: m.SignedMessage,
		Timestamp:     m.Timestamp,
		Source:        r.Source,
		StoredAt:      now,
	}
}

// Retrieved is the facade view of stored content.
type Retrieved struct {
	ID      storage.ContentID
	Source  storage.Source
	Backend string

	// Payload is the plaintext, or the ciphertext when Metadata.Encrypted is
	// set and no credential was supplied.
	Payload  []byte
	Metadata envelope.Metadata

	// Decrypted reports that Payload was decrypted on this call.
	Decrypted bool

	// Raw reports content that is not an envelope; Payload is the stored
	// bytes and Metadata holds defaults.
	Raw bool

	// Partial reports that no backend returned the bytes but recorded
	// metadata was found. Payload is nil.
	Partial bool

	// SignatureValid reports a verified signature; false when unsigned.
	SignatureValid bool
}

// Retrieve fetches id and decrypts it with password when the envelope is
// encrypted and password is non-empty. A wrong password yields
// cryptobox.ErrDecryption.
func (v *Vault) Retrieve(ctx context.Context, id storage.ContentID, password string) (*Retrieved, error) {
	var open func([]byte) ([]byte, error)
	if password != "" {
		open = func(b []byte) ([]byte, error) { return cryptobox.Decrypt(b, password) }
	}
	return v.retrieve(ctx, id, open)
}

// RetrieveWithKey is Retrieve for content stored with EncryptKey.
func (v *Vault) RetrieveWithKey(ctx context.Context, id storage.ContentID, key []byte) (*Retrieved, error) {
	var open func([]byte) ([]byte, error)
	if len(key) > 0 {
		open = func(b []byte) ([]byte, error) { return cryptobox.DecryptWithKey(b, key) }
	}
	return v.retrieve(ctx, id, open)
}

// RetrieveSealed opens sk with the recipient key pair and retrieves id with
// the recovered key. Insecure keys ignore the key pair.
func (v *Vault) RetrieveSealed(ctx context.Context, id storage.ContentID, sk *cryptobox.SealedKey, publicKey, privateKey *[32]byte) (*Retrieved, error) {
	key, err := cryptobox.OpenKey(sk, publicKey, privateKey)
	if err != nil {
		return nil, err
	}
	return v.RetrieveWithKey(ctx, id, key)
}

func (v *Vault) retrieve(ctx context.Context, id storage.ContentID, open func([]byte) ([]byte, error)) (*Retrieved, error) {
	got, err := v.gateway.Retrieve(ctx, id)
	if err != nil {
		var partial *storage.PartialNotFoundError
		if errors.As(err, &partial) {
			return partialResult(partial), nil
		}
		return nil, err
	}

	out := &Retrieved{ID: got.ID, Source: got.Source, Backend: got.Backend}

	decoded := envelope.Unwrap(got.Data)
	if decoded.Kind == envelope.KindRaw {
		out.Raw = true
		out.Payload = decoded.Raw
		out.Metadata = envelope.Metadata{
			Filename: envelope.DefaultFilename,
			MimeType: envelope.DefaultMimeType,
			Size:     int64(len(decoded.Raw)),
		}
		return out, nil
	}

	env := decoded.Envelope
	out.Payload = env.Payload
	out.Metadata = env.Metadata
	out.SignatureValid = env.Signature != "" && envelope.Verify(env.Metadata) == nil

	if env.Encrypted && open != nil {
		plain, err := open(env.Payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", cryptobox.ErrDecryption, id)
		}
		out.Payload, out.Decrypted = plain, true
	}
	return out, nil
}

func partialResult(e *storage.PartialNotFoundError) *Retrieved {
	m := e.Meta
	return &Retrieved{
		ID:      e.ID,
		Source:  m.Source,
		Partial: true,
		Metadata: envelope.Metadata{
			Filename:      m.Filename,
			MimeType:      m.MimeType,
			Size:          m.Size,
			Encrypted:     m.Encrypted,
			Signature:     m.Signature,
			SignerID:      m.SignerID,
			SignedMessage: m.SignedMessage,
			Timestamp:     m.Timestamp,
		},
	}
}

// AnchorStatus returns the latest storage order for id, or nil when none
// was ever placed.
func (v *Vault) AnchorStatus(ctx context.Context, id storage.ContentID) (*anchor.StorageOrder, error) {
	if v.anchor == nil {
		return nil, ErrAnchorDisabled
	}
	return v.anchor.GetOrderStatus(ctx, id)
}

// ResolveName maps a DNSLink domain to the content id it publishes.
func (v *Vault) ResolveName(domain string) (storage.ContentID, error) {
	return dnslink.ResolveContentID(domain, v.resolver)
}

// RetrieveName resolves domain and retrieves the content it points at.
func (v *Vault) RetrieveName(ctx context.Context, domain, password string) (*Retrieved, error) {
	id, err := v.ResolveName(domain)
	if err != nil {
		return nil, err
	}
	return v.Retrieve(ctx, id, password)
}
