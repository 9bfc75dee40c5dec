package vault

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/sirupsen/logrus"

	"github.com/bitfsorg/anchorgate-go/anchor"
	"github.com/bitfsorg/anchorgate-go/config"
	"github.com/bitfsorg/anchorgate-go/cryptobox"
	"github.com/bitfsorg/anchorgate-go/dnslink"
	"github.com/bitfsorg/anchorgate-go/logging"
	"github.com/bitfsorg/anchorgate-go/network"
	"github.com/bitfsorg/anchorgate-go/storage"
	"github.com/bitfsorg/anchorgate-go/wallet"
)

// Files inside the data directory.
const (
	lockFile   = "anchorgate.lock"
	storageDir = "storage"
	metaDB     = "meta.db"
	ordersDB   = "orders.db"
)

// Metrics is what Open feeds into the gateway and the anchor.
type Metrics interface {
	storage.Metrics
	anchor.Metrics
}

// OpenOptions carry the process-level inputs Open needs besides the config.
type OpenOptions struct {
	// Password unlocks the wallet keystore. Required when anchoring is
	// enabled; otherwise a keystore that unlocks provides the signing key.
	Password string

	Logger  *logrus.Logger
	Metrics Metrics

	// Env overrides RPC settings; nil means network.EnvFromOS().
	Env map[string]string
}

// Open builds a Vault from cfg: backends in priority order (network API,
// configured mirrors, DNSLink-published mirrors, local fallback), bbolt
// metadata and order stores under cfg.DataDir, and the ChainAnchor when
// anchoring is enabled. The data directory stays locked until Close.
func Open(cfg config.Config, opts OpenOptions) (v *Vault, err error) {
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("vault: create data directory: %w", err)
	}
	lock, err := lockDataDir(filepath.Join(cfg.DataDir, lockFile))
	if err != nil {
		return nil, err
	}

	var closers []func() error
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				_ = closers[i]()
			}
			unlockDataDir(lock)
		}
	}()

	log := logging.Component(opts.Logger, "vault")
	resolver := newResolver(cfg.DNS)

	backends, networkBackend, err := buildBackends(cfg, resolver, log)
	if err != nil {
		return nil, err
	}

	meta, err := storage.OpenBoltMetaStore(filepath.Join(cfg.DataDir, metaDB))
	if err != nil {
		return nil, err
	}
	closers = append(closers, meta.Close)

	gwOpts := []storage.Option{
		storage.WithCache(storage.NewCache()),
		storage.WithMetadataStore(meta),
		storage.WithAttemptTimeout(cfg.Storage.AttemptTimeout),
		storage.WithLogger(logging.Component(opts.Logger, "storage")),
	}
	if opts.Metrics != nil {
		gwOpts = append(gwOpts, storage.WithMetrics(opts.Metrics))
	}
	gw, err := storage.NewGateway(backends, gwOpts...)
	if err != nil {
		return nil, err
	}
	log.WithField("backends", gw.Backends()).Debug("storage gateway ready")

	account, err := loadAccount(cfg, opts.Password)
	if err != nil {
		return nil, err
	}

	var anc *anchor.Anchor
	if cfg.Anchor.Enabled {
		orders, err := anchor.OpenBoltOrderStore(filepath.Join(cfg.DataDir, ordersDB))
		if err != nil {
			return nil, err
		}
		closers = append(closers, orders.Close)

		if anc, err = buildAnchor(cfg, opts, *account, orders, networkBackend); err != nil {
			return nil, err
		}
		log.WithField("address", account.Address).Info("anchoring enabled")
	}

	var signing *ec.PrivateKey
	if account != nil {
		signing = account.Key
	}

	v, err = New(Config{SigningKey: signing, AnchorByDefault: cfg.Anchor.Enabled}, Deps{
		Gateway:  gw,
		Anchor:   anc,
		Resolver: resolver,
		Sealer:   cryptobox.NaClSealer{},
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}
	v.closers, v.lock = closers, lock
	return v, nil
}

func newResolver(c config.DNSConfig) dnslink.DNSResolver {
	if c.DNSSEC {
		return dnslink.NewDNSSECResolver(c.Upstream)
	}
	return dnslink.DefaultResolver
}

// buildBackends returns the ordered backend list and the network backend,
// which doubles as the replica reporter.
func buildBackends(cfg config.Config, resolver dnslink.DNSResolver, log *logrus.Entry) ([]storage.Backend, *storage.NetworkBackend, error) {
	var (
		backends []storage.Backend
		nb       *storage.NetworkBackend
	)
	s := cfg.Storage

	if s.NetworkAPI != "" {
		nb = storage.NewNetworkBackend(s.NetworkAPI, storage.Auth{Token: s.NetworkToken})
		backends = append(backends, nb)
	}
	for _, m := range s.Mirrors {
		auth := storage.Auth{Token: m.Token, User: m.User, Password: m.Password}
		backends = append(backends, storage.NewMirrorBackend(m.URL, auth, m.ReadOnly))
	}
	if s.DNSLinkDomain != "" {
		urls, err := dnslink.ResolveMirrors(s.DNSLinkDomain, resolver)
		if err != nil {
			log.WithError(err).WithField("domain", s.DNSLinkDomain).Warn("no mirrors discovered")
		}
		for _, u := range urls {
			backends = append(backends, storage.NewMirrorBackend(u, storage.Auth{}, true))
		}
	}

	local, err := storage.NewFileStore(filepath.Join(cfg.DataDir, storageDir))
	if err != nil {
		return nil, nil, err
	}
	if ids, err := local.List(); err != nil {
		log.WithError(err).Warn("local fallback unreadable")
	} else if len(ids) > 0 {
		log.WithField("objects", len(ids)).Info("local fallback holds content not stored on the network")
	}
	return append(backends, local), nb, nil
}

// loadAccount unlocks the keystore and derives the anchoring key. It returns
// nil without error when anchoring is off and no usable keystore exists.
func loadAccount(cfg config.Config, password string) (*anchor.Account, error) {
	netCfg, err := wallet.GetNetwork(cfg.Network)
	if err != nil {
		return nil, err
	}
	path := wallet.KeystorePath(cfg.DataDir)

	if password == "" {
		if cfg.Anchor.Enabled {
			return nil, ErrPasswordRequired
		}
		return nil, nil
	}

	w, err := wallet.Open(path, password, netCfg)
	if err != nil {
		if !cfg.Anchor.Enabled && errors.Is(err, wallet.ErrKeystoreNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("vault: unlock wallet: %w", err)
	}
	kp, err := w.DeriveAnchorKey(0)
	if err != nil {
		return nil, err
	}
	addr, err := w.Address(kp)
	if err != nil {
		return nil, err
	}
	return &anchor.Account{Key: kp.PrivateKey, Address: addr}, nil
}

func buildAnchor(cfg config.Config, opts OpenOptions, account anchor.Account, orders anchor.OrderStore, nb *storage.NetworkBackend) (*anchor.Anchor, error) {
	env := opts.Env
	if env == nil {
		env = network.EnvFromOS()
	}
	rpcCfg, err := network.ResolveConfig(&network.RPCConfig{
		URL:      cfg.RPC.URL,
		User:     cfg.RPC.User,
		Password: cfg.RPC.Password,
	}, env, cfg.Network)
	if err != nil {
		return nil, err
	}
	chain := network.NewRPCClient(*rpcCfg)
	log := logging.Component(opts.Logger, "anchor")

	var watcher anchor.Watcher
	if cfg.Anchor.StreamURL != "" {
		watcher = anchor.NewStreamWatcher(cfg.Anchor.StreamURL, nil, log)
	} else {
		watcher = anchor.NewPollWatcher(chain, cfg.Anchor.PollInterval, log)
	}

	aopts := []anchor.Option{anchor.WithWatcher(watcher), anchor.WithLogger(log)}
	if nb != nil {
		aopts = append(aopts, anchor.WithReplicaReporter(nb))
	}
	if opts.Metrics != nil {
		aopts = append(aopts, anchor.WithMetrics(opts.Metrics))
	}

	return anchor.New(chain, account, orders, anchor.Config{
		Unit:           cfg.Anchor.Unit,
		PricePerMiB:    cfg.Anchor.PricePerMiB,
		OrderDuration:  cfg.Anchor.OrderDuration,
		ConfirmTimeout: cfg.Anchor.ConfirmTimeout,
		FeeRate:        cfg.Anchor.FeeRate,
	}, aopts...)
}
