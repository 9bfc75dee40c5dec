package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bitfsorg/anchorgate-go/anchor"
	"github.com/bitfsorg/anchorgate-go/daemon"
	"github.com/bitfsorg/anchorgate-go/logging"
	"github.com/bitfsorg/anchorgate-go/metrics"
	"github.com/bitfsorg/anchorgate-go/vault"
)

const (
	metricsNamespace = "anchorgate"
	nodeTimeout      = 30 * time.Second
)

type serveOptions struct {
	listen      string
	metrics     string
	maxBodySize int64
	noImport    bool
}

func newServeCmd(g *globals) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, g, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.listen, "listen", "", "API listen address (overrides listen_addr)")
	flags.StringVar(&opts.metrics, "metrics", "", "metrics listen address (overrides metrics_addr)")
	flags.Int64Var(&opts.maxBodySize, "max-body-size", daemon.DefaultMaxBodySize, "largest accepted upload in bytes")
	flags.BoolVar(&opts.noImport, "no-import", false, "skip importing the anchor address into the node wallet")
	return cmd
}

func runServe(cmd *cobra.Command, g *globals, opts *serveOptions) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if opts.listen != "" {
		cfg.ListenAddr = opts.listen
	}
	if opts.metrics != "" {
		cfg.MetricsAddr = opts.metrics
	}
	log, err := g.logger(cfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := metrics.NewProm(metricsNamespace, reg)

	v, err := vault.Open(cfg, vault.OpenOptions{
		Password: g.walletPassword(),
		Logger:   log,
		Metrics:  prom,
	})
	if err != nil {
		return err
	}
	defer v.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srvLog := logging.Component(log, "daemon")
	if a := v.Anchor(); a != nil {
		if err := prepareAnchor(ctx, a, cfg.Network, !opts.noImport, srvLog); err != nil {
			return err
		}
	}

	api, err := daemon.Listen("api", cfg.ListenAddr, daemon.New(v,
		daemon.WithLogger(srvLog),
		daemon.WithMaxBodySize(opts.maxBodySize),
	))
	if err != nil {
		return err
	}
	endpoints := []daemon.Endpoint{api}

	if cfg.MetricsAddr != "" {
		ep, err := daemon.Listen("metrics", cfg.MetricsAddr, daemon.MetricsMux(metrics.HandlerFor(reg)))
		if err != nil {
			_ = api.Listener.Close()
			return err
		}
		endpoints = append(endpoints, ep)
	}

	return daemon.Serve(ctx, srvLog, endpoints...)
}

// prepareAnchor refuses to serve against a node on another chain and makes
// sure the node indexes the anchoring address.
func prepareAnchor(ctx context.Context, a *anchor.Anchor, network string, importAddr bool, log *logrus.Entry) error {
	ctx, cancel := context.WithTimeout(ctx, nodeTimeout)
	defer cancel()

	if err := a.CheckChain(ctx, network); err != nil {
		if errors.Is(err, anchor.ErrWrongChain) {
			return err
		}
		log.WithError(err).Warn("node chain not verified")
	}
	if importAddr {
		if err := a.ImportAccount(ctx); err != nil {
			log.WithError(err).Warn("anchor address not imported; balance may read as zero")
		}
	}
	return nil
}
