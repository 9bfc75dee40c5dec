package main

import (
	"errors"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bitfsorg/anchorgate-go/config"
	"github.com/bitfsorg/anchorgate-go/logging"
	"github.com/bitfsorg/anchorgate-go/vault"
)

// passwordEnv is read when --password is not given.
const passwordEnv = "ANCHORGATE_PASSWORD"

// globals are the persistent flags shared by every subcommand.
type globals struct {
	dataDir  string
	password string
	logLevel string

	rpcURL  string
	rpcUser string
	rpcPass string
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "anchorgate",
		Short: "Decentralized content storage gateway",
		Long: `anchorgate wraps files in a metadata envelope, stores them on the
configured storage backends with a local fallback, and records storage
orders on the ledger when anchoring is enabled.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&g.dataDir, "datadir", config.DefaultDataDir(), "data directory holding config, wallet and local storage")
	flags.StringVar(&g.password, "password", "", "wallet password (default $"+passwordEnv+")")
	flags.StringVar(&g.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	flags.StringVar(&g.rpcURL, "rpc-url", "", "ledger node RPC URL override")
	flags.StringVar(&g.rpcUser, "rpc-user", "", "ledger node RPC user override")
	flags.StringVar(&g.rpcPass, "rpc-pass", "", "ledger node RPC password override")

	root.AddCommand(
		newInitCmd(g),
		newServeCmd(g),
		newPutCmd(g),
		newGetCmd(g),
		newStatusCmd(g),
		newResolveCmd(g),
		newKeygenCmd(),
	)
	return root
}

func (g *globals) walletPassword() string {
	if g.password != "" {
		return g.password
	}
	return os.Getenv(passwordEnv)
}

// loadConfig reads the config file in the data directory, falling back to
// defaults when none exists, and applies the flag overrides.
func (g *globals) loadConfig() (config.Config, error) {
	cfg, err := config.LoadConfig(config.ConfigPath(g.dataDir))
	if err != nil && !errors.Is(err, config.ErrConfigNotFound) {
		return cfg, err
	}
	cfg.DataDir = g.dataDir
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if g.rpcURL != "" {
		cfg.RPC.URL = g.rpcURL
	}
	if g.rpcUser != "" {
		cfg.RPC.User = g.rpcUser
	}
	if g.rpcPass != "" {
		cfg.RPC.Password = g.rpcPass
	}
	return cfg, nil
}

func (g *globals) logger(cfg config.Config) (*logrus.Logger, error) {
	return logging.New(cfg.LogLevel, cfg.LogFile)
}

// openVault loads the config and opens the vault for a one-shot command.
func (g *globals) openVault() (*vault.Vault, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := g.logger(cfg)
	if err != nil {
		return nil, err
	}
	return vault.Open(cfg, vault.OpenOptions{Password: g.walletPassword(), Logger: log})
}
