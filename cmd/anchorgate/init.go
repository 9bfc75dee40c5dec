package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/anchorgate-go/config"
	"github.com/bitfsorg/anchorgate-go/wallet"
)

type initOptions struct {
	network    string
	words      int
	mnemonic   string
	passphrase string
	anchor     bool
}

func newInitCmd(g *globals) *cobra.Command {
	opts := &initOptions{}
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the data directory, wallet and config file",
		Long: `init generates (or restores from --mnemonic) the anchoring wallet,
encrypts its seed with the wallet password and writes a default config
file. The mnemonic is printed once and never stored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd, g, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.network, "network", "mainnet", "ledger network (mainnet, testnet, regtest)")
	flags.IntVar(&opts.words, "words", 12, "mnemonic length (12 or 24)")
	flags.StringVar(&opts.mnemonic, "mnemonic", "", "restore from an existing mnemonic")
	flags.StringVar(&opts.passphrase, "passphrase", "", "optional BIP39 passphrase")
	flags.BoolVar(&opts.anchor, "anchor", false, "enable anchoring in the written config")
	return cmd
}

func runInit(cmd *cobra.Command, g *globals, opts *initOptions) error {
	password := g.walletPassword()
	if password == "" {
		return fmt.Errorf("a wallet password is required (--password or $%s)", passwordEnv)
	}
	netCfg, err := wallet.GetNetwork(opts.network)
	if err != nil {
		return err
	}

	mnemonic := opts.mnemonic
	generated := mnemonic == ""
	if generated {
		bits := wallet.Mnemonic12Words
		switch opts.words {
		case 12:
		case 24:
			bits = wallet.Mnemonic24Words
		default:
			return fmt.Errorf("--words must be 12 or 24, got %d", opts.words)
		}
		if mnemonic, err = wallet.GenerateMnemonic(bits); err != nil {
			return err
		}
	}
	seed, err := wallet.SeedFromMnemonic(mnemonic, opts.passphrase)
	if err != nil {
		return err
	}
	w, err := wallet.NewWallet(seed, netCfg)
	if err != nil {
		return err
	}
	kp, err := w.DeriveAnchorKey(0)
	if err != nil {
		return err
	}
	addr, err := w.Address(kp)
	if err != nil {
		return err
	}

	cfgPath := config.ConfigPath(g.dataDir)
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil && !errors.Is(err, config.ErrConfigNotFound) {
		return err
	}
	if err := wallet.SaveSeed(wallet.KeystorePath(g.dataDir), seed, password); err != nil {
		return err
	}
	cfg.DataDir = g.dataDir
	cfg.Network = netCfg.Name
	cfg.Anchor.Enabled = cfg.Anchor.Enabled || opts.anchor
	if err := config.SaveConfig(cfgPath, cfg); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "data directory: %s\n", g.dataDir)
	fmt.Fprintf(out, "network:        %s\n", netCfg.Name)
	fmt.Fprintf(out, "anchor address: %s\n", addr)
	if generated {
		fmt.Fprintf(out, "\nmnemonic (write it down, it is not stored):\n  %s\n", mnemonic)
	}
	return nil
}
