package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/anchorgate-go/cryptobox"
	"github.com/bitfsorg/anchorgate-go/storage"
	"github.com/bitfsorg/anchorgate-go/vault"
)

type getOptions struct {
	output   string
	password string
	key      string
	sealed   string
	identity string
	domain   bool
}

func newGetCmd(g *globals) *cobra.Command {
	opts := &getOptions{}
	cmd := &cobra.Command{
		Use:   "get <cid>",
		Short: "Retrieve stored content",
		Long: `get fetches content by id, or by DNSLink domain with --domain, and
writes the payload to stdout or --output. Metadata goes to stderr.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, g, opts, args[0])
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "", "write the payload to this file")
	flags.StringVar(&opts.password, "decrypt", "", "password for encrypted content")
	flags.StringVar(&opts.key, "key", "", "base64 content key for key-encrypted content")
	flags.StringVar(&opts.sealed, "sealed-key", "", "sealed content key printed by put --encrypt-key --recipient")
	flags.StringVar(&opts.identity, "identity", "", "identity file from keygen that opens --sealed-key")
	flags.BoolVar(&opts.domain, "domain", false, "treat the argument as a DNSLink domain")
	return cmd
}

func runGet(cmd *cobra.Command, g *globals, opts *getOptions, arg string) error {
	set := 0
	for _, v := range []string{opts.password, opts.key, opts.sealed} {
		if v != "" {
			set++
		}
	}
	if set > 1 {
		return errors.New("--decrypt, --key and --sealed-key are mutually exclusive")
	}
	if (opts.sealed == "") != (opts.identity == "") {
		return errors.New("--sealed-key and --identity must be given together")
	}
	if opts.domain && (opts.key != "" || opts.sealed != "") {
		return errors.New("--domain supports only --decrypt")
	}
	var pub, priv *[32]byte
	if opts.identity != "" {
		var err error
		if pub, priv, err = loadIdentity(opts.identity); err != nil {
			return err
		}
	}
	v, err := g.openVault()
	if err != nil {
		return err
	}
	defer v.Close()

	ctx := cmd.Context()
	var r *vault.Retrieved
	switch {
	case opts.domain:
		r, err = v.RetrieveName(ctx, arg, opts.password)
	case opts.key != "":
		key, derr := base64.StdEncoding.DecodeString(opts.key)
		if derr != nil {
			return fmt.Errorf("--key: %w", derr)
		}
		r, err = v.RetrieveWithKey(ctx, storage.ContentID(arg), key)
	case opts.sealed != "":
		sk := &cryptobox.SealedKey{Value: opts.sealed}
		r, err = v.RetrieveSealed(ctx, storage.ContentID(arg), sk, pub, priv)
	default:
		r, err = v.Retrieve(ctx, storage.ContentID(arg), opts.password)
	}
	if err != nil {
		return err
	}

	if err := report(cmd.ErrOrStderr(), r); err != nil {
		return err
	}

	if opts.output == "" {
		_, err = cmd.OutOrStdout().Write(r.Payload)
		return err
	}
	return os.WriteFile(opts.output, r.Payload, 0644)
}

// report describes r and fails for a partial result, after the recorded
// metadata has been printed.
func report(w io.Writer, r *vault.Retrieved) error {
	describe(w, r)
	if r.Partial {
		return fmt.Errorf("%s: found on no backend yet; other backends failed, retry later", r.ID)
	}
	return nil
}

func describe(w io.Writer, r *vault.Retrieved) {
	fmt.Fprintf(w, "content id: %s\n", r.ID)
	fmt.Fprintf(w, "source:     %s %s\n", r.Source, r.Backend)
	if r.Raw {
		fmt.Fprintln(w, "raw:        true")
		return
	}
	m := r.Metadata
	fmt.Fprintf(w, "filename:   %s\n", m.Filename)
	fmt.Fprintf(w, "type:       %s\n", m.MimeType)
	fmt.Fprintf(w, "size:       %d\n", m.Size)
	if m.Timestamp > 0 {
		fmt.Fprintf(w, "uploaded:   %s\n", time.UnixMilli(m.Timestamp).UTC().Format(time.RFC3339))
	}
	if m.Encrypted && !r.Decrypted {
		fmt.Fprintln(w, "encrypted:  true (payload is ciphertext)")
	}
	if m.SignerID != "" {
		fmt.Fprintf(w, "signed by:  %s (valid: %t)\n", m.SignerID, r.SignatureValid)
	}
}
