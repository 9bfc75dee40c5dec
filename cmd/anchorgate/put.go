package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/anchorgate-go/vault"
)

type putOptions struct {
	filename  string
	mimeType  string
	encrypt   string
	withKey   bool
	recipient string
	sign      bool
	message   string
	anchor    string
	wait      bool
}

func newPutCmd(g *globals) *cobra.Command {
	opts := &putOptions{}
	cmd := &cobra.Command{
		Use:   "put <file>",
		Short: "Store a file and print its content id",
		Long: `put wraps the file in an envelope, stores it on the first backend
that accepts it and, when anchoring applies, places a storage order.
Use "-" to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPut(cmd, g, opts, args[0])
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.filename, "filename", "", "filename recorded in the envelope (default: base name of <file>)")
	flags.StringVar(&opts.mimeType, "type", "", "MIME type recorded in the envelope (default: from extension)")
	flags.StringVar(&opts.encrypt, "encrypt", "", "encrypt the payload with this password")
	flags.BoolVar(&opts.withKey, "encrypt-key", false, "encrypt with a random key and print it sealed to --recipient")
	flags.StringVar(&opts.recipient, "recipient", "", "hex X25519 public key the random key is sealed to")
	flags.BoolVar(&opts.sign, "sign", false, "sign the envelope with the wallet key")
	flags.StringVar(&opts.message, "sign-message", "", "message to sign (default: hex sha256 of the stored body)")
	flags.StringVar(&opts.anchor, "anchor", "", "place a storage order: true, false, or empty for the config default")
	flags.BoolVar(&opts.wait, "wait", false, "wait until the storage order is confirmed or rejected")
	return cmd
}

func runPut(cmd *cobra.Command, g *globals, opts *putOptions, path string) error {
	payload, name, err := readInput(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}
	storeOpts, err := opts.storeOptions(name)
	if err != nil {
		return err
	}

	v, err := g.openVault()
	if err != nil {
		return err
	}
	defer v.Close()

	ctx := cmd.Context()
	res, err := v.Store(ctx, payload, storeOpts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "content id: %s\n", res.ID)
	fmt.Fprintf(out, "stored on:  %s (%s)\n", res.Backend, res.Source)
	if res.Key != nil {
		if res.Key.Insecure {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning: key is not sealed; anyone holding it can decrypt")
		}
		fmt.Fprintf(out, "key:        %s\n", res.Key.Value)
	}
	if res.AnchorErr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: storage order not placed: %v\n", res.AnchorErr)
	}
	if res.Order != nil {
		printOrder(out, res.Order)
	}
	if opts.wait && res.Submission != nil {
		return waitOrder(ctx, out, res)
	}
	return nil
}

func (o *putOptions) storeOptions(name string) (vault.StoreOptions, error) {
	so := vault.StoreOptions{
		Filename:    name,
		MimeType:    o.mimeType,
		Password:    o.encrypt,
		EncryptKey:  o.withKey,
		Sign:        o.sign,
		SignMessage: o.message,
	}
	if o.filename != "" {
		so.Filename = o.filename
	}
	if so.MimeType == "" {
		so.MimeType = mime.TypeByExtension(filepath.Ext(so.Filename))
	}
	if o.recipient != "" {
		raw, err := hex.DecodeString(o.recipient)
		if err != nil || len(raw) != 32 {
			return so, errors.New("--recipient must be a 32-byte hex public key")
		}
		var pub [32]byte
		copy(pub[:], raw)
		so.Recipient = &pub
	}
	mode, err := parseAnchor(o.anchor)
	if err != nil {
		return so, err
	}
	so.Anchor = mode
	return so, nil
}

func parseAnchor(v string) (vault.AnchorMode, error) {
	switch v {
	case "":
		return vault.AnchorDefault, nil
	case "true", "yes", "1":
		return vault.AnchorAlways, nil
	case "false", "no", "0":
		return vault.AnchorNever, nil
	}
	return vault.AnchorDefault, fmt.Errorf("--anchor must be true or false, got %q", v)
}

func readInput(stdin io.Reader, path string) ([]byte, string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		return data, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return data, filepath.Base(path), nil
}

func waitOrder(ctx context.Context, out io.Writer, res *vault.StoreResult) error {
	fmt.Fprintln(out, "waiting for confirmation...")
	order, err := res.Submission.Wait(ctx)
	if order != nil {
		printOrder(out, order)
	}
	return err
}
