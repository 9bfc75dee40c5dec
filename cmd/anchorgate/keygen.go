package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/curve25519"

	"github.com/bitfsorg/anchorgate-go/cryptobox"
)

func newKeygenCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create a recipient key pair for sealed content keys",
		Long: `keygen creates an X25519 key pair. Give the public key to
"put --encrypt-key --recipient"; keep the identity file for
"get --sealed-key --identity".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pub, priv, err := cryptobox.GenerateRecipientKey()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if output == "" {
				fmt.Fprintf(out, "private key: %s\n", hex.EncodeToString(priv[:]))
			} else {
				if err := os.WriteFile(output, []byte(hex.EncodeToString(priv[:])+"\n"), 0600); err != nil {
					return err
				}
				fmt.Fprintf(out, "identity:    %s\n", output)
			}
			fmt.Fprintf(out, "public key:  %s\n", hex.EncodeToString(pub[:]))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the private key to this identity file instead of stdout")
	return cmd
}

// loadIdentity reads a hex X25519 private key written by keygen and derives
// its public key.
func loadIdentity(path string) (publicKey, privateKey *[32]byte, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	raw, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil || len(raw) != 32 {
		return nil, nil, errors.New("identity must hold a 32-byte hex private key")
	}
	pub, err := curve25519.X25519(raw, curve25519.Basepoint)
	if err != nil {
		return nil, nil, fmt.Errorf("identity: %w", err)
	}
	privateKey, publicKey = new([32]byte), new([32]byte)
	copy(privateKey[:], raw)
	copy(publicKey[:], pub)
	return publicKey, privateKey, nil
}
