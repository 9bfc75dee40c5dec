package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/anchorgate-go/anchor"
	"github.com/bitfsorg/anchorgate-go/storage"
)

func newStatusCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status <cid>",
		Short: "Show the storage order recorded for a content id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := g.openVault()
			if err != nil {
				return err
			}
			defer v.Close()

			order, err := v.AnchorStatus(cmd.Context(), storage.ContentID(args[0]))
			if err != nil {
				return err
			}
			if order == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "no storage order for %s\n", args[0])
				return nil
			}
			printOrder(cmd.OutOrStdout(), order)
			return nil
		},
	}
}

func printOrder(w io.Writer, o *anchor.StorageOrder) {
	fmt.Fprintf(w, "order:      %s %s\n", o.Status, o.Amount)
	if o.Placeholder {
		fmt.Fprintln(w, "            placeholder, account has no balance")
	}
	if o.TxID != "" {
		fmt.Fprintf(w, "txid:       %s\n", o.TxID)
	}
	if o.Included() {
		fmt.Fprintf(w, "block:      %d %s\n", o.BlockHeight, o.BlockHash)
	}
	fmt.Fprintf(w, "replicas:   %d\n", o.ReplicaCount)
	if !o.ExpiresAt.IsZero() {
		fmt.Fprintf(w, "expires:    %s\n", o.ExpiresAt.UTC().Format(time.RFC3339))
	}
}
