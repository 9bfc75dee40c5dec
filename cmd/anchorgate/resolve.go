package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/anchorgate-go/dnslink"
)

func newResolveCmd(g *globals) *cobra.Command {
	var mirrors bool
	cmd := &cobra.Command{
		Use:   "resolve <domain>",
		Short: "Resolve a DNSLink domain to a content id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			resolver := resolverFor(cfg.DNS.DNSSEC, cfg.DNS.Upstream)
			out := cmd.OutOrStdout()

			id, err := dnslink.ResolveContentID(args[0], resolver)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, id)

			if !mirrors {
				return nil
			}
			urls, err := dnslink.ResolveMirrors(args[0], resolver)
			if errors.Is(err, dnslink.ErrNoMirrors) {
				return nil
			}
			if err != nil {
				return err
			}
			for _, u := range urls {
				fmt.Fprintf(out, "mirror %s\n", u)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&mirrors, "mirrors", false, "also list gateway mirrors published over SRV")
	return cmd
}

func resolverFor(dnssec bool, upstream string) dnslink.DNSResolver {
	if dnssec {
		return dnslink.NewDNSSECResolver(upstream)
	}
	return dnslink.DefaultResolver
}
