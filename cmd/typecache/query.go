package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/typecache/internal/agentrpc"
)

func newQueryCmd(a *app) *cobra.Command {
	var (
		root   string
		req    agentrpc.FindRequest
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "query [pattern]",
		Short: "Ingest a source tree and list the types matching a pattern",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				req.Pattern = args[0]
			}
			cache, err := a.loadedCache(cmd.Context(), root)
			if err != nil {
				return err
			}
			resp, err := agentrpc.NewCacheHandler(cache, a.cfg.Agent, nil).HandleFind(cmd.Context(), req)
			if err != nil {
				return err
			}
			if asJSON {
				return a.printJSON(resp)
			}

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			for _, t := range resp.Types {
				state := "stub"
				if t.Initialized {
					state = strings.Join(t.Hashes, ",")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Kind, t.FQN, t.Modifiers, state)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if len(resp.Types) < resp.Total {
				fmt.Fprintf(a.stdout, "... %d of %d shown\n", len(resp.Types), resp.Total)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&root, "root", ".", "source tree to ingest")
	cmd.Flags().StringVar(&req.Kind, "kind", "", "restrict to class, interface, annotation or exception")
	cmd.Flags().StringVar(&req.Hash, "hash", "", "look up the type owning this hash instead of a pattern")
	cmd.Flags().BoolVar(&req.OnlyInitialized, "initialized", false, "skip types only known from references")
	cmd.Flags().IntVar(&req.Limit, "limit", 0, "maximum number of types to print")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}
