package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/typecache/internal/ingest"
)

func newIngestCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ingest [root]",
		Short: "Parse a source tree and report what was cached",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			cache, err := a.newCache()
			if err != nil {
				return err
			}
			stats, err := a.ingestRoot(cmd.Context(), cache, root)
			if err != nil {
				return err
			}
			if asJSON {
				return a.printJSON(stats)
			}
			printStats(a, stats, cache.Len())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print statistics as JSON")
	return cmd
}

func printStats(a *app, s *ingest.Stats, nodes int) {
	fmt.Fprintf(a.stdout, "Files:     %d (%d parsed, %d skipped)\n", s.Files, s.Parsed, s.Skipped)
	fmt.Fprintf(a.stdout, "Types:     %d (%d merged, %d rejected)\n", s.Types, s.Merged, s.Rejected)
	fmt.Fprintf(a.stdout, "Events:    %d\n", s.Events)
	fmt.Fprintf(a.stdout, "Rewritten: %d references\n", s.Rewritten)
	fmt.Fprintf(a.stdout, "Nodes:     %d\n", nodes)
}
