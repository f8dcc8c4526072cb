package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInstrumentCmd(a *app) *cobra.Command {
	var (
		root   string
		byHash bool
	)
	cmd := &cobra.Command{
		Use:   "instrument",
		Short: "Ingest a source tree and print the instrumentation of the configured assignments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appliers, err := a.appliers()
			if err != nil {
				return err
			}
			if len(appliers) == 0 {
				return fmt.Errorf("no sensor assignments configured in %s", a.configDir)
			}

			cache, err := a.loadedCache(cmd.Context(), root)
			if err != nil {
				return err
			}
			svc := cache.Instrumentation()
			added := svc.AddInstrumentationPoints(cmd.Context(), a.cfg.Agent, appliers)
			a.logger.Info("instrumentation computed", "classes", len(added), "assignments", len(appliers))

			if byHash {
				return a.printJSON(svc.GetInstrumentationResultsWithHashes())
			}
			return a.printJSON(svc.GetInstrumentationResults())
		},
	}
	cmd.Flags().StringVar(&root, "root", ".", "source tree to ingest")
	cmd.Flags().BoolVar(&byHash, "by-hash", false, "key the definitions by class hash")
	return cmd
}
