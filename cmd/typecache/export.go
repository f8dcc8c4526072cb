package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/typecache/internal/export"
)

func newDiagramCmd(a *app) *cobra.Command {
	var root string
	cmd := &cobra.Command{
		Use:   "diagram [pattern]",
		Short: "Ingest a source tree and print a Mermaid class diagram",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := snapshot(cmd, a, root, args)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(a.stdout, export.GenerateMermaid(snap.Types))
			return err
		},
	}
	cmd.Flags().StringVar(&root, "root", ".", "source tree to ingest")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var root string
	cmd := &cobra.Command{
		Use:   "export [pattern]",
		Short: "Ingest a source tree and print a JSON snapshot of the cache",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := snapshot(cmd, a, root, args)
			if err != nil {
				return err
			}
			return export.WriteJSON(a.stdout, snap)
		},
	}
	cmd.Flags().StringVar(&root, "root", ".", "source tree to ingest")
	return cmd
}

// snapshot ingests root, applies the configured sensor assignments and
// describes the types matching the optional pattern argument.
func snapshot(cmd *cobra.Command, a *app, root string, args []string) (*export.Snapshot, error) {
	pattern := "*"
	if len(args) == 1 {
		pattern = args[0]
	}
	cache, err := a.loadedCache(cmd.Context(), root)
	if err != nil {
		return nil, err
	}
	appliers, err := a.appliers()
	if err != nil {
		return nil, err
	}
	if len(appliers) > 0 {
		cache.Instrumentation().AddInstrumentationPoints(cmd.Context(), a.cfg.Agent, appliers)
	}
	return export.TakeSnapshot(cache, pattern)
}
