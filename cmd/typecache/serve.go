package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/typecache/internal/agentrpc"
	"github.com/dusk-indust/typecache/internal/ingest"
	"github.com/dusk-indust/typecache/internal/mcptools"
	"github.com/dusk-indust/typecache/internal/telemetry"
	"github.com/dusk-indust/typecache/internal/typeparse"
)

const shutdownTimeout = 5 * time.Second

type serveOptions struct {
	root        string
	rpcAddr     string
	metricsAddr string
	mcp         string
	mcpAddr     string
}

func newServeCmd(a *app) *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the agent JSON-RPC server, optionally with an MCP endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.rpcAddr == "" {
				opts.rpcAddr = a.cfg.Server.RPCAddr
			}
			if opts.metricsAddr == "" {
				opts.metricsAddr = a.cfg.Server.MetricsAddr
			}
			switch opts.mcp {
			case "", "stdio", "http":
			default:
				return fmt.Errorf("unknown --mcp transport %q (want stdio or http)", opts.mcp)
			}
			return a.serve(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.root, "root", "", "source tree to ingest before serving")
	cmd.Flags().StringVar(&opts.rpcAddr, "rpc-addr", "", "agent JSON-RPC listen address (default from config)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Prometheus metrics listen address; empty disables metrics")
	cmd.Flags().StringVar(&opts.mcp, "mcp", "", "also serve MCP tools over stdio or http")
	cmd.Flags().StringVar(&opts.mcpAddr, "mcp-addr", "127.0.0.1:7071", "listen address for --mcp http")
	return cmd
}

func (a *app) serve(ctx context.Context, opts serveOptions) error {
	if opts.metricsAddr != "" {
		provider, err := telemetry.Init()
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := provider.Shutdown(sctx); err != nil {
				a.logger.Warn("telemetry shutdown", "error", err)
			}
		}()
		stopMetrics, err := a.serveMetrics(provider, opts.metricsAddr)
		if err != nil {
			return err
		}
		defer stopMetrics()
	}

	cache, err := a.newCache()
	if err != nil {
		return err
	}
	events := agentrpc.NewBroadcaster(cache.SessionID())
	cache.RegisterNodeChangeListener(events)

	appliers, err := a.appliers()
	if err != nil {
		return err
	}
	if opts.root != "" {
		if _, err := a.ingestRoot(ctx, cache, opts.root); err != nil {
			return err
		}
		if len(appliers) > 0 {
			added := cache.Instrumentation().AddInstrumentationPoints(ctx, a.cfg.Agent, appliers)
			a.logger.Info("preloaded instrumentation", "classes", len(added))
		}
	}

	handler := agentrpc.NewCacheHandler(cache, a.cfg.Agent, appliers)
	rpc := agentrpc.NewServer(handler, events, a.logger)
	if err := rpc.Start(ctx, opts.rpcAddr); err != nil {
		return err
	}
	a.logger.Info("agent rpc listening", "addr", rpc.Addr(), "session", cache.SessionID())
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := rpc.Stop(sctx); err != nil {
			a.logger.Warn("agent rpc shutdown", "error", err)
		}
	}()

	if opts.mcp == "" {
		<-ctx.Done()
		return nil
	}

	ingestOpts, err := a.ingestOptions()
	if err != nil {
		return err
	}
	parser := typeparse.NewTreeSitterParser()
	defer parser.Close()
	svc := mcptools.NewTypeCacheService(cache, handler, ingest.New(cache, parser, ingest.WithLogger(a.logger)), ingestOpts)
	server := mcptools.NewTypeCacheMCPServer(svc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if opts.mcp == "stdio" {
			return mcptools.RunStdio(gctx, server)
		}
		a.logger.Info("mcp listening", "addr", opts.mcpAddr)
		return mcptools.RunHTTP(gctx, server, opts.mcpAddr)
	})
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// serveMetrics exposes the provider's registry at /metrics and returns a
// function that stops the listener.
func (a *app) serveMetrics(p *telemetry.Provider, addr string) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", p.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server", "error", err)
		}
	}()
	a.logger.Info("metrics listening", "addr", ln.Addr().String())
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
