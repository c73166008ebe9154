package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/roach88/acorn/internal/ledger"
	"github.com/roach88/acorn/internal/metrics"
	"github.com/roach88/acorn/internal/revision"
	acornsignal "github.com/roach88/acorn/internal/signal"
	"github.com/roach88/acorn/internal/transport"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen        string
	Peers         []string
	RetryInterval time.Duration
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a node that exchanges signals with peers",
		Long: `Run the local node: accept peer websocket connections on /peer, dial
configured peers, announce membership to them and expose /metrics.

Held revisions are retried on an interval until their dependencies arrive.

Example:
  acorn serve --listen 127.0.0.1:7777 --peer ws://10.0.0.2:7777/peer`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (overrides config)")
	cmd.Flags().StringSliceVar(&opts.Peers, "peer", nil, "peer websocket URL to dial (repeatable)")
	cmd.Flags().DurationVar(&opts.RetryInterval, "retry-interval", 10*time.Second, "interval between retries of held revisions")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Listen != "" {
		cfg.Serve.Listen = opts.Listen
	}
	logger := opts.newLogger(cfg, cmd.ErrOrStderr())

	key, err := ledger.LoadOrCreateKey(cfg.KeyFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load key", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	network := transport.New(key,
		transport.WithLogger(logger),
		transport.WithHandler(func(ctx context.Context, from revision.AgentID, payload []byte) {
			s, err := acornsignal.Unpack(payload)
			if err != nil {
				logger.Warn("undecodable signal", "from", from, "error", err)
				return
			}
			logger.Info("signal received", "from", from, "entry_type", s.EntryType, "action", s.Action)
		}),
	)
	defer network.Close()

	n, err := openNodeWithKey(cfg, key, logger, nodeDeps{sender: network, metrics: m})
	if err != nil {
		return err
	}
	defer closeNode(n)

	mux := http.NewServeMux()
	mux.Handle("/peer", network)
	if cfg.Serve.Metrics {
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	ln, err := net.Listen("tcp", cfg.Serve.Listen)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()

	logger.Info("node listening", "addr", ln.Addr().String(), "agent", network.Self())
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s as %s\n", ln.Addr(), network.Self())

	for _, url := range append(cfg.Serve.Peers, opts.Peers...) {
		id, err := network.Dial(ctx, url)
		if err != nil {
			logger.Warn("peer unreachable", "url", url, "error", err)
			continue
		}
		logger.Info("peer connected", "url", url, "peer", id)
	}
	if d := n.project.InitSignal(ctx, network.Online); !d.OK() {
		logger.Warn("member announcement incomplete", "error", d.Err)
	}

	interval := opts.RetryInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return WrapExitError(ExitFailure, "shutdown error", err)
			}
			return nil
		case err := <-serveErr:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return WrapExitError(ExitFailure, "server error", err)
		case <-ticker.C:
			if resolved, err := n.ledger.RetryPending(ctx); err != nil {
				logger.Warn("retry held revisions", "error", err)
			} else if resolved > 0 {
				logger.Info("held revisions resolved", "count", resolved)
			}
		}
	}
}
