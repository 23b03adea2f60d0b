package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"staffcore/internal/adapters/httpapi"
	"staffcore/internal/core"
	"staffcore/internal/logging"
	"staffcore/internal/notify"
	"staffcore/internal/printer"
	"staffcore/internal/state"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	addr      string
	tracePath string
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the allocation API, the /api/v1/events state stream and /metrics.

When redis.addr is configured, every committed change is published on the
instance change channel and changes published by other staffcore processes
reload the local state.

Examples:
  # Serve with ./staffcore.yml
  staffcore serve

  # Override the listen address and write spans to a file
  staffcore serve --addr 127.0.0.1:9090 --trace spans.jsonl`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv, err := newServer(ctx, root, opts)
			if err != nil {
				return err
			}
			defer srv.Close()

			addr := srv.session.cfg.HTTP.Addr
			if opts.addr != "" {
				addr = opts.addr
			}
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return printer.Error("cannot listen", err.Error(), []string{
					"Pick another address with --addr or http.addr",
				})
			}
			printer.Success("serving on http://%s\n", ln.Addr())
			return srv.Serve(ctx, ln)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "", "Listen address (overrides http.addr)")
	cmd.Flags().StringVar(&opts.tracePath, "trace", "", "Append JSON trace spans to this file")
	return cmd
}

// server wires the service, state mirror, change feed and HTTP handler.
type server struct {
	session  *session
	registry *prometheus.Registry
	mirror   *state.Mirror
	feed     *notify.Client
	handler  http.Handler
}

func newServer(ctx context.Context, root *rootOptions, opts *serveOptions) (*server, error) {
	srv := &server{registry: prometheus.NewRegistry()}
	srv.registry.MustRegister(collectors.NewGoCollector())

	var svc *core.Service
	source := state.SourceFunc(func(ctx context.Context) (core.Overview, error) {
		return svc.Overview(ctx)
	})

	s, err := openSession(ctx, root, func(s *session) ([]core.Option, error) {
		srv.mirror = state.NewMirror(state.NewContainer(), source, state.WithLogger(s.logger.With("component", "mirror")))
		svcOpts := []core.Option{
			core.WithMetricsRecorder(core.MultiMetricsRecorder{
				core.NewPrometheusMetricsRecorder(srv.registry),
				core.NewExpvarMetricsRecorder(""),
			}),
			core.WithAuditRecorder(logging.NewAuditRecorder(s.logger)),
			core.WithCommitHook(srv.mirror.CommitHook()),
		}
		if opts.tracePath != "" {
			f, err := os.OpenFile(opts.tracePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640) // #nosec G304 -- operator supplied path
			if err != nil {
				return nil, printer.Error("cannot open trace file", err.Error(), nil)
			}
			s.closers = append(s.closers, f.Close)
			svcOpts = append(svcOpts, core.WithTracer(core.NewJSONTracer(f)))
		}
		if redisOpts := s.cfg.RedisOptions(); redisOpts != nil {
			feed, err := notify.NewClient(redisOpts, s.cfg.Instance, notify.WithLogger(s.logger.With("component", "notify")))
			if err != nil {
				return nil, printer.Error("invalid change feed settings", err.Error(), nil)
			}
			s.closers = append(s.closers, feed.Close)
			if err := feed.Ping(ctx); err != nil {
				return nil, printer.ErrorWithContext("cannot reach redis", err.Error(),
					map[string]string{"Address": redisOpts.Addr},
					[]string{"Start redis or clear redis.addr to run without the change feed"})
			}
			srv.feed = feed
			svcOpts = append(svcOpts, core.WithCommitHook(feed.CommitHook()))
		}
		return svcOpts, nil
	})
	if err != nil {
		return nil, err
	}
	srv.session = s
	svc = s.svc

	if err := srv.mirror.Load(ctx); err != nil {
		s.Close()
		return nil, printer.Error("cannot load state", err.Error(), nil)
	}
	srv.handler = httpapi.NewHandler(s.svc,
		httpapi.WithContainer(srv.mirror.Container()),
		httpapi.WithLogger(s.logger.With("component", "http")),
		httpapi.WithGatherer(srv.registry),
	)
	return srv, nil
}

// refresh reloads the store and republishes state after a remote change.
func (srv *server) refresh(ctx context.Context, event notify.Event) error {
	srv.session.logger.Debug("remote change", "operation", event.Operation, "origin", event.Origin)
	if err := core.ReloadStore(ctx, srv.session.store); err != nil {
		return fmt.Errorf("reload store: %w", err)
	}
	return srv.mirror.Refresh(ctx)
}

// Serve blocks until ctx ends or the listener fails, then shuts the HTTP
// server down gracefully.
func (srv *server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	logger := srv.session.logger
	httpSrv := &http.Server{
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	relayDone := make(chan struct{})
	if srv.feed != nil {
		go func() {
			defer close(relayDone)
			if err := srv.feed.Relay(ctx, srv.refresh); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("change relay stopped", "error", err)
			}
		}()
	} else {
		close(relayDone)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.Serve(ln) }()
	logger.Info("http server started", "addr", ln.Addr().String(), "instance", srv.session.cfg.Instance)

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer stop()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
	}
	cancel()
	<-relayDone
	logger.Info("http server stopped")
	return serveErr
}

// Close releases the session.
func (srv *server) Close() {
	srv.session.Close()
}
