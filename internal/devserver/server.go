package devserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/fragpack/internal/assets"
	"github.com/wolfeidau/fragpack/internal/fragment"
	fhttp "github.com/wolfeidau/fragpack/internal/http"
	"github.com/wolfeidau/fragpack/internal/telemetry"
)

// ErrNoDevServer is returned when the resolved configuration has no
// devServer section.
var ErrNoDevServer = errors.New("configuration has no devServer section")

// Resolver produces the merged configuration. It is called at startup and
// again whenever a fragment file changes.
type Resolver func(ctx context.Context) (fragment.Fragment, error)

type Options struct {
	// Root is the project directory that configuration paths are relative to
	Root    string
	Resolve Resolver
	// FragmentsDir is watched for mode and preset files when set
	FragmentsDir string
	// Listen overrides the devServer host and port
	Listen string
	// ListenTimeout bounds how long a busy address is retried
	ListenTimeout   time.Duration
	ShutdownTimeout time.Duration
}

// Server rebuilds assets on change and serves them with live reload.
type Server struct {
	opts   Options
	broker *Broker

	// reloadMu serialises pipeline restarts
	reloadMu sync.Mutex

	mu       sync.RWMutex
	config   assets.Config
	pipeline *assets.Pipeline
	buildCtx api.BuildContext
	logger   zerolog.Logger

	// handler is rebuilt whenever the configuration changes so reloaded
	// origins and stats levels apply to new requests
	handler atomic.Pointer[http.Handler]
}

func New(opts Options) *Server {
	if opts.Root == "" {
		opts.Root = "."
	}
	if opts.ListenTimeout == 0 {
		opts.ListenTimeout = 10 * time.Second
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	return &Server{opts: opts, broker: NewBroker(), logger: zerolog.Nop()}
}

// Broker returns the live reload broker.
func (s *Server) Broker() *Broker {
	return s.broker
}

// Config returns the configuration currently being served.
func (s *Server) Config() assets.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Run builds, watches and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	log := zerolog.Ctx(ctx)

	cfg, err := s.load(ctx)
	if err != nil {
		return err
	}
	if err := s.start(ctx, cfg); err != nil {
		return err
	}
	defer s.dispose()

	if s.opts.FragmentsDir != "" {
		w, err := NewWatcher(*log, s.opts.FragmentsDir, 100*time.Millisecond, func(path string) {
			s.Reload(ctx, path)
		})
		if err != nil {
			log.Warn().Err(err).Str("dir", s.opts.FragmentsDir).Msg("Fragment directory not watched")
		} else {
			defer w.Stop() //nolint:errcheck
		}
	}

	addr := s.opts.Listen
	if addr == "" {
		addr = cfg.DevServer.Addr()
	}

	ln, err := listen(ctx, addr, s.opts.ListenTimeout)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := configureHTTPServer(ctx, s.Handler(*log))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	log.Info().Str("addr", "http://"+ln.Addr().String()).Str("mode", cfg.Mode).Msg("Dev server started")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ShutdownTimeout)
	defer cancel()

	log.Info().Msg("Shutting down dev server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler serves live reload events and static files. Request logging
// follows the devServer stats level; logger is used for requests whose
// context carries no logger.
func (s *Server) Handler(logger zerolog.Logger) http.Handler {
	s.mu.Lock()
	s.logger = logger
	s.mu.Unlock()

	s.rebuildHandler()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		(*s.handler.Load()).ServeHTTP(w, r)
	})
}

func (s *Server) rebuildHandler() {
	s.mu.RLock()
	cfg, logger := s.config, s.logger
	s.mu.RUnlock()

	static := &staticHandler{dirs: s.dirs, notFound: http.NotFoundHandler()}

	mux := http.NewServeMux()
	mux.Handle(assets.LiveReloadPath, s.broker)
	mux.Handle("/", gzhttp.GzipHandler(static))

	origins := []string{"*"}
	minStatus := 0
	if cfg.DevServer != nil {
		origins = cfg.DevServer.AllowedOrigins
		minStatus = cfg.DevServer.MinLoggedStatus()
	}

	handler := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
	}).Handler(mux)

	handler = fhttp.AccessLog(logger, minStatus)(handler)
	s.handler.Store(&handler)
}

// Reload resolves the configuration again and restarts the bundler. The
// running configuration is kept when the new one fails.
func (s *Server) Reload(ctx context.Context, changed string) {
	log := zerolog.Ctx(ctx)
	telemetry.GetMetrics().FragmentReloadsTotal.Add(ctx, 1)

	cfg, err := s.load(ctx)
	if err != nil {
		log.Error().Err(err).Str("file", changed).Msg("Configuration reload failed, keeping previous configuration")
		return
	}

	if prev := s.Config().DevServer; s.opts.Listen == "" && prev != nil && prev.Addr() != cfg.DevServer.Addr() {
		log.Warn().Str("addr", cfg.DevServer.Addr()).Msg("Dev server address changed, restart to apply")
	}

	if err := s.start(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("Bundler restart failed")
		return
	}
	log.Info().Str("file", changed).Msg("Configuration reloaded")
}

func (s *Server) load(ctx context.Context) (assets.Config, error) {
	frag, err := s.opts.Resolve(ctx)
	if err != nil {
		return assets.Config{}, err
	}
	cfg, err := assets.Decode(frag)
	if err != nil {
		return assets.Config{}, err
	}
	if cfg.DevServer == nil {
		return assets.Config{}, ErrNoDevServer
	}
	return cfg, nil
}

// start replaces the running pipeline with one built from cfg. The previous
// pipeline keeps watching until the new one is running.
func (s *Server) start(ctx context.Context, cfg assets.Config) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	pipeline, err := assets.New(cfg, s.opts.Root)
	if err != nil {
		return err
	}

	buildCtx, err := pipeline.Watch(ctx, func(res *assets.Result, err error) {
		s.onBuild(ctx, res, err)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	prev := s.buildCtx
	s.config = cfg
	s.pipeline = pipeline
	s.buildCtx = buildCtx
	s.mu.Unlock()

	if prev != nil {
		prev.Dispose()
	}
	s.rebuildHandler()
	return nil
}

func (s *Server) onBuild(ctx context.Context, res *assets.Result, err error) {
	log := zerolog.Ctx(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Rebuild failed")
		return
	}

	id := uuid.NewString()
	log.Debug().Str("reload_id", id).Int("clients", s.broker.Clients()).Dur("duration", res.Duration).Msg("Notifying browsers")
	s.broker.Publish(id)
}

func (s *Server) dispose() {
	s.mu.Lock()
	buildCtx := s.buildCtx
	s.buildCtx = nil
	s.mu.Unlock()

	if buildCtx != nil {
		buildCtx.Dispose()
	}
}

func (s *Server) dirs() (outdir, contentBase string, fallback bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.pipeline != nil {
		outdir = s.pipeline.Outdir()
	}
	if d := s.config.DevServer; d != nil {
		if d.ContentBase != "" {
			contentBase = filepath.Join(s.opts.Root, d.ContentBase)
		}
		fallback = d.HistoryAPIFallback
	}
	return outdir, contentBase, fallback
}

// listen retries while the address is still held, typically by a previous
// run that is shutting down.
func listen(ctx context.Context, addr string, timeout time.Duration) (net.Listener, error) {
	var lc net.ListenConfig
	return backoff.Retry(ctx, func() (net.Listener, error) {
		ln, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("addr", addr).Msg("Listen failed, retrying")
			return nil, err
		}
		return ln, nil
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(timeout),
	)
}

func configureHTTPServer(ctx context.Context, handler http.Handler) *http.Server {
	return &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       time.Minute,
		// live reload streams stay open indefinitely
		WriteTimeout:   0,
		IdleTimeout:    5 * time.Minute,
		MaxHeaderBytes: 8 * 1024, // 8KiB
		// request contexts end with ctx so live reload streams close on shutdown
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}
