package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/gorilla/mux"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/itwin-go/gateway/model/rpc"
	"github.com/itwin-go/gateway/module/component"
	"github.com/itwin-go/gateway/module/irrecoverable"
	"github.com/itwin-go/gateway/registry"
)

// ServerConfig holds the tuning knobs of the web protocol server.
type ServerConfig struct {
	// Address is the listen address, e.g. ":8080".
	Address string

	// Workers bounds the number of operations executing concurrently.
	Workers int

	// MaxPending bounds the number of accepted invocations waiting for a
	// worker; past it the server sheds load with a 503 and a retry hint.
	MaxPending int

	// ShedRetryAfter is the Retry-After hint attached to shed responses.
	ShedRetryAfter time.Duration

	// ShutdownTimeout bounds the graceful drain on shutdown.
	ShutdownTimeout time.Duration

	// EnableCORS allows browser frontends on foreign origins to call the
	// gateway.
	EnableCORS bool
}

// DefaultServerConfig returns the web server defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:         ":8080",
		Workers:         16,
		MaxPending:      256,
		ShedRetryAfter:  time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server exposes a registry's implementations over the web protocol's wire
// format. Operations execute on a bounded worker pool; when the pool's backlog
// exceeds MaxPending the server answers 503 with a Retry-After hint, which
// clients translate into a provisional request.
type Server struct {
	component.Component

	log     zerolog.Logger
	cfg     ServerConfig
	reg     *registry.Registry
	pool    *workerpool.WorkerPool
	server  *http.Server
	address chan net.Addr
}

// NewServer creates a web protocol server for the given registry. The server
// is inert until started as a component.
func NewServer(log zerolog.Logger, reg *registry.Registry, cfg ServerConfig) *Server {

	s := &Server{
		log:     log.With().Str("component", "web_server").Logger(),
		cfg:     cfg,
		reg:     reg,
		pool:    workerpool.New(cfg.Workers),
		address: make(chan net.Addr, 1),
	}

	var handler http.Handler = s.router()
	if cfg.EnableCORS {
		handler = cors.AllowAll().Handler(handler)
	}
	s.server = &http.Server{
		Addr:    cfg.Address,
		Handler: handler,
	}

	s.Component = component.NewComponentManagerBuilder().
		AddWorker(s.serveLoop).
		Build()

	return s
}

// Handler returns the server's HTTP handler, for mounting in an existing mux
// or under a test server.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Address returns the bound listen address once the server is ready.
func (s *Server) Address() net.Addr {
	addr := <-s.address
	s.address <- addr
	return addr
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/rpc/{interface}/{operation}", s.handleInvoke).Methods(http.MethodPost)
	return r
}

// serveLoop runs the HTTP server until the component shuts down, then drains
// in-flight operations.
func (s *Server) serveLoop(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {

	listener, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		ctx.Throw(err)
		return
	}
	s.address <- listener.Addr()

	s.log.Info().Str("address", listener.Addr().String()).Msg("web server listening")

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ctx.Throw(err)
		}
	}()

	ready()

	<-ctx.Done()

	if err := s.shutdown(); err != nil {
		s.log.Err(err).Msg("web server shutdown failed")
	}
	<-done
}

func (s *Server) shutdown() error {

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	var result *multierror.Error
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, err)
	}
	s.pool.StopWait()

	return result.ErrorOrNil()
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {

	vars := mux.Vars(r)
	iface := vars["interface"]
	operation := vars["operation"]

	if s.pool.WaitingQueueSize() >= s.cfg.MaxPending {
		seconds := int(s.cfg.ShedRetryAfter / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	env, err := decodeRequest(r.Body)
	if err != nil {
		s.log.Debug().Err(err).Msg("malformed request envelope")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	dispatcher, err := s.reg.Dispatcher(iface)
	if err != nil {
		s.respond(w, ResponseEnvelope{
			ID:      env.ID,
			Outcome: OutcomeError,
			Error:   err.Error(),
		})
		return
	}

	var (
		result interface{}
		invErr error
	)
	s.pool.SubmitWait(func() {
		result, invErr = dispatcher.Invoke(r.Context(), operation, env.Parameters)
	})

	switch {
	case invErr == nil:
		s.respond(w, ResponseEnvelope{
			ID:      env.ID,
			Outcome: OutcomeResolved,
			Value:   result,
		})

	case rpc.IsPendingError(invErr):
		var pending rpc.PendingError
		errors.As(invErr, &pending)
		s.respond(w, ResponseEnvelope{
			ID:           env.ID,
			Outcome:      OutcomePending,
			RetryAfterMS: pending.RetryAfter.Milliseconds(),
		})

	default:
		s.respond(w, ResponseEnvelope{
			ID:      env.ID,
			Outcome: OutcomeError,
			Error:   invErr.Error(),
		})
	}
}

func (s *Server) respond(w http.ResponseWriter, env ResponseEnvelope) {
	w.Header().Set("Content-Type", ContentType)
	if err := encodeResponse(w, env); err != nil {
		s.log.Debug().Err(err).Msg("could not write response envelope")
	}
}
