package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/illum/orbitsim/pkg/config"
	"github.com/illum/orbitsim/pkg/event"
	"github.com/illum/orbitsim/pkg/health"
	"github.com/illum/orbitsim/pkg/logging"
	"github.com/illum/orbitsim/pkg/metrics"
	"github.com/illum/orbitsim/pkg/resource"
	"github.com/illum/orbitsim/pkg/session"
	"github.com/illum/orbitsim/pkg/validation"
)

// CorrelationHeader carries the request correlation ID in both directions.
const CorrelationHeader = "X-Correlation-ID"

var (
	// ErrServerFull is returned when MaxClients connections are open.
	ErrServerFull = errors.New("server full")
	// ErrServerClosed is returned after Shutdown.
	ErrServerClosed = errors.New("server closed")
)

// Options supplies the optional collaborators of a Server.
type Options struct {
	Logger    *logging.Logger
	Metrics   *metrics.Recorder
	Health    *health.HealthChecker
	Resources *resource.ResourceManager
}

// Server exposes a session over REST and WebSocket.
type Server struct {
	cfg       *config.Config
	session   *session.Session
	logger    *logging.Logger
	metrics   *metrics.Recorder
	health    *health.HealthChecker
	resources *resource.ResourceManager

	router         *mux.Router
	upgrader       websocket.Upgrader
	commandLimiter *validation.RateLimiter
	sampleLimiter  *rate.Limiter

	clientsMu sync.RWMutex
	clients   map[string]*wsClient

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	subs       []*event.Subscription
	closed     atomic.Bool
}

// NewServer creates a server for sess and subscribes it to the session's
// events. A nil Health or Resources in opts is replaced by a fresh one.
func NewServer(cfg *config.Config, sess *session.Session, opts Options) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	hc := opts.Health
	if hc == nil {
		hc = health.NewHealthChecker()
	}
	rm := opts.Resources
	if rm == nil {
		rm = resource.NewResourceManager(cfg.Resources, logger)
	}

	sampleLimit := rate.Inf
	if cfg.Stream.RateSampleHz > 0 {
		sampleLimit = rate.Limit(cfg.Stream.RateSampleHz)
	}

	s := &Server{
		cfg:            cfg,
		session:        sess,
		logger:         logger.With("component", "server"),
		metrics:        opts.Metrics,
		health:         hc,
		resources:      rm,
		commandLimiter: validation.NewRateLimiter(cfg.Stream.CommandsPerSecond, cfg.Stream.CommandBurst, time.Minute),
		sampleLimiter:  rate.NewLimiter(sampleLimit, 1),
		clients:        make(map[string]*wsClient),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	hc.AddCheck(health.NewListenerHealthCheck(s.Addr))
	s.routes()

	s.subs = []*event.Subscription{
		sess.EventBus.Subscribe(event.StateChanged, s.onStateChanged),
		sess.EventBus.Subscribe(event.RateSampled, s.onRateSampled),
	}
	return s
}

func (s *Server) routes() {
	r := mux.NewRouter()
	r.Use(s.withCorrelation)

	r.HandleFunc("/api/state", s.handleGetState).Methods(http.MethodGet)
	r.HandleFunc("/api/presets", s.handleListPresets).Methods(http.MethodGet)
	r.HandleFunc("/api/presets/{name}", s.handleLoadPreset).Methods(http.MethodPost)
	r.HandleFunc("/api/eccentricity", s.editHandler(MsgSetEccentricity)).Methods(http.MethodPost)
	r.HandleFunc("/api/semi-major-axis", s.editHandler(MsgSetSemiMajorAxis)).Methods(http.MethodPost)
	r.HandleFunc("/api/central-mass", s.editHandler(MsgSetCentralMass)).Methods(http.MethodPost)

	r.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)
	r.HandleFunc("/health", s.health.LivenessHandler).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.health.ReadinessHandler).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	s.router = r
}

// Router returns the HTTP handler serving every route.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start listens on the configured address and serves in a tracked goroutine.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return ErrServerClosed
	}
	if s.listener != nil {
		return fmt.Errorf("server already started on %s", s.listener.Addr())
	}

	ln, err := net.Listen("tcp", s.cfg.Server.Address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout.Std(),
		WriteTimeout: s.cfg.Server.WriteTimeout.Std(),
	}

	err = s.resources.Go(context.Background(), "http-server", func(ctx context.Context) {
		stop := context.AfterFunc(ctx, func() { srv.Close() })
		defer stop()

		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(ctx, "http server stopped", err)
		}
	})
	if err != nil {
		ln.Close()
		return fmt.Errorf("failed to start server: %w", err)
	}

	s.listener = ln
	s.httpServer = srv
	s.logger.Info(context.Background(), "server started", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" when the server is not listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// ClientCount returns the number of connected WebSocket clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Shutdown detaches from the session, closes every WebSocket client and
// stops the HTTP server. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	for _, sub := range s.subs {
		sub.Cancel()
	}
	s.subs = nil
	srv := s.httpServer
	s.httpServer = nil
	s.listener = nil
	s.mu.Unlock()

	s.clientsMu.RLock()
	clients := make([]*wsClient, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.RUnlock()

	for _, c := range clients {
		c.closeWithReason(websocket.CloseGoingAway, "server shutting down")
	}
	s.commandLimiter.Close()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	s.logger.Info(ctx, "server stopped", "clients_closed", len(clients))
	return err
}

func (s *Server) withCorrelation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithCorrelationID(r.Context(), r.Header.Get(CorrelationHeader))
		w.Header().Set(CorrelationHeader, logging.GetCorrelationID(ctx))
		s.logger.Debug(ctx, "request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) checkOrigin(r *http.Request) bool {
	allowed := s.cfg.Server.AllowedOrigins
	origin := r.Header.Get("Origin")
	if len(allowed) == 0 || origin == "" {
		return true
	}
	for _, o := range allowed {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

// presetInfo is a preset as listed by GET /api/presets.
type presetInfo struct {
	session.Preset
	SemiMajorAxisAU float64 `json:"semiMajorAxisAu"`
}

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	names := session.PresetNames()
	list := make([]presetInfo, 0, len(names))
	for _, name := range names {
		p, err := session.LookupPreset(name)
		if err != nil {
			continue
		}
		list = append(list, presetInfo{Preset: p, SemiMajorAxisAU: p.SemiMajorAxisAU()})
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleLoadPreset(w http.ResponseWriter, r *http.Request) {
	if !s.allowRequest(w, r) {
		return
	}
	snap, err := loadPreset(s.session, mux.Vars(r)["name"])
	s.writeEditResult(w, r, snap, err)
}

func (s *Server) editHandler(t MessageType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.allowRequest(w, r) {
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, validation.MaxMessageSize))
		if err == nil {
			err = validation.ValidateMessage(body)
		}
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, CodeBadRequest, err.Error())
			return
		}

		snap, err := applyEdit(s.session, t, body)
		s.writeEditResult(w, r, snap, err)
	}
}

func (s *Server) allowRequest(w http.ResponseWriter, r *http.Request) bool {
	if s.commandLimiter.Allow(clientHost(r)) {
		return true
	}
	if s.metrics != nil {
		s.metrics.MessagesDropped.WithLabelValues(dropRateLimited).Inc()
	}
	s.writeError(w, r, http.StatusTooManyRequests, CodeRateLimited, "too many requests")
	return false
}

func (s *Server) writeEditResult(w http.ResponseWriter, r *http.Request, snap session.Snapshot, err error) {
	if err != nil {
		status, code := classifyError(err)
		s.writeError(w, r, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	s.logger.Debug(r.Context(), "request refused", "status", status, "code", code, "message", message)
	writeJSON(w, status, map[string]ErrorPayload{
		"error": {Code: code, Message: message},
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
