package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/sdkwork-cloud/openchat-realtime/pkg/auth"
	rterrors "github.com/sdkwork-cloud/openchat-realtime/pkg/errors"
	"github.com/sdkwork-cloud/openchat-realtime/pkg/logging"
	"github.com/sdkwork-cloud/openchat-realtime/pkg/protocol"
	"github.com/sdkwork-cloud/openchat-realtime/pkg/transport"
)

// Server is a websocket backend that relays frames between its clients
type Server struct {
	config    Config
	logger    logging.Logger
	validator auth.TokenValidator
	issuer    *auth.BearerTokenProvider
	limiter   *auth.RateLimiter
	metrics   *serverMetrics
	registry  *prometheus.Registry
	hub       *hub
	upgrader  websocket.Upgrader
	router    chi.Router

	extraValidators []auth.TokenValidator

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	pongDisabled atomic.Bool
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithValidator accepts tokens v validates in addition to the configured
// static tokens and the ones issued by POST /token
func WithValidator(v auth.TokenValidator) Option {
	return func(s *Server) {
		s.extraValidators = append(s.extraValidators, v)
	}
}

// WithRegistry sets the registry served on /metrics
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// New creates a server. Call Close to end every session.
func New(config Config, options ...Option) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		config: config,
		hub:    newHub(),
	}
	for _, opt := range options {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logging.Discard()
	}
	s.logger = s.logger.WithFields(logging.Component("server"))
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}

	metrics, err := newServerMetrics(s.registry)
	if err != nil {
		return nil, err
	}
	s.metrics = metrics

	s.issuer = auth.NewBearerTokenProvider(&auth.BearerTokenConfig{TokenExpiry: config.TokenExpiry})
	validators := []auth.TokenValidator{auth.StaticTokens(config.Tokens), s.issuer}
	s.validator = auth.ChainValidators(append(validators, s.extraValidators...)...)
	s.limiter = auth.NewRateLimiter(config.RateLimit)
	s.pongDisabled.Store(config.DisablePong)

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:    config.Connection.ReadBufferSize,
		WriteBufferSize:   config.Connection.WriteBufferSize,
		EnableCompression: config.Connection.EnableCompression,
		CheckOrigin:       originChecker{allowed: config.AllowedOrigins}.check,
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(logging.HTTPMiddleware(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	r.Post("/token", s.handleToken)
	r.With(auth.Middleware(s.validator, s.logger)).Get(s.config.Path, s.handleWebSocket)
	return r
}

// Handler returns the HTTP handler serving every endpoint
func (s *Server) Handler() http.Handler {
	return s.router
}

// Sessions returns the number of open websocket sessions
func (s *Server) Sessions() int {
	return s.hub.count()
}

// SetDisablePong toggles answering pings at runtime
func (s *Server) SetDisablePong(disabled bool) {
	s.pongDisabled.Store(disabled)
}

// Issue creates a token for username, as POST /token does
func (s *Server) Issue(username string) (string, *auth.UserInfo, error) {
	return s.issuer.Issue(username)
}

// Publish sends a server frame to every session and returns how many
// received it
func (s *Server) Publish(event string, payload interface{}) (int, error) {
	if protocol.IsReserved(event) {
		return 0, rterrors.InvalidArgument("event", "must not be a reserved transport event")
	}
	frame, err := protocol.NewFrame(event, payload)
	if err != nil {
		return 0, err
	}
	frame.MessageID = uuid.NewString()
	frame.Timestamp = protocol.Millis(time.Now())

	data, err := protocol.Encode(frame)
	if err != nil {
		return 0, err
	}
	return s.hub.broadcast(nil, frameKind(event), data), nil
}

// Close ends every session and waits for their goroutines
func (s *Server) Close() error {
	s.cancel()
	s.wg.Wait()
	return nil
}

// ListenAndServe serves on config.Addr until ctx is cancelled, then shuts
// down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening", logging.String("addr", ln.Addr().String()), logging.String("path", s.config.Path))
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if s.config.TokenCleanupInterval > 0 {
		g.Go(func() error {
			s.sweepTokens(gctx, s.config.TokenCleanupInterval)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		// Hijacked websocket connections are not tracked by Shutdown
		_ = s.Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.WithError(err).Warn("shutdown did not complete")
			return err
		}
		s.logger.Info("server stopped")
		return nil
	})
	return g.Wait()
}

// sweepTokens drops expired and revoked issued tokens every interval until
// ctx ends
func (s *Server) sweepTokens(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.issuer.CleanupExpired(); n > 0 {
				s.logger.Debug("removed stale tokens", logging.Int("count", n))
			}
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": s.hub.count(),
	})
}

type tokenRequest struct {
	Username string `json:"username"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorPayload{Code: "invalid_request", Message: "body must be JSON"})
		return
	}

	token, user, err := s.issuer.Issue(req.Username)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorPayload{Code: "invalid_request", Message: err.Error()})
		return
	}

	resp := tokenResponse{Token: token, UserID: user.ID}
	if user.ExpiresAt != nil {
		resp.ExpiresAt = *user.ExpiresAt
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.ctx.Err() != nil {
		http.Error(w, "server closing", http.StatusServiceUnavailable)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		s.logger.WithError(err).Debug("websocket upgrade failed")
		return
	}

	user, _ := auth.UserInfoFromContext(r.Context())
	sess := newSession(s.ctx, s, transport.NewWebSocketConn(ws, s.config.Connection), user)

	s.wg.Add(1)
	defer s.wg.Done()

	s.hub.add(sess)
	s.metrics.sessions.Inc()
	sess.logger.Info("session opened")

	sess.run()

	if s.hub.remove(sess) {
		s.metrics.sessions.Dec()
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
