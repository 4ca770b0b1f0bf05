package webhook

import (
	"context"
	"errors"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/mikey/decoy-alerts/internal/config"
	"github.com/mikey/decoy-alerts/internal/core"
	"github.com/mikey/decoy-alerts/internal/metrics"
	"go.uber.org/zap"
)

// Form fields posted by the inbound-mail provider
const (
	FieldRecipient  = "recipient"
	FieldSender     = "sender"
	FieldSubject    = "subject"
	FieldBodyPlain  = "body-plain"
	FieldMessageURL = "message-url"

	// DefaultIPField carries the provider-observed sender IP
	DefaultIPField = "X-Mailgun-Incoming-IP"

	defaultMaxFormBytes = 32 << 20
)

// Ingester runs an inbound notification through the pipeline
type Ingester interface {
	HandleInbound(ctx context.Context, msg *core.InboundMessage) (*core.IngestionResult, error)
}

// Server is the HTTP endpoint the inbound-mail provider posts to
type Server struct {
	cfg      config.ServerConfig
	ingester Ingester
	metrics  *metrics.Collector
	logger   *zap.Logger

	verifier *signatureVerifier
	router   chi.Router
	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewServer creates the webhook server. The metrics collector may be nil.
func NewServer(cfg config.ServerConfig, ingester Ingester, collector *metrics.Collector, logger *zap.Logger) *Server {
	if cfg.IPHeader == "" {
		cfg.IPHeader = DefaultIPField
	}
	if cfg.MaxFormBytes <= 0 {
		cfg.MaxFormBytes = defaultMaxFormBytes
	}
	s := &Server{
		cfg:      cfg,
		ingester: ingester,
		metrics:  collector,
		logger:   logger,
	}
	if cfg.SigningKey != "" {
		s.verifier = newSignatureVerifier(cfg.SigningKey, cfg.SignatureMaxAge)
	} else {
		logger.Warn("Webhook signing key not configured, inbound notifications are not authenticated")
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	// The peer address must stay the socket address, so RealIP is not used
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/", s.handleHealth)
	r.Get("/healthz", s.handleHealth)
	r.Post("/webhook/inbound", s.handleInbound)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	return r
}

// Handler returns the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listen address and serves in the background
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = listener
	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	srv := s.server
	s.mu.Unlock()

	s.logger.Info("Webhook server starting", zap.String("address", listener.Addr().String()))

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Webhook server error", zap.Error(err))
		}
	}()

	return nil
}

// Addr returns the bound address once started
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, waiting for in-flight requests up to the
// configured shutdown timeout
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("Webhook server stopping")
	return srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, http.StatusOK, "ok")
}

func (s *Server) handleInbound(w http.ResponseWriter, r *http.Request) {
	msg, err := s.parseInbound(w, r)
	if err != nil {
		s.logger.Warn("Unparseable inbound notification", zap.Error(err))
		writeStatus(w, http.StatusBadRequest, "error")
		return
	}

	if s.verifier != nil {
		err := s.verifier.verify(r.PostFormValue(FieldTimestamp), r.PostFormValue(FieldToken), r.PostFormValue(FieldSignature))
		if err != nil {
			s.logger.Warn("Rejected unsigned inbound notification",
				zap.String("peer_ip", msg.PeerIP),
				zap.Error(err))
			writeStatus(w, http.StatusUnauthorized, "error")
			return
		}
	}

	// The provider may hang up early; the hit must still be processed
	ctx := context.WithoutCancel(r.Context())
	result, err := s.ingester.HandleInbound(ctx, msg)
	if err != nil {
		// Every well-formed submission is acknowledged except when the hit
		// could not be looked up or recorded. Nothing was written in that
		// case, so the 500 makes the provider redeliver instead of the hit
		// being lost, and a redelivery cannot duplicate an event.
		writeStatus(w, http.StatusInternalServerError, "error")
		return
	}

	w.Header().Set("X-Ingestion-Id", result.IngestionID)
	writeStatus(w, http.StatusOK, "ok")
}

// parseInbound reads the provider form. Missing fields are left empty.
func (s *Server) parseInbound(w http.ResponseWriter, r *http.Request) (*core.InboundMessage, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFormBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(s.cfg.MaxFormBytes); err != nil {
			return nil, err
		}
		defer r.MultipartForm.RemoveAll()
	} else if err := r.ParseForm(); err != nil {
		return nil, err
	}

	return &core.InboundMessage{
		Recipient:        r.PostFormValue(FieldRecipient),
		Sender:           r.PostFormValue(FieldSender),
		Subject:          r.PostFormValue(FieldSubject),
		Body:             r.PostFormValue(FieldBodyPlain),
		SenderIPHeader:   r.PostFormValue(s.cfg.IPHeader),
		MessageReference: r.PostFormValue(FieldMessageURL),
		PeerIP:           peerIP(r.RemoteAddr),
	}, nil
}

func peerIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return strings.TrimSpace(remoteAddr)
	}
	return host
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		if s.metrics != nil && r.URL.Path == "/webhook/inbound" {
			s.metrics.WebhookRequests.WithLabelValues(strconv.Itoa(ww.Status())).Inc()
			s.metrics.WebhookDuration.Observe(elapsed.Seconds())
		}
		s.logger.Debug("HTTP request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", elapsed))
	})
}

func writeStatus(w http.ResponseWriter, status int, value string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": value})
}
