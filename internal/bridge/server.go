package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

const defaultAddr = "127.0.0.1:8765"

// maxBody caps request bodies; settings objects are tiny.
const maxBody = 64 << 10

// ServerConfig describes the HTTP transport.
type ServerConfig struct {
	Addr         string
	ReplyTimeout time.Duration
	Logger       *log.Logger
	Clock        func() time.Time
}

// DefaultServerConfig populates configuration from environment variables.
func DefaultServerConfig() ServerConfig {
	cfg := ServerConfig{
		Addr:         strings.TrimSpace(os.Getenv("TUBEGUARD_ADDR")),
		ReplyTimeout: 5 * time.Second,
		Logger:       log.Default(),
		Clock:        time.Now,
	}
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	return cfg
}

// Server exposes the bridge over HTTP so preference editors outside the
// session can read and push settings.
type Server struct {
	cfg     ServerConfig
	bridge  *Bridge
	mux     *http.ServeMux
	handler http.Handler
	logger  *log.Logger
}

func NewServer(b *Bridge, cfg ServerConfig) *Server {
	def := DefaultServerConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = def.ReplyTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	s := &Server{
		cfg:    cfg,
		bridge: b,
		mux:    http.NewServeMux(),
		logger: cfg.Logger,
	}
	s.registerRoutes()
	s.handler = withLogging(s.logger, cfg.Clock, s.mux)
	return s
}

func (s *Server) Addr() string { return s.cfg.Addr }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe runs until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Printf("BRIDGE listening on http://%s", s.cfg.Addr)
	select {
	case err := <-errc:
		return fmt.Errorf("bridge server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("bridge shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/settings", s.handleSettings)
	s.mux.HandleFunc("/message", s.handleMessage)
	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.HandleFunc("/ping", s.handlePing)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.dispatch(w, r, NewMessage(TypeGetSettings, nil))
	case http.MethodPost, http.MethodPut:
		var raw map[string]any
		if err := decodeBody(r, &raw); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.dispatch(w, r, NewMessage(TypeSettingsUpdated, raw))
	default:
		w.Header().Set("Allow", "GET, POST, PUT")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleMessage accepts the typed envelope directly.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var msg Message
	if err := decodeBody(r, &msg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if msg.ID == "" {
		msg.ID = NewMessage(msg.Type, nil).ID
	}
	s.dispatch(w, r, msg)
}

// dispatch hands msg to the bridge and holds the request open until the
// asynchronous reply arrives.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, msg Message) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ReplyTimeout)
	defer cancel()
	replies := make(chan Response, 1)
	if err := s.bridge.Handle(ctx, msg, func(resp Response) { replies <- resp }); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{ID: msg.ID, Error: err.Error()})
		return
	}
	select {
	case resp := <-replies:
		code := http.StatusOK
		if !resp.Success {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	case <-ctx.Done():
		writeJSON(w, http.StatusGatewayTimeout, Response{ID: msg.ID, Error: "no reply from settings store"})
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.bridge.Status())
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Connection", "close")
	io.WriteString(w, "pong\n")
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
