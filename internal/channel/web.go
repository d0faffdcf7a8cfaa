package channel

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"paperbot/internal/domain"
	"paperbot/internal/library"
	"paperbot/internal/metrics"
)

const (
	webMaxBodySize = 1 << 20 // 1MB
	webAskTimeout  = 120 * time.Second
)

// SpokenFeed is the slice of the message bus the live transcript feed
// consumes: subscription plus bounded history for late joiners.
type SpokenFeed interface {
	Subscribe(name string, handler func(domain.SpokenMessage))
	Unsubscribe(name string)
	Recent(n int) []domain.SpokenMessage
}

// Web is the HTTP gateway: a JSON ask endpoint, transcript reads, a live
// websocket feed of spoken messages, document ingestion, metrics and health.
type Web struct {
	host       string
	port       int
	turns      *Turns
	feed       SpokenFeed
	store      domain.TranscriptStore
	lib        *library.Library
	hookSecret string
	version    string
	logger     *slog.Logger

	mux    *http.ServeMux
	server *http.Server

	clientsMu sync.RWMutex
	clients   map[*wsClient]struct{}
}

type WebConfig struct {
	Host    string
	Port    int
	Turns   *Turns
	Feed    SpokenFeed
	Store   domain.TranscriptStore
	Library *library.Library
	// HookSecret enables HMAC verification on POST /api/papers.
	HookSecret string
	Version    string
	Logger     *slog.Logger
}

func NewWeb(cfg WebConfig) *Web {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	w := &Web{
		host:       cfg.Host,
		port:       cfg.Port,
		turns:      cfg.Turns,
		feed:       cfg.Feed,
		store:      cfg.Store,
		lib:        cfg.Library,
		hookSecret: cfg.HookSecret,
		version:    cfg.Version,
		logger:     cfg.Logger,
		clients:    make(map[*wsClient]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/ask", requireMethod(http.MethodPost, w.handleAsk))
	mux.HandleFunc("/api/transcript", requireMethod(http.MethodGet, w.handleTranscript))
	mux.HandleFunc("/api/conversations", requireMethod(http.MethodGet, w.handleConversations))
	mux.HandleFunc("/api/transcript/ws", requireMethod(http.MethodGet, w.handleWS))
	mux.HandleFunc("/api/papers", requireMethod(http.MethodPost, w.handlePaperHook))
	mux.HandleFunc("/metrics", requireMethod(http.MethodGet, metrics.Collector.Handler()))
	mux.HandleFunc("/healthz", requireMethod(http.MethodGet, w.handleHealth))
	w.mux = mux

	if w.feed != nil {
		w.feed.Subscribe("web", w.broadcast)
	}

	return w
}

// requireMethod restricts a handler to one HTTP method, mirroring the
// method-pattern behavior of the Go 1.22+ ServeMux: a GET route also
// serves HEAD, and other methods get 405 with an Allow header.
func requireMethod(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != method && !(method == http.MethodGet && r.Method == http.MethodHead) {
			rw.Header().Set("Allow", method)
			http.Error(rw, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		h(rw, r)
	}
}

func (w *Web) Name() string { return "web" }

// Handler exposes the route table, mainly for tests.
func (w *Web) Handler() http.Handler { return w.mux }

// Start runs the gateway until ctx is cancelled.
func (w *Web) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", w.host, w.port)
	w.server = &http.Server{
		Addr:              addr,
		Handler:           w.mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      150 * time.Second, // allow time for a full turn
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	w.logger.Info("web gateway started", "addr", "http://"+addr)

	go func() {
		<-ctx.Done()
		w.closeAllClients()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = w.server.Shutdown(shutdownCtx)
	}()

	if err := w.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (w *Web) Stop() error {
	if w.feed != nil {
		w.feed.Unsubscribe("web")
	}
	if w.server != nil {
		return w.server.Close()
	}
	return nil
}

// --- handlers ---

type askRequest struct {
	Message string `json:"message"`
	Sender  string `json:"sender"`
}

type askResponse struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
	LatencyMs      int64  `json:"latency_ms"`
}

func (w *Web) handleAsk(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")

	body, err := io.ReadAll(io.LimitReader(r.Body, webMaxBodySize))
	if err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(rw).Encode(map[string]string{"error": "read body: " + err.Error()})
		return
	}
	defer r.Body.Close()

	var req askRequest
	if err := json.Unmarshal(body, &req); err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(rw).Encode(map[string]string{"error": "invalid JSON"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		rw.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(rw).Encode(map[string]string{"error": "empty message"})
		return
	}
	if req.Sender == "" {
		req.Sender = "web-user"
	}

	askCtx, cancel := context.WithTimeout(r.Context(), webAskTimeout)
	defer cancel()

	start := time.Now()
	reply, err := w.turns.Ask(askCtx, w.Name(), req.Sender, req.Message)
	if err != nil {
		w.logger.Error("web turn failed", "err", err)
		status := http.StatusInternalServerError
		if domain.IsBackendUnavailable(err) {
			status = http.StatusBadGateway
		}
		rw.WriteHeader(status)
		json.NewEncoder(rw).Encode(map[string]string{"error": err.Error()})
		return
	}

	json.NewEncoder(rw).Encode(askResponse{
		Response:       reply,
		ConversationID: w.turns.ConversationID(),
		LatencyMs:      time.Since(start).Milliseconds(),
	})
}

func (w *Web) handleTranscript(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")

	if w.store == nil {
		rw.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(rw).Encode(map[string]string{"error": "transcript store not configured"})
		return
	}

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}
	convID := r.URL.Query().Get("conversation")
	if convID == "" {
		convID = w.turns.ConversationID()
	}

	entries, err := w.store.RecentEntries(r.Context(), convID, limit)
	if err != nil {
		rw.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(rw).Encode(map[string]string{"error": err.Error()})
		return
	}
	json.NewEncoder(rw).Encode(map[string]any{
		"conversation_id": convID,
		"entries":         entries,
	})
}

func (w *Web) handleConversations(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")

	if w.store == nil {
		rw.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(rw).Encode(map[string]string{"error": "transcript store not configured"})
		return
	}

	convs, err := w.store.ListConversations(r.Context(), 20)
	if err != nil {
		rw.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(rw).Encode(map[string]string{"error": err.Error()})
		return
	}
	json.NewEncoder(rw).Encode(map[string]any{"conversations": convs})
}

// paperHookPayload is the body for POST /api/papers. Upload pushes the
// stored document to the retrieval workspace as well.
type paperHookPayload struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	Upload   bool   `json:"upload"`
}

func (w *Web) handlePaperHook(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")

	if w.lib == nil {
		rw.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(rw).Encode(map[string]string{"error": "library not configured"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, webMaxBodySize))
	if err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(rw).Encode(map[string]string{"error": "read body: " + err.Error()})
		return
	}
	defer r.Body.Close()

	if w.hookSecret != "" {
		sig := r.Header.Get("X-Signature-256")
		if sig == "" {
			rw.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(rw).Encode(map[string]string{"error": "missing signature"})
			return
		}
		if !verifyHMAC(body, w.hookSecret, sig) {
			rw.WriteHeader(http.StatusForbidden)
			json.NewEncoder(rw).Encode(map[string]string{"error": "invalid signature"})
			return
		}
	}

	var payload paperHookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(rw).Encode(map[string]string{"error": "invalid JSON"})
		return
	}
	if payload.Content == "" {
		rw.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(rw).Encode(map[string]string{"error": "content is required"})
		return
	}
	if payload.Filename == "" {
		payload.Filename = fmt.Sprintf("paper_%d.txt", time.Now().Unix())
	}

	path, err := w.lib.Add(payload.Filename, []byte(payload.Content))
	if err != nil {
		rw.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(rw).Encode(map[string]string{"error": err.Error()})
		return
	}

	status := "stored"
	if payload.Upload {
		if err := w.lib.UploadFile(r.Context(), path); err != nil {
			w.logger.Warn("hook upload failed", "path", path, "err", err)
			status = "stored, upload failed"
		} else {
			status = "stored and uploaded"
		}
	}

	w.logger.Info("paper ingested", "path", path, "upload", payload.Upload)
	rw.WriteHeader(http.StatusCreated)
	json.NewEncoder(rw).Encode(map[string]string{"status": status, "path": path})
}

func (w *Web) handleHealth(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(rw).Encode(map[string]any{
		"status":  "ok",
		"version": w.version,
		"time":    time.Now().Format(time.RFC3339),
	})
}

// verifyHMAC checks the HMAC-SHA256 signature of the body.
func verifyHMAC(body []byte, secret, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
