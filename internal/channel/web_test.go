package channel

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"paperbot/internal/bus"
	"paperbot/internal/domain"
	"paperbot/internal/library"
	"paperbot/internal/transcript"

	"github.com/gorilla/websocket"
)

func newTestWeb(t *testing.T, ma *mockAgent, cfg WebConfig) *Web {
	t.Helper()
	if ma == nil {
		ma = newMockAgent("web answer")
	}
	cfg.Turns = NewTurns(ma, nil, testChannelLogger())
	cfg.Logger = testChannelLogger()
	return NewWeb(cfg)
}

func postJSON(t *testing.T, w *Web, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)
	return rec
}

// --- /api/ask ---

func TestWeb_Ask(t *testing.T) {
	ma := newMockAgent("attention weighs context tokens")
	w := newTestWeb(t, ma, WebConfig{})

	rec := postJSON(t, w, "/api/ask", `{"message":"What is attention?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp askResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Response != "attention weighs context tokens" {
		t.Errorf("expected mock reply, got %q", resp.Response)
	}
	if resp.ConversationID != "conv-test" {
		t.Errorf("expected conversation conv-test, got %q", resp.ConversationID)
	}
	if ma.calls != 1 {
		t.Errorf("expected 1 turn, got %d", ma.calls)
	}
}

func TestWeb_Ask_EmptyMessage(t *testing.T) {
	w := newTestWeb(t, nil, WebConfig{})

	rec := postJSON(t, w, "/api/ask", `{"message":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestWeb_Ask_InvalidJSON(t *testing.T) {
	w := newTestWeb(t, nil, WebConfig{})

	rec := postJSON(t, w, "/api/ask", "not json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestWeb_Ask_BackendUnavailable(t *testing.T) {
	ma := newMockAgent("")
	ma.err = &domain.BackendUnavailableError{Backend: "workspace", Status: 503}
	w := newTestWeb(t, ma, WebConfig{})

	rec := postJSON(t, w, "/api/ask", `{"message":"q"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

// --- /api/transcript ---

func TestWeb_Transcript(t *testing.T) {
	store, err := transcript.NewSQLiteStore(filepath.Join(t.TempDir(), "t.db"), testChannelLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	if err := store.CreateConversation(ctx, domain.Conversation{ID: "conv-test", Channel: "web"}); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	for _, content := range []string{"first", "second"} {
		err := store.AddEntry(ctx, "conv-test", domain.TranscriptEntry{
			Sender: "user", Role: domain.RoleUser, Content: content,
		})
		if err != nil {
			t.Fatalf("add entry: %v", err)
		}
	}

	w := newTestWeb(t, nil, WebConfig{Store: store})

	req := httptest.NewRequest(http.MethodGet, "/api/transcript?limit=10", nil)
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ConversationID string                   `json:"conversation_id"`
		Entries        []domain.TranscriptEntry `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(resp.Entries))
	}
	if resp.Entries[0].Content != "first" {
		t.Errorf("expected chronological order, got %q first", resp.Entries[0].Content)
	}
}

func TestWeb_Transcript_NoStore(t *testing.T) {
	w := newTestWeb(t, nil, WebConfig{})

	req := httptest.NewRequest(http.MethodGet, "/api/transcript", nil)
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

// --- /api/papers ---

func newTestHookLibrary(t *testing.T) *library.Library {
	t.Helper()
	lib, err := library.New(library.Config{Dir: t.TempDir(), Logger: testChannelLogger()})
	if err != nil {
		t.Fatalf("new library: %v", err)
	}
	return lib
}

func TestWeb_PaperHook_StoresDocument(t *testing.T) {
	lib := newTestHookLibrary(t)
	w := newTestWeb(t, nil, WebConfig{Library: lib})

	rec := postJSON(t, w, "/api/papers", `{"filename":"survey.txt","content":"Title: Survey"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	data, err := os.ReadFile(filepath.Join(lib.Dir(), "survey.txt"))
	if err != nil {
		t.Fatalf("read stored paper: %v", err)
	}
	if string(data) != "Title: Survey" {
		t.Errorf("unexpected stored content %q", data)
	}
}

func TestWeb_PaperHook_RequiresContent(t *testing.T) {
	w := newTestWeb(t, nil, WebConfig{Library: newTestHookLibrary(t)})

	rec := postJSON(t, w, "/api/papers", `{"filename":"a.txt"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestWeb_PaperHook_MissingSignature(t *testing.T) {
	w := newTestWeb(t, nil, WebConfig{Library: newTestHookLibrary(t), HookSecret: "my-secret"})

	rec := postJSON(t, w, "/api/papers", `{"content":"hello"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestWeb_PaperHook_InvalidSignature(t *testing.T) {
	w := newTestWeb(t, nil, WebConfig{Library: newTestHookLibrary(t), HookSecret: "my-secret"})

	req := httptest.NewRequest(http.MethodPost, "/api/papers", strings.NewReader(`{"content":"hello"}`))
	req.Header.Set("X-Signature-256", "sha256=invalid")
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestWeb_PaperHook_ValidSignature(t *testing.T) {
	lib := newTestHookLibrary(t)
	w := newTestWeb(t, nil, WebConfig{Library: lib, HookSecret: "my-secret"})

	body := []byte(`{"filename":"signed.txt","content":"hello"}`)
	mac := hmac.New(sha256.New, []byte("my-secret"))
	mac.Write(body)
	sig := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	req := httptest.NewRequest(http.MethodPost, "/api/papers", bytes.NewReader(body))
	req.Header.Set("X-Signature-256", sig)
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

// --- verifyHMAC ---

func TestVerifyHMAC_Valid(t *testing.T) {
	secret := "test-secret"
	body := []byte(`{"content":"hello"}`)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	sig := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	if !verifyHMAC(body, secret, sig) {
		t.Error("valid HMAC should verify")
	}
}

func TestVerifyHMAC_Invalid(t *testing.T) {
	if verifyHMAC([]byte("body"), "secret", "sha256=invalid") {
		t.Error("invalid HMAC should not verify")
	}
}

func TestVerifyHMAC_Empty(t *testing.T) {
	if verifyHMAC([]byte("body"), "secret", "") {
		t.Error("empty signature should not verify")
	}
}

// --- health and metrics ---

func TestWeb_Healthz(t *testing.T) {
	w := newTestWeb(t, nil, WebConfig{Version: "1.2.3"})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "ok" || resp["version"] != "1.2.3" {
		t.Errorf("unexpected health body: %v", resp)
	}
}

func TestWeb_Metrics(t *testing.T) {
	w := newTestWeb(t, nil, WebConfig{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "paperbot_uptime_seconds") {
		t.Errorf("expected exposition output, got %q", rec.Body.String())
	}
}

// --- websocket feed ---

func TestWeb_WebSocketFeed_ReplayAndLive(t *testing.T) {
	feed := bus.New(testChannelLogger())
	t.Cleanup(feed.Close)

	w := newTestWeb(t, nil, WebConfig{Feed: feed})

	// Publish before connecting so the client gets a replay.
	feed.Publish(domain.SpokenMessage{
		Message:        domain.NewAssistantMessage("scientist", "replayed answer"),
		ConversationID: "conv-test",
		Mode:           domain.ModeChat,
	})

	srv := httptest.NewServer(w.Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/transcript/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	readFrame := func() WSMessage {
		t.Helper()
		var frame WSMessage
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read frame: %v", err)
		}
		return frame
	}

	if frame := readFrame(); frame.Type != "status" || frame.Content != "connected" {
		t.Fatalf("expected status frame first, got %+v", frame)
	}
	if frame := readFrame(); frame.Content != "replayed answer" {
		t.Fatalf("expected replayed message, got %+v", frame)
	}

	feed.Publish(domain.SpokenMessage{
		Message:        domain.NewAssistantMessage("scientist", "live answer"),
		ConversationID: "conv-test",
		Mode:           domain.ModeQuery,
	})
	if frame := readFrame(); frame.Content != "live answer" || frame.Mode != string(domain.ModeQuery) {
		t.Fatalf("expected live message, got %+v", frame)
	}
}
