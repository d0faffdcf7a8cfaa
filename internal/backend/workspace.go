package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"paperbot/internal/domain"
)

const (
	// defaultBaseURL is where a local AnythingLLM instance listens.
	defaultBaseURL = "http://localhost:3001/api"
	// defaultSlug is the workspace queries go to unless configured otherwise.
	defaultSlug = "scientific-papers"
	// defaultSearchLimit caps how many sources a document search returns.
	defaultSearchLimit = 8
)

// ErrWorkspaceNotFound reports a 404 on workspace lookup.
var ErrWorkspaceNotFound = errors.New("workspace not found")

// Workspace is the retrieval-augmented backend variant. It forwards prompts
// to an AnythingLLM-compatible workspace that owns retrieval, ranking and
// generation.
type Workspace struct {
	baseURL string
	apiKey  string
	slug    string
	client  *http.Client
	logger  *slog.Logger
}

type WorkspaceConfig struct {
	BaseURL string
	APIKey  string
	Slug    string
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewWorkspace validates the credential up front: a missing API key fails
// construction, not the first call.
func NewWorkspace(cfg WorkspaceConfig) (*Workspace, error) {
	if cfg.APIKey == "" {
		return nil, domain.ErrAPIKeyMissing
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Slug == "" {
		cfg.Slug = defaultSlug
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Workspace{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		slug:    cfg.Slug,
		client:  SharedHTTPClient(cfg.Timeout),
		logger:  cfg.Logger,
	}, nil
}

func (w *Workspace) Name() string             { return fmt.Sprintf("workspace(%s)", w.slug) }
func (w *Workspace) Kind() domain.BackendKind { return domain.KindWorkspace }

// Slug returns the configured workspace identifier.
func (w *Workspace) Slug() string { return w.slug }

// BaseURL returns the configured service address.
func (w *Workspace) BaseURL() string { return w.baseURL }

type chatRequest struct {
	Message string `json:"message"`
	Mode    string `json:"mode"`
}

type chatResponse struct {
	TextResponse string          `json:"textResponse"`
	Sources      []domain.Source `json:"sources"`
}

// Generate sends one assembled prompt in the requested mode. Transport
// failures and non-2xx statuses surface as BackendUnavailable and are never
// retried here.
func (w *Workspace) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResponse, error) {
	jsonBody, err := json.Marshal(chatRequest{Message: req.Prompt, Mode: string(req.Mode)})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	url := fmt.Sprintf("%s/v1/workspace/%s/chat", w.baseURL, w.slug)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+w.apiKey)

	resp, err := w.client.Do(httpReq)
	if err != nil {
		return nil, &domain.BackendUnavailableError{Backend: w.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &domain.BackendUnavailableError{
			Backend: w.Name(),
			Status:  resp.StatusCode,
			Err:     errors.New(strings.TrimSpace(string(respBody))),
		}
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &domain.GenerationResponse{Text: cr.TextResponse, Sources: cr.Sources}, nil
}

// Search asks the workspace for documents related to query and returns up
// to limit source chunks. The service surfaces sources only on chat-mode
// calls, so this rides a chat request with a fixed retrieval preamble.
func (w *Workspace) Search(ctx context.Context, query string, limit int) ([]domain.Source, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	prompt := fmt.Sprintf("Find papers related to: %s. Please provide detailed information about relevant papers.", query)
	resp, err := w.Generate(ctx, domain.GenerationRequest{Prompt: prompt, Mode: domain.ModeChat})
	if err != nil {
		return nil, err
	}
	if len(resp.Sources) > limit {
		return resp.Sources[:limit], nil
	}
	return resp.Sources, nil
}

// WorkspaceDetails is the metadata subset used for existence checks.
type WorkspaceDetails struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type infoResponse struct {
	Workspace []WorkspaceDetails `json:"workspace"`
}

// Info fetches workspace metadata. A 404 maps to ErrWorkspaceNotFound.
func (w *Workspace) Info(ctx context.Context) (*WorkspaceDetails, error) {
	url := fmt.Sprintf("%s/v1/workspace/%s", w.baseURL, w.slug)
	httpReq, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+w.apiKey)

	resp, err := w.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("workspace info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrWorkspaceNotFound
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("workspace info %d: %s", resp.StatusCode, string(respBody))
	}

	var ir infoResponse
	if err := json.NewDecoder(resp.Body).Decode(&ir); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(ir.Workspace) == 0 {
		return nil, ErrWorkspaceNotFound
	}
	return &ir.Workspace[0], nil
}

// Create provisions the workspace under the configured slug.
func (w *Workspace) Create(ctx context.Context, name string) error {
	jsonBody, err := json.Marshal(map[string]string{"name": name, "slug": w.slug})
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", w.baseURL+"/v1/workspace/new", bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+w.apiKey)

	resp, err := w.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("create workspace %d: %s", resp.StatusCode, string(respBody))
	}
	w.logger.Info("workspace created", "slug", w.slug, "name", name)
	return nil
}

// Ensure checks the workspace exists, creating it when missing. It reports
// whether a create happened.
func (w *Workspace) Ensure(ctx context.Context, name string) (bool, error) {
	_, err := w.Info(ctx)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrWorkspaceNotFound) {
		return false, err
	}
	if err := w.Create(ctx, name); err != nil {
		return false, err
	}
	return true, nil
}

// Upload pushes one document into the workspace. The multipart call carries
// only the Authorization header; the part is sent as text/plain. Transient
// failures are retried with backoff before the file is declared failed.
func (w *Workspace) Upload(ctx context.Context, path, filename string) error {
	if filename == "" {
		filename = filepath.Base(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", "text/plain")
	part, err := mw.CreatePart(header)
	if err != nil {
		return fmt.Errorf("multipart: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("multipart write: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("multipart close: %w", err)
	}

	url := fmt.Sprintf("%s/v1/workspace/%s/upload", w.baseURL, w.slug)
	body := buf.Bytes()
	buildReq := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+w.apiKey)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return req, nil
	}

	resp, err := doWithRetry(ctx, w.client, buildReq, w.logger)
	if err != nil {
		return fmt.Errorf("upload %s: %w", filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("upload %s: %d: %s", filename, resp.StatusCode, string(respBody))
	}
	return nil
}

// Healthy checks that the service answers for the configured workspace.
func (w *Workspace) Healthy(ctx context.Context) error {
	url := fmt.Sprintf("%s/v1/workspace/%s", w.baseURL, w.slug)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+w.apiKey)
	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("workspace not reachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("workspace: invalid API key")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("workspace returned %d", resp.StatusCode)
	}
	return nil
}
