package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"paperbot/internal/domain"
)

// Direct is the retrieval-free backend variant: it sends the assembled
// prompt verbatim to an OpenAI-compatible completion endpoint. The request
// mode is accepted for contract symmetry and otherwise ignored.
type Direct struct {
	apiKey  string
	apiBase string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

type DirectConfig struct {
	APIKey  string
	APIBase string
	Model   string
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewDirect(cfg DirectConfig) *Direct {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Direct{
		apiKey:  cfg.APIKey,
		apiBase: strings.TrimRight(cfg.APIBase, "/"),
		model:   cfg.Model,
		client:  SharedHTTPClient(cfg.Timeout),
		logger:  cfg.Logger,
	}
}

func (d *Direct) Name() string             { return fmt.Sprintf("direct(%s)", d.model) }
func (d *Direct) Kind() domain.BackendKind { return domain.KindDirect }

type completionRequest struct {
	Model    string              `json:"model"`
	Messages []completionMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionResponse struct {
	Choices []completionChoice `json:"choices"`
}

type completionChoice struct {
	Message completionMessage `json:"message"`
}

func (d *Direct) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResponse, error) {
	body := completionRequest{
		Model:    d.model,
		Messages: []completionMessage{{Role: "user", Content: req.Prompt}},
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", d.apiBase+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, &domain.BackendUnavailableError{Backend: d.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &domain.BackendUnavailableError{
			Backend: d.Name(),
			Status:  resp.StatusCode,
			Err:     errors.New(strings.TrimSpace(string(respBody))),
		}
	}

	var cr completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(cr.Choices) == 0 {
		return &domain.GenerationResponse{}, nil
	}
	return &domain.GenerationResponse{Text: cr.Choices[0].Message.Content}, nil
}

func (d *Direct) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", d.apiBase+"/models", nil)
	if err != nil {
		return err
	}
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("direct backend not reachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("direct backend: invalid API key")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("direct backend returned %d", resp.StatusCode)
	}
	return nil
}
