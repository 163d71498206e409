// Package github stores files through the GitHub repository contents API.
package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/delta-silence/ticket-intake/internal/store"
)

const (
	apiVersion     = "2022-11-28"
	defaultBaseURL = "https://api.github.com"
	contentsPath   = "/repos/{owner}/{repo}/contents/{path}"
)

// Config identifies the repository and credential used for all calls.
type Config struct {
	BaseURL string
	Token   string
	Owner   string
	Repo    string
	// Branch is optional; the repository default branch is used when empty.
	Branch  string
	Timeout time.Duration
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// ContentsStore implements store.ContentStore over GET/PUT
// /repos/{owner}/{repo}/contents/{path}.
type ContentsStore struct {
	client *resty.Client
	owner  string
	repo   string
	branch string
	logger *zap.Logger
}

type contentResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
	SHA      string `json:"sha"`
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

// NewContentsStore validates cfg and builds the client.
func NewContentsStore(cfg Config, logger *zap.Logger) (*ContentsStore, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("github: contents store requires HTTPS (got %q)", baseURL)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("github: token is required")
	}
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, fmt.Errorf("github: owner and repo are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var client *resty.Client
	if cfg.HTTPClient != nil {
		client = resty.NewWithClient(cfg.HTTPClient)
	} else {
		client = resty.New()
	}
	client.
		SetBaseURL(baseURL).
		SetAuthToken(cfg.Token).
		SetHeader("Accept", "application/vnd.github+json").
		SetHeader("X-GitHub-Api-Version", apiVersion)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	return &ContentsStore{
		client: client,
		owner:  cfg.Owner,
		repo:   cfg.Repo,
		branch: cfg.Branch,
		logger: logger,
	}, nil
}

func (s *ContentsStore) request(ctx context.Context, path string) *resty.Request {
	return s.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"owner": s.owner, "repo": s.repo}).
		SetRawPathParams(map[string]string{"path": strings.TrimLeft(path, "/")})
}

// GetFile fetches path and decodes its base64 content.
func (s *ContentsStore) GetFile(ctx context.Context, path string) (*store.File, error) {
	req := s.request(ctx, path)
	if s.branch != "" {
		req.SetQueryParam("ref", s.branch)
	}
	resp, err := req.Get(contentsPath)
	if err != nil {
		return nil, fmt.Errorf("github: get %s: %w", path, err)
	}
	if !resp.IsSuccess() {
		s.logger.Warn("github get failed",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode()))
		return nil, &store.APIError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}

	var payload contentResponse
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("github: decoding contents response: %w", err)
	}
	// The API wraps base64 content at 60 columns; StdEncoding skips the newlines.
	content, err := base64.StdEncoding.DecodeString(payload.Content)
	if err != nil {
		return nil, fmt.Errorf("github: decoding file content: %w", err)
	}
	return &store.File{Content: content, SHA: payload.SHA}, nil
}

// PutFile commits content to path. GitHub answers 409 when expectedSHA is stale.
func (s *ContentsStore) PutFile(ctx context.Context, path string, content []byte, expectedSHA, message string) error {
	body := putRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(content),
		SHA:     expectedSHA,
		Branch:  s.branch,
	}
	resp, err := s.request(ctx, path).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Put(contentsPath)
	if err != nil {
		return fmt.Errorf("github: put %s: %w", path, err)
	}
	if !resp.IsSuccess() {
		s.logger.Warn("github commit failed",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode()))
		return &store.APIError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}
	return nil
}

// Ping checks that the configured repository is visible to the token.
func (s *ContentsStore) Ping(ctx context.Context) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"owner": s.owner, "repo": s.repo}).
		Get("/repos/{owner}/{repo}")
	if err != nil {
		return fmt.Errorf("github: ping: %w", err)
	}
	if !resp.IsSuccess() {
		return &store.APIError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}
	return nil
}
