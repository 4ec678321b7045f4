package openai

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"aitranslate/internal/domain"
	"aitranslate/internal/ports"
	"aitranslate/internal/providers/chat"
)

const (
	defaultBaseURL = "https://api.z.ai/api/coding/paas/v4"
	defaultModel   = "glm-4.7"
)

// Config controls the OpenAI-compatible streaming endpoint.
type Config struct {
	BaseURL  string
	Model    string
	Thinking string
}

// Provider implements ports.StreamTransport over HTTP server-sent events.
type Provider struct {
	cfg  Config
	http *resty.Client
}

func NewProvider(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	// No client timeout: streams stay open for as long as tokens keep arriving.
	return &Provider{cfg: cfg, http: resty.New()}
}

// OpenStream posts the chat request and returns the undecoded response body.
func (p *Provider) OpenStream(ctx context.Context, req ports.StreamRequest) (io.ReadCloser, error) {
	if strings.TrimSpace(req.APIKey) == "" {
		return nil, domain.Errorf(domain.ErrorKindAuth, "API key is not configured")
	}

	resp, err := p.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+req.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "text/event-stream").
		SetBody(chat.NewRequest(chat.Options{Model: p.cfg.Model, Thinking: p.cfg.Thinking}, req)).
		SetDoNotParseResponse(true).
		Post(p.completionsURL())
	if err != nil {
		return nil, domain.NewError(domain.ErrorKindConnection, "failed to reach translation endpoint", err)
	}

	body := resp.RawBody()
	if !resp.IsError() {
		return body, nil
	}
	defer body.Close()

	detail := chat.ErrorDetail(body)
	switch resp.StatusCode() {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, domain.Errorf(domain.ErrorKindAuth, "API key rejected (%s)%s", resp.Status(), detail)
	default:
		return nil, domain.Errorf(domain.ErrorKindServer, "API error: %s%s", resp.Status(), detail)
	}
}

func (p *Provider) completionsURL() string {
	return strings.TrimRight(strings.TrimSpace(p.cfg.BaseURL), "/") + "/chat/completions"
}
