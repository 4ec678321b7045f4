// Package tts synthesizes speech through the endpoint's audio API.
package tts

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
	defaultBaseURL = "https://api.z.ai/api/paas/v4"
	defaultModel   = "glm-tts"
	defaultVoice   = "tongtong"
)

// Config controls the speech endpoint.
type Config struct {
	BaseURL string
	Model   string
}

// Request is the speech synthesis body.
type Request struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed"`
	Volume         float64 `json:"volume"`
}

// Provider implements ports.SpeechSynthesizer.
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
	return &Provider{cfg: cfg, http: resty.New()}
}

// Synthesize returns the WAV audio for one segment of text.
func (p *Provider) Synthesize(ctx context.Context, req ports.SpeechRequest) ([]byte, error) {
	if strings.TrimSpace(req.APIKey) == "" {
		return nil, domain.Errorf(domain.ErrorKindAuth, "API key is not configured")
	}

	resp, err := p.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+req.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "audio/wav").
		SetBody(NewRequest(p.cfg.Model, req)).
		SetDoNotParseResponse(true).
		Post(p.speechURL())
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.NewError(domain.ErrorKindCancelled, "speech cancelled", ctx.Err())
		}
		return nil, domain.NewError(domain.ErrorKindConnection, "failed to reach speech endpoint", err)
	}

	body := resp.RawBody()
	defer body.Close()

	if resp.IsError() {
		detail := chat.ErrorDetail(body)
		switch resp.StatusCode() {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, domain.Errorf(domain.ErrorKindAuth, "API key rejected (%s)%s", resp.Status(), detail)
		default:
			return nil, domain.Errorf(domain.ErrorKindServer, "speech API error: %s%s", resp.Status(), detail)
		}
	}

	audio, err := io.ReadAll(body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.NewError(domain.ErrorKindCancelled, "speech cancelled", ctx.Err())
		}
		return nil, domain.NewError(domain.ErrorKindConnection, "failed to read speech audio", err)
	}
	if len(audio) == 0 {
		return nil, domain.Errorf(domain.ErrorKindProtocol, "speech endpoint returned no audio")
	}
	return audio, nil
}

// NewRequest builds the body for one segment. Speed and volume are clamped to
// the ranges the endpoint accepts.
func NewRequest(model string, req ports.SpeechRequest) Request {
	voice := strings.ToLower(strings.TrimSpace(req.Voice))
	if voice == "" {
		voice = defaultVoice
	}
	speed := req.Speed
	if speed == 0 {
		speed = 1
	}
	return Request{
		Model:          model,
		Input:          req.Text,
		Voice:          voice,
		ResponseFormat: "wav",
		Speed:          clamp(speed, 0.5, 2),
		Volume:         clamp(req.Volume, 0, 10),
	}
}

func (p *Provider) speechURL() string {
	return strings.TrimRight(strings.TrimSpace(p.cfg.BaseURL), "/") + "/audio/speech"
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
