// Package wsstream opens translation streams over a websocket. Text messages
// are concatenated into one byte stream in the same format as the HTTP event
// stream, so a record may span several messages.
package wsstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"aitranslate/internal/domain"
	"aitranslate/internal/ports"
	"aitranslate/internal/providers/chat"
)

// Config controls websocket stream settings.
type Config struct {
	URL      string
	Model    string
	Thinking string
}

// Provider implements ports.StreamTransport over a websocket.
type Provider struct {
	cfg    Config
	dialer *websocket.Dialer
}

func NewProvider(cfg Config) *Provider {
	if cfg.Model == "" {
		cfg.Model = "glm-4.7"
	}
	return &Provider{cfg: cfg, dialer: websocket.DefaultDialer}
}

func (p *Provider) OpenStream(ctx context.Context, req ports.StreamRequest) (io.ReadCloser, error) {
	if strings.TrimSpace(req.APIKey) == "" {
		return nil, domain.Errorf(domain.ErrorKindAuth, "API key is not configured")
	}

	wsURL, err := buildStreamURL(p.cfg.URL)
	if err != nil {
		return nil, domain.NewError(domain.ErrorKindConnection, "invalid websocket endpoint", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+req.APIKey)

	conn, resp, err := p.dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, domain.Errorf(domain.ErrorKindAuth, "API key rejected (%s)", resp.Status)
		}
		if resp != nil {
			return nil, domain.Errorf(domain.ErrorKindServer, "websocket handshake failed: %s", resp.Status)
		}
		return nil, domain.NewError(domain.ErrorKindConnection, "failed to connect to translation websocket", err)
	}

	payload, err := json.Marshal(chat.NewRequest(chat.Options{Model: p.cfg.Model, Thinking: p.cfg.Thinking}, req))
	if err != nil {
		_ = conn.Close()
		return nil, domain.NewError(domain.ErrorKindProtocol, "failed to encode request", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		_ = conn.Close()
		return nil, domain.NewError(domain.ErrorKindConnection, "failed to send translation request", err)
	}

	reader, writer := io.Pipe()
	session := &streamingSession{
		conn:   conn,
		reader: reader,
		writer: writer,
		done:   make(chan struct{}),
	}

	go session.readLoop()
	go func() {
		select {
		case <-ctx.Done():
			_ = session.Close()
		case <-session.done:
		}
	}()

	return session, nil
}

type streamingSession struct {
	conn *websocket.Conn

	reader *io.PipeReader
	writer *io.PipeWriter
	done   chan struct{}

	closeOnce sync.Once
}

func (s *streamingSession) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

// Close releases the connection and waits for the read loop to exit.
func (s *streamingSession) Close() error {
	s.closeOnce.Do(func() {
		_ = s.reader.Close()
		_ = s.conn.Close()
	})
	<-s.done
	return nil
}

func (s *streamingSession) readLoop() {
	defer close(s.done)

	for {
		messageType, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.writer.CloseWithError(streamErr(err))
			return
		}
		if messageType != websocket.TextMessage || len(payload) == 0 {
			continue
		}
		if _, err := s.writer.Write(payload); err != nil {
			return
		}
	}
}

// streamErr maps a read failure to what the body reader reports. A normal
// close ends the body with io.EOF.
func streamErr(err error) error {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return io.EOF
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return domain.Errorf(domain.ErrorKindServer, "websocket closed by server: %d %s", closeErr.Code, closeErr.Text)
	}
	return domain.NewError(domain.ErrorKindConnection, "failed to read translation stream", err)
}

func buildStreamURL(raw string) (string, error) {
	base := strings.TrimSpace(raw)
	if base == "" {
		return "", errors.New("websocket URL is not configured")
	}
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid websocket URL: %w", err)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return "", fmt.Errorf("unsupported websocket scheme %q", parsed.Scheme)
	}
	return parsed.String(), nil
}
