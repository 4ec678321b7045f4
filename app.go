package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"aitranslate/internal/bootstrap"
	"aitranslate/internal/config"
	"aitranslate/internal/dispatch"
	"aitranslate/internal/domain"
	"aitranslate/internal/settings"
	"aitranslate/internal/speech"
	"aitranslate/internal/usecase"
)

const (
	eventAppended  = "aitranslate:appended"
	eventCompleted = "aitranslate:completed"
	eventFailed    = "aitranslate:failed"
	eventStartup   = "aitranslate:startup-error"

	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type emitFunc func(ctx context.Context, name string, data ...interface{})

// App is the Wails application root.
type App struct {
	ctx  context.Context
	emit emitFunc

	services *bootstrap.Services
	bootErr  error
	pumpDone chan struct{}
	audio    atomic.Value // http.Handler
}

func NewApp() *App {
	return &App{emit: runtime.EventsEmit}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build()
	if err != nil {
		a.bootErr = err
		a.emitEvent(eventStartup, map[string]string{
			"title":   "Startup failed",
			"message": err.Error(),
		})
		return
	}
	a.attach(ctx, services)
}

// attach starts delivering dispatched events to the frontend.
func (a *App) attach(ctx context.Context, services *bootstrap.Services) {
	a.services = services
	a.audio.Store(speech.Handler(services.Config.AudioDir()))
	a.pumpDone = make(chan struct{})
	go func() {
		defer close(a.pumpDone)
		dispatch.Pump(ctx, services.Dispatch, a.deliver)
	}()
}

func (a *App) shutdown(context.Context) {
	if a.services == nil {
		return
	}
	if err := a.services.Close(); err != nil {
		a.services.Logger.Warn().Err(err).Msg("failed to close services")
	}
	<-a.pumpDone
}

// Translate starts translating text into the configured target language and
// returns the request handle. Empty text is submitted like any other.
func (a *App) Translate(text string) (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	target := a.services.Settings.Current().TargetLanguage
	handle := a.services.Translator.Submit(a.ctx, text, target)
	return string(handle), nil
}

// CancelTranslation stops an in-flight request. Finished handles are ignored.
func (a *App) CancelTranslation(handle string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.services.Translator.Cancel(domain.Handle(handle)); err != nil {
		if errors.Is(err, usecase.ErrUnknownHandle) {
			return nil
		}
		return err
	}
	return nil
}

// SpeakSource converts the source text to speech and returns the file to play.
func (a *App) SpeakSource(text string) (domain.SpeechResult, error) {
	return a.speak(domain.SpeechSource, text)
}

// SpeakTranslation converts the translated text to speech.
func (a *App) SpeakTranslation(text string) (domain.SpeechResult, error) {
	return a.speak(domain.SpeechTranslation, text)
}

// CancelSpeech stops the conversion running for target ("source" or
// "translation") and reports whether one was running.
func (a *App) CancelSpeech(target string) bool {
	if a.requireReady() != nil {
		return false
	}
	return a.services.Speaker.Cancel(domain.SpeechTarget(target))
}

func (a *App) GetSupportedVoices() []string {
	return settings.SupportedVoices()
}

// ClearCache drops every cached translation and synthesized audio file.
func (a *App) ClearCache() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.services.Cache.Clear(a.ctx); err != nil {
		return err
	}
	return a.services.Speaker.Clear(a.ctx)
}

func (a *App) GetSettings() (domain.Settings, error) {
	if err := a.requireReady(); err != nil {
		return settings.Defaults(), err
	}
	return a.services.Settings.Current(), nil
}

func (a *App) SaveSettings(next domain.Settings) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Settings.Save(next)
}

func (a *App) GetSupportedLanguages() []string {
	return settings.SupportedLanguages()
}

// GetHistory returns the most recent completed translations.
func (a *App) GetHistory(limit int) ([]domain.Transcript, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	if a.services.Transcripts == nil {
		return []domain.Transcript{}, nil
	}
	return a.services.Transcripts.Recent(a.ctx, clampHistoryLimit(limit))
}

// GetStatus summarizes the translator for the UI.
func (a *App) GetStatus() domain.RuntimeStatus {
	if a.services == nil {
		return domain.RuntimeStatus{}
	}
	return domain.RuntimeStatus{
		InFlight:  a.services.Translator.InFlight(),
		CacheSize: a.services.Cache.Len(),
		Ready:     true,
	}
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}
	if a.services == nil {
		return map[string]string{}
	}

	cfg := a.services.Config
	endpoint := cfg.APIBase
	if cfg.Transport == config.TransportWebsocket {
		endpoint = cfg.WSURL
	}
	return map[string]string{
		"transport":     cfg.Transport,
		"endpoint":      endpoint,
		"model":         cfg.Model,
		"settingsFile":  a.services.Settings.Path(),
		"glossaryFile":  cfg.GlossaryFile,
		"dataDir":       cfg.DataDir,
		"cacheCapacity": fmt.Sprint(cfg.CacheCapacity),
		"apiKeySet":     fmt.Sprint(a.services.Settings.Current().APIKey != ""),
	}
}

func (a *App) speak(target domain.SpeechTarget, text string) (domain.SpeechResult, error) {
	if err := a.requireReady(); err != nil {
		return domain.SpeechResult{}, err
	}
	result, err := a.services.Speaker.Speak(a.ctx, target, text)
	if err != nil {
		return domain.SpeechResult{}, speechError(err)
	}
	return result, nil
}

// audioHandler serves synthesized speech to the webview once services are up.
func (a *App) audioHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler, ok := a.audio.Load().(http.Handler)
		if !ok {
			http.NotFound(w, r)
			return
		}
		handler.ServeHTTP(w, r)
	})
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.services == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

func (a *App) deliver(envelope dispatch.Envelope) {
	name, payload := eventPayload(envelope)
	a.emitEvent(name, payload)
}

func (a *App) emitEvent(name string, payload map[string]string) {
	if a.ctx == nil || a.emit == nil {
		return
	}
	a.emit(a.ctx, name, payload)
}

func eventPayload(envelope dispatch.Envelope) (string, map[string]string) {
	event := envelope.Event
	handle := string(envelope.Handle)
	switch event.Kind {
	case domain.UiEventAppended:
		return eventAppended, map[string]string{"handle": handle, "text": event.Text}
	case domain.UiEventCompleted:
		return eventCompleted, map[string]string{"handle": handle, "text": event.Text}
	default:
		return eventFailed, map[string]string{
			"handle":  handle,
			"kind":    string(event.ErrorKind),
			"title":   errorTitle(event.ErrorKind),
			"message": event.Text,
		}
	}
}

func errorTitle(kind domain.ErrorKind) string {
	switch kind {
	case domain.ErrorKindConnection:
		return "Connection failed"
	case domain.ErrorKindAuth:
		return "Authentication failed"
	case domain.ErrorKindProtocol:
		return "Unexpected response"
	case domain.ErrorKindServer:
		return "Server error"
	case domain.ErrorKindCancelled:
		return "Translation cancelled"
	case domain.ErrorKindTimeout:
		return "Timed out"
	default:
		return "Translation failed"
	}
}

// speechError prefixes a classified failure with the title the UI shows.
func speechError(err error) error {
	var classified *domain.Error
	if !errors.As(err, &classified) {
		return err
	}
	title := errorTitle(classified.Kind)
	if classified.Kind == domain.ErrorKindCancelled {
		title = "Speech cancelled"
	}
	return fmt.Errorf("%s: %w", title, err)
}

func clampHistoryLimit(limit int) int {
	if limit <= 0 {
		return defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}
