// Package speech reads source text and translations aloud. Text is split into
// segments, synthesized in parallel, merged into one WAV file and cached by
// text and voice.
package speech

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"aitranslate/internal/domain"
	"aitranslate/internal/ports"
)

var (
	ErrEmptyText     = errors.New("nothing to speak")
	ErrUnknownTarget = errors.New("unknown speech target")
)

const (
	defaultSegmentLength = 800
	defaultParallel      = 5
)

// Config controls where audio is written and how text is segmented.
type Config struct {
	Dir           string
	SegmentLength int
	Parallel      int
}

// Deps are the collaborators a Speaker drives.
type Deps struct {
	Synthesizer ports.SpeechSynthesizer
	Cache       *AudioCache
	Settings    ports.SettingsSource
	Logger      zerolog.Logger
}

type speechJob struct {
	cancel context.CancelFunc
}

// Speaker runs at most one conversion per target. Starting a new conversion
// for a target cancels the previous one.
type Speaker struct {
	synth    ports.SpeechSynthesizer
	cache    *AudioCache
	settings ports.SettingsSource
	cfg      Config
	log      zerolog.Logger

	mu      sync.Mutex
	active  map[domain.SpeechTarget]*speechJob
	running sync.WaitGroup
}

func NewSpeaker(deps Deps, cfg Config) *Speaker {
	if cfg.SegmentLength <= 0 {
		cfg.SegmentLength = defaultSegmentLength
	}
	if cfg.Parallel <= 0 {
		cfg.Parallel = defaultParallel
	}
	return &Speaker{
		synth:    deps.Synthesizer,
		cache:    deps.Cache,
		settings: deps.Settings,
		cfg:      cfg,
		log:      deps.Logger.With().Str("component", "speaker").Logger(),
		active:   make(map[domain.SpeechTarget]*speechJob),
	}
}

// Speak returns a playable file for text, synthesizing it unless the same
// text and voice were spoken before. Failures are *domain.Error values; a
// cancelled conversion reports ErrorKindCancelled.
func (s *Speaker) Speak(ctx context.Context, target domain.SpeechTarget, text string) (domain.SpeechResult, error) {
	if target != domain.SpeechSource && target != domain.SpeechTranslation {
		return domain.SpeechResult{}, fmt.Errorf("%w: %q", ErrUnknownTarget, target)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.SpeechResult{}, ErrEmptyText
	}

	voice := s.voice()
	key := Key(text, voice)
	log := s.log.With().Str("target", string(target)).Logger()
	if entry, ok := s.cache.Get(key); ok {
		log.Info().Msg("speech served from cache")
		return newResult(entry.Path, true), nil
	}

	ctx, job := s.begin(ctx, target)
	defer s.end(target, job)

	started := time.Now()
	segments := Split(text, s.cfg.SegmentLength)
	log.Info().Int("segments", len(segments)).Int("length", len(text)).Msg("speech conversion started")

	clips, err := s.synthesize(ctx, segments, voice)
	if err != nil {
		return domain.SpeechResult{}, s.failure(ctx, err, log)
	}
	path, err := s.write(clips)
	if err != nil {
		return domain.SpeechResult{}, s.failure(ctx, err, log)
	}
	if ctx.Err() != nil {
		removeFile(path, log)
		return domain.SpeechResult{}, s.failure(ctx, ctx.Err(), log)
	}

	s.cache.Put(key, path)
	log.Info().Dur("elapsed", time.Since(started)).Str("path", path).Msg("speech conversion completed")
	return newResult(path, false), nil
}

// Cancel stops the conversion running for target. It reports whether one was
// running.
func (s *Speaker) Cancel(target domain.SpeechTarget) bool {
	s.mu.Lock()
	job := s.active[target]
	delete(s.active, target)
	s.mu.Unlock()
	if job == nil {
		return false
	}
	job.cancel()
	s.log.Info().Str("target", string(target)).Msg("speech conversion cancelled")
	return true
}

// Close cancels every conversion and waits for them to return.
func (s *Speaker) Close() {
	s.mu.Lock()
	for target, job := range s.active {
		job.cancel()
		delete(s.active, target)
	}
	s.mu.Unlock()
	s.running.Wait()
}

// Clear drops every cached audio file.
func (s *Speaker) Clear(ctx context.Context) error {
	return s.cache.Clear(ctx)
}

func (s *Speaker) voice() ports.SpeechRequest {
	if s.settings == nil {
		return ports.SpeechRequest{Speed: 1, Volume: 1}
	}
	current := s.settings.Current()
	return ports.SpeechRequest{
		APIKey: current.APIKey,
		Voice:  current.TTSVoice,
		Speed:  current.TTSSpeed,
		Volume: current.TTSVolume,
	}
}

func (s *Speaker) begin(parent context.Context, target domain.SpeechTarget) (context.Context, *speechJob) {
	ctx, cancel := context.WithCancel(parent)
	job := &speechJob{cancel: cancel}

	s.mu.Lock()
	previous := s.active[target]
	s.active[target] = job
	s.running.Add(1)
	s.mu.Unlock()

	if previous != nil {
		previous.cancel()
	}
	return ctx, job
}

func (s *Speaker) end(target domain.SpeechTarget, job *speechJob) {
	s.mu.Lock()
	if s.active[target] == job {
		delete(s.active, target)
	}
	s.mu.Unlock()
	job.cancel()
	s.running.Done()
}

func (s *Speaker) synthesize(ctx context.Context, segments []string, voice ports.SpeechRequest) ([][]byte, error) {
	clips := make([][]byte, len(segments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallel)
	for i, segment := range segments {
		g.Go(func() error {
			req := voice
			req.Text = segment
			clip, err := s.synth.Synthesize(gctx, req)
			if err != nil {
				return err
			}
			clips[i] = clip
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return clips, nil
}

// write stores clips as one file under the audio directory.
func (s *Speaker) write(clips [][]byte) (string, error) {
	if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("make audio dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.cfg.Dir, "speech-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create audio file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if len(clips) == 1 {
		_, err = tmp.Write(clips[0])
	} else {
		err = mergeWAV(tmp, clips)
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("write audio file: %w", err)
	}

	path := filepath.Join(s.cfg.Dir, uuid.NewString()+".wav")
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("store audio file: %w", err)
	}
	return path, nil
}

func (s *Speaker) failure(ctx context.Context, err error, log zerolog.Logger) error {
	if ctx.Err() != nil {
		log.Info().Msg("speech conversion stopped")
		return domain.NewError(domain.ErrorKindCancelled, "speech cancelled", ctx.Err())
	}
	var classified *domain.Error
	if !errors.As(err, &classified) {
		classified = domain.NewError(domain.ErrorKindProtocol, "speech conversion failed", err)
	}
	log.Warn().Str("kind", string(classified.Kind)).Err(err).Msg("speech conversion failed")
	return classified
}

func newResult(path string, cached bool) domain.SpeechResult {
	return domain.SpeechResult{Path: path, URL: AudioURL(path), Cached: cached}
}
