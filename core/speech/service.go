package speech

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/virtualtutor/core"
)

// ErrCacheMiss is returned by a Cache that does not hold the key.
var ErrCacheMiss = errors.New("cache miss")

type (
	// Synthesizer is the remote TTS service.
	Synthesizer interface {
		Synthesize(ctx context.Context, req Request) ([]byte, error)
		Clone(ctx context.Context, req CloneRequest) ([]byte, error)
		Voices(ctx context.Context, engine string) ([]Voice, error)
		Engines(ctx context.Context) ([]EngineInfo, error)
		Models(ctx context.Context) ([]Model, error)
		Health(ctx context.Context) error
	}

	// Cache stores synthesized audio.
	Cache interface {
		Get(ctx context.Context, key string) ([]byte, error)
		Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	}

	Service struct {
		tts    Synthesizer
		cache  Cache
		conf   core.TTSConfig
		logger core.Logger
	}
)

// NewService returns a Service; a nil cache disables caching.
func NewService(tts Synthesizer, cache Cache, conf *core.Config, logger core.Logger) *Service {
	if !conf.TTS.CacheEnabled {
		cache = nil
	}
	return &Service{tts: tts, cache: cache, conf: conf.TTS, logger: logger}
}

// CacheKey is the cache key of the audio of text spoken by voice of engine.
func CacheKey(text, engine, voice string) string {
	sum := md5.Sum([]byte(text + ":" + engine + ":" + voice))
	return "tts:" + hex.EncodeToString(sum[:])
}

// Synthesize returns the WAV audio of req, from the cache when possible.
// Requests carrying a reference audio are never cached.
func (svc *Service) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if req.Engine == "" {
		req.Engine = svc.conf.DefaultEngine
	}
	if req.Voice == "" {
		req.Voice = svc.conf.DefaultVoice
	}

	cacheable := svc.cache != nil && req.Reference == nil
	key := CacheKey(req.Text, req.Engine, req.Voice)
	if cacheable {
		audio, err := svc.cache.Get(ctx, key)
		if err == nil {
			return audio, nil
		}
		if errors.Cause(err) != ErrCacheMiss {
			svc.logger.Warn("reading tts cache", err)
		}
	}

	audio, err := svc.tts.Synthesize(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "synthesizing speech")
	}
	if cacheable {
		if err = svc.cache.Set(ctx, key, audio, svc.conf.CacheTTL); err != nil {
			svc.logger.Warn("writing tts cache", err)
		}
	}
	return audio, nil
}

func (svc *Service) Clone(ctx context.Context, req CloneRequest) ([]byte, error) {
	audio, err := svc.tts.Clone(ctx, req)
	return audio, errors.Wrap(err, "cloning voice")
}

// Voices lists the voices of engine (all engines when empty), falling back to the built-in catalog.
func (svc *Service) Voices(ctx context.Context, engine string) []Voice {
	voices, err := svc.tts.Voices(ctx, engine)
	if err != nil {
		svc.logger.Warn("listing tts voices", err)
		return DefaultVoices(engine)
	}
	return voices
}

func (svc *Service) Engines(ctx context.Context) []EngineInfo {
	engines, err := svc.tts.Engines(ctx)
	if err != nil || len(engines) == 0 {
		if err != nil {
			svc.logger.Warn("listing tts engines", err)
		}
		return DefaultEngines()
	}
	return engines
}

func (svc *Service) Models(ctx context.Context) []Model {
	models, err := svc.tts.Models(ctx)
	if err != nil || len(models) == 0 {
		if err != nil {
			svc.logger.Warn("listing tts models", err)
		}
		return DefaultModels
	}
	return models
}

func (svc *Service) Health(ctx context.Context) error {
	return svc.tts.Health(ctx)
}
