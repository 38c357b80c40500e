package speech_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/virtualtutor/core"
	. "github.com/trezcool/virtualtutor/core/speech"
	cachesvc "github.com/trezcool/virtualtutor/services/cache"
	logsvc "github.com/trezcool/virtualtutor/services/logger"
)

type fakeSynthesizer struct {
	requests []Request
	err      error
}

func (s *fakeSynthesizer) Synthesize(_ context.Context, req Request) ([]byte, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return []byte("RIFF:" + req.Text), nil
}

func (s *fakeSynthesizer) Clone(_ context.Context, req CloneRequest) ([]byte, error) {
	return []byte("RIFF:" + req.VoiceName), s.err
}

func (s *fakeSynthesizer) Voices(context.Context, string) ([]Voice, error) {
	return []Voice{{ID: "v"}}, s.err
}

func (s *fakeSynthesizer) Engines(context.Context) ([]EngineInfo, error) {
	return []EngineInfo{{ID: "e"}}, s.err
}

func (s *fakeSynthesizer) Models(context.Context) ([]Model, error) {
	return []Model{{ID: "m"}}, s.err
}

func (s *fakeSynthesizer) Health(context.Context) error { return s.err }

// failingCache fails every call.
type failingCache struct{}

func (failingCache) Get(context.Context, string) ([]byte, error) { return nil, errors.New("down") }

func (failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("down")
}

func newService(tts Synthesizer, cache Cache, cacheEnabled bool) *Service {
	conf := &core.Config{TTS: core.TTSConfig{
		DefaultEngine: EngineEdge,
		DefaultVoice:  "zh-CN-XiaoxiaoNeural",
		CacheEnabled:  cacheEnabled,
		CacheTTL:      time.Hour,
	}}
	return NewService(tts, cache, conf, logsvc.NewNop())
}

func TestCacheKey(t *testing.T) {
	key := CacheKey("hello", "edge-tts", "v1")
	assert.Len(t, key, len("tts:")+32)
	assert.Equal(t, "tts:", key[:4])
	assert.Equal(t, key, CacheKey("hello", "edge-tts", "v1"))
	assert.NotEqual(t, key, CacheKey("hello", "edge-tts", "v2"))
	assert.NotEqual(t, key, CacheKey("hello", "cosyvoice", "v1"))
}

func TestService_Synthesize(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults and cache", func(t *testing.T) {
		tts := &fakeSynthesizer{}
		cache := cachesvc.NewMemoryCache()
		svc := newService(tts, cache, true)

		for i := 0; i < 2; i++ {
			audio, err := svc.Synthesize(ctx, Request{Text: "hi"})
			require.NoError(t, err)
			assert.Equal(t, []byte("RIFF:hi"), audio)
		}
		require.Len(t, tts.requests, 1)
		assert.Equal(t, EngineEdge, tts.requests[0].Engine)
		assert.Equal(t, "zh-CN-XiaoxiaoNeural", tts.requests[0].Voice)

		cached, err := cache.Get(ctx, CacheKey("hi", EngineEdge, "zh-CN-XiaoxiaoNeural"))
		require.NoError(t, err)
		assert.Equal(t, []byte("RIFF:hi"), cached)
	})

	t.Run("reference is never cached", func(t *testing.T) {
		tts := &fakeSynthesizer{}
		svc := newService(tts, cachesvc.NewMemoryCache(), true)
		for i := 0; i < 2; i++ {
			_, err := svc.Synthesize(ctx, Request{Text: "hi", Reference: &Reference{Filename: "ref.wav"}})
			require.NoError(t, err)
		}
		assert.Len(t, tts.requests, 2)
	})

	t.Run("cache disabled", func(t *testing.T) {
		tts := &fakeSynthesizer{}
		svc := newService(tts, cachesvc.NewMemoryCache(), false)
		for i := 0; i < 2; i++ {
			_, err := svc.Synthesize(ctx, Request{Text: "hi"})
			require.NoError(t, err)
		}
		assert.Len(t, tts.requests, 2)
	})

	t.Run("broken cache", func(t *testing.T) {
		tts := &fakeSynthesizer{}
		audio, err := newService(tts, failingCache{}, true).Synthesize(ctx, Request{Text: "hi"})
		require.NoError(t, err)
		assert.Equal(t, []byte("RIFF:hi"), audio)
	})

	t.Run("failure", func(t *testing.T) {
		uErr := &core.UpstreamError{Service: "tts", Code: 500}
		_, err := newService(&fakeSynthesizer{err: uErr}, nil, true).Synthesize(ctx, Request{Text: "hi"})
		assert.Equal(t, uErr, errors.Cause(err))
	})
}

func TestService_catalog(t *testing.T) {
	ctx := context.Background()

	svc := newService(&fakeSynthesizer{}, nil, false)
	assert.Equal(t, []Voice{{ID: "v"}}, svc.Voices(ctx, ""))
	assert.Equal(t, []EngineInfo{{ID: "e"}}, svc.Engines(ctx))
	assert.Equal(t, []Model{{ID: "m"}}, svc.Models(ctx))
	assert.NoError(t, svc.Health(ctx))

	svc = newService(&fakeSynthesizer{err: errors.New("down")}, nil, false)
	assert.Equal(t, DefaultVoices(EngineEdge), svc.Voices(ctx, EngineEdge))
	assert.Equal(t, DefaultEngines(), svc.Engines(ctx))
	assert.Equal(t, DefaultModels, svc.Models(ctx))
	assert.Error(t, svc.Health(ctx))
}

func TestDefaultVoices(t *testing.T) {
	assert.Len(t, DefaultVoices(EngineEdge), 5)
	assert.Empty(t, DefaultVoices("unknown"))

	all := DefaultVoices("")
	assert.Len(t, all, 9)
	for _, v := range all {
		assert.NotEmpty(t, v.Engine)
	}

	// the catalog is not shared with callers
	voices := DefaultVoices(EngineGPTSoVITS)
	voices[0].Name = "changed"
	assert.NotEqual(t, "changed", DefaultVoices(EngineGPTSoVITS)[0].Name)
}
