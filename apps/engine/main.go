package main

import (
	"context"
	"fmt"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	engineapi "github.com/trezcool/virtualtutor/apps/engine/echo"
	"github.com/trezcool/virtualtutor/core"
	"github.com/trezcool/virtualtutor/core/chat"
	"github.com/trezcool/virtualtutor/core/speech"
	cachesvc "github.com/trezcool/virtualtutor/services/cache"
	"github.com/trezcool/virtualtutor/services/lipsync"
	logsvc "github.com/trezcool/virtualtutor/services/logger"
	"github.com/trezcool/virtualtutor/services/ollama"
	"github.com/trezcool/virtualtutor/services/rag"
	"github.com/trezcool/virtualtutor/services/tts"
)

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// newSpeechCache shares the synthesized audio through redis when configured; in memory otherwise.
func newSpeechCache(conf *core.Config, logger core.Logger) (speech.Cache, func()) {
	if conf.Redis.Addr == "" {
		return cachesvc.NewMemoryCache(), func() {}
	}
	client, err := cachesvc.NewRedisClient(context.Background(), conf)
	if err != nil {
		logger.Warn("redis unavailable, caching speech in memory", err)
		return cachesvc.NewMemoryCache(), func() {}
	}
	cache := cachesvc.NewRedisCache(client, "engine:")
	return cache, func() {
		if err := cache.Close(); err != nil {
			logger.Error("closing redis", err)
		}
	}
}

func main() {
	conf := core.NewConfig()
	logger := logsvc.New(conf, "ENGINE", conf.Gateway.Host)
	defer logger.Sync()

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Engine gateway initializing : version %q", conf.Gateway.Version))

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)

	speechCache, closeCache := newSpeechCache(conf, logger)
	defer closeCache()

	var retriever chat.Retriever
	if conf.LLM.RAGEnabled {
		retriever = rag.NewClient(conf)
	}

	llm, err := ollama.NewClient(conf)
	if err != nil {
		logger.Fatal("creating ollama client", err)
	}

	server := engineapi.NewServer(engineapi.Deps{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		Lipsync:    lipsync.NewClient(conf),
		ChatSvc:    chat.NewService(llm, retriever, conf, logger),
		SpeechSvc:  speech.NewService(tts.NewClient(conf), speechCache, conf, logger),
	})
	defer logger.Info("Engine gateway stopped")

	// =========================================================================
	// Start Gateway

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
