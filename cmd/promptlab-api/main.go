package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/PabloGalante/promptlab/internal/adapters/http"
	"github.com/PabloGalante/promptlab/internal/adapters/llm"
	memstore "github.com/PabloGalante/promptlab/internal/adapters/storage/memory"
	"github.com/PabloGalante/promptlab/internal/catalog"
	"github.com/PabloGalante/promptlab/internal/config"
	"github.com/PabloGalante/promptlab/internal/domain"
	"github.com/PabloGalante/promptlab/internal/observability"
)

func main() {
	log := observability.Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	observability.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Choose between mock and Gemini (useful for dev)
	var model domain.ChatModel
	switch {
	case cfg.UseMockLLM:
		log.Info("using mock LLM client")
		model = llm.NewMockLLM()
	default:
		if cfg.HasCredentials() {
			log.Info("using Gemini LLM client", "model", cfg.ModelName, "vertex", cfg.GCPProjectID != "")
		} else {
			log.Warn("no API_KEY or PROMPTLAB_GCP_PROJECT set, chats will fail until one is configured")
		}
		model, err = llm.NewGeminiClient(ctx, llm.GeminiConfig{
			APIKey:    cfg.APIKey,
			Project:   cfg.GCPProjectID,
			Location:  cfg.GCPLocation,
			ModelName: cfg.ModelName,
		})
		if err != nil {
			log.Error("error initializing Gemini client", "error", err)
			os.Exit(1)
		}
	}

	handler := httpadapter.NewServer(memstore.NewWorkbenchStore(), catalog.Default(), model, httpadapter.Options{
		ModelName:   cfg.ModelName,
		FrontendURL: cfg.FrontendURL,
	})

	// No WriteTimeout: chat requests wait on the model.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info("PromptLab API listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
}
