package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	cfgpkg "github.com/local/pdfassembly/internal/config"
	"github.com/local/pdfassembly/internal/engine"
	logpkg "github.com/local/pdfassembly/internal/logger"
	"github.com/local/pdfassembly/internal/metrics"
	"github.com/local/pdfassembly/internal/render"
	"github.com/local/pdfassembly/internal/retouch"
	"github.com/local/pdfassembly/internal/session"
	"github.com/local/pdfassembly/internal/web"
)

func main() {
	_ = godotenv.Load()
	cfg := cfgpkg.FromEnv()

	// Init logging
	_ = logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
	defer logpkg.Close()

	metrics.Init()

	eng := engine.New()
	rnd := render.New(render.Options{
		ThumbDPI:    cfg.Render.ThumbDPI,
		JPEGQuality: cfg.Render.JPEGQuality,
	})

	manager := web.NewManager(func() *session.Session {
		return session.New(session.Dependencies{Engine: eng, Renderer: rnd})
	})

	var retoucher retouch.Client
	if cfg.Retouch.APIKey != "" {
		retoucher = retouch.NewGeminiClient(retouch.GeminiOptions{
			APIKey:  cfg.Retouch.APIKey,
			Model:   cfg.Retouch.Model,
			Timeout: cfg.Retouch.Timeout,
		})
	} else {
		log.Warn().Msg("GEMINI_API_KEY not set, image retouch disabled")
	}

	handlers := web.New(web.Dependencies{
		Manager:        manager,
		Retouch:        retoucher,
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
	})

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux)
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: mux}

	go func() {
		log.Info().Msgf("HTTP server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("shutdown complete")
}
