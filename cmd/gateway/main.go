package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/siherrmann/docflow"
	"github.com/siherrmann/docflow/core/ports"
	"github.com/siherrmann/docflow/gateway"
	"github.com/siherrmann/docflow/helper"
	"github.com/siherrmann/docflow/model"
	"github.com/siherrmann/docflow/pkg/config"
)

func main() {
	cfg, err := config.Load(getEnv("DOCFLOW_CONFIG", "docflow.yaml"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, opts))

	vectorizer, err := buildVectorizer(cfg)
	if err != nil {
		log.Fatalf("failed to create vectorizer: %v", err)
	}

	options := &docflow.Options{
		Vectorizer: vectorizer,
		Retrieval: model.RetrievalConfig{
			TopK:            cfg.Retrieval.TopK,
			CandidateFactor: cfg.Retrieval.CandidateFactor,
		},
		DLQ: model.DLQConfig{
			MaxAttempts:   cfg.DLQ.MaxAttempts,
			DedupWindow:   cfg.DLQ.DedupWindow,
			StaleLease:    cfg.DLQ.StaleLease,
			SweepInterval: cfg.DLQ.SweepInterval,
			PortTimeout:   cfg.DLQ.PortTimeout,
		},
		MaxSentencesPerChunk: cfg.Chunker.SentencesPerChunk,
		Logger:               logger,
	}

	flow, err := buildDocflow(cfg, options)
	if err != nil {
		log.Fatalf("failed to create docflow: %v", err)
	}
	defer flow.Close()

	if !cfg.DLQ.DisableSweeper {
		flow.DLQ.StartSweeper()
	}

	server := gateway.NewServer(flow, logger)

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		logger.Info("Shutting down gateway")
		if err := server.Shutdown(); err != nil {
			logger.Error("Shutdown failed", slog.String("error", err.Error()))
		}
	}()

	if err := server.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		log.Fatalf("gateway stopped: %v", err)
	}
}

func buildVectorizer(cfg *config.Config) (ports.Vectorizer, error) {
	switch cfg.Vectorizer.Type {
	case "hugot":
		return ports.NewHugotVectorizer(cfg.Vectorizer.Model, cfg.Vectorizer.Dimension)
	default:
		return ports.NewHashingVectorizer(cfg.Vectorizer.Dimension)
	}
}

func buildDocflow(cfg *config.Config, options *docflow.Options) (*docflow.Docflow, error) {
	if cfg.Backend == "postgres" {
		dbConfig, err := helper.NewDatabaseConfiguration()
		if err != nil {
			return nil, err
		}
		return docflow.NewDocflow(dbConfig, options)
	}
	return docflow.NewMemoryDocflow(options)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
