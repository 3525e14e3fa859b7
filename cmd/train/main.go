// Command train fits a model on the stored run history and persists it. A
// running API picks it up on POST /api/v1/model/reload.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"sentimentpipe/backend-go/internal/config"
	"sentimentpipe/backend-go/internal/logging"
	"sentimentpipe/backend-go/internal/metrics"
	"sentimentpipe/backend-go/internal/predictor"
	"sentimentpipe/backend-go/internal/services"
	"sentimentpipe/backend-go/internal/store"
)

func main() {
	_ = godotenv.Load(".env", ".env.local", "backend-go/.env")
	cfg := config.Load()
	pipelinePath := flag.String("config", cfg.PipelineConfigPath, "pipeline config file")
	dbPath := flag.String("db", cfg.DatabasePath, "sqlite database path")
	modelDir := flag.String("out", cfg.ModelDir, "directory for the exported artifact")
	flag.Parse()

	log := logging.NewLoggerWithService("sentimentpipe-train")

	pcfg, err := config.LoadPipeline(*pipelinePath)
	if err != nil {
		log.WithError(err).Fatal("invalid pipeline config")
	}
	st, err := store.Open(*dbPath)
	if err != nil {
		log.WithError(err).Fatal("open store")
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := services.NewModelService(pcfg, predictor.NewRegistry(), st, metrics.New(prometheus.NewRegistry()), log, *modelDir)
	a, err := svc.Retrain(ctx)
	if err != nil {
		log.WithError(err).Error("training failed")
		os.Exit(1)
	}
	log.WithFields(logging.Fields{
		"version":    a.Version,
		"train":      a.TrainSamples,
		"test":       a.TestSamples,
		"mse":        a.Metrics.MSE,
		"rmse":       a.Metrics.RMSE,
		"mae":        a.Metrics.MAE,
		"r2":         a.Metrics.R2,
		"importance": a.FeatureImportance,
	}).Info("model trained")
}
