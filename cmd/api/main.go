package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"sentimentpipe/backend-go/internal/config"
	"sentimentpipe/backend-go/internal/events"
	"sentimentpipe/backend-go/internal/handlers"
	internalhttp "sentimentpipe/backend-go/internal/http"
	"sentimentpipe/backend-go/internal/loader"
	"sentimentpipe/backend-go/internal/logging"
	"sentimentpipe/backend-go/internal/metrics"
	"sentimentpipe/backend-go/internal/pipeline"
	"sentimentpipe/backend-go/internal/predictor"
	"sentimentpipe/backend-go/internal/report"
	"sentimentpipe/backend-go/internal/services"
	"sentimentpipe/backend-go/internal/store"
)

func main() {
	_ = godotenv.Load(
		".env",
		".env.local",
		"../.env",
		"../.env.local",
		"backend-go/.env",
		"backend-go/.env.local",
	)
	cfg := config.Load()
	log := logging.NewLoggerWithService("sentimentpipe-api")

	pcfg, err := config.LoadPipeline(cfg.PipelineConfigPath)
	if err != nil {
		log.WithError(err).Fatal("invalid pipeline config")
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.WithError(err).Fatal("open store")
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	cache := services.NewCache(cfg)
	log.WithField("cache", cache.Kind()).Info("cache ready")

	publisher := events.New(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer publisher.Close()

	modelSvc := services.NewModelService(pcfg, predictor.NewRegistry(), st, m, log, cfg.ModelDir)
	if _, err := modelSvc.Reload(context.Background()); err != nil {
		if errors.Is(err, predictor.ErrNoModel) {
			log.Info("no persisted model; predictions disabled until training")
		} else {
			log.WithError(err).Warn("persisted model could not be loaded")
		}
	}

	p := pipeline.New(pcfg, pipeline.Deps{
		Loader:  loader.NewRouter(loader.NewCSVLoader(), loader.NewCollectorClient(cfg)),
		History: st,
		Models:  modelSvc.Registry(),
		Metrics: m,
		Log:     log,
	})
	analysisSvc := services.NewAnalysisService(cfg, services.AnalysisDeps{
		Cache:   cache,
		Runner:  p,
		Store:   st,
		Reports: report.NewWriter(pcfg.Output.Dir, pcfg.Output.Formats),
		Events:  publisher,
		Log:     log,
	})

	api := handlers.New(cfg, cache, analysisSvc, modelSvc, st, log)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           internalhttp.NewRouter(cfg, api, m, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithField("addr", srv.Addr).Info("sentimentpipe backend listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return analysisSvc.StartScheduler(gctx, cfg.RefreshInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
}
