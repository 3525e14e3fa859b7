package handlers

import (
	"context"
	"net/http"
	"time"

	"sentimentpipe/backend-go/internal/models"
	"sentimentpipe/backend-go/internal/predictor"
)

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := []string{}
	missing := []string{}
	depsStatus := map[string]models.DepStatus{}

	if a.history != nil {
		if err := a.history.Ping(ctx); err != nil {
			a.log.WithError(err).Warn("store health check failed")
			missing = append(missing, "store_unreachable")
			depsStatus["store"] = models.DepStatus{Ok: false, Error: "unreachable"}
		} else {
			deps = append(deps, "store")
			depsStatus["store"] = models.DepStatus{Ok: true}
		}
	}

	cacheKind := ""
	if a.cache != nil {
		cacheKind = a.cache.Kind()
		if err := a.cache.Ping(ctx); err != nil {
			a.log.WithError(err).Warn("cache health check failed")
			missing = append(missing, "cache_unreachable")
			depsStatus["cache"] = models.DepStatus{Ok: false, Error: "unreachable"}
		} else {
			deps = append(deps, "cache:"+cacheKind)
			depsStatus["cache"] = models.DepStatus{Ok: true}
		}
	}

	state := predictor.StateUntrained
	if a.models != nil {
		state = a.models.State()
	}

	resp := models.HealthResponse{
		Ok:          len(missing) == 0,
		TsISO:       nowISO(),
		Service:     "sentimentpipe",
		Version:     a.cfg.ServiceVersion,
		Deps:        deps,
		DepsStatus:  depsStatus,
		DataMissing: missing,
		ModelState:  string(state),
		Features: map[string]bool{
			"redis_cache":      cacheKind == "redis",
			"kafka_events":     len(a.cfg.KafkaBrokers) > 0,
			"auth_enabled":     a.cfg.JWTSecret != "",
			"scheduled_runs":   a.cfg.RefreshInterval > 0,
			"model_serving":    state == predictor.StateServing,
			"collector_loader": a.cfg.CollectorBaseURL != "",
		},
	}
	status := http.StatusOK
	if !resp.Ok {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
