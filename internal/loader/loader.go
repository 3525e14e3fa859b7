package loader

import (
	"context"
	"fmt"

	"sentimentpipe/backend-go/internal/config"
	"sentimentpipe/backend-go/internal/models"
)

// Loader supplies the latest raw dataset for one source.
type Loader interface {
	Load(ctx context.Context, source string, cfg config.SourceConfig) ([]models.RawRecord, error)
}

// Router dispatches on the configured loader kind.
type Router struct {
	loaders map[string]Loader
}

func NewRouter(csv, http Loader) *Router {
	r := &Router{loaders: map[string]Loader{}}
	if csv != nil {
		r.loaders[config.LoaderCSV] = csv
	}
	if http != nil {
		r.loaders[config.LoaderHTTP] = http
	}
	return r
}

func (r *Router) Load(ctx context.Context, source string, cfg config.SourceConfig) ([]models.RawRecord, error) {
	kind := cfg.Loader
	if kind == "" {
		kind = config.LoaderCSV
	}
	l, ok := r.loaders[kind]
	if !ok {
		return nil, fmt.Errorf("no %s loader configured for %s", kind, source)
	}
	return l.Load(ctx, source, cfg)
}
