package stage

import (
	"context"
	"log/slog"

	"archivist/internal/catalog"
)

// Handler describes the contract the pipeline executor needs from each stage.
type Handler interface {
	Stage() catalog.Stage
	Process(context.Context, *catalog.Item) (catalog.Result, error)
	HealthCheck(context.Context) Health
}

// LoggerAware is implemented by handlers that accept a run-scoped logger.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}
