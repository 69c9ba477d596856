package app

import (
	"context"
	"fmt"
	"time"

	"structuredness/internal/engine/sparql"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

type HealthService struct {
	app *App
}

func NewHealthService(app *App) *HealthService {
	return &HealthService{app: app}
}

// Check reports component wiring. With probe set it also issues the types
// query against the endpoint.
func (s *HealthService) Check(ctx context.Context, probe bool) HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}

	if s.app.calculator == nil {
		status.Status = "degraded"
		status.Components["calculator"] = "missing"
	} else {
		status.Components["calculator"] = "ok"
	}

	if s.app.history != nil {
		status.Components["history"] = "ok"
	} else if s.app.Config.History.Enabled {
		status.Status = "degraded"
		status.Components["history"] = "missing but enabled in config"
	}

	if s.app.executor == nil {
		status.Status = "degraded"
		status.Components["endpoint"] = "missing"
		return status
	}
	if !probe {
		status.Components["endpoint"] = "configured"
		return status
	}
	res, err := s.app.executor.Select(ctx, s.app.builder.TypesQuery())
	if err != nil {
		status.Status = "degraded"
		status.Components["endpoint"] = err.Error()
		return status
	}
	types, err := sparql.ExtractIRISet(res, sparql.VarType)
	if err != nil {
		status.Status = "degraded"
		status.Components["endpoint"] = err.Error()
		return status
	}
	status.Components["endpoint"] = fmt.Sprintf("ok (%d types)", types.Len())
	return status
}
