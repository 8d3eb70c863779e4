package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	models "VolStack/internal/domain/models"
	domrepo "VolStack/internal/domain/repository"
	"VolStack/internal/repository"
	"VolStack/internal/services/ratelimit"
	"VolStack/internal/usecase"
	xhttp "VolStack/pkg/http"
	xlogger "VolStack/pkg/logger"

	"github.com/labstack/echo/v4"
)

// OpsHandler exposes the read-only operational API: latest signal,
// alignment diagnostics, health, and the live signal stream.
type OpsHandler struct {
	logger      *xlogger.Logger
	pipeline    *usecase.PredictionPipeline
	bars        domrepo.BarStore
	predictions domrepo.PredictionStore
	hub         *SignalHub
	rl          *ratelimit.Limiter
}

func NewOpsHandler(
	logger *xlogger.Logger,
	pipeline *usecase.PredictionPipeline,
	bars domrepo.BarStore,
	predictions domrepo.PredictionStore,
	hub *SignalHub,
) *OpsHandler {
	return &OpsHandler{
		logger:      logger,
		pipeline:    pipeline,
		bars:        bars,
		predictions: predictions,
		hub:         hub,
		rl:          ratelimit.New(),
	}
}

func (h *OpsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.GET("/signal/latest", h.LatestSignal)
	g.GET("/alignment", h.Alignment)

	if h.hub != nil {
		e.GET("/ws/signals", h.hub.Serve)
	}
}

// Health pings every backing store. Any failure makes the whole process
// unhealthy: the engine cannot predict without either store.
func (h *OpsHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := h.bars.Health(ctx); err != nil {
		checks["clickhouse"] = err.Error()
		healthy = false
	} else {
		checks["clickhouse"] = "ok"
	}
	if err := h.predictions.Health(ctx); err != nil {
		checks["postgres"] = err.Error()
		healthy = false
	} else {
		checks["postgres"] = "ok"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, map[string]interface{}{
		"healthy": healthy,
		"checks":  checks,
	})
}

// LatestSignal serves the most recent prediction, cache-first unless the
// caller asks for a fresh read.
func (h *OpsHandler) LatestSignal(c echo.Context) error {
	req := &models.LatestSignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rec, err := h.pipeline.LatestSignal(c.Request().Context(), req.Fresh)
	if err != nil {
		if errors.Is(err, repository.ErrNoPredictions) {
			return xhttp.NotFoundResponse(c, "no prediction recorded yet")
		}
		h.logger.Error("latest signal lookup failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=5")
	return xhttp.SuccessResponse(c, rec)
}

// Alignment runs the inner-join diagnostic over the last few days and
// reports rows lost per source. The diagnostic scans full day ranges, so
// requests are rate limited per caller.
func (h *OpsHandler) Alignment(c echo.Context) error {
	if !h.rl.Allow(c.RealIP()+":alignment", 5, 0.5) {
		return xhttp.TooManyRequestsResponse(c, "rate limited")
	}

	req := &models.AlignmentRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	report, err := h.pipeline.Diagnostics(c.Request().Context(), req.Days)
	if err != nil {
		h.logger.Error("alignment diagnostics failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, report)
}
