package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/TravisHFan/at-Cloud-sign-up-system-sub020/internal/push"
	"github.com/TravisHFan/at-Cloud-sign-up-system-sub020/internal/trio"
	apperrors "github.com/TravisHFan/at-Cloud-sign-up-system-sub020/pkg/errors"
	"github.com/TravisHFan/at-Cloud-sign-up-system-sub020/pkg/httputil"
	"github.com/TravisHFan/at-Cloud-sign-up-system-sub020/pkg/validator"
)

// TrioHandler serves the dispatch and introspection endpoints.
type TrioHandler struct {
	orchestrator *trio.Orchestrator
	hub          *push.Hub
	logger       *slog.Logger
}

// NewTrioHandler creates the handler.
func NewTrioHandler(orchestrator *trio.Orchestrator, hub *push.Hub, logger *slog.Logger) *TrioHandler {
	return &TrioHandler{orchestrator: orchestrator, hub: hub, logger: logger}
}

// CreateTrio handles POST /api/v1/trios. The dispatch outcome is always a
// structured body; only a malformed request yields a bare error envelope.
func (h *TrioHandler) CreateTrio(w http.ResponseWriter, r *http.Request) {
	var req trio.Request
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		var valErr *validator.ValidationError
		if !errors.As(err, &valErr) {
			err = apperrors.InvalidInput(err.Error())
		}
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	result := h.orchestrator.CreateTrio(r.Context(), req)

	status := http.StatusCreated
	if !result.Success {
		status = http.StatusBadGateway
		if strings.HasPrefix(result.Error, "invalid request") {
			status = http.StatusBadRequest
		}
	}
	httputil.WriteJSON(w, status, httputil.Response{Data: result})
}

// Metrics handles GET /api/v1/trios/metrics.
func (h *TrioHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, h.orchestrator.Metrics().Snapshot())
}

// ResetMetrics handles POST /api/v1/trios/metrics/reset.
func (h *TrioHandler) ResetMetrics(w http.ResponseWriter, r *http.Request) {
	h.orchestrator.Metrics().Reset()
	httputil.WriteData(w, map[string]string{"status": "reset"})
}

// ErrorStatistics handles GET /api/v1/errors/statistics.
func (h *TrioHandler) ErrorStatistics(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, h.orchestrator.Recovery().GetErrorStatistics())
}

// RecoveryHistory handles GET /api/v1/errors/history.
func (h *TrioHandler) RecoveryHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r, 0)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	history := h.orchestrator.Recovery().GetRecoveryHistory(limit)
	httputil.WriteData(w, map[string]any{
		"history": history,
		"count":   len(history),
	})
}

// CircuitBreakers handles GET /api/v1/errors/circuit-breakers.
func (h *TrioHandler) CircuitBreakers(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, h.orchestrator.Recovery().Breaker().Snapshot())
}

// TransactionStatistics handles GET /api/v1/transactions/statistics.
func (h *TrioHandler) TransactionStatistics(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, h.orchestrator.Registry().GetStatistics())
}

// TransactionHistory handles GET /api/v1/transactions/history.
func (h *TrioHandler) TransactionHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r, 0)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	history := h.orchestrator.Registry().GetTransactionHistory(limit)
	httputil.WriteData(w, map[string]any{
		"history": history,
		"count":   len(history),
	})
}

// CleanupTransactions handles POST /api/v1/transactions/cleanup. The max_age
// query parameter takes a Go duration and defaults to one hour.
func (h *TrioHandler) CleanupTransactions(w http.ResponseWriter, r *http.Request) {
	maxAge := time.Hour
	if raw := r.URL.Query().Get("max_age"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			httputil.WriteError(w, r, apperrors.InvalidInput("max_age must be a positive duration"), h.logger)
			return
		}
		maxAge = parsed
	}

	removed := h.orchestrator.Registry().Cleanup(maxAge)
	httputil.WriteData(w, map[string]any{"removed": removed})
}

// ResetRecovery handles POST /api/v1/errors/reset. Clears recovery counters,
// history, retry attempts and circuit breakers.
func (h *TrioHandler) ResetRecovery(w http.ResponseWriter, r *http.Request) {
	h.orchestrator.Recovery().Reset()
	httputil.WriteData(w, map[string]string{"status": "reset"})
}

func limitParam(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, apperrors.InvalidInput("limit must be a non-negative integer")
	}
	return limit, nil
}
