package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/raterudder/gukk/pkg/gukk"
	"github.com/raterudder/gukk/pkg/log"
	"github.com/raterudder/gukk/pkg/poller"
)

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.poller.Snapshot(), http.StatusOK)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.poller.Refresh(r.Context()); err != nil {
		log.Ctx(r.Context()).ErrorContext(r.Context(), "failed to refresh", slog.Any("error", err))
		writeJSONError(w, err.Error(), errorStatus(err))
		return
	}
	writeJSON(w, s.poller.Snapshot(), http.StatusOK)
}

type measureRequest struct {
	Indication json.Number `json:"indication"`
}

func (s *Server) handleMeasure(w http.ResponseWriter, r *http.Request) {
	accountCode := r.PathValue("account")
	meterCode := r.PathValue("meter")

	var req measureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	value, err := gukk.ParseMeasure(req.Indication.String())
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.poller.PushMeasure(r.Context(), accountCode, meterCode, value)
	if err != nil {
		log.Ctx(r.Context()).WarnContext(
			r.Context(),
			"failed to push reading",
			slog.String("account", accountCode),
			slog.String("meter", meterCode),
			slog.Any("error", err),
		)
		writeJSON(w, res, errorStatus(err))
		return
	}
	writeJSON(w, res, http.StatusOK)
}

// errorStatus maps poller and portal errors to the status returned to the
// caller. Portal failures other than bad input are the upstream's fault.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, poller.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, gukk.ErrInvalidValue):
		return http.StatusBadRequest
	case errors.Is(err, gukk.ErrResponseTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case gukk.IsClientError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
