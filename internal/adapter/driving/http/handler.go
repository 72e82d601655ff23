// Package httphandler implements the JSON query API driving adapter.
package httphandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/miniappq/internal/application"
	"github.com/ericfisherdev/miniappq/internal/domain/model"
	"github.com/ericfisherdev/miniappq/internal/metrics"
)

// maxRefreshBody caps the refresh request body.
const maxRefreshBody = 64 << 10

// Handler is the HTTP driving adapter that serves the query API.
type Handler struct {
	querySvc *application.QueryService
	limiter  *RefreshLimiter
	logger   *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(querySvc *application.QueryService, limiter *RefreshLimiter, logger *slog.Logger) *Handler {
	return &Handler{
		querySvc: querySvc,
		limiter:  limiter,
		logger:   logger,
	}
}

// RegisterAPIRoutes registers the JSON API and metrics routes on mux.
func RegisterAPIRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("GET /api/getAll/query", h.GetAll)
	mux.Handle("POST /api/refreshAll/query", h.limiter.Limit(http.HandlerFunc(h.RefreshAll)))
	mux.HandleFunc("GET /api/health", h.Health)
	mux.Handle("GET /metrics", metrics.Handler())
}

// GetAll returns the stored queries matching the optional userid and bot
// query parameters.
func (h *Handler) GetAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(r.URL.Query().Get("userid"))
	if !ok {
		writeError(w, http.StatusNotFound, msgUserNotFound)
		return
	}

	filter := model.QueryFilter{UserID: userID, Bot: strings.TrimSpace(r.URL.Query().Get("bot"))}

	records, err := h.querySvc.List(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, "list queries", err)
		return
	}

	writeJSON(w, http.StatusOK, NewQueriesResponse(records))
}

// RefreshAll clears and regenerates the queries in the scope given by the
// optional JSON body, then returns the fresh records. An empty body refreshes
// everything.
func (h *Handler) RefreshAll(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRefreshBody))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rawID, err := userIDFromJSON(req.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "userid must be a string or a number")
		return
	}

	userID, ok := parseUserID(rawID)
	if !ok {
		writeError(w, http.StatusNotFound, msgUserNotFound)
		return
	}

	filter := model.QueryFilter{UserID: userID, Bot: strings.TrimSpace(req.Bot)}

	h.logger.Info("refresh requested", "scope", describeFilter(filter), "request_id", requestIDFrom(r.Context()))

	records, err := h.querySvc.Refresh(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, "refresh queries", err)
		return
	}

	writeJSON(w, http.StatusOK, NewQueriesResponse(records))
}

// Health returns a simple health check response. Ready turns true once the
// startup generation pass has finished.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	ready := false
	select {
	case <-h.querySvc.Ready():
		ready = true
	default:
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Ready:  ready,
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// writeServiceError maps application errors onto HTTP responses.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, application.ErrUserNotFound):
		writeError(w, http.StatusNotFound, msgUserNotFound)
	case errors.Is(err, application.ErrBotNotFound):
		writeError(w, http.StatusNotFound, msgBotNotFound)
	case errors.Is(err, application.ErrServiceStopped),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		h.logger.Error("failed to "+op, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parseUserID parses an optional decimal account id. An empty value means no
// filter; a value that is not an integer can never match a stored account.
func parseUserID(raw string) (*int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, false
	}
	return &id, true
}

// userIDFromJSON accepts "userid" as a JSON string or number and returns its
// text. Absent and null both yield "".
func userIDFromJSON(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

func describeFilter(filter model.QueryFilter) string {
	var parts []string
	if filter.UserID != nil {
		parts = append(parts, fmt.Sprintf("userid=%d", *filter.UserID))
	}
	if filter.Bot != "" {
		parts = append(parts, "bot="+filter.Bot)
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, " ")
}
