package httphandler

import (
	"encoding/json"
	"net/http"

	"github.com/ericfisherdev/miniappq/internal/domain/model"
)

// Error bodies of the query API. Clients match on these strings.
const (
	msgUserNotFound = "User ID not found"
	msgBotNotFound  = "Bot Name not found"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// QueryResponse is the JSON representation of one generated launch query.
// Proxy is the canonical proxy string, or null for a direct connection.
type QueryResponse struct {
	UserID      int64   `json:"user_id"`
	BotUsername string  `json:"bot_username"`
	Query       string  `json:"query"`
	Name        string  `json:"name"`
	Proxy       *string `json:"proxy"`
}

// QueriesResponse is the envelope shared by the list and refresh endpoints.
type QueriesResponse struct {
	Queries []QueryResponse `json:"queries"`
}

// RefreshRequest is the JSON body for the refresh endpoint. UserID accepts
// either a JSON string or a JSON number.
type RefreshRequest struct {
	UserID json.RawMessage `json:"userid"`
	Bot    string          `json:"bot"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Ready  bool   `json:"ready"`
	Time   string `json:"time"`
}

// NewQueriesResponse converts domain records to the response envelope. An
// empty result is encoded as an empty array, never null.
func NewQueriesResponse(records []model.QueryRecord) QueriesResponse {
	resp := QueriesResponse{Queries: make([]QueryResponse, 0, len(records))}
	for _, rec := range records {
		resp.Queries = append(resp.Queries, toQueryResponse(rec))
	}
	return resp
}

func toQueryResponse(rec model.QueryRecord) QueryResponse {
	var proxy *string
	if rec.Proxy != nil {
		s := rec.Proxy.String()
		proxy = &s
	}

	return QueryResponse{
		UserID:      rec.UserID,
		BotUsername: rec.BotUsername,
		Query:       rec.Query,
		Name:        rec.Name,
		Proxy:       proxy,
	}
}
