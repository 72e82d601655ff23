package web

import "net/http"

// RegisterRoutes registers the landing page on the provided mux. Only the exact
// root path matches, so unknown paths still 404.
func RegisterRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("GET /{$}", h.Landing)
}
