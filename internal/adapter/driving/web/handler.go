// Package web serves the HTML landing page using templ components.
package web

import (
	"log/slog"
	"net/http"

	"github.com/a-h/templ"
)

// Handler is the web driving adapter that serves the landing page.
type Handler struct {
	page   templ.Component
	logger *slog.Logger
}

// NewHandler creates a Handler. The usage document is rendered once here.
func NewHandler(bots []string, logger *slog.Logger) *Handler {
	return &Handler{
		page:   Layout("miniappq", bots, templ.Raw(RenderMarkdown(usageDoc))),
		logger: logger,
	}
}

// Landing renders the usage page with the full HTML layout.
func (h *Handler) Landing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if err := h.page.Render(r.Context(), w); err != nil {
		h.logger.Error("failed to render landing page", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
