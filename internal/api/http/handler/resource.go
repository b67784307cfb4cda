package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dtroode/observer-server/internal/logger"
	"github.com/dtroode/observer-server/internal/model"
)

// Reader serves tier scoped reads.
type Reader interface {
	Collection(ctx context.Context, principal model.AccessPrincipal, entity model.EntityType, page model.Page) (model.RecordPage, error)
	Item(ctx context.Context, principal model.AccessPrincipal, entity model.EntityType, id string) (model.Record, error)
}

// Resource exposes protected entities read-only.
type Resource struct {
	reader         Reader
	contextManager model.ContextManager
	logger         *logger.Logger
}

func NewResource(reader Reader, contextManager model.ContextManager, logger *logger.Logger) *Resource {
	return &Resource{reader: reader, contextManager: contextManager, logger: logger}
}

func (h *Resource) MountRoutes(r chi.Router) {
	r.Get("/{entity}/", h.list)
	r.Get("/{entity}/{id}/", h.get)
}

func (h *Resource) list(w http.ResponseWriter, r *http.Request) {
	principal, _ := h.contextManager.GetPrincipalFromContext(r.Context())
	entity := model.EntityType(chi.URLParam(r, "entity"))

	page, err := pageFromQuery(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.reader.Collection(r.Context(), principal, entity, page)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Resource) get(w http.ResponseWriter, r *http.Request) {
	principal, _ := h.contextManager.GetPrincipalFromContext(r.Context())
	entity := model.EntityType(chi.URLParam(r, "entity"))

	record, err := h.reader.Item(r.Context(), principal, entity, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

type pageError string

func (e pageError) Error() string { return string(e) }

func pageFromQuery(r *http.Request) (model.Page, error) {
	var page model.Page
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return model.Page{}, pageError("page must be a positive integer")
		}
		page.Number = n
	}
	if v := q.Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return model.Page{}, pageError("page_size must be a positive integer")
		}
		page.Size = n
	}
	page = page.Normalize()
	if !page.InRange() {
		return model.Page{}, pageError("page is out of range")
	}
	return page, nil
}
