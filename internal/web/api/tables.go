package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/dimgraph/dimgraph/internal/model"
	"github.com/dimgraph/dimgraph/internal/web/response"
	"github.com/dimgraph/dimgraph/internal/web/router"
)

type columnsRequest struct {
	Fields []model.FieldRef `json:"fields"`
}

// putColumns replaces the stored columns of a table and drops its cache
// entry so the next render sees them
func (h *Handler) putColumns(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		response.RenderError(w, 0, errNoStore)
		return
	}
	var req columnsRequest
	if err := decode(w, r, &req); err != nil {
		response.RenderError(w, http.StatusBadRequest, err)
		return
	}

	for _, f := range req.Fields {
		if f.ID == "" {
			response.RenderBadRequest(w, "every field needs an id")
			return
		}
	}

	tableID := router.PathParam(r, "tableID")
	if err := h.store.PutColumns(r.Context(), tableID, req.Fields); err != nil {
		h.fail(w, r, err)
		return
	}
	h.invalidate(r, tableID)
	response.NoContent(w)
}

func (h *Handler) dropCache(w http.ResponseWriter, r *http.Request) {
	h.invalidate(r, router.PathParam(r, "tableID"))
	response.NoContent(w)
}

func (h *Handler) dropAllCache(w http.ResponseWriter, r *http.Request) {
	if h.cache != nil {
		if err := h.cache.InvalidateAll(r.Context()); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	response.NoContent(w)
}

// invalidate logs failures; a stale entry expires with its TTL anyway
func (h *Handler) invalidate(r *http.Request, tableID string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(r.Context(), tableID); err != nil {
		h.logger.Warn("cache invalidation failed", zap.String("table_id", tableID), zap.Error(err))
	}
}
