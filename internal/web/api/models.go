package api

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/dimgraph/dimgraph/internal/model"
	"github.com/dimgraph/dimgraph/internal/render"
	"github.com/dimgraph/dimgraph/internal/scene"
	"github.com/dimgraph/dimgraph/internal/session"
	"github.com/dimgraph/dimgraph/internal/translate"
	"github.com/dimgraph/dimgraph/internal/web/response"
	"github.com/dimgraph/dimgraph/internal/web/router"
	"github.com/dimgraph/dimgraph/internal/web/websocket"
)

var errNoStore = response.NewHTTPError(http.StatusServiceUnavailable, "no database configured")

var errNotRendered = response.NewHTTPError(http.StatusConflict, "model has not been rendered").WithCode("not_rendered")

// sceneView is the state of a session canvas
type sceneView struct {
	ModelID  string         `json:"modelId"`
	Cells    []scene.Cell   `json:"cells"`
	Viewport scene.Viewport `json:"viewport"`
}

func viewOf(s *session.Session) sceneView {
	return sceneView{ModelID: s.ModelID, Cells: s.Canvas.Cells(), Viewport: s.Canvas.Viewport()}
}

// sendScene answers websocket joins and resyncs with the current canvas
func (h *Handler) sendScene(_ context.Context, c *websocket.Client) error {
	view := sceneView{ModelID: c.Room, Cells: []scene.Cell{}}
	if s, ok := h.sessions.Lookup(c.Room); ok {
		view = viewOf(s)
	}
	return c.SendJSON(websocket.TypeSnapshot, view)
}

func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		response.RenderError(w, 0, errNoStore)
		return
	}
	records, err := h.store.LoadModelConfig(r.Context(), router.PathParam(r, "modelID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, translate.ToWorking(records))
}

// putConfig validates and persists a working configuration
func (h *Handler) putConfig(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		response.RenderError(w, 0, errNoStore)
		return
	}
	var working translate.Working
	if err := decode(w, r, &working); err != nil {
		response.RenderError(w, http.StatusBadRequest, err)
		return
	}
	if v := translate.ValidateForSave(working); !v.Success {
		response.RenderValidation(w, v)
		return
	}

	modelID := router.PathParam(r, "modelID")
	records := translate.ToPersisted(working)
	if err := h.store.SaveModelConfig(r.Context(), modelID, records); err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("saved model config", zap.String("model_id", modelID), zap.Int("dimensions", len(records)))
	response.OK(w, records)
}

// loadWorking returns the configuration in the body, or the persisted one
// when the body is empty
func (h *Handler) loadWorking(w http.ResponseWriter, r *http.Request) (translate.Working, error) {
	var working translate.Working
	err := decode(w, r, &working)
	if err == nil {
		return working, nil
	}
	if !errors.Is(err, errEmptyBody) {
		return working, err
	}
	if h.store == nil {
		return working, errNoStore
	}
	records, err := h.store.LoadModelConfig(r.Context(), router.PathParam(r, "modelID"))
	if err != nil {
		return working, err
	}
	return translate.ToWorking(records), nil
}

type renderFunc func(ctx context.Context, c scene.Canvas, cfg translate.Working) (*render.Snapshot, error)

// render replaces the session canvas with the configuration in the body or
// the persisted one
func (h *Handler) render(w http.ResponseWriter, r *http.Request) {
	working, err := h.loadWorking(w, r)
	if err != nil {
		h.badInput(w, r, err)
		return
	}
	h.run(w, r, working, h.renderer.RenderFromConfig)
}

// sync patches the session canvas towards the configuration in the body
func (h *Handler) sync(w http.ResponseWriter, r *http.Request) {
	var working translate.Working
	if err := decode(w, r, &working); err != nil {
		response.RenderError(w, http.StatusBadRequest, err)
		return
	}
	h.run(w, r, working, h.renderer.Sync)
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request, working translate.Working, fn renderFunc) {
	s := h.sessions.Get(router.PathParam(r, "modelID"))
	var snap *render.Snapshot
	err := s.Do(func(s *session.Session) error {
		var err error
		snap, err = fn(r.Context(), s.Canvas, working)
		if err != nil {
			return err
		}
		if snap != nil {
			s.SetWorking(snap.Working)
		}
		return nil
	})
	h.reply(w, r, s, snap, err)
}

// reply writes the snapshot, or the bare canvas when the render was a no-op
func (h *Handler) reply(w http.ResponseWriter, r *http.Request, s *session.Session, snap *render.Snapshot, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if snap == nil {
		response.OK(w, viewOf(s))
		return
	}
	response.OK(w, snap)
}

func (h *Handler) scene(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessions.Lookup(router.PathParam(r, "modelID"))
	if !ok {
		response.RenderNotFound(w, "no open session for model")
		return
	}
	response.OK(w, viewOf(s))
}

func (h *Handler) closeScene(w http.ResponseWriter, r *http.Request) {
	h.sessions.Drop(router.PathParam(r, "modelID"))
	response.NoContent(w)
}

type viewFunc func(ctx context.Context, c scene.Canvas, cfg translate.Working, nodeID string) (*render.Snapshot, error)

// view applies a per-node view change to a rendered session
func (h *Handler) view(w http.ResponseWriter, r *http.Request, fn viewFunc) {
	s, ok := h.sessions.Lookup(router.PathParam(r, "modelID"))
	if !ok {
		response.RenderError(w, 0, errNotRendered)
		return
	}
	nodeID := router.PathParam(r, "nodeID")

	var snap *render.Snapshot
	err := s.Do(func(s *session.Session) error {
		working, loaded := s.Working()
		if !loaded {
			return errNotRendered
		}
		var err error
		snap, err = fn(r.Context(), s.Canvas, working, nodeID)
		if err == nil && snap != nil {
			s.SetWorking(snap.Working)
		}
		return err
	})
	var herr *response.HTTPError
	if errors.As(err, &herr) {
		response.RenderError(w, 0, err)
		return
	}
	h.reply(w, r, s, snap, err)
}

type expandRequest struct {
	Expand bool `json:"expand"`
}

func (h *Handler) expand(w http.ResponseWriter, r *http.Request) {
	var req expandRequest
	if err := decode(w, r, &req); err != nil {
		response.RenderError(w, http.StatusBadRequest, err)
		return
	}
	h.view(w, r, func(ctx context.Context, c scene.Canvas, cfg translate.Working, nodeID string) (*render.Snapshot, error) {
		return h.renderer.SetExpand(ctx, c, cfg, nodeID, req.Expand)
	})
}

type pageRequest struct {
	PageOffset int `json:"pageOffset"`
}

func (h *Handler) page(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if err := decode(w, r, &req); err != nil {
		response.RenderError(w, http.StatusBadRequest, err)
		return
	}
	h.view(w, r, func(ctx context.Context, c scene.Canvas, cfg translate.Working, nodeID string) (*render.Snapshot, error) {
		return h.renderer.SetPage(ctx, c, cfg, nodeID, req.PageOffset)
	})
}

type sideRequest struct {
	Side model.Side `json:"side"`
}

func (h *Handler) side(w http.ResponseWriter, r *http.Request) {
	var req sideRequest
	if err := decode(w, r, &req); err != nil {
		response.RenderError(w, http.StatusBadRequest, err)
		return
	}
	if !req.Side.Valid() {
		response.RenderBadRequest(w, "side must be left, right or empty")
		return
	}
	h.view(w, r, func(ctx context.Context, c scene.Canvas, cfg translate.Working, nodeID string) (*render.Snapshot, error) {
		return h.renderer.SetSide(ctx, c, cfg, nodeID, req.Side)
	})
}

type revealRequest struct {
	FieldID string `json:"fieldId"`
}

func (h *Handler) reveal(w http.ResponseWriter, r *http.Request) {
	var req revealRequest
	if err := decode(w, r, &req); err != nil {
		response.RenderError(w, http.StatusBadRequest, err)
		return
	}
	if req.FieldID == "" {
		response.RenderBadRequest(w, "fieldId is required")
		return
	}
	h.view(w, r, func(ctx context.Context, c scene.Canvas, cfg translate.Working, nodeID string) (*render.Snapshot, error) {
		return h.renderer.Reveal(ctx, c, cfg, nodeID, req.FieldID)
	})
}

// badInput reports decode and lookup failures of loadWorking
func (h *Handler) badInput(w http.ResponseWriter, r *http.Request, err error) {
	var herr *response.HTTPError
	if errors.As(err, &herr) {
		response.RenderError(w, 0, err)
		return
	}
	if errors.Is(err, errInvalidBody) {
		response.RenderError(w, http.StatusBadRequest, err)
		return
	}
	h.fail(w, r, err)
}
