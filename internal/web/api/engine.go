package api

import (
	"errors"
	"net/http"

	"github.com/dimgraph/dimgraph/internal/layout"
	"github.com/dimgraph/dimgraph/internal/model"
	"github.com/dimgraph/dimgraph/internal/port"
	"github.com/dimgraph/dimgraph/internal/scene"
	"github.com/dimgraph/dimgraph/internal/translate"
	"github.com/dimgraph/dimgraph/internal/web/response"
)

type layoutRequest struct {
	Nodes   []model.Node    `json:"nodes"`
	Options *layout.Options `json:"options,omitempty"`
}

type layoutResponse struct {
	Root   layout.LayoutResult `json:"root"`
	Bounds layout.Rect         `json:"bounds"`
}

// buildGraph picks the fact node out of nodes and adds the rest as
// dimensions in order
func buildGraph(nodes []model.Node) (*model.Graph, error) {
	b := model.NewBuilder()
	for _, n := range nodes {
		if n.Type == model.Fact {
			b.SetFact(n)
		} else {
			b.AddDimension(n)
		}
	}
	return b.Build()
}

func (h *Handler) layout(w http.ResponseWriter, r *http.Request) {
	var req layoutRequest
	if err := decode(w, r, &req); err != nil {
		response.RenderError(w, http.StatusBadRequest, err)
		return
	}

	g, err := buildGraph(req.Nodes)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	opts := h.renderer.Options().Layout
	if req.Options != nil {
		opts = *req.Options
	}
	res := layout.Compute(g, opts)
	response.OK(w, layoutResponse{Root: res.Root, Bounds: res.Bounds()})
}

type portsRequest struct {
	Fields     []model.FieldRef `json:"fields"`
	Target     string           `json:"target"`
	Side       model.Side       `json:"side"`
	PageOffset int              `json:"pageOffset"`
	PageSize   int              `json:"pageSize"`
	Geometry   *port.Geometry   `json:"geometry,omitempty"`
}

type portsResponse struct {
	Location   port.Location    `json:"location"`
	Offset     port.Offset      `json:"offset"`
	PageOffset int              `json:"pageOffset"`
	Visible    []model.FieldRef `json:"visible"`
}

// ports locates a field on its page and computes its attachment point
func (h *Handler) ports(w http.ResponseWriter, r *http.Request) {
	var req portsRequest
	if err := decode(w, r, &req); err != nil {
		response.RenderError(w, http.StatusBadRequest, err)
		return
	}
	if !req.Side.Valid() {
		response.RenderBadRequest(w, "side must be left, right or empty")
		return
	}

	geo := h.renderer.Options().Port
	if req.Geometry != nil {
		geo = *req.Geometry
	}
	offset := port.ClampOffset(len(req.Fields), req.PageOffset, req.PageSize)
	visible := port.Window(req.Fields, offset, req.PageSize)

	response.OK(w, portsResponse{
		Location:   port.Locate(req.Fields, req.Target, offset, req.PageSize),
		Offset:     geo.Offset(visible, req.Target, req.Side),
		PageOffset: offset,
		Visible:    visible,
	})
}

type diffRequest struct {
	Current []scene.Cell `json:"current"`
	Desired []scene.Cell `json:"desired"`
}

func (h *Handler) diff(w http.ResponseWriter, r *http.Request) {
	var req diffRequest
	if err := decode(w, r, &req); err != nil {
		response.RenderError(w, http.StatusBadRequest, err)
		return
	}
	response.OK(w, scene.Diff(req.Current, req.Desired))
}

func (h *Handler) toWorking(w http.ResponseWriter, r *http.Request) {
	var records []translate.DimJoinConfig
	if err := decode(w, r, &records); err != nil && !errors.Is(err, errEmptyBody) {
		response.RenderError(w, http.StatusBadRequest, err)
		return
	}
	response.OK(w, translate.ToWorking(records))
}

func (h *Handler) toPersisted(w http.ResponseWriter, r *http.Request) {
	var working translate.Working
	if err := decode(w, r, &working); err != nil {
		response.RenderError(w, http.StatusBadRequest, err)
		return
	}
	response.OK(w, translate.ToPersisted(working))
}

// validate always answers 200; the body carries the outcome
func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	var working translate.Working
	if err := decode(w, r, &working); err != nil {
		response.RenderError(w, http.StatusBadRequest, err)
		return
	}
	response.OK(w, translate.Validate(working))
}
