package handlers

import (
	"math"
	"net/http"
	"strconv"

	"github.com/wuzhiguocarter/Aletheia/internal/canvas"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/block"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
	"github.com/wuzhiguocarter/Aletheia/internal/errors"
	"github.com/wuzhiguocarter/Aletheia/pkg/api"
)

// CanvasResponse is the graph laid out for drawing: blocks at their canvas
// positions, edges between their anchors, and the clamped viewport.
type CanvasResponse struct {
	ProjectID   shared.ProjectID `json:"project_id"`
	Viewport    canvas.Viewport  `json:"viewport"`
	ZoomPercent int              `json:"zoom_percent"`
	Blocks      []block.Block    `json:"blocks"`
	Edges       []canvas.Edge    `json:"edges"`
}

// Canvas handles GET /projects/{projectID}/canvas?zoom=&pan_x=&pan_y=.
func (h *Handler) Canvas(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	vp, err := viewportFromQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	snap, err := h.svc.Graph(r.Context(), s)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, CanvasResponse{
		ProjectID:   snap.ProjectID,
		Viewport:    vp,
		ZoomPercent: vp.Percent(),
		Blocks:      snap.Blocks,
		Edges:       canvas.Edges(snap.Blocks, snap.Relationships),
	})
}

func viewportFromQuery(r *http.Request) (canvas.Viewport, error) {
	vp := canvas.NewViewport()
	zoom := vp.Zoom
	var pan shared.Position

	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *float64
	}{{"zoom", &zoom}, {"pan_x", &pan.X}, {"pan_y", &pan.Y}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return canvas.Viewport{}, errors.Validation(errors.CodeInvalidInput.String(), "invalid "+p.name).
				WithDetails("expected a finite number, got " + strconv.Quote(raw)).
				Build()
		}
		*p.dst = v
	}

	vp.SetZoom(zoom)
	vp.PanBy(pan)
	return vp, nil
}
