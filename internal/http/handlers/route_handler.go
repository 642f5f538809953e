// README: Route handlers: sample ingest, playback and live position.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"fieldforce/internal/modules/route"
	"fieldforce/internal/types"
)

// maxSamplesPerRequest bounds one upload batch from a device.
const maxSamplesPerRequest = 500

type RouteService interface {
	Push(ctx context.Context, visitID types.ID, s route.Sample) error
	Playback(ctx context.Context, visitID types.ID, snap bool) (route.Playback, error)
	LivePosition(ctx context.Context, repID types.ID) (route.LivePosition, error)
}

type RouteHandler struct {
	routes RouteService
}

func NewRouteHandler(svc RouteService) *RouteHandler {
	return &RouteHandler{routes: svc}
}

type pointResponse struct {
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	RecordedAt string  `json:"recorded_at,omitempty"`
}

func (h *RouteHandler) Push(c *gin.Context) {
	var samples []route.SamplePayload
	if err := c.ShouldBindJSON(&samples); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if len(samples) == 0 || len(samples) > maxSamplesPerRequest {
		writeError(c, http.StatusBadRequest, "between 1 and "+strconv.Itoa(maxSamplesPerRequest)+" samples required")
		return
	}
	visitID := types.ID(c.Param("id"))
	for i, s := range samples {
		if err := h.routes.Push(c.Request.Context(), visitID, s.Sample()); err != nil {
			if i == 0 {
				writeServiceError(c, err)
				return
			}
			writeJSON(c, http.StatusAccepted, gin.H{"accepted": i, "error": err.Error()})
			return
		}
	}
	writeJSON(c, http.StatusAccepted, gin.H{"accepted": len(samples)})
}

func (h *RouteHandler) Playback(c *gin.Context) {
	snap, _ := strconv.ParseBool(c.DefaultQuery("snap", "false"))
	pb, err := h.routes.Playback(c.Request.Context(), types.ID(c.Param("id")), snap)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	points := make([]pointResponse, len(pb.Points))
	for i, p := range pb.Points {
		points[i] = pointResponse{Lat: p.Position.Lat, Lng: p.Position.Lng, RecordedAt: p.RecordedAt.UTC().Format(time.RFC3339)}
	}
	resp := gin.H{"visit_id": pb.VisitID, "points": points}
	if pb.Snapped != nil {
		snapped := make([]pointResponse, len(pb.Snapped))
		for i, p := range pb.Snapped {
			snapped[i] = pointResponse{Lat: p.Lat, Lng: p.Lng}
		}
		resp["snapped"] = snapped
	}
	writeJSON(c, http.StatusOK, resp)
}

func (h *RouteHandler) Position(c *gin.Context) {
	pos, err := h.routes.LivePosition(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"representative_id": pos.RepresentativeID,
		"lat":               pos.Position.Lat,
		"lng":               pos.Position.Lng,
		"recorded_at":       pos.RecordedAt.UTC().Format(time.RFC3339),
	})
}
