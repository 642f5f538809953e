// README: Visit lifecycle handlers: start, instant, end, postpone, get.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"fieldforce/internal/modules/visit"
	"fieldforce/internal/types"
)

type VisitService interface {
	StartVisit(ctx context.Context, cmd visit.StartCommand) (*visit.VisitLog, error)
	CreateInstantVisit(ctx context.Context, cmd visit.InstantCommand) (*visit.VisitLog, error)
	EndVisit(ctx context.Context, cmd visit.EndCommand) (*visit.VisitLog, error)
	PostponeVisit(ctx context.Context, cmd visit.PostponeCommand) (*visit.VisitLog, error)
	Get(ctx context.Context, id types.ID) (*visit.VisitLog, error)
}

type VisitHandler struct {
	visits VisitService
}

func NewVisitHandler(svc VisitService) *VisitHandler {
	return &VisitHandler{visits: svc}
}

type visitReq struct {
	RepresentativeID string `json:"representative_id"`
	DoctorID         string `json:"doctor_id"`
}

type postponeReq struct {
	RepresentativeID string `json:"representative_id"`
	DoctorID         string `json:"doctor_id"`
	Reason           string `json:"reason"`
}

type visitResponse struct {
	ID               types.ID     `json:"id"`
	RepresentativeID types.ID     `json:"representative_id"`
	DoctorID         types.ID     `json:"doctor_id"`
	ScheduledDate    string       `json:"scheduled_date"`
	Status           visit.Status `json:"status"`
	Kind             visit.Kind   `json:"kind"`
	StartedAt        *string      `json:"started_at,omitempty"`
	EndedAt          *string      `json:"ended_at,omitempty"`
	PostponeReason   *string      `json:"postpone_reason,omitempty"`
}

func toVisitResponse(v *visit.VisitLog) visitResponse {
	return visitResponse{
		ID:               v.ID,
		RepresentativeID: v.RepresentativeID,
		DoctorID:         v.DoctorID,
		ScheduledDate:    formatDate(v.ScheduledDate),
		Status:           v.EffectiveStatus(),
		Kind:             v.Kind,
		StartedAt:        formatTime(v.StartedAt),
		EndedAt:          formatTime(v.EndedAt),
		PostponeReason:   v.PostponeReason,
	}
}

func (h *VisitHandler) Start(c *gin.Context) {
	var req visitReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	v, err := h.visits.StartVisit(c.Request.Context(), visit.StartCommand{
		RepresentativeID: types.ID(req.RepresentativeID),
		DoctorID:         types.ID(req.DoctorID),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toVisitResponse(v))
}

func (h *VisitHandler) Instant(c *gin.Context) {
	var req visitReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	v, err := h.visits.CreateInstantVisit(c.Request.Context(), visit.InstantCommand{
		RepresentativeID: types.ID(req.RepresentativeID),
		DoctorID:         types.ID(req.DoctorID),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, toVisitResponse(v))
}

func (h *VisitHandler) End(c *gin.Context) {
	v, err := h.visits.EndVisit(c.Request.Context(), visit.EndCommand{VisitID: types.ID(c.Param("id"))})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toVisitResponse(v))
}

func (h *VisitHandler) Postpone(c *gin.Context) {
	var req postponeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	v, err := h.visits.PostponeVisit(c.Request.Context(), visit.PostponeCommand{
		RepresentativeID: types.ID(req.RepresentativeID),
		DoctorID:         types.ID(req.DoctorID),
		Reason:           req.Reason,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toVisitResponse(v))
}

func (h *VisitHandler) Get(c *gin.Context) {
	v, err := h.visits.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toVisitResponse(v))
}
