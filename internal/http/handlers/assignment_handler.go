// README: Assignment management handlers.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fieldforce/internal/modules/assignment"
	"fieldforce/internal/types"
)

type AssignmentService interface {
	Upsert(ctx context.Context, cmd assignment.UpsertCommand) (*assignment.Assignment, error)
	ListByRepresentative(ctx context.Context, repID types.ID) ([]assignment.Assignment, error)
	Delete(ctx context.Context, id types.ID) error
}

type AssignmentHandler struct {
	assignments AssignmentService
}

func NewAssignmentHandler(svc AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignments: svc}
}

type upsertAssignmentReq struct {
	RepresentativeID string   `json:"representative_id"`
	DoctorID         string   `json:"doctor_id"`
	VisitDays        []string `json:"visit_days"`
	Products         []string `json:"products"`
	Goal             *struct {
		StartDate      *string `json:"start_date"`
		RecurringWeeks *int    `json:"recurring_weeks"`
	} `json:"goal"`
}

type goalResponse struct {
	StartDate      *string `json:"start_date,omitempty"`
	RecurringWeeks *int    `json:"recurring_weeks,omitempty"`
}

type assignmentResponse struct {
	ID               types.ID      `json:"id"`
	RepresentativeID types.ID      `json:"representative_id"`
	DoctorID         types.ID      `json:"doctor_id"`
	VisitDays        []string      `json:"visit_days"`
	Products         []string      `json:"products,omitempty"`
	Goal             *goalResponse `json:"goal,omitempty"`
}

func toAssignmentResponse(a assignment.Assignment) assignmentResponse {
	resp := assignmentResponse{
		ID:               a.ID,
		RepresentativeID: a.RepresentativeID,
		DoctorID:         a.DoctorID,
		VisitDays:        a.VisitDays.Names(),
		Products:         a.Products,
	}
	if a.Goal != nil {
		g := &goalResponse{RecurringWeeks: a.Goal.RecurringWeeks}
		if a.Goal.StartDate != nil {
			d := formatDate(*a.Goal.StartDate)
			g.StartDate = &d
		}
		resp.Goal = g
	}
	return resp
}

func (h *AssignmentHandler) Upsert(c *gin.Context) {
	var req upsertAssignmentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := assignment.UpsertCommand{
		RepresentativeID: types.ID(req.RepresentativeID),
		DoctorID:         types.ID(req.DoctorID),
		VisitDays:        req.VisitDays,
		Products:         req.Products,
	}
	if req.Goal != nil {
		cmd.RecurringWeeks = req.Goal.RecurringWeeks
		if req.Goal.StartDate != nil {
			d, err := time.Parse(time.DateOnly, *req.Goal.StartDate)
			if err != nil {
				writeError(c, http.StatusBadRequest, "goal.start_date must be formatted YYYY-MM-DD")
				return
			}
			cmd.GoalStartDate = &d
		}
	}
	a, err := h.assignments.Upsert(c.Request.Context(), cmd)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toAssignmentResponse(*a))
}

func (h *AssignmentHandler) ListByRepresentative(c *gin.Context) {
	list, err := h.assignments.ListByRepresentative(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]assignmentResponse, len(list))
	for i, a := range list {
		out[i] = toAssignmentResponse(a)
	}
	writeJSON(c, http.StatusOK, gin.H{"assignments": out})
}

func (h *AssignmentHandler) Delete(c *gin.Context) {
	if err := h.assignments.Delete(c.Request.Context(), types.ID(c.Param("id"))); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
