// README: Representative schedule handlers (date range and week views).
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fieldforce/internal/modules/calendar"
	"fieldforce/internal/modules/visit"
	"fieldforce/internal/types"
)

type CalendarService interface {
	Schedule(ctx context.Context, repID types.ID, from, to time.Time) (calendar.Schedule, error)
	Week(ctx context.Context, repID types.ID, date time.Time) (calendar.Schedule, error)
}

type ScheduleHandler struct {
	calendar CalendarService
	// today supplies the default date when the query omits one.
	today func() time.Time
}

func NewScheduleHandler(svc CalendarService, today func() time.Time) *ScheduleHandler {
	if today == nil {
		today = func() time.Time { return time.Now().UTC() }
	}
	return &ScheduleHandler{calendar: svc, today: today}
}

type slotResponse struct {
	DoctorID     types.ID       `json:"doctor_id"`
	AssignmentID *types.ID      `json:"assignment_id,omitempty"`
	Products     []string       `json:"products,omitempty"`
	Kind         visit.Kind     `json:"kind"`
	Status       visit.Status   `json:"status"`
	Visit        *visitResponse `json:"visit,omitempty"`
}

type dayResponse struct {
	Date  string         `json:"date"`
	Slots []slotResponse `json:"slots"`
}

type scheduleResponse struct {
	RepresentativeID types.ID      `json:"representative_id"`
	From             string        `json:"from"`
	To               string        `json:"to"`
	Days             []dayResponse `json:"days"`
}

func toScheduleResponse(s calendar.Schedule) scheduleResponse {
	resp := scheduleResponse{
		RepresentativeID: s.RepresentativeID,
		From:             formatDate(s.From),
		To:               formatDate(s.To),
		Days:             make([]dayResponse, 0, len(s.Days)),
	}
	for _, d := range s.Days {
		day := dayResponse{Date: formatDate(d.Date), Slots: make([]slotResponse, 0, len(d.Slots))}
		for _, sl := range d.Slots {
			sr := slotResponse{
				DoctorID:     sl.DoctorID,
				AssignmentID: sl.AssignmentID,
				Products:     sl.Products,
				Kind:         sl.Kind,
				Status:       sl.Status,
			}
			if sl.Visit != nil {
				v := toVisitResponse(sl.Visit)
				sr.Visit = &v
			}
			day.Slots = append(day.Slots, sr)
		}
		resp.Days = append(resp.Days, day)
	}
	return resp
}

func (h *ScheduleHandler) Schedule(c *gin.Context) {
	from, ok := parseDate(c, "from", h.today())
	if !ok {
		return
	}
	to, ok := parseDate(c, "to", from.AddDate(0, 0, 6))
	if !ok {
		return
	}
	s, err := h.calendar.Schedule(c.Request.Context(), types.ID(c.Param("id")), from, to)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toScheduleResponse(s))
}

func (h *ScheduleHandler) Week(c *gin.Context) {
	date, ok := parseDate(c, "date", h.today())
	if !ok {
		return
	}
	s, err := h.calendar.Week(c.Request.Context(), types.ID(c.Param("id")), date)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toScheduleResponse(s))
}
