// README: HTTP router registration.
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fieldforce/internal/http/handlers"
	"fieldforce/internal/http/middleware"
)

type RouterDeps struct {
	Visits      handlers.VisitService
	Routes      handlers.RouteService
	Calendar    handlers.CalendarService
	Assignments handlers.AssignmentService
	Logger      *zap.Logger
	// Today returns the current calendar day used for schedule defaults.
	Today func() time.Time
}

func NewRouter(deps RouterDeps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logging(logger), middleware.Recovery(logger))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api")

	visitHandler := handlers.NewVisitHandler(deps.Visits)
	api.POST("/visits/start", visitHandler.Start)
	api.POST("/visits/instant", visitHandler.Instant)
	api.POST("/visits/postpone", visitHandler.Postpone)
	api.GET("/visits/:id", visitHandler.Get)
	api.POST("/visits/:id/end", visitHandler.End)

	routeHandler := handlers.NewRouteHandler(deps.Routes)
	api.POST("/visits/:id/route", routeHandler.Push)
	api.GET("/visits/:id/route", routeHandler.Playback)
	api.GET("/representatives/:id/position", routeHandler.Position)

	scheduleHandler := handlers.NewScheduleHandler(deps.Calendar, deps.Today)
	api.GET("/representatives/:id/schedule", scheduleHandler.Schedule)
	api.GET("/representatives/:id/week", scheduleHandler.Week)

	assignmentHandler := handlers.NewAssignmentHandler(deps.Assignments)
	api.GET("/representatives/:id/assignments", assignmentHandler.ListByRepresentative)
	api.PUT("/assignments", assignmentHandler.Upsert)
	api.DELETE("/assignments/:id", assignmentHandler.Delete)

	return r
}
