package handlers

import (
	"github.com/fasthttp/router"
	"github.com/go-playground/validator/v10"
	"github.com/valyala/fasthttp"

	taskService "deadliner/internal/service/task"
)

// RegisterAll wires every HTTP route onto the router.
func RegisterAll(
	r *router.Router,
	tasks *taskService.Service,
	sweeper SweepRunner,
	sentCounts SentCounter,
	cronSecret string,
) {
	th := &taskHandler{svc: tasks, validate: validator.New(validator.WithRequiredStructEnabled())}
	rh := &reminderHandler{sweeper: sweeper, sentCounts: sentCounts, cronSecret: cronSecret}

	r.POST("/api/v1/tasks", th.create)
	r.GET("/api/v1/tasks/{id}", th.get)
	r.PATCH("/api/v1/tasks/{id}", th.update)
	r.POST("/api/v1/tasks/{id}/complete", th.complete)
	r.DELETE("/api/v1/tasks/{id}", th.remove)

	r.POST("/api/v1/reminders/process", rh.process)
	r.GET("/api/v1/reminders/sent-today", rh.sentToday)

	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	})
}
