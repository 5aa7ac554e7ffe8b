package handlers

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"deadliner/internal/models"
)

// SweepRunner is implemented by the due-reminder processor.
type SweepRunner interface {
	Run(ctx context.Context, now time.Time) (models.SweepReport, error)
}

// SentCounter is the slice of the reminder repository the sent-today
// endpoint needs.
type SentCounter interface {
	CountSentToday(ctx context.Context, userID int64, now time.Time) (int64, error)
}

type reminderHandler struct {
	sweeper    SweepRunner
	sentCounts SentCounter
	cronSecret string
}

// process is the trigger boundary for the sweep. The scheduled job proves
// authorization with the shared cron secret; everything else is rejected
// before any reminder state is touched.
func (h *reminderHandler) process(ctx *fasthttp.RequestCtx) {
	if !h.authorized(ctx) {
		writeError(ctx, fasthttp.StatusUnauthorized, "UNAUTHORIZED", "Invalid cron secret")
		return
	}

	report, err := h.sweeper.Run(ctx, time.Now().UTC())
	if err != nil {
		log.WithError(err).WithField("request_id", report.RequestID).Error("Sweep failed")
		writeError(ctx, fasthttp.StatusInternalServerError, "INTERNAL_ERROR", "An error occurred while processing reminders")
		return
	}

	writeData(ctx, fasthttp.StatusOK, report)
}

func (h *reminderHandler) authorized(ctx *fasthttp.RequestCtx) bool {
	if h.cronSecret == "" {
		return false
	}
	auth := string(ctx.Request.Header.Peek("Authorization"))
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.cronSecret)) == 1
}

// sentToday returns how many reminders were delivered to the user during the
// current UTC day.
func (h *reminderHandler) sentToday(ctx *fasthttp.RequestCtx) {
	uid, ok := userID(ctx)
	if !ok {
		writeError(ctx, fasthttp.StatusUnauthorized, "UNAUTHORIZED", "You must be logged in to view reminders")
		return
	}

	count, err := h.sentCounts.CountSentToday(ctx, uid, time.Now().UTC())
	if err != nil {
		log.WithError(err).Error("Failed to count sent reminders")
		writeError(ctx, fasthttp.StatusInternalServerError, "INTERNAL_ERROR", "An error occurred while fetching reminders")
		return
	}

	writeData(ctx, fasthttp.StatusOK, map[string]int64{"count": count})
}
