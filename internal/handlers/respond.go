package handlers

import (
	"encoding/json"
	"strconv"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

const userIDHeader = "X-User-ID"

type apiMeta struct {
	RequestID string `json:"requestId"`
}

type apiResponse struct {
	Data any     `json:"data"`
	Meta apiMeta `json:"meta"`
}

type apiError struct {
	Error apiErrorBody `json:"error"`
}

type apiErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, payload any) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	if err := json.NewEncoder(ctx).Encode(payload); err != nil {
		log.WithError(err).Error("Failed to encode response")
	}
}

func writeData(ctx *fasthttp.RequestCtx, status int, data any) {
	writeJSON(ctx, status, apiResponse{
		Data: data,
		Meta: apiMeta{RequestID: uuid.NewString()},
	})
}

func writeError(ctx *fasthttp.RequestCtx, status int, code, message string) {
	writeJSON(ctx, status, apiError{Error: apiErrorBody{Code: code, Message: message}})
}

// userID extracts the caller identity set by the fronting proxy. Session
// mechanics live outside this service.
func userID(ctx *fasthttp.RequestCtx) (int64, bool) {
	raw := string(ctx.Request.Header.Peek(userIDHeader))
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func pathID(ctx *fasthttp.RequestCtx, name string) (int64, bool) {
	raw, _ := ctx.UserValue(name).(string)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
