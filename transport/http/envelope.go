package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/onewallet/core"
	"github.com/layer-3/onewallet/sandbox"
)

const (
	traceIDKey = "traceId"
	sessionKey = "session"
)

// Envelope is the response wrapper of every wallet service endpoint.
type Envelope struct {
	Code       string      `json:"code"`
	Msg        string      `json:"msg"`
	Data       interface{} `json:"data"`
	Success    bool        `json:"success"`
	TraceID    string      `json:"traceId"`
	SystemTime int64       `json:"systemTime"`
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{
		Code:       core.SuccessCode,
		Msg:        "success",
		Data:       data,
		Success:    true,
		TraceID:    c.GetString(traceIDKey),
		SystemTime: time.Now().UnixMilli(),
	})
}

// fail renders err as a rejected envelope. Business rejections keep HTTP 200.
func fail(c *gin.Context, status int, err error) {
	env := Envelope{
		Code:       sandbox.CodeInternal,
		Msg:        "internal error",
		TraceID:    c.GetString(traceIDKey),
		SystemTime: time.Now().UnixMilli(),
	}
	var rej *sandbox.Error
	if errors.As(err, &rej) {
		env.Code = rej.Code
		env.Msg = rej.Msg
	}
	c.AbortWithStatusJSON(status, env)
}
