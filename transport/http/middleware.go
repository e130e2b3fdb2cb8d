package http

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/layer-3/onewallet/adapters/rest"
	"github.com/layer-3/onewallet/sandbox"
)

const maxBodyBytes = 1 << 20

// TraceMiddleware assigns a trace id and logs the request once it completes.
func TraceMiddleware(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := uuid.New().String()
		c.Set(traceIDKey, traceID)
		start := time.Now()

		c.Next()

		log.WithFields(logrus.Fields{
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"trace_id": traceID,
			"latency":  time.Since(start).String(),
		}).Debug("request served")
	}
}

// MerchantMiddleware checks the merchant signature of the request body.
func MerchantMiddleware(backend *sandbox.Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
		if err != nil {
			fail(c, http.StatusBadRequest, &sandbox.Error{Code: sandbox.CodeBadRequest, Msg: "unreadable body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(raw))

		fields, err := rest.DecodeFields(raw)
		if err != nil {
			fail(c, http.StatusBadRequest, &sandbox.Error{Code: sandbox.CodeBadRequest, Msg: "body is not a json object"})
			return
		}
		if id := backend.MerchantID(); id != "" {
			if got, _ := fields["merchantId"].(string); got != id {
				fail(c, http.StatusOK, &sandbox.Error{Code: sandbox.CodeMerchantSign, Msg: "unknown merchant"})
				return
			}
		}
		if key := backend.MerchantKey(); key != nil {
			if err := rest.VerifyEnvelope(key, fields); err != nil {
				fail(c, http.StatusOK, &sandbox.Error{Code: sandbox.CodeMerchantSign, Msg: err.Error()})
				return
			}
		}

		c.Next()
	}
}

// AuthMiddleware resolves the ACCESS_TOKEN header into a sandbox session.
func AuthMiddleware(backend *sandbox.Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := backend.Authorize(c.Request.Context(), c.GetHeader(rest.HeaderAccessToken))
		if err != nil {
			fail(c, http.StatusOK, err)
			return
		}

		c.Set(sessionKey, sess)

		c.Next()
	}
}
