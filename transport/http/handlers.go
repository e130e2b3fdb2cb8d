package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/onewallet/adapters/rest"
	"github.com/layer-3/onewallet/core"
	"github.com/layer-3/onewallet/sandbox"
)

// handle binds the JSON body to Req, calls fn and renders the result in an envelope.
func handle[Req, Resp any](fn func(ctx context.Context, req Req) (Resp, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req Req
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, &sandbox.Error{Code: sandbox.CodeBadRequest, Msg: "invalid request"})
			return
		}
		resp, err := fn(c.Request.Context(), req)
		if err != nil {
			fail(c, http.StatusOK, err)
			return
		}
		ok(c, resp)
	}
}

// authed is handle for endpoints behind AuthMiddleware.
func authed[Req, Resp any](fn func(ctx context.Context, sess *sandbox.Session, req Req) (Resp, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, exists := c.Get(sessionKey)
		if !exists {
			fail(c, http.StatusOK, &sandbox.Error{Code: sandbox.CodeUnauthorized, Msg: "no session"})
			return
		}
		handle(func(ctx context.Context, req Req) (Resp, error) {
			return fn(ctx, sess.(*sandbox.Session), req)
		})(c)
	}
}

// Handlers adapts the sandbox backend to gin.
type Handlers struct {
	backend *sandbox.Backend
}

func NewHandlers(backend *sandbox.Backend) *Handlers {
	return &Handlers{backend: backend}
}

func (h *Handlers) SendCode() gin.HandlerFunc {
	return handle(h.backend.SendCode)
}

func (h *Handlers) AuthenticateSMS() gin.HandlerFunc {
	return handle(h.backend.AuthenticateSMS)
}

func (h *Handlers) GetToken() gin.HandlerFunc {
	return handle(h.backend.GetToken)
}

func (h *Handlers) RefreshToken() gin.HandlerFunc {
	return authed(h.backend.RefreshToken)
}

// TokenProfile answers with the profile of the token named in the body, which must be the caller's.
func (h *Handlers) TokenProfile() gin.HandlerFunc {
	return authed(func(ctx context.Context, sess *sandbox.Session, req rest.TokenProfileRequest) (*core.UserTokenProfile, error) {
		named, err := h.backend.Authorize(ctx, req.AccessToken)
		if err != nil {
			return nil, err
		}
		if named != sess {
			return nil, &sandbox.Error{Code: sandbox.CodeUnauthorized, Msg: "token belongs to another session"}
		}
		return h.backend.TokenProfile(ctx, sess, req.AccessToken)
	})
}

func (h *Handlers) ZkProofs() gin.HandlerFunc {
	return authed(h.backend.ZkProofs)
}

func (h *Handlers) CreateOrder() gin.HandlerFunc {
	return authed(h.backend.CreateOrder)
}

func (h *Handlers) SendTx() gin.HandlerFunc {
	return authed(h.backend.SendTx)
}

func (h *Handlers) QueryOrder() gin.HandlerFunc {
	return authed(h.backend.QueryOrder)
}

func (h *Handlers) PageOrders() gin.HandlerFunc {
	return authed(h.backend.PageOrders)
}

func (h *Handlers) BuildSponsorTransaction() gin.HandlerFunc {
	return authed(h.backend.BuildSponsorTransaction)
}

func (h *Handlers) ProxyPay() gin.HandlerFunc {
	return authed(h.backend.ProxyPay)
}

// Currencies takes no parameters.
func (h *Handlers) Currencies() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok(c, h.backend.Currencies(c.Request.Context()))
	}
}

func (h *Handlers) UserWallets() gin.HandlerFunc {
	return authed(h.backend.UserWallets)
}
