package http

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/layer-3/onewallet/sandbox"
)

// RPCPath serves the emulated chain JSON-RPC.
const RPCPath = "/rpc"

// SetupRouter sets up the sandbox wallet service and chain endpoints.
func SetupRouter(backend *sandbox.Backend, log logrus.FieldLogger) (*gin.Engine, error) {
	rpcServer, err := backend.Ledger().RPCServer()
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery(), TraceMiddleware(log))

	handlers := NewHandlers(backend)

	router.POST("/did/sendCode", MerchantMiddleware(backend), handlers.SendCode())
	router.POST("/did/authenticateSms", handlers.AuthenticateSMS())
	router.POST("/did/getToken", handlers.GetToken())

	did := router.Group("/did")
	did.Use(AuthMiddleware(backend))
	{
		did.POST("/refreshJwtToken", handlers.RefreshToken())
		did.POST("/getTokenUserProfile", handlers.TokenProfile())
		did.POST("/getZkProofs", handlers.ZkProofs())
	}

	transfer := router.Group("/transfer")
	transfer.Use(AuthMiddleware(backend))
	{
		transfer.POST("/createOrder", handlers.CreateOrder())
		transfer.POST("/sendTx", handlers.SendTx())
		transfer.POST("/queryOrder", handlers.QueryOrder())
		transfer.POST("/pageList", handlers.PageOrders())
		transfer.POST("/buildSponsorTransaction", handlers.BuildSponsorTransaction())
		transfer.POST("/doProxyPayTx", handlers.ProxyPay())
	}

	wallet := router.Group("/wallet")
	wallet.Use(AuthMiddleware(backend))
	{
		wallet.POST("/queryChainCurrencyForList", handlers.Currencies())
		wallet.POST("/queryUserWalletForList", handlers.UserWallets())
	}

	router.POST(RPCPath, gin.WrapH(rpcServer))

	return router, nil
}
