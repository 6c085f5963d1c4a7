package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/banking/api/handler"
)

// Handlers lists what a service exposes. Nil handlers leave their routes out, so one
// router serves either context or both.
type Handlers struct {
	Account     *apiHandler.AccountHandler
	Transaction *apiHandler.TransactionHandler
	Health      *apiHandler.HealthHandler
	Metrics     fasthttp.RequestHandler
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	if handlers.Health != nil {
		r.GET("/health", handlers.Health.Check)
	}
	if handlers.Metrics != nil {
		r.GET("/metrics", handlers.Metrics)
	}

	if h := handlers.Account; h != nil {
		r.GET("/api/v1/accounts/{id}", h.GetAccount)
		r.POST("/api/v1/accounts", authMiddleware(h.CreateAccount))
		r.POST("/api/v1/accounts/{id}/deposit", authMiddleware(h.Deposit))
		r.POST("/api/v1/accounts/{id}/withdraw", authMiddleware(h.Withdraw))
	}

	if h := handlers.Transaction; h != nil {
		r.GET("/api/v1/transactions/{id}", h.GetTransaction)
		r.POST("/api/v1/transactions", authMiddleware(h.CreateTransaction))
		r.POST("/api/v1/transactions/{id}/cancel", authMiddleware(h.CancelTransaction))
	}

	return r
}
