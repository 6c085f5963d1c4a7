package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/banking/api/transport"
	"github.com/fastygo/banking/pkg/httpcontext"
	appLogger "github.com/fastygo/banking/pkg/logger"
	txUC "github.com/fastygo/banking/usecase/transaction"
)

type TransactionHandler struct {
	baseHandler
	uc *txUC.Service
}

func NewTransactionHandler(uc *txUC.Service, adapter *httpcontext.Adapter, logger *zap.Logger) *TransactionHandler {
	return &TransactionHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Start transfer
// @Tags transactions
// @Router /api/v1/transactions [post]
func (h *TransactionHandler) CreateTransaction(ctx *fasthttp.RequestCtx) {
	var req transport.CreateTransactionRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = appLogger.CorrelationID(stdCtx)
	}
	tx, err := h.uc.CreateTransaction(stdCtx, req.FromAccountID, req.ToAccountID, req.Amount, correlationID)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusAccepted, tx)
}

// @Summary Get transfer
// @Tags transactions
// @Router /api/v1/transactions/{id} [get]
func (h *TransactionHandler) GetTransaction(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	tx, err := h.uc.GetTransaction(stdCtx, pathID(ctx))
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, tx)
}

// @Summary Cancel transfer
// @Tags transactions
// @Router /api/v1/transactions/{id}/cancel [post]
func (h *TransactionHandler) CancelTransaction(ctx *fasthttp.RequestCtx) {
	var req transport.CancelTransactionRequest
	if len(ctx.PostBody()) > 0 && !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	tx, err := h.uc.CancelTransaction(stdCtx, pathID(ctx), req.Reason)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, tx)
}
