package handler

import (
	"context"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/banking/api/transport"
	"github.com/fastygo/banking/domain/account"
	"github.com/fastygo/banking/pkg/httpcontext"
	accountUC "github.com/fastygo/banking/usecase/account"
)

type AccountHandler struct {
	baseHandler
	uc *accountUC.Service
}

func NewAccountHandler(uc *accountUC.Service, adapter *httpcontext.Adapter, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Open account
// @Tags accounts
// @Router /api/v1/accounts [post]
func (h *AccountHandler) CreateAccount(ctx *fasthttp.RequestCtx) {
	var req transport.CreateAccountRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	acc, err := h.uc.CreateAccount(stdCtx, req.Email, req.Balance)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, acc)
}

// @Summary Get account
// @Tags accounts
// @Router /api/v1/accounts/{id} [get]
func (h *AccountHandler) GetAccount(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	acc, err := h.uc.GetAccount(stdCtx, pathID(ctx))
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, acc)
}

// @Summary Deposit money
// @Tags accounts
// @Router /api/v1/accounts/{id}/deposit [post]
func (h *AccountHandler) Deposit(ctx *fasthttp.RequestCtx) {
	h.move(ctx, h.uc.Deposit)
}

// @Summary Withdraw money
// @Tags accounts
// @Router /api/v1/accounts/{id}/withdraw [post]
func (h *AccountHandler) Withdraw(ctx *fasthttp.RequestCtx) {
	h.move(ctx, h.uc.Withdraw)
}

func (h *AccountHandler) move(ctx *fasthttp.RequestCtx, op func(stdCtx context.Context, id, amount string) (*account.BankAccount, error)) {
	var req transport.MoneyRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	acc, err := op(stdCtx, pathID(ctx), req.Amount)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, acc)
}
