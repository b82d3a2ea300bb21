package handlers

import (
	"github.com/crowdfund-escrow/backend/internal/escrow"
	"github.com/crowdfund-escrow/backend/internal/http/dto"
	"github.com/crowdfund-escrow/backend/internal/middleware"
	"github.com/crowdfund-escrow/backend/internal/ton"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AccountHandler struct {
	svc       *escrow.Service
	hotWallet string
	log       *zap.Logger
}

func NewAccountHandler(svc *escrow.Service, hotWallet string, log *zap.Logger) *AccountHandler {
	return &AccountHandler{svc: svc, hotWallet: hotWallet, log: log}
}

// GetBalance returns the caller's free custody balance and how to top it up.
func (h *AccountHandler) GetBalance(c *fiber.Ctx) error {
	account := middleware.GetAccount(c)

	balance, err := h.svc.AccountBalance(c.UserContext(), account)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.BalanceResponse{
		Account:       account,
		Balance:       balance,
		DepositMemo:   ton.DepositMemoPrefix + account,
		DepositWallet: h.hotWallet,
	}})
}

func (h *AccountHandler) ListMyContributions(c *fiber.Ctx) error {
	limit := queryInt(c, "limit", 50)
	if limit > 100 {
		limit = 100
	}

	contributions, err := h.svc.ContributionsOf(c.UserContext(), middleware.GetAccount(c), limit, queryInt(c, "offset", 0))
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: contributions})
}

func (h *AccountHandler) ListMyTransfers(c *fiber.Ctx) error {
	limit := queryInt(c, "limit", 50)
	if limit > 100 {
		limit = 100
	}

	transfers, err := h.svc.TransferHistory(c.UserContext(), middleware.GetAccount(c), limit, queryInt(c, "offset", 0))
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: transfers})
}

func (h *AccountHandler) GetMyContribution(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("campaignId"))
	if err != nil {
		return badRequest(c, "invalid_id", "invalid campaign id")
	}

	contribution, err := h.svc.GetContribution(c.UserContext(), id, middleware.GetAccount(c))
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: contribution})
}
