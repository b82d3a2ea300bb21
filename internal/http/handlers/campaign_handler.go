package handlers

import (
	"strconv"

	"github.com/crowdfund-escrow/backend/internal/escrow"
	"github.com/crowdfund-escrow/backend/internal/http/dto"
	"github.com/crowdfund-escrow/backend/internal/middleware"
	"github.com/crowdfund-escrow/backend/internal/ton"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CampaignHandler struct {
	svc *escrow.Service
	log *zap.Logger
}

func NewCampaignHandler(svc *escrow.Service, log *zap.Logger) *CampaignHandler {
	return &CampaignHandler{svc: svc, log: log}
}

func (h *CampaignHandler) CreateCampaign(c *fiber.Ctx) error {
	var req dto.CreateCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid_body", "invalid request body")
	}

	campaign, err := h.svc.CreateCampaign(c.UserContext(), escrow.CreateCampaignInput{
		Creator:      middleware.GetAccount(c),
		Title:        req.Title,
		Description:  req.Description,
		TargetAmount: req.TargetAmount,
		DurationDays: req.DurationDays,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

func (h *CampaignHandler) GetCampaign(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid_id", "invalid campaign id")
	}

	view, err := h.svc.GetCampaign(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	balance, err := h.svc.VaultBalance(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.CampaignResponse{
		CampaignView: *view,
		VaultBalance: balance,
	}})
}

func (h *CampaignHandler) ListCampaigns(c *fiber.Ctx) error {
	filter := escrow.CampaignFilter{
		Limit:  queryInt(c, "limit", 20),
		Offset: queryInt(c, "offset", 0),
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	if v := c.Query("creator"); v != "" {
		creator, err := ton.NormalizeAccount(v)
		if err != nil {
			return badRequest(c, "invalid_creator", "invalid creator address")
		}
		filter.Creator = &creator
	}

	campaigns, err := h.svc.ListCampaigns(c.UserContext(), filter)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: campaigns})
}

func (h *CampaignHandler) ListContributions(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid_id", "invalid campaign id")
	}

	contributions, err := h.svc.ListContributions(c.UserContext(), id, queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: contributions})
}

func (h *CampaignHandler) GetCampaignEvents(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid_id", "invalid campaign id")
	}
	if _, err := h.svc.GetCampaign(c.UserContext(), id); err != nil {
		return respondError(c, h.log, err)
	}

	trail, err := h.svc.CampaignEvents(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: trail})
}

func (h *CampaignHandler) Contribute(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid_id", "invalid campaign id")
	}
	var req dto.ContributeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid_body", "invalid request body")
	}

	receipt, err := h.svc.Contribute(c.UserContext(), id, middleware.GetAccount(c), req.Amount)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: receipt})
}

func (h *CampaignHandler) Withdraw(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid_id", "invalid campaign id")
	}

	amount, err := h.svc.Withdraw(c.UserContext(), id, middleware.GetAccount(c))
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.AmountResponse{CampaignID: id.String(), Amount: amount}})
}

func (h *CampaignHandler) Refund(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid_id", "invalid campaign id")
	}

	amount, err := h.svc.Refund(c.UserContext(), id, middleware.GetAccount(c))
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.AmountResponse{CampaignID: id.String(), Amount: amount}})
}

func queryInt(c *fiber.Ctx, key string, fallback int) int {
	v := c.Query(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
