package handlers

import (
	"context"
	"time"

	"github.com/crowdfund-escrow/backend/internal/auth"
	"github.com/crowdfund-escrow/backend/internal/config"
	"github.com/crowdfund-escrow/backend/internal/http/dto"
	"github.com/crowdfund-escrow/backend/internal/middleware"
	"github.com/crowdfund-escrow/backend/internal/models"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// PayloadStore issues and burns TON Connect proof nonces.
type PayloadStore interface {
	Create(ctx context.Context, ttl time.Duration) (*models.TonProofPayload, error)
	Consume(ctx context.Context, payload string) (*models.TonProofPayload, error)
}

type AuthHandler struct {
	payloads PayloadStore
	cfg      *config.Config
	log      *zap.Logger
}

func NewAuthHandler(payloads PayloadStore, cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{payloads: payloads, cfg: cfg, log: log}
}

// GeneratePayload, шаг 1 TON Connect: выдаём одноразовый nonce для ton_proof.
func (h *AuthHandler) GeneratePayload(c *fiber.Ctx) error {
	p, err := h.payloads.Create(c.UserContext(), h.cfg.TONProofPayloadTTL)
	if err != nil {
		h.log.Error("failed to create proof payload", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: "internal server error", RequestID: middleware.GetRequestID(c),
		})
	}
	return c.JSON(dto.ProofPayloadResponse{Payload: p.Payload, ExpiresAt: p.ExpiresAt})
}

// TonProof, шаг 2: проверяем подпись кошелька и выдаём JWT на его адрес.
func (h *AuthHandler) TonProof(c *fiber.Ctx) error {
	var req dto.TonProofRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid_body", "invalid request body")
	}
	if req.Address == "" || req.PublicKey == "" || req.Proof.Payload == "" {
		return badRequest(c, "invalid_body", "address, public_key and proof are required")
	}

	account, err := req.Verify(h.cfg.TONProofAllowedDomains)
	if err != nil {
		h.log.Debug("ton proof rejected", zap.String("address", req.Address), zap.Error(err))
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: "invalid ton proof", Code: "invalid_proof", RequestID: middleware.GetRequestID(c),
		})
	}

	// Nonce is burnt only after the signature checks out.
	if _, err := h.payloads.Consume(c.UserContext(), req.Proof.Payload); err != nil {
		h.log.Debug("proof payload rejected", zap.Error(err))
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: "unknown or expired payload", Code: "invalid_payload", RequestID: middleware.GetRequestID(c),
		})
	}

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, account, h.cfg.JWTExpiration)
	if err != nil {
		h.log.Error("failed to generate jwt", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: "internal server error", RequestID: middleware.GetRequestID(c),
		})
	}

	h.log.Info("account logged in", zap.String("account", account))
	return c.JSON(dto.AuthResponse{
		Token:     token,
		Account:   account,
		ExpiresAt: time.Now().Add(h.cfg.JWTExpiration),
	})
}
