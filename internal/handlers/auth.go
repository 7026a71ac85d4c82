package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/example/voucher/internal/config"
	"github.com/example/voucher/internal/services"
	"github.com/example/voucher/internal/utils"
)

// AuthHandler implements the LINE token exchange endpoint.
type AuthHandler struct {
	cfg     *config.Config
	members *services.MemberService
	line    *services.LineService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(cfg *config.Config, members *services.MemberService, line *services.LineService) *AuthHandler {
	return &AuthHandler{cfg: cfg, members: members, line: line}
}

type exchangeRequest struct {
	IDToken     string `json:"idToken"`
	DisplayName string `json:"displayName"`
	PictureURL  string `json:"pictureUrl"`
	Email       string `json:"email"`
}

// Exchange verifies a LINE ID token, upserts the member, and returns a
// seven-day member token for the coupon endpoints.
func (h *AuthHandler) Exchange(c *fiber.Ctx) error {
	var req exchangeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "INVALID_BODY"})
	}

	if req.IDToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "MISSING_ID_TOKEN"})
	}

	info, err := h.line.VerifyIDToken(req.IDToken)
	if err != nil {
		if errors.Is(err, services.ErrInvalidIDToken) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "LINE_VERIFY_FAIL"})
		}
		return err
	}

	// Explicit profile fields win over what the verify response carries.
	profile := services.MemberProfile{
		LineUserID:  info.Sub,
		DisplayName: req.DisplayName,
		PictureURL:  req.PictureURL,
		Email:       req.Email,
	}
	if profile.DisplayName == "" {
		profile.DisplayName = info.Name
	}
	if profile.PictureURL == "" {
		profile.PictureURL = info.Picture
	}
	if profile.Email == "" {
		profile.Email = info.Email
	}

	if _, err := h.members.Resolve(profile); err != nil {
		return err
	}

	token, err := utils.GenerateMemberToken(h.cfg.TokenSecret, info.Sub)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"token": token})
}
