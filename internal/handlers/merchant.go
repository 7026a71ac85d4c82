package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/voucher/internal/middleware"
	"github.com/example/voucher/internal/models"
	"github.com/example/voucher/internal/services"
	"github.com/example/voucher/internal/utils"
)

// MerchantHandler manages notification binding and the merchant dashboard
// listing.
type MerchantHandler struct {
	merchants *services.MerchantService
	coupons   *services.CouponService
}

// NewMerchantHandler constructs MerchantHandler.
func NewMerchantHandler(merchants *services.MerchantService, coupons *services.CouponService) *MerchantHandler {
	return &MerchantHandler{merchants: merchants, coupons: coupons}
}

type bindRequest struct {
	MerchantCode string `json:"merchant_code"`
	DisplayName  string `json:"display_name"`
	PictureURL   string `json:"picture_url"`
}

// Bind attaches the caller's LINE identity to a merchant as its notification
// target.
func (h *MerchantHandler) Bind(c *fiber.Ctx) error {
	lineUserID, ok := middleware.GetCurrentLineUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req bindRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.MerchantCode == "" {
		return fiber.NewError(fiber.StatusBadRequest, "merchant_code is required")
	}

	result, err := h.merchants.Bind(req.MerchantCode, lineUserID, req.DisplayName, req.PictureURL)
	if err != nil {
		return err
	}

	if !result.OK {
		return c.JSON(fiber.Map{"ok": false, "reason": result.Reason})
	}

	return c.JSON(fiber.Map{"ok": true})
}

func validStatusFilter(status string) bool {
	switch status {
	case "", models.CouponStatusIssued, models.CouponStatusTransferred, models.CouponStatusRedeemed:
		return true
	}
	return false
}

// ListCoupons returns the coupons issued by a merchant, paginated. Without
// an explicit merchant_code the caller's bound merchant is used.
func (h *MerchantHandler) ListCoupons(c *fiber.Ctx) error {
	lineUserID, ok := middleware.GetCurrentLineUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	status := c.Query("status")
	if !validStatusFilter(status) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid status filter")
	}

	pg := utils.ParsePagination(c)

	result, err := h.coupons.ListForMerchant(services.ListForMerchantParams{
		MerchantCode: c.Query("merchant_code"),
		LineUserID:   lineUserID,
		Status:       status,
		DaysToExpire: c.QueryInt("days_to_expire", 0),
		Limit:        pg.Limit,
		Offset:       pg.Offset,
	})
	if err != nil {
		return err
	}

	if !result.OK {
		return c.JSON(fiber.Map{"ok": false, "reason": result.Reason})
	}

	return c.JSON(fiber.Map{
		"ok":    true,
		"items": result.Items,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    result.Total,
		},
	})
}
