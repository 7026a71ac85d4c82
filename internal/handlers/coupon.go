package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/voucher/internal/middleware"
	"github.com/example/voucher/internal/models"
	"github.com/example/voucher/internal/services"
)

// CouponHandler manages the claim, redeem, and my-coupons endpoints.
type CouponHandler struct {
	db        *gorm.DB
	coupons   *services.CouponService
	merchants *services.MerchantService
	notify    *services.LineNotifyService
}

// NewCouponHandler constructs CouponHandler.
func NewCouponHandler(db *gorm.DB, coupons *services.CouponService, merchants *services.MerchantService, notify *services.LineNotifyService) *CouponHandler {
	return &CouponHandler{db: db, coupons: coupons, merchants: merchants, notify: notify}
}

type claimRequest struct {
	Serial        string `json:"serial"`
	DisplayName   string `json:"display_name"`
	PictureURL    string `json:"picture_url"`
	ReferrerPhone string `json:"referrer_phone"`
}

// Claim lets the authenticated member take ownership of an issued coupon.
// Rule failures come back as {ok:false, reason} with a 200 status; only
// infrastructure failures produce non-2xx responses.
func (h *CouponHandler) Claim(c *fiber.Ctx) error {
	lineUserID, ok := middleware.GetCurrentLineUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req claimRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Serial == "" {
		return fiber.NewError(fiber.StatusBadRequest, "serial is required")
	}

	result, err := h.coupons.Claim(services.ClaimRequest{
		Serial:        req.Serial,
		LineUserID:    lineUserID,
		DisplayName:   req.DisplayName,
		PictureURL:    req.PictureURL,
		ReferrerPhone: req.ReferrerPhone,
	})
	if err != nil {
		return err
	}

	if !result.OK {
		return c.JSON(fiber.Map{"ok": false, "reason": result.Reason})
	}

	return c.JSON(fiber.Map{"ok": true, "coupon_id": result.CouponID})
}

type redeemRequest struct {
	Serial       string `json:"serial"`
	MerchantCode string `json:"merchant_code"`
	TxAmount     int64  `json:"tx_amount"`
}

// Redeem consumes a transferred coupon on behalf of a merchant. When
// merchant_code is omitted the caller's bound merchant is used.
func (h *CouponHandler) Redeem(c *fiber.Ctx) error {
	lineUserID, ok := middleware.GetCurrentLineUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req redeemRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Serial == "" {
		return fiber.NewError(fiber.StatusBadRequest, "serial is required")
	}

	if req.MerchantCode == "" {
		merchant, err := h.merchants.BoundMerchant(lineUserID)
		if err != nil {
			return err
		}
		if merchant == nil {
			return c.JSON(fiber.Map{"ok": false, "reason": services.ReasonUnauthorized})
		}
		req.MerchantCode = merchant.Code
	}

	result, err := h.coupons.Redeem(services.RedeemRequest{
		Serial:       req.Serial,
		MerchantCode: req.MerchantCode,
		TxAmount:     req.TxAmount,
	})
	if err != nil {
		return err
	}

	if !result.OK {
		return c.JSON(fiber.Map{"ok": false, "reason": result.Reason})
	}

	go h.dispatchRedeemNotification(result.CouponID)

	return c.JSON(fiber.Map{"ok": true, "coupon_id": result.CouponID})
}

// dispatchRedeemNotification pushes a LINE message to the redeeming
// merchant's bound identity, when one exists.
func (h *CouponHandler) dispatchRedeemNotification(couponID uuid.UUID) {
	var coupon models.Coupon
	if err := h.db.First(&coupon, "id = ?", couponID).Error; err != nil {
		log.Printf("[Coupon] Failed to load coupon %s for notification: %v", couponID, err)
		return
	}

	var merchant models.Merchant
	if err := h.db.First(&merchant, "code = ?", coupon.RedeemedByCode).Error; err != nil {
		log.Printf("[Coupon] Failed to load merchant %s for notification: %v", coupon.RedeemedByCode, err)
		return
	}

	if merchant.NotifyLineUserID == nil || *merchant.NotifyLineUserID == "" {
		return
	}

	var campaign models.Campaign
	if err := h.db.First(&campaign, "id = ?", coupon.CampaignID).Error; err != nil {
		log.Printf("[Coupon] Failed to load campaign for notification: %v", err)
		return
	}

	ownerName := ""
	if coupon.OwnerMemberID != nil {
		var owner models.Member
		if err := h.db.First(&owner, "id = ?", *coupon.OwnerMemberID).Error; err == nil {
			ownerName = owner.DisplayName
		}
	}

	var txAmount int64
	if coupon.TxAmount != nil {
		txAmount = *coupon.TxAmount
	}

	notification := services.RedemptionNotification{
		Serial:       coupon.Serial,
		CampaignName: campaign.Name,
		FaceValue:    campaign.FaceValue,
		TxAmount:     txAmount,
		MerchantName: merchant.Name,
		RedeemedBy:   ownerName,
	}

	if err := h.notify.NotifyRedemption(*merchant.NotifyLineUserID, notification); err != nil {
		log.Printf("[Coupon] Redemption notification failed for %s: %v", coupon.Serial, err)
	}
}

// Mine lists the authenticated member's coupons, soonest expiry first.
func (h *CouponHandler) Mine(c *fiber.Ctx) error {
	lineUserID, ok := middleware.GetCurrentLineUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	items, err := h.coupons.ListMine(lineUserID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"ok": true, "items": items})
}
