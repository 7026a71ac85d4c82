package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/voucher/internal/models"
	"github.com/example/voucher/internal/utils"
)

// AdminHandler manages campaign/merchant registry upkeep and bulk coupon
// issuance.
type AdminHandler struct {
	db *gorm.DB
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{db: db}
}

// Campaigns

func (h *AdminHandler) CreateCampaign(c *fiber.Ctx) error {
	var item models.Campaign
	if err := c.BodyParser(&item); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if item.Name == "" || item.FaceValue <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "name and face_value are required")
	}
	if err := h.db.Create(&item).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": item})
}

func (h *AdminHandler) ListCampaigns(c *fiber.Ctx) error {
	var items []models.Campaign
	if err := h.db.Order("created_at desc").Find(&items).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": items})
}

// Merchants

func (h *AdminHandler) CreateMerchant(c *fiber.Ctx) error {
	var item models.Merchant
	if err := c.BodyParser(&item); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if item.Code == "" || item.Name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "code and name are required")
	}
	if err := h.db.Create(&item).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": item})
}

func (h *AdminHandler) ListMerchants(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)

	var total int64
	if err := h.db.Model(&models.Merchant{}).Count(&total).Error; err != nil {
		return err
	}

	var items []models.Merchant
	if err := h.db.Order("code asc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&items).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    items,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// Issuance

type issueCouponsRequest struct {
	CampaignID   string `json:"campaign_id"`
	MerchantCode string `json:"merchant_code"`
	Count        int    `json:"count"`
	ValidDays    int    `json:"valid_days"`
}

const maxIssueBatch = 10000

// IssueCoupons bulk-creates coupons for a campaign at status issued. The
// generated serials are returned so they can be printed as QR codes.
func (h *AdminHandler) IssueCoupons(c *fiber.Ctx) error {
	var req issueCouponsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Count <= 0 || req.Count > maxIssueBatch {
		return fiber.NewError(fiber.StatusBadRequest, "count must be between 1 and 10000")
	}

	campaignID, err := uuid.Parse(req.CampaignID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid campaign_id")
	}

	var campaign models.Campaign
	if err := h.db.First(&campaign, "id = ?", campaignID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "campaign not found")
		}
		return err
	}

	var merchant models.Merchant
	if err := h.db.First(&merchant, "code = ?", req.MerchantCode).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "merchant not found")
		}
		return err
	}

	validDays := req.ValidDays
	if validDays <= 0 {
		validDays = campaign.ValidDays
	}
	if validDays <= 0 {
		validDays = 30
	}

	expiresAt := time.Now().AddDate(0, 0, validDays)

	coupons := make([]models.Coupon, 0, req.Count)
	serials := make([]string, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		serial := newSerial()
		serials = append(serials, serial)
		coupons = append(coupons, models.Coupon{
			Serial:             serial,
			CampaignID:         campaign.ID,
			IssuerMerchantCode: merchant.Code,
			Status:             models.CouponStatusIssued,
			ExpiresAt:          expiresAt,
		})
	}

	if err := h.db.CreateInBatches(coupons, 500).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"issued":     len(coupons),
			"expires_at": expiresAt,
			"serials":    serials,
		},
	})
}

func newSerial() string {
	return strings.ToUpper(uuid.New().String())
}

// Stats returns aggregate counters for the admin dashboard.
func (h *AdminHandler) Stats(c *fiber.Ctx) error {
	var totalMembers int64
	if err := h.db.Model(&models.Member{}).Count(&totalMembers).Error; err != nil {
		return err
	}

	var totalCoupons int64
	if err := h.db.Model(&models.Coupon{}).Count(&totalCoupons).Error; err != nil {
		return err
	}

	type statusCount struct {
		Status string `json:"status"`
		Count  int64  `json:"count"`
	}
	var statusCounts []statusCount
	if err := h.db.Model(&models.Coupon{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return err
	}

	couponsByStatus := make(map[string]int64)
	for _, sc := range statusCounts {
		couponsByStatus[sc.Status] = sc.Count
	}

	var redeemedValue int64
	if err := h.db.Model(&models.Coupon{}).
		Where("status = ?", models.CouponStatusRedeemed).
		Select("COALESCE(SUM(tx_amount), 0)").
		Scan(&redeemedValue).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"total_members":     totalMembers,
			"total_coupons":     totalCoupons,
			"coupons_by_status": couponsByStatus,
			"redeemed_value":    redeemedValue,
		},
	})
}
