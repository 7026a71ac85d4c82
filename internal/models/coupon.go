package models

import (
	"time"

	"github.com/google/uuid"
)

// Coupon lifecycle states. Transitions only move forward:
// issued -> transferred -> redeemed.
const (
	CouponStatusIssued      = "issued"
	CouponStatusTransferred = "transferred"
	CouponStatusRedeemed    = "redeemed"
)

// Coupon is a single voucher identified by its human-shareable serial
// (the value printed in the QR code). Rows are never deleted; redeemed and
// expired coupons are kept for history.
type Coupon struct {
	BaseModel
	Serial             string     `gorm:"uniqueIndex" json:"serial"`
	CampaignID         uuid.UUID  `gorm:"type:uuid;index" json:"campaign_id"`
	IssuerMerchantCode string     `gorm:"index" json:"issuer_merchant_code"`
	Status             string     `gorm:"index;default:issued" json:"status"`
	OwnerMemberID      *uuid.UUID `gorm:"type:uuid;index" json:"owner_member_id,omitempty"`
	ReferrerPhone      string     `json:"referrer_phone,omitempty"`
	ExpiresAt          time.Time  `gorm:"index" json:"expires_at"`
	ClaimedAt          *time.Time `json:"claimed_at,omitempty"`
	RedeemedByCode     string     `json:"redeemed_by_merchant_code,omitempty"`
	RedeemedAt         *time.Time `json:"redeemed_at,omitempty"`
	TxAmount           *int64     `json:"tx_amount,omitempty"`
}

// Expired reports whether the coupon is past its expiry at the given instant.
func (c *Coupon) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
