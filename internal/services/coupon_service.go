package services

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/voucher/internal/models"
)

// Reason enumerates the business-rule failures surfaced to callers. These
// are terminal results, not transport errors: retrying the same call yields
// the same reason.
type Reason string

const (
	ReasonNotFound       Reason = "NOT_FOUND"
	ReasonAlreadyClaimed Reason = "ALREADY_CLAIMED"
	ReasonNotRedeemable  Reason = "NOT_REDEEMABLE"
	ReasonExpired        Reason = "EXPIRED"
	ReasonUnauthorized   Reason = "UNAUTHORIZED"
)

// CouponService implements the claim/redeem state machine and the read-only
// listing queries. Infrastructure failures are returned as errors; rule
// failures come back as results with a Reason.
type CouponService struct {
	db      *gorm.DB
	members *MemberService
}

// NewCouponService constructs CouponService.
func NewCouponService(db *gorm.DB, members *MemberService) *CouponService {
	return &CouponService{db: db, members: members}
}

// ClaimRequest carries the inputs for taking ownership of an issued coupon.
type ClaimRequest struct {
	Serial        string
	LineUserID    string
	DisplayName   string
	PictureURL    string
	ReferrerPhone string
}

// ClaimResult is the outcome of a claim attempt.
type ClaimResult struct {
	OK       bool
	CouponID uuid.UUID
	Reason   Reason
}

// Claim moves a coupon from issued to transferred and records the claiming
// member. The transition is a conditional update guarded by the issued
// status, so of two concurrent claims on the same serial exactly one wins;
// the loser observes zero affected rows and reports ALREADY_CLAIMED.
//
// Expired coupons are not claimable, matching the redeem-side expiry rule.
func (s *CouponService) Claim(req ClaimRequest) (*ClaimResult, error) {
	member, err := s.members.Resolve(MemberProfile{
		LineUserID:  req.LineUserID,
		DisplayName: req.DisplayName,
		PictureURL:  req.PictureURL,
	})
	if err != nil {
		return nil, err
	}

	var coupon models.Coupon
	if err := s.db.First(&coupon, "serial = ?", req.Serial).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ClaimResult{Reason: ReasonNotFound}, nil
		}
		return nil, err
	}

	if coupon.Status != models.CouponStatusIssued {
		return &ClaimResult{Reason: ReasonAlreadyClaimed}, nil
	}

	now := time.Now()
	if coupon.Expired(now) {
		return &ClaimResult{Reason: ReasonExpired}, nil
	}

	updates := map[string]interface{}{
		"status":          models.CouponStatusTransferred,
		"owner_member_id": member.ID,
		"claimed_at":      now,
	}
	if req.ReferrerPhone != "" {
		updates["referrer_phone"] = req.ReferrerPhone
	}

	res := s.db.Model(&models.Coupon{}).
		Where("id = ? AND status = ?", coupon.ID, models.CouponStatusIssued).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Someone else claimed between our read and the guarded write.
		return &ClaimResult{Reason: ReasonAlreadyClaimed}, nil
	}

	return &ClaimResult{OK: true, CouponID: coupon.ID}, nil
}

// RedeemRequest carries the inputs for consuming a transferred coupon.
type RedeemRequest struct {
	Serial       string
	MerchantCode string
	TxAmount     int64
}

// RedeemResult is the outcome of a redeem attempt.
type RedeemResult struct {
	OK       bool
	CouponID uuid.UUID
	Reason   Reason
}

// Redeem moves a coupon from transferred to redeemed on behalf of the
// presenting merchant. Expiry is checked before status so an expired coupon
// reports EXPIRED whatever state it is in. Cross-merchant redemption is a
// campaign policy: unless the campaign allows it, only the issuing merchant
// may redeem.
func (s *CouponService) Redeem(req RedeemRequest) (*RedeemResult, error) {
	var coupon models.Coupon
	if err := s.db.First(&coupon, "serial = ?", req.Serial).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &RedeemResult{Reason: ReasonNotFound}, nil
		}
		return nil, err
	}

	var merchant models.Merchant
	if err := s.db.First(&merchant, "code = ?", req.MerchantCode).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &RedeemResult{Reason: ReasonNotFound}, nil
		}
		return nil, err
	}

	now := time.Now()
	if coupon.Expired(now) {
		return &RedeemResult{Reason: ReasonExpired}, nil
	}

	if coupon.Status != models.CouponStatusTransferred {
		return &RedeemResult{Reason: ReasonNotRedeemable}, nil
	}

	if coupon.IssuerMerchantCode != merchant.Code {
		var campaign models.Campaign
		if err := s.db.First(&campaign, "id = ?", coupon.CampaignID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &RedeemResult{Reason: ReasonUnauthorized}, nil
			}
			return nil, err
		}
		if !campaign.CrossMerchantRedeem {
			return &RedeemResult{Reason: ReasonUnauthorized}, nil
		}
	}

	res := s.db.Model(&models.Coupon{}).
		Where("id = ? AND status = ?", coupon.ID, models.CouponStatusTransferred).
		Updates(map[string]interface{}{
			"status":           models.CouponStatusRedeemed,
			"redeemed_by_code": merchant.Code,
			"redeemed_at":      now,
			"tx_amount":        req.TxAmount,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return &RedeemResult{Reason: ReasonNotRedeemable}, nil
	}

	return &RedeemResult{OK: true, CouponID: coupon.ID}, nil
}

// CouponView is a coupon row denormalized with campaign and issuing-merchant
// display fields, as rendered by the listing endpoints.
type CouponView struct {
	Serial       string     `json:"serial"`
	Status       string     `json:"status"`
	CampaignName string     `json:"campaign_name"`
	FaceValue    int64      `json:"face_value"`
	MerchantName string     `json:"merchant_name"`
	ExpiresAt    time.Time  `json:"expires_at"`
	ClaimedAt    *time.Time `json:"claimed_at,omitempty"`
	RedeemedAt   *time.Time `json:"redeemed_at,omitempty"`
	TxAmount     *int64     `json:"tx_amount,omitempty"`
}

func (s *CouponService) viewQuery() *gorm.DB {
	return s.db.Table("coupons").
		Select(`coupons.serial, coupons.status, coupons.expires_at, coupons.claimed_at,
			coupons.redeemed_at, coupons.tx_amount,
			campaigns.name AS campaign_name, campaigns.face_value,
			merchants.name AS merchant_name`).
		Joins("LEFT JOIN campaigns ON campaigns.id = coupons.campaign_id").
		Joins("LEFT JOIN merchants ON merchants.code = coupons.issuer_merchant_code")
}

// ListMine returns the coupons owned by the given external identity, soonest
// expiry first. An identity with no member row simply owns nothing.
func (s *CouponService) ListMine(lineUserID string) ([]CouponView, error) {
	member, err := s.members.Lookup(lineUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []CouponView{}, nil
		}
		return nil, err
	}

	views := []CouponView{}
	err = s.viewQuery().
		Where("coupons.owner_member_id = ?", member.ID).
		Order("coupons.expires_at asc, coupons.serial asc").
		Scan(&views).Error
	if err != nil {
		return nil, err
	}

	return views, nil
}

// ListForMerchantParams filters the merchant dashboard listing.
type ListForMerchantParams struct {
	MerchantCode string // empty: resolve via the caller's bound merchant
	LineUserID   string
	Status       string // empty: all statuses
	DaysToExpire int    // 0: no expiry window filter
	Limit        int
	Offset       int
}

// ListForMerchantResult is the outcome of a merchant listing query.
type ListForMerchantResult struct {
	OK     bool
	Reason Reason
	Items  []CouponView
	Total  int64
}

// ListForMerchant returns coupons issued by a merchant, with optional status
// and expiry-window filters. Ordering is expires_at then serial so paging
// with limit/offset is stable.
func (s *CouponService) ListForMerchant(p ListForMerchantParams) (*ListForMerchantResult, error) {
	code := p.MerchantCode
	if code == "" {
		var merchant models.Merchant
		err := s.db.First(&merchant, "notify_line_user_id = ?", p.LineUserID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &ListForMerchantResult{Reason: ReasonUnauthorized}, nil
			}
			return nil, err
		}
		code = merchant.Code
	} else {
		var count int64
		if err := s.db.Model(&models.Merchant{}).Where("code = ?", code).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return &ListForMerchantResult{Reason: ReasonNotFound}, nil
		}
	}

	query := s.viewQuery().Where("coupons.issuer_merchant_code = ?", code)

	if p.Status != "" {
		query = query.Where("coupons.status = ?", p.Status)
	}
	if p.DaysToExpire > 0 {
		now := time.Now()
		query = query.Where("coupons.expires_at > ? AND coupons.expires_at <= ?",
			now, now.AddDate(0, 0, p.DaysToExpire))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	items := []CouponView{}
	err := query.
		Order("coupons.expires_at asc, coupons.serial asc").
		Limit(p.Limit).Offset(p.Offset).
		Scan(&items).Error
	if err != nil {
		return nil, err
	}

	return &ListForMerchantResult{OK: true, Items: items, Total: total}, nil
}
