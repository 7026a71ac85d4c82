package models

// Campaign is reference data describing a batch of coupons: face value and
// the expiry policy applied when coupons are issued under it.
type Campaign struct {
	BaseModel
	Name      string `json:"name"`
	FaceValue int64  `json:"face_value"` // minor currency units
	ValidDays int    `json:"valid_days"`
	// CrossMerchantRedeem allows any registered merchant to redeem coupons of
	// this campaign, not just the issuing one.
	CrossMerchantRedeem bool `json:"cross_merchant_redeem"`
}

// Merchant is a store that issues coupons and accepts them for redemption.
// NotifyLineUserID is the LINE identity bound via the bind endpoint; when set,
// redemption notifications are pushed to it.
type Merchant struct {
	BaseModel
	Code             string  `gorm:"uniqueIndex" json:"code"`
	Name             string  `json:"name"`
	Phone            string  `json:"phone"`
	Address          string  `json:"address"`
	NotifyLineUserID *string `json:"notify_line_user_id,omitempty"`
}
