package services

import (
	"errors"

	"gorm.io/gorm"

	"github.com/example/voucher/internal/models"
)

// MerchantService manages merchant notification bindings.
type MerchantService struct {
	db      *gorm.DB
	members *MemberService
}

// NewMerchantService constructs MerchantService.
func NewMerchantService(db *gorm.DB, members *MemberService) *MerchantService {
	return &MerchantService{db: db, members: members}
}

// BindResult is the outcome of a bind attempt.
type BindResult struct {
	OK     bool
	Reason Reason
}

// Bind attaches the calling member's LINE identity to a merchant as its
// notification target. Rebinding is last-write-wins: binding the same
// identity again is a no-op success, a different identity overwrites.
func (s *MerchantService) Bind(merchantCode, lineUserID, displayName, pictureURL string) (*BindResult, error) {
	member, err := s.members.Resolve(MemberProfile{
		LineUserID:  lineUserID,
		DisplayName: displayName,
		PictureURL:  pictureURL,
	})
	if err != nil {
		return nil, err
	}

	res := s.db.Model(&models.Merchant{}).
		Where("code = ?", merchantCode).
		Update("notify_line_user_id", member.LineUserID)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return &BindResult{Reason: ReasonNotFound}, nil
	}

	return &BindResult{OK: true}, nil
}

// BoundMerchant returns the merchant bound to the given LINE identity.
func (s *MerchantService) BoundMerchant(lineUserID string) (*models.Merchant, error) {
	var merchant models.Merchant
	if err := s.db.First(&merchant, "notify_line_user_id = ?", lineUserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &merchant, nil
}
