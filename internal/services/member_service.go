package services

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/voucher/internal/models"
)

// MemberService resolves external LINE identities to member rows.
type MemberService struct {
	db *gorm.DB
}

// NewMemberService constructs MemberService.
func NewMemberService(db *gorm.DB) *MemberService {
	return &MemberService{db: db}
}

// MemberProfile carries the profile fields supplied by the login provider.
type MemberProfile struct {
	LineUserID  string
	DisplayName string
	PictureURL  string
	Email       string
}

// Resolve upserts the member keyed by LINE user id and returns the stored
// row. The upsert is a single ON CONFLICT statement so two near-simultaneous
// logins for the same identity cannot race; empty incoming profile fields
// never overwrite values already on record.
func (s *MemberService) Resolve(p MemberProfile) (*models.Member, error) {
	member := models.Member{
		LineUserID:  p.LineUserID,
		DisplayName: p.DisplayName,
		PictureURL:  p.PictureURL,
		Email:       p.Email,
	}

	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "line_user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"display_name": gorm.Expr("COALESCE(NULLIF(excluded.display_name, ''), members.display_name)"),
			"picture_url":  gorm.Expr("COALESCE(NULLIF(excluded.picture_url, ''), members.picture_url)"),
			"email":        gorm.Expr("COALESCE(NULLIF(excluded.email, ''), members.email)"),
			"updated_at":   time.Now(),
		}),
	}).Create(&member).Error
	if err != nil {
		return nil, err
	}

	// Reload so callers see the canonical row; on conflict the generated ID
	// above was discarded.
	var stored models.Member
	if err := s.db.First(&stored, "line_user_id = ?", p.LineUserID).Error; err != nil {
		return nil, err
	}

	return &stored, nil
}

// Lookup returns the member for an external identity without creating one.
func (s *MemberService) Lookup(lineUserID string) (*models.Member, error) {
	var member models.Member
	if err := s.db.First(&member, "line_user_id = ?", lineUserID).Error; err != nil {
		return nil, err
	}
	return &member, nil
}
