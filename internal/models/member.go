package models

// Member is a LINE end user known to the voucher system. The row is created
// the first time an external identity shows up (token exchange or claim) and
// profile fields are refreshed on later logins.
type Member struct {
	BaseModel
	LineUserID  string `gorm:"uniqueIndex" json:"line_user_id"`
	DisplayName string `json:"display_name"`
	PictureURL  string `json:"picture_url"`
	Email       string `json:"email,omitempty"`
}
