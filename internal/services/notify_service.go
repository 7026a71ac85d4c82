package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
)

// LineNotifyService pushes messages to merchants over the LINE Messaging API.
type LineNotifyService struct {
	pushURL     string
	accessToken string
}

// NewLineNotifyService creates a LineNotifyService. pushURL is normally
// https://api.line.me/v2/bot/message/push.
func NewLineNotifyService(pushURL, accessToken string) *LineNotifyService {
	return &LineNotifyService{
		pushURL:     pushURL,
		accessToken: accessToken,
	}
}

type pushMessage struct {
	To       string        `json:"to"`
	Messages []textMessage `json:"messages"`
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// PushText sends a single text message to the given LINE user.
func (s *LineNotifyService) PushText(to, text string) error {
	if s.accessToken == "" {
		log.Println("[Notify] Messaging token not configured")
		return nil
	}

	body, err := json.Marshal(pushMessage{
		To:       to,
		Messages: []textMessage{{Type: "text", Text: text}},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, s.pushURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.accessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Printf("[Notify] Failed to push message: %v", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[Notify] Unexpected status: %d", resp.StatusCode)
		return fmt.Errorf("line push returned status %d", resp.StatusCode)
	}

	return nil
}

// RedemptionNotification contains the data pushed to a merchant when one of
// its coupons is redeemed.
type RedemptionNotification struct {
	Serial       string
	CampaignName string
	FaceValue    int64
	TxAmount     int64
	MerchantName string
	RedeemedBy   string
}

// FormatAmount renders a minor-unit amount with thousand separators.
func FormatAmount(amount int64) string {
	str := fmt.Sprintf("%d", amount)

	var result strings.Builder
	length := len(str)
	for i, digit := range str {
		if i > 0 && (length-i)%3 == 0 {
			result.WriteString(",")
		}
		result.WriteRune(digit)
	}

	return result.String()
}

// NotifyRedemption sends a redemption summary to the merchant's bound
// notification identity.
func (s *LineNotifyService) NotifyRedemption(to string, n RedemptionNotification) error {
	if to == "" {
		return nil
	}

	message := fmt.Sprintf(`🎟 Coupon redeemed
Serial: %s
Campaign: %s
Face value: %s
Transaction: %s
Store: %s (by %s)`,
		n.Serial,
		n.CampaignName,
		FormatAmount(n.FaceValue),
		FormatAmount(n.TxAmount),
		n.MerchantName,
		n.RedeemedBy,
	)

	return s.PushText(to, strings.TrimSpace(message))
}
