package services_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/voucher/internal/models"
	"github.com/example/voucher/internal/services"
	"github.com/example/voucher/internal/testutil"
)

func newCouponService(t *testing.T) (*gorm.DB, *services.CouponService) {
	t.Helper()
	db := testutil.OpenDB(t)
	return db, services.NewCouponService(db, services.NewMemberService(db))
}

func seedCampaign(t *testing.T, db *gorm.DB, name string, crossMerchant bool) models.Campaign {
	t.Helper()
	campaign := models.Campaign{
		Name:                name,
		FaceValue:           10000,
		ValidDays:           30,
		CrossMerchantRedeem: crossMerchant,
	}
	require.NoError(t, db.Create(&campaign).Error)
	return campaign
}

func seedMerchant(t *testing.T, db *gorm.DB, code string) models.Merchant {
	t.Helper()
	merchant := models.Merchant{Code: code, Name: "Store " + code}
	require.NoError(t, db.Create(&merchant).Error)
	return merchant
}

func seedCoupon(t *testing.T, db *gorm.DB, serial string, campaign models.Campaign, merchantCode, status string, expiresAt time.Time) models.Coupon {
	t.Helper()
	coupon := models.Coupon{
		Serial:             serial,
		CampaignID:         campaign.ID,
		IssuerMerchantCode: merchantCode,
		Status:             status,
		ExpiresAt:          expiresAt,
	}
	require.NoError(t, db.Create(&coupon).Error)
	return coupon
}

func mustClaim(t *testing.T, svc *services.CouponService, serial, lineUserID string) *services.ClaimResult {
	t.Helper()
	result, err := svc.Claim(services.ClaimRequest{Serial: serial, LineUserID: lineUserID})
	require.NoError(t, err)
	require.True(t, result.OK, "claim of %s should succeed, got %s", serial, result.Reason)
	return result
}

func TestClaimUnknownSerial(t *testing.T) {
	_, svc := newCouponService(t)

	result, err := svc.Claim(services.ClaimRequest{Serial: "DOES-NOT-EXIST", LineUserID: "U1"})
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, services.ReasonNotFound, result.Reason)
}

func TestClaimTransfersOwnership(t *testing.T) {
	db, svc := newCouponService(t)
	campaign := seedCampaign(t, db, "Spring", false)
	seedMerchant(t, db, "M1")
	coupon := seedCoupon(t, db, "SER-1", campaign, "M1", models.CouponStatusIssued, time.Now().Add(48*time.Hour))

	result, err := svc.Claim(services.ClaimRequest{
		Serial:        "SER-1",
		LineUserID:    "U1",
		DisplayName:   "Alice",
		ReferrerPhone: "0912345678",
	})
	require.NoError(t, err)
	require.True(t, result.OK)
	assert.Equal(t, coupon.ID, result.CouponID)

	var stored models.Coupon
	require.NoError(t, db.First(&stored, "serial = ?", "SER-1").Error)
	assert.Equal(t, models.CouponStatusTransferred, stored.Status)
	require.NotNil(t, stored.OwnerMemberID)
	assert.NotNil(t, stored.ClaimedAt)
	assert.Equal(t, "0912345678", stored.ReferrerPhone)

	var owner models.Member
	require.NoError(t, db.First(&owner, "id = ?", *stored.OwnerMemberID).Error)
	assert.Equal(t, "U1", owner.LineUserID)
}

func TestClaimIsExactlyOnce(t *testing.T) {
	db, svc := newCouponService(t)
	campaign := seedCampaign(t, db, "Spring", false)
	seedMerchant(t, db, "M1")
	seedCoupon(t, db, "SER-1", campaign, "M1", models.CouponStatusIssued, time.Now().Add(48*time.Hour))

	mustClaim(t, svc, "SER-1", "U1")

	// Retry by the winner is terminal, not state-corrupting.
	retry, err := svc.Claim(services.ClaimRequest{Serial: "SER-1", LineUserID: "U1"})
	require.NoError(t, err)
	assert.Equal(t, services.ReasonAlreadyClaimed, retry.Reason)

	// A different member cannot take it either.
	other, err := svc.Claim(services.ClaimRequest{Serial: "SER-1", LineUserID: "U2"})
	require.NoError(t, err)
	assert.Equal(t, services.ReasonAlreadyClaimed, other.Reason)

	var stored models.Coupon
	require.NoError(t, db.First(&stored, "serial = ?", "SER-1").Error)
	var winner models.Member
	require.NoError(t, db.First(&winner, "id = ?", *stored.OwnerMemberID).Error)
	assert.Equal(t, "U1", winner.LineUserID, "loser must not overwrite the owner")
}

func TestConcurrentClaimSingleWinner(t *testing.T) {
	db, svc := newCouponService(t)
	campaign := seedCampaign(t, db, "Spring", false)
	seedMerchant(t, db, "M1")
	seedCoupon(t, db, "SER-RACE", campaign, "M1", models.CouponStatusIssued, time.Now().Add(48*time.Hour))

	results := make([]*services.ClaimResult, 2)
	errs := make([]error, 2)
	users := []string{"U1", "U2"}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Claim(services.ClaimRequest{
				Serial:     "SER-RACE",
				LineUserID: users[i],
			})
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	wins := 0
	for _, r := range results {
		if r.OK {
			wins++
		} else {
			assert.Equal(t, services.ReasonAlreadyClaimed, r.Reason)
		}
	}
	assert.Equal(t, 1, wins, "exactly one concurrent claim must win")
}

func TestClaimExpiredCoupon(t *testing.T) {
	db, svc := newCouponService(t)
	campaign := seedCampaign(t, db, "Spring", false)
	seedMerchant(t, db, "M1")
	seedCoupon(t, db, "SER-OLD", campaign, "M1", models.CouponStatusIssued, time.Now().Add(-time.Hour))

	result, err := svc.Claim(services.ClaimRequest{Serial: "SER-OLD", LineUserID: "U1"})
	require.NoError(t, err)
	assert.Equal(t, services.ReasonExpired, result.Reason)

	var stored models.Coupon
	require.NoError(t, db.First(&stored, "serial = ?", "SER-OLD").Error)
	assert.Equal(t, models.CouponStatusIssued, stored.Status)
}

func TestRedeemUnknownSerial(t *testing.T) {
	db, svc := newCouponService(t)
	seedMerchant(t, db, "M1")

	result, err := svc.Redeem(services.RedeemRequest{Serial: "DOES-NOT-EXIST", MerchantCode: "M1"})
	require.NoError(t, err)
	assert.Equal(t, services.ReasonNotFound, result.Reason)
}

func TestRedeemUnknownMerchant(t *testing.T) {
	db, svc := newCouponService(t)
	campaign := seedCampaign(t, db, "Spring", false)
	seedMerchant(t, db, "M1")
	seedCoupon(t, db, "SER-1", campaign, "M1", models.CouponStatusTransferred, time.Now().Add(48*time.Hour))

	result, err := svc.Redeem(services.RedeemRequest{Serial: "SER-1", MerchantCode: "NOPE"})
	require.NoError(t, err)
	assert.Equal(t, services.ReasonNotFound, result.Reason)
}

func TestRedeemUnclaimedCoupon(t *testing.T) {
	db, svc := newCouponService(t)
	campaign := seedCampaign(t, db, "Spring", false)
	seedMerchant(t, db, "M1")
	seedCoupon(t, db, "SER-1", campaign, "M1", models.CouponStatusIssued, time.Now().Add(48*time.Hour))

	result, err := svc.Redeem(services.RedeemRequest{Serial: "SER-1", MerchantCode: "M1"})
	require.NoError(t, err)
	assert.Equal(t, services.ReasonNotRedeemable, result.Reason)
}

func TestRedeemExpiredReportsExpiredRegardlessOfStatus(t *testing.T) {
	db, svc := newCouponService(t)
	campaign := seedCampaign(t, db, "Spring", false)
	seedMerchant(t, db, "M1")
	past := time.Now().Add(-time.Hour)
	seedCoupon(t, db, "SER-A", campaign, "M1", models.CouponStatusIssued, past)
	seedCoupon(t, db, "SER-B", campaign, "M1", models.CouponStatusTransferred, past)

	for _, serial := range []string{"SER-A", "SER-B"} {
		result, err := svc.Redeem(services.RedeemRequest{Serial: serial, MerchantCode: "M1"})
		require.NoError(t, err)
		assert.Equal(t, services.ReasonExpired, result.Reason, "serial %s", serial)
	}
}

func TestRedeemRecordsTransaction(t *testing.T) {
	db, svc := newCouponService(t)
	campaign := seedCampaign(t, db, "Spring", false)
	seedMerchant(t, db, "M1")
	seedCoupon(t, db, "SER-1", campaign, "M1", models.CouponStatusIssued, time.Now().Add(48*time.Hour))

	mustClaim(t, svc, "SER-1", "U1")

	result, err := svc.Redeem(services.RedeemRequest{Serial: "SER-1", MerchantCode: "M1", TxAmount: 25000})
	require.NoError(t, err)
	require.True(t, result.OK)

	var stored models.Coupon
	require.NoError(t, db.First(&stored, "serial = ?", "SER-1").Error)
	assert.Equal(t, models.CouponStatusRedeemed, stored.Status)
	assert.Equal(t, "M1", stored.RedeemedByCode)
	require.NotNil(t, stored.RedeemedAt)
	require.NotNil(t, stored.TxAmount)
	assert.Equal(t, int64(25000), *stored.TxAmount)

	// Redeemed is terminal.
	again, err := svc.Redeem(services.RedeemRequest{Serial: "SER-1", MerchantCode: "M1", TxAmount: 100})
	require.NoError(t, err)
	assert.Equal(t, services.ReasonNotRedeemable, again.Reason)
}

func TestRedeemCrossMerchantPolicy(t *testing.T) {
	db, svc := newCouponService(t)
	closed := seedCampaign(t, db, "Closed", false)
	open := seedCampaign(t, db, "Open", true)
	seedMerchant(t, db, "M1")
	seedMerchant(t, db, "M2")
	seedCoupon(t, db, "SER-CLOSED", closed, "M1", models.CouponStatusIssued, time.Now().Add(48*time.Hour))
	seedCoupon(t, db, "SER-OPEN", open, "M1", models.CouponStatusIssued, time.Now().Add(48*time.Hour))

	mustClaim(t, svc, "SER-CLOSED", "U1")
	mustClaim(t, svc, "SER-OPEN", "U1")

	result, err := svc.Redeem(services.RedeemRequest{Serial: "SER-CLOSED", MerchantCode: "M2"})
	require.NoError(t, err)
	assert.Equal(t, services.ReasonUnauthorized, result.Reason)

	// The denial must not consume the coupon.
	var stored models.Coupon
	require.NoError(t, db.First(&stored, "serial = ?", "SER-CLOSED").Error)
	assert.Equal(t, models.CouponStatusTransferred, stored.Status)

	result, err = svc.Redeem(services.RedeemRequest{Serial: "SER-OPEN", MerchantCode: "M2"})
	require.NoError(t, err)
	assert.True(t, result.OK, "cross-merchant campaign should allow other merchants")
}

func TestListMineOrderingAndGrowth(t *testing.T) {
	db, svc := newCouponService(t)
	campaign := seedCampaign(t, db, "Spring", false)
	seedMerchant(t, db, "M1")
	now := time.Now()
	seedCoupon(t, db, "SER-LATE", campaign, "M1", models.CouponStatusIssued, now.Add(72*time.Hour))
	seedCoupon(t, db, "SER-SOON", campaign, "M1", models.CouponStatusIssued, now.Add(24*time.Hour))
	seedCoupon(t, db, "SER-MID", campaign, "M1", models.CouponStatusIssued, now.Add(48*time.Hour))

	mustClaim(t, svc, "SER-LATE", "U1")
	mustClaim(t, svc, "SER-SOON", "U1")

	items, err := svc.ListMine("U1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "SER-SOON", items[0].Serial)
	assert.Equal(t, "SER-LATE", items[1].Serial)
	assert.Equal(t, "Spring", items[0].CampaignName)
	assert.Equal(t, int64(10000), items[0].FaceValue)
	assert.Equal(t, "Store M1", items[0].MerchantName)

	// Claiming another coupon grows the set and keeps the sort order.
	mustClaim(t, svc, "SER-MID", "U1")

	items, err = svc.ListMine("U1")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"SER-SOON", "SER-MID", "SER-LATE"},
		[]string{items[0].Serial, items[1].Serial, items[2].Serial})
}

func TestListMineUnknownMemberIsEmpty(t *testing.T) {
	_, svc := newCouponService(t)

	items, err := svc.ListMine("U-NOBODY")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestListForMerchantStatusFilter(t *testing.T) {
	db, svc := newCouponService(t)
	campaign := seedCampaign(t, db, "Spring", false)
	seedMerchant(t, db, "M1")
	future := time.Now().Add(48 * time.Hour)
	seedCoupon(t, db, "SER-1", campaign, "M1", models.CouponStatusIssued, future)
	seedCoupon(t, db, "SER-2", campaign, "M1", models.CouponStatusIssued, future)

	mustClaim(t, svc, "SER-1", "U1")
	redeemed, err := svc.Redeem(services.RedeemRequest{Serial: "SER-1", MerchantCode: "M1", TxAmount: 500})
	require.NoError(t, err)
	require.True(t, redeemed.OK)

	transferred, err := svc.ListForMerchant(services.ListForMerchantParams{
		MerchantCode: "M1", Status: models.CouponStatusTransferred, Limit: 20,
	})
	require.NoError(t, err)
	require.True(t, transferred.OK)
	assert.Empty(t, transferred.Items, "redeemed coupon must leave the transferred view")

	byStatus, err := svc.ListForMerchant(services.ListForMerchantParams{
		MerchantCode: "M1", Status: models.CouponStatusRedeemed, Limit: 20,
	})
	require.NoError(t, err)
	require.Len(t, byStatus.Items, 1)
	assert.Equal(t, "SER-1", byStatus.Items[0].Serial)
}

func TestListForMerchantExpiryWindow(t *testing.T) {
	db, svc := newCouponService(t)
	campaign := seedCampaign(t, db, "Spring", false)
	seedMerchant(t, db, "M1")
	now := time.Now()
	seedCoupon(t, db, "SER-2D", campaign, "M1", models.CouponStatusIssued, now.Add(2*24*time.Hour))
	seedCoupon(t, db, "SER-20D", campaign, "M1", models.CouponStatusIssued, now.Add(20*24*time.Hour))
	seedCoupon(t, db, "SER-GONE", campaign, "M1", models.CouponStatusIssued, now.Add(-time.Hour))

	result, err := svc.ListForMerchant(services.ListForMerchantParams{
		MerchantCode: "M1", DaysToExpire: 7, Limit: 20,
	})
	require.NoError(t, err)
	require.True(t, result.OK)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "SER-2D", result.Items[0].Serial)
}

func TestListForMerchantPagination(t *testing.T) {
	db, svc := newCouponService(t)
	campaign := seedCampaign(t, db, "Spring", false)
	seedMerchant(t, db, "M1")
	expiresAt := time.Now().Add(48 * time.Hour)
	for _, serial := range []string{"SER-C", "SER-A", "SER-B", "SER-D"} {
		seedCoupon(t, db, serial, campaign, "M1", models.CouponStatusIssued, expiresAt)
	}

	page1, err := svc.ListForMerchant(services.ListForMerchantParams{MerchantCode: "M1", Limit: 2, Offset: 0})
	require.NoError(t, err)
	page2, err := svc.ListForMerchant(services.ListForMerchantParams{MerchantCode: "M1", Limit: 2, Offset: 2})
	require.NoError(t, err)

	assert.Equal(t, int64(4), page1.Total)
	require.Len(t, page1.Items, 2)
	require.Len(t, page2.Items, 2)

	// Equal expiry falls back to serial order, so paging is stable.
	got := []string{page1.Items[0].Serial, page1.Items[1].Serial, page2.Items[0].Serial, page2.Items[1].Serial}
	assert.Equal(t, []string{"SER-A", "SER-B", "SER-C", "SER-D"}, got)
}

func TestListForMerchantResolvesBinding(t *testing.T) {
	db, svc := newCouponService(t)
	members := services.NewMemberService(db)
	merchants := services.NewMerchantService(db, members)
	campaign := seedCampaign(t, db, "Spring", false)
	seedMerchant(t, db, "M1")
	seedCoupon(t, db, "SER-1", campaign, "M1", models.CouponStatusIssued, time.Now().Add(48*time.Hour))

	bound, err := merchants.Bind("M1", "U-OWNER", "Owner", "")
	require.NoError(t, err)
	require.True(t, bound.OK)

	result, err := svc.ListForMerchant(services.ListForMerchantParams{LineUserID: "U-OWNER", Limit: 20})
	require.NoError(t, err)
	require.True(t, result.OK)
	assert.Len(t, result.Items, 1)

	// A caller bound to no merchant cannot list without an explicit code.
	denied, err := svc.ListForMerchant(services.ListForMerchantParams{LineUserID: "U-RANDOM", Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, services.ReasonUnauthorized, denied.Reason)
}

func TestListForMerchantUnknownCode(t *testing.T) {
	_, svc := newCouponService(t)

	result, err := svc.ListForMerchant(services.ListForMerchantParams{MerchantCode: "NOPE", Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, services.ReasonNotFound, result.Reason)
}
