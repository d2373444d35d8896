package services

import (
	"context"
	"testing"
	"time"

	"github.com/murali-mp/raastaa-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsersWithoutReferralCodeCoexist(t *testing.T) {
	db := newTestDB(t)

	// neither account has a code yet; the unique index must not collide
	first := createUser(t, db, "asha")
	second := createUser(t, db, "ravi")
	assert.Nil(t, first.ReferralCode)
	assert.Nil(t, second.ReferralCode)

	// assigned codes are still unique
	code := "CHAAT4U"
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", first.ID).
		Update("referral_code", &code).Error)
	err := db.Model(&models.User{}).Where("id = ?", second.ID).
		Update("referral_code", &code).Error
	assert.Error(t, err)
}

func TestGrantAppendsLedgerRow(t *testing.T) {
	db := newTestDB(t)
	rdb, _ := newTestRedis(t)
	ledger := newLedgerService(t, db, rdb)
	user := createUser(t, db, "asha")

	balance, err := ledger.Grant(user.ID, 50, models.ActionExpeditionComplete, models.RefExpedition, 1, "Completed expedition")
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)

	var entry models.BottleCapTransaction
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&entry).Error)
	assert.Equal(t, int64(50), entry.Amount)
	assert.Equal(t, int64(50), entry.BalanceAfter)
	assert.Equal(t, models.ActionExpeditionComplete, entry.ActionType)

	_, err = ledger.Grant(user.ID, 0, models.ActionExpeditionComplete, models.RefExpedition, 1, "noop")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ledger.Grant(999, 10, models.ActionExpeditionComplete, models.RefExpedition, 1, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBalanceAfterStaysConsistent(t *testing.T) {
	db := newTestDB(t)
	rdb, _ := newTestRedis(t)
	ledger := newLedgerService(t, db, rdb)
	user := createUser(t, db, "asha")

	amounts := []int64{50, 5, 15, 100, 2}
	for _, amount := range amounts {
		_, err := ledger.Grant(user.ID, amount, models.ActionPostCreate, models.RefPost, 1, "reward")
		require.NoError(t, err)
	}
	_, err := ledger.Spend(user.ID, 60, models.RefItem, 7, "Sticker pack")
	require.NoError(t, err)

	var entries []models.BottleCapTransaction
	require.NoError(t, db.Where("user_id = ?", user.ID).Order("id ASC").Find(&entries).Error)

	var running int64
	for _, entry := range entries {
		running += entry.Amount
		assert.Equal(t, running, entry.BalanceAfter, "entry %d", entry.ID)
	}

	var u models.User
	require.NoError(t, db.First(&u, user.ID).Error)
	assert.Equal(t, running, u.BottleCaps)
}

func TestSpendInsufficientFunds(t *testing.T) {
	db := newTestDB(t)
	rdb, _ := newTestRedis(t)
	ledger := newLedgerService(t, db, rdb)
	user := createUser(t, db, "asha")

	_, err := ledger.Grant(user.ID, 30, models.ActionDailyLogin, models.RefStreak, 0, "login")
	require.NoError(t, err)

	_, err = ledger.Spend(user.ID, 31, models.RefItem, 1, "Too pricey")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	balance, err := ledger.Spend(user.ID, 30, models.RefItem, 1, "Exact change")
	require.NoError(t, err)
	assert.Zero(t, balance)

	// a failed spend leaves no ledger row
	var count int64
	require.NoError(t, db.Model(&models.BottleCapTransaction{}).
		Where("user_id = ? AND action_type = ?", user.ID, models.ActionSpent).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAdminDeductClampsToBalance(t *testing.T) {
	db := newTestDB(t)
	rdb, _ := newTestRedis(t)
	ledger := newLedgerService(t, db, rdb)
	admin := createUser(t, db, "admin")
	user := createUser(t, db, "asha")

	_, err := ledger.Grant(user.ID, 40, models.ActionDailyLogin, models.RefStreak, 0, "login")
	require.NoError(t, err)

	result, err := ledger.AdminDeduct(admin.ID, user.ID, 100, "abuse cleanup", "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, int64(-40), result.Amount)
	assert.Zero(t, result.NewBalance)

	var entry models.BottleCapTransaction
	require.NoError(t, db.Where("user_id = ? AND action_type = ?", user.ID, models.ActionAdminDeduct).
		First(&entry).Error)
	assert.Equal(t, int64(-40), entry.Amount)
	assert.Zero(t, entry.BalanceAfter)

	var audit models.AuditLog
	require.NoError(t, db.Where("admin_user_id = ? AND action = ?", admin.ID, "caps_deduct").First(&audit).Error)
	assert.Equal(t, user.ID, audit.ResourceID)
}

func TestAdminGrantWritesAudit(t *testing.T) {
	db := newTestDB(t)
	rdb, _ := newTestRedis(t)
	ledger := newLedgerService(t, db, rdb)
	admin := createUser(t, db, "admin")
	user := createUser(t, db, "asha")

	result, err := ledger.AdminGrant(admin.ID, user.ID, 200, "contest prize", "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, int64(200), result.NewBalance)

	var audit models.AuditLog
	require.NoError(t, db.Where("admin_user_id = ? AND action = ?", admin.ID, "caps_grant").First(&audit).Error)
	assert.Equal(t, "user", audit.ResourceType)
}

func TestTransactionsPagination(t *testing.T) {
	db := newTestDB(t)
	rdb, _ := newTestRedis(t)
	ledger := newLedgerService(t, db, rdb)
	user := createUser(t, db, "asha")

	for i := 0; i < 5; i++ {
		_, err := ledger.Grant(user.ID, 5, models.ActionPostCreate, models.RefPost, uint(i+1), "post")
		require.NoError(t, err)
	}
	_, err := ledger.Grant(user.ID, 2, models.ActionComment, models.RefComment, 1, "comment")
	require.NoError(t, err)

	page, err := ledger.Transactions(user.ID, "", "", 4)
	require.NoError(t, err)
	assert.Len(t, page.Items, 4)
	assert.True(t, page.HasMore)
	require.NotNil(t, page.NextCursor)

	// newest first
	assert.True(t, page.Items[0].ID > page.Items[1].ID)

	rest, err := ledger.Transactions(user.ID, "", *page.NextCursor, 4)
	require.NoError(t, err)
	assert.Len(t, rest.Items, 2)
	assert.False(t, rest.HasMore)

	// filtered by action
	comments, err := ledger.Transactions(user.ID, models.ActionComment, "", 10)
	require.NoError(t, err)
	assert.Len(t, comments.Items, 1)
}

func TestRankAndPercentile(t *testing.T) {
	db := newTestDB(t)
	rdb, _ := newTestRedis(t)
	ledger := newLedgerService(t, db, rdb)

	users := make([]*models.User, 0, 4)
	for i, caps := range []int64{100, 80, 60, 40} {
		user := createUser(t, db, []string{"a", "b", "c", "d"}[i])
		if caps > 0 {
			_, err := ledger.Grant(user.ID, caps, models.ActionAdminGrant, models.RefAdmin, 0, "seed")
			require.NoError(t, err)
		}
		users = append(users, user)
	}

	top, err := ledger.Rank(users[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, top.Rank)
	assert.Equal(t, int64(4), top.TotalUsers)

	third, err := ledger.Rank(users[2].ID)
	require.NoError(t, err)
	assert.Equal(t, 3, third.Rank)
}

func TestLeaderboardPeriods(t *testing.T) {
	db := newTestDB(t)
	rdb, _ := newTestRedis(t)
	ledger := newLedgerService(t, db, rdb)

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	_, err := ledger.Grant(alice.ID, 100, models.ActionExpeditionComplete, models.RefExpedition, 1, "crawl")
	require.NoError(t, err)
	_, err = ledger.Grant(bob.ID, 30, models.ActionExpeditionComplete, models.RefExpedition, 2, "crawl")
	require.NoError(t, err)
	// spends must not count toward earned leaderboards
	_, err = ledger.Spend(alice.ID, 90, models.RefItem, 1, "splurge")
	require.NoError(t, err)

	allTime, err := ledger.Leaderboard("all", 10)
	require.NoError(t, err)
	require.Len(t, allTime, 2)
	// all-time ranks by balance, so bob leads after alice's spend
	assert.Equal(t, bob.ID, allTime[0].User.ID)

	daily, err := ledger.Leaderboard("daily", 10)
	require.NoError(t, err)
	require.Len(t, daily, 2)
	// daily ranks by caps earned, so alice leads
	assert.Equal(t, alice.ID, daily[0].User.ID)
	assert.Equal(t, int64(100), daily[0].BottleCaps)
}

func TestDailyClaimAndStreak(t *testing.T) {
	db := newTestDB(t)
	rdb, mr := newTestRedis(t)
	ledger := newLedgerService(t, db, rdb)
	user := createUser(t, db, "asha")

	day := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return day }

	first, err := ledger.ClaimDaily(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.Equal(t, RewardDailyLogin, first.Reward)
	assert.Equal(t, 1, first.Streak)

	// same day again: no payout
	again, err := ledger.ClaimDaily(context.Background(), user.ID)
	require.NoError(t, err)
	assert.False(t, again.Success)

	// next day: streak 2, reward 5 + floor(5*1*0.1) = 5
	day = day.AddDate(0, 0, 1)
	mr.FastForward(25 * time.Hour)
	second, err := ledger.ClaimDaily(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.Equal(t, 2, second.Streak)
	assert.Equal(t, int64(5), second.Reward)

	// day three: reward 5 + floor(5*2*0.1) = 6
	day = day.AddDate(0, 0, 1)
	mr.FastForward(25 * time.Hour)
	third, err := ledger.ClaimDaily(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, third.Streak)
	assert.Equal(t, int64(6), third.Reward)

	status, err := ledger.DailyStatus(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, status.Claimed)
	assert.Equal(t, 3, status.Streak)
}

func TestDailyStreakResetsAfterGap(t *testing.T) {
	db := newTestDB(t)
	rdb, mr := newTestRedis(t)
	ledger := newLedgerService(t, db, rdb)
	user := createUser(t, db, "asha")

	day := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return day }

	_, err := ledger.ClaimDaily(context.Background(), user.ID)
	require.NoError(t, err)

	// two days of silence; the streak keys expire
	day = day.AddDate(0, 0, 3)
	mr.FastForward(72 * time.Hour)

	result, err := ledger.ClaimDaily(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Streak)
	assert.Equal(t, RewardDailyLogin, result.Reward)
}

func TestProcessReferralPaysBothSides(t *testing.T) {
	db := newTestDB(t)
	rdb, _ := newTestRedis(t)
	ledger := newLedgerService(t, db, rdb)
	referrer := createUser(t, db, "asha")
	newcomer := createUser(t, db, "ravi")

	require.NoError(t, ledger.ProcessReferral(referrer.ID, newcomer.ID))

	referrerBalance, err := ledger.Balance(referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, RewardReferralBonus, referrerBalance)

	newcomerBalance, err := ledger.Balance(newcomer.ID)
	require.NoError(t, err)
	assert.Equal(t, RewardReferralSignup, newcomerBalance)

	var entries []models.BottleCapTransaction
	require.NoError(t, db.Order("id ASC").Find(&entries).Error)
	require.Len(t, entries, 2)
	assert.Equal(t, models.ActionReferralBonus, entries[0].ActionType)
	assert.Equal(t, models.ActionReferralSignup, entries[1].ActionType)
}
