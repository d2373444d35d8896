package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/murali-mp/raastaa-backend/models"
	"github.com/murali-mp/raastaa-backend/utils"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// LedgerService is the source of truth for bottle cap balances. Every balance
// mutation goes through it and every mutation appends exactly one transaction
// row carrying the post-mutation balance, inside the same database
// transaction.
type LedgerService struct {
	db    *gorm.DB
	redis *redis.Client
	now   func() time.Time
}

func NewLedgerService(db *gorm.DB, rdb *redis.Client) *LedgerService {
	return &LedgerService{db: db, redis: rdb, now: time.Now}
}

// grantTx increments a user's balance and appends the ledger row inside the
// caller's transaction. The expedition reward loops reuse it so rewards and
// state transitions commit or roll back together.
func grantTx(tx *gorm.DB, userID uint, amount int64, action models.CapActionType, refType models.CapReferenceType, refID uint, description string) (int64, error) {
	res := tx.Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("bottle_caps", gorm.Expr("bottle_caps + ?", amount))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}

	var user models.User
	if err := tx.Select("id", "bottle_caps").First(&user, userID).Error; err != nil {
		return 0, err
	}

	entry := models.BottleCapTransaction{
		UserID:        userID,
		Amount:        amount,
		ActionType:    action,
		ReferenceType: refType,
		ReferenceID:   refID,
		Description:   description,
		BalanceAfter:  user.BottleCaps,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return 0, err
	}

	return user.BottleCaps, nil
}

// Grant atomically credits a user and records the transaction.
func (s *LedgerService) Grant(userID uint, amount int64, action models.CapActionType, refType models.CapReferenceType, refID uint, description string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: grant amount must be positive", ErrValidation)
	}
	var balance int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		balance, err = grantTx(tx, userID, amount, action, refType, refID, description)
		return err
	})
	return balance, err
}

// Spend debits a user, failing with ErrInsufficientFunds when the balance
// cannot cover the amount. The guard and the decrement are one statement so
// concurrent spends cannot drive the balance negative.
func (s *LedgerService) Spend(userID uint, amount int64, itemType models.CapReferenceType, itemID uint, description string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: spend amount must be positive", ErrValidation)
	}
	if description == "" {
		description = fmt.Sprintf("Spent on %s", itemType)
	}

	var balance int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ? AND bottle_caps >= ?", userID, amount).
			UpdateColumn("bottle_caps", gorm.Expr("bottle_caps - ?", amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return fmt.Errorf("%w: user %d", ErrNotFound, userID)
			}
			return ErrInsufficientFunds
		}

		var user models.User
		if err := tx.Select("id", "bottle_caps").First(&user, userID).Error; err != nil {
			return err
		}
		balance = user.BottleCaps

		entry := models.BottleCapTransaction{
			UserID:        userID,
			Amount:        -amount,
			ActionType:    models.ActionSpent,
			ReferenceType: itemType,
			ReferenceID:   itemID,
			Description:   description,
			BalanceAfter:  balance,
		}
		return tx.Create(&entry).Error
	})
	return balance, err
}

type AdminAdjustResult struct {
	UserID     uint  `json:"user_id"`
	Amount     int64 `json:"amount"`
	NewBalance int64 `json:"new_balance"`
}

// AdminGrant credits a user on behalf of an operator and records an audit row.
func (s *LedgerService) AdminGrant(adminID, userID uint, amount int64, reason, ip string) (*AdminAdjustResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	var result AdminAdjustResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		balance, err := grantTx(tx, userID, amount, models.ActionAdminGrant, models.RefAdmin, adminID, reason)
		if err != nil {
			return err
		}
		result = AdminAdjustResult{UserID: userID, Amount: amount, NewBalance: balance}
		return s.audit(tx, adminID, "caps_grant", userID, ip, balance-amount, balance)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// AdminDeduct debits a user on behalf of an operator, clamped to the user's
// current balance: the logged amount is what was actually taken, and the
// balance never goes negative.
func (s *LedgerService) AdminDeduct(adminID, userID uint, amount int64, reason, ip string) (*AdminAdjustResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	var result AdminAdjustResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Select("id", "bottle_caps").First(&user, userID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: user %d", ErrNotFound, userID)
			}
			return err
		}

		actual := amount
		if user.BottleCaps < actual {
			actual = user.BottleCaps
		}

		if err := tx.Model(&models.User{}).
			Where("id = ?", userID).
			UpdateColumn("bottle_caps", gorm.Expr("bottle_caps - ?", actual)).Error; err != nil {
			return err
		}

		newBalance := user.BottleCaps - actual
		entry := models.BottleCapTransaction{
			UserID:        userID,
			Amount:        -actual,
			ActionType:    models.ActionAdminDeduct,
			ReferenceType: models.RefAdmin,
			ReferenceID:   adminID,
			Description:   reason,
			BalanceAfter:  newBalance,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		result = AdminAdjustResult{UserID: userID, Amount: -actual, NewBalance: newBalance}
		return s.audit(tx, adminID, "caps_deduct", userID, ip, user.BottleCaps, newBalance)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *LedgerService) audit(tx *gorm.DB, adminID uint, action string, userID uint, ip string, before, after int64) error {
	beforeJSON, _ := json.Marshal(map[string]int64{"bottle_caps": before})
	afterJSON, _ := json.Marshal(map[string]int64{"bottle_caps": after})
	entry := models.AuditLog{
		AdminUserID:  adminID,
		Action:       action,
		ResourceType: "user",
		ResourceID:   userID,
		BeforeJSON:   string(beforeJSON),
		AfterJSON:    string(afterJSON),
		IPAddress:    ip,
	}
	return tx.Create(&entry).Error
}

// Balance returns the user's current bottle cap balance.
func (s *LedgerService) Balance(userID uint) (int64, error) {
	var user models.User
	if err := s.db.Select("id", "bottle_caps").First(&user, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, fmt.Errorf("%w: user %d", ErrNotFound, userID)
		}
		return 0, err
	}
	return user.BottleCaps, nil
}

type TransactionPage struct {
	Items      []models.BottleCapTransaction `json:"items"`
	NextCursor *string                       `json:"nextCursor"`
	HasMore    bool                          `json:"hasMore"`
}

// Transactions returns the user's ledger entries, newest first, optionally
// filtered by action type.
func (s *LedgerService) Transactions(userID uint, actionType models.CapActionType, cursor string, limit int) (*TransactionPage, error) {
	if limit < 1 || limit > 50 {
		limit = 20
	}

	query := s.db.Where("user_id = ?", userID).Order("id DESC").Limit(limit + 1)
	if actionType != "" {
		query = query.Where("action_type = ?", actionType)
	}
	if id, ok := utils.DecodeCursor(cursor); ok && cursor != "" {
		query = query.Where("id < ?", id)
	}

	var items []models.BottleCapTransaction
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}
	var next *string
	if hasMore && len(items) > 0 {
		c := utils.EncodeCursor(items[len(items)-1].ID)
		next = &c
	}

	return &TransactionPage{Items: items, NextCursor: next, HasMore: hasMore}, nil
}

type RankResult struct {
	Rank       int   `json:"rank"`
	BottleCaps int64 `json:"bottle_caps"`
	TotalUsers int64 `json:"total_users"`
	Percentile int   `json:"percentile"`
}

// Rank places the user on the all-time leaderboard.
func (s *LedgerService) Rank(userID uint) (*RankResult, error) {
	var user models.User
	if err := s.db.Select("id", "bottle_caps").First(&user, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
		}
		return nil, err
	}

	var ahead int64
	if err := s.db.Model(&models.User{}).
		Where("account_status = ? AND bottle_caps > ?", "ACTIVE", user.BottleCaps).
		Count(&ahead).Error; err != nil {
		return nil, err
	}

	var total int64
	if err := s.db.Model(&models.User{}).
		Where("account_status = ?", "ACTIVE").
		Count(&total).Error; err != nil {
		return nil, err
	}

	rank := int(ahead) + 1
	percentile := 0
	if total > 0 {
		percentile = int(float64(total-int64(rank)) / float64(total) * 100)
	}

	return &RankResult{
		Rank:       rank,
		BottleCaps: user.BottleCaps,
		TotalUsers: total,
		Percentile: percentile,
	}, nil
}

type LeaderboardEntry struct {
	Rank       int                `json:"rank"`
	User       models.UserSummary `json:"user"`
	BottleCaps int64              `json:"bottle_caps"`
}

// Leaderboard returns the top earners for a period. All-time ranks by stored
// balance; daily/weekly/monthly aggregate positive ledger entries since the
// period start.
func (s *LedgerService) Leaderboard(period string, limit int) ([]LeaderboardEntry, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}

	now := s.now()
	var start time.Time
	switch period {
	case "daily":
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	case "weekly":
		start = now.AddDate(0, 0, -7)
	case "monthly":
		start = now.AddDate(0, -1, 0)
	default:
		// all-time
	}

	if start.IsZero() {
		var users []models.User
		if err := s.db.Where("account_status = ?", "ACTIVE").
			Order("bottle_caps DESC").
			Limit(limit).
			Find(&users).Error; err != nil {
			return nil, err
		}
		entries := make([]LeaderboardEntry, 0, len(users))
		for i := range users {
			entries = append(entries, LeaderboardEntry{
				Rank:       i + 1,
				User:       users[i].Summary(),
				BottleCaps: users[i].BottleCaps,
			})
		}
		return entries, nil
	}

	type earnedRow struct {
		UserID uint
		Earned int64
	}
	var rows []earnedRow
	if err := s.db.Model(&models.BottleCapTransaction{}).
		Select("user_id, SUM(amount) AS earned").
		Where("created_at >= ? AND amount > 0", start).
		Group("user_id").
		Order("earned DESC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.UserID)
	}
	var users []models.User
	if len(ids) > 0 {
		if err := s.db.Where("id IN ?", ids).Find(&users).Error; err != nil {
			return nil, err
		}
	}
	byID := make(map[uint]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	entries := make([]LeaderboardEntry, 0, len(rows))
	for i, r := range rows {
		u := byID[r.UserID]
		entries = append(entries, LeaderboardEntry{
			Rank:       i + 1,
			User:       u.Summary(),
			BottleCaps: r.Earned,
		})
	}
	return entries, nil
}

type DailyClaimResult struct {
	Success     bool      `json:"success"`
	Message     string    `json:"message,omitempty"`
	Reward      int64     `json:"reward,omitempty"`
	Streak      int       `json:"streak,omitempty"`
	NewBalance  int64     `json:"new_balance,omitempty"`
	NextClaimAt time.Time `json:"next_claim_at"`
}

// ClaimDaily hands out the once-per-day login bonus. A 7-day streak scales
// the reward by 10% per consecutive day; missing a day resets the streak.
func (s *LedgerService) ClaimDaily(ctx context.Context, userID uint) (*DailyClaimResult, error) {
	now := s.now()
	today := now.Format("2006-01-02")

	claimKey := fmt.Sprintf("%s:%d:daily_claim:%s", dailyActionKeyPrefix, userID, today)
	streakKey := fmt.Sprintf("%s:%d:streak", dailyActionKeyPrefix, userID)
	lastClaimKey := fmt.Sprintf("%s:%d:last_claim", dailyActionKeyPrefix, userID)

	if _, err := s.redis.Get(ctx, claimKey).Result(); err == nil {
		return &DailyClaimResult{
			Success:     false,
			Message:     "Daily reward already claimed today",
			NextClaimAt: s.nextMidnight(),
		}, nil
	} else if err != redis.Nil {
		return nil, err
	}

	lastClaim, _ := s.redis.Get(ctx, lastClaimKey).Result()
	currentStreak, _ := s.redis.Get(ctx, streakKey).Int()

	yesterday := now.AddDate(0, 0, -1).Format("2006-01-02")
	newStreak := 1
	if lastClaim == yesterday && currentStreak > 0 {
		newStreak = currentStreak + 1
		if newStreak > maxStreakDays {
			newStreak = maxStreakDays
		}
	}

	// 10% more per streak day, floored
	streakBonus := RewardDailyLogin * int64(newStreak-1) / 10
	totalReward := RewardDailyLogin + streakBonus

	balance, err := s.Grant(userID, totalReward, models.ActionDailyLogin, models.RefStreak, 0,
		fmt.Sprintf("Daily login reward (Day %d streak)", newStreak))
	if err != nil {
		return nil, err
	}

	s.redis.Set(ctx, streakKey, newStreak, streakTTL)
	s.redis.Set(ctx, lastClaimKey, today, streakTTL)
	s.redis.Set(ctx, claimKey, "1", dailyActionTTL)

	return &DailyClaimResult{
		Success:     true,
		Reward:      totalReward,
		Streak:      newStreak,
		NewBalance:  balance,
		NextClaimAt: s.nextMidnight(),
	}, nil
}

type DailyStatus struct {
	Claimed     bool       `json:"claimed"`
	Streak      int        `json:"streak"`
	LastClaim   string     `json:"last_claim,omitempty"`
	NextClaimAt *time.Time `json:"next_claim_at"`
}

// DailyStatus reports whether today's bonus was claimed and the streak state.
func (s *LedgerService) DailyStatus(ctx context.Context, userID uint) (*DailyStatus, error) {
	today := s.now().Format("2006-01-02")
	claimKey := fmt.Sprintf("%s:%d:daily_claim:%s", dailyActionKeyPrefix, userID, today)
	streakKey := fmt.Sprintf("%s:%d:streak", dailyActionKeyPrefix, userID)
	lastClaimKey := fmt.Sprintf("%s:%d:last_claim", dailyActionKeyPrefix, userID)

	_, err := s.redis.Get(ctx, claimKey).Result()
	claimed := err == nil
	if err != nil && err != redis.Nil {
		return nil, err
	}

	streak, _ := s.redis.Get(ctx, streakKey).Int()
	lastClaim, _ := s.redis.Get(ctx, lastClaimKey).Result()

	status := &DailyStatus{Claimed: claimed, Streak: streak, LastClaim: lastClaim}
	if claimed {
		next := s.nextMidnight()
		status.NextClaimAt = &next
	}
	return status, nil
}

// ProcessReferral pays both sides of a successful referral in one
// transaction: the referrer gets the referral bonus, the new user the signup
// bonus, each with its own ledger row.
func (s *LedgerService) ProcessReferral(referrerID, newUserID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := grantTx(tx, referrerID, RewardReferralBonus, models.ActionReferralBonus, models.RefUser, newUserID,
			"Referral bonus for inviting a friend"); err != nil {
			return err
		}
		_, err := grantTx(tx, newUserID, RewardReferralSignup, models.ActionReferralSignup, models.RefUser, referrerID,
			"Signup bonus from referral")
		return err
	})
}

func (s *LedgerService) nextMidnight() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
}
