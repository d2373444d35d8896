package services

import "time"

// Bottle cap reward amounts.
const (
	RewardDailyLogin          int64 = 5
	RewardExpeditionSoloBase  int64 = 50
	RewardExpeditionTeamBase  int64 = 75
	RewardExpeditionPerVendor int64 = 10
	RewardCheckInBonus        int64 = 5
	RewardRatingWithPhoto     int64 = 15
	RewardRatingText          int64 = 5
	RewardPostCreate          int64 = 5
	RewardComment             int64 = 2
	RewardReferralBonus       int64 = 100
	RewardReferralSignup      int64 = 50
)

// Daily caps: how many occurrences of an action earn caps per calendar day.
// The action itself always succeeds; only the payout stops.
const (
	DailyCapPosts    = 5
	DailyCapComments = 10
	DailyCapLikes    = 20
	DailyCapRatings  = 3
)

const maxStreakDays = 7

const (
	dailyActionTTL = 24 * time.Hour
	streakTTL      = 48 * time.Hour
	vendorLiveTTL  = time.Hour
)

const (
	dailyActionKeyPrefix = "user:daily"
	vendorLiveKey        = "vendors:live"
)
