package models

import (
	"time"
)

// CapActionType discriminates ledger entries. Closed set; every switch over it
// should handle all members.
type CapActionType string

const (
	ActionDailyLogin         CapActionType = "DAILY_LOGIN"
	ActionVendorFollow       CapActionType = "VENDOR_FOLLOW"
	ActionExpeditionComplete CapActionType = "EXPEDITION_COMPLETE"
	ActionExpeditionCheckIn  CapActionType = "EXPEDITION_CHECK_IN"
	ActionRatingWithPhoto    CapActionType = "RATING_WITH_PHOTO"
	ActionRatingText         CapActionType = "RATING_TEXT"
	ActionPostCreate         CapActionType = "POST_CREATE"
	ActionComment            CapActionType = "COMMENT"
	ActionLikeReceived       CapActionType = "LIKE_RECEIVED"
	ActionCommentReceived    CapActionType = "COMMENT_RECEIVED"
	ActionReferralBonus      CapActionType = "REFERRAL_BONUS"
	ActionReferralSignup     CapActionType = "REFERRAL_SIGNUP"
	ActionStreakBonus        CapActionType = "STREAK_BONUS"
	ActionSpent              CapActionType = "SPENT"
	ActionAdminGrant         CapActionType = "ADMIN_GRANT"
	ActionAdminDeduct        CapActionType = "ADMIN_DEDUCT"
)

// CapReferenceType says what a ledger entry is about.
type CapReferenceType string

const (
	RefExpedition CapReferenceType = "EXPEDITION"
	RefPost       CapReferenceType = "POST"
	RefComment    CapReferenceType = "COMMENT"
	RefRating     CapReferenceType = "RATING"
	RefUser       CapReferenceType = "USER"
	RefStreak     CapReferenceType = "STREAK"
	RefAdmin      CapReferenceType = "ADMIN"
	RefItem       CapReferenceType = "ITEM"
)

// BottleCapTransaction is an append-only ledger entry. Rows are never updated
// or deleted; BalanceAfter on a user's latest row must equal the user's
// current BottleCaps balance.
type BottleCapTransaction struct {
	ID     uint `json:"id" gorm:"primaryKey"`
	UserID uint `json:"userID" gorm:"not null;index"`
	User   User `json:"-" gorm:"foreignKey:UserID"`

	Amount     int64         `json:"amount" gorm:"not null"`
	ActionType CapActionType `json:"actionType" gorm:"size:32;index;not null"`

	ReferenceType CapReferenceType `json:"referenceType" gorm:"size:32"`
	ReferenceID   uint             `json:"referenceID"`

	Description  string `json:"description" gorm:"size:255"`
	BalanceAfter int64  `json:"balanceAfter" gorm:"not null"`

	CreatedAt time.Time `json:"createdAt" gorm:"index"`
}
