package services

import (
	"context"
	"fmt"
	"log"

	"github.com/murali-mp/raastaa-backend/models"
)

// EngagementService pays out the small rewards attached to everyday content
// actions. Each payout checks the daily counter first; once the cap is hit
// the action still succeeds, it just stops earning. A Redis failure is
// logged and skips the reward rather than failing the action.
type EngagementService struct {
	ledger *LedgerService
	guard  *RewardGuard
}

func NewEngagementService(ledger *LedgerService, guard *RewardGuard) *EngagementService {
	return &EngagementService{ledger: ledger, guard: guard}
}

type EngagementReward struct {
	Rewarded   bool  `json:"rewarded"`
	Amount     int64 `json:"amount"`
	NewBalance int64 `json:"new_balance,omitempty"`
}

// AwardPostCaps rewards a newly created post, up to the daily post cap.
func (s *EngagementService) AwardPostCaps(ctx context.Context, userID, postID uint) (*EngagementReward, error) {
	count, err := s.guard.BumpDailyAction(ctx, userID, "posts")
	if err != nil {
		log.Printf("reward guard unavailable, skipping post reward for user %d: %v", userID, err)
		return &EngagementReward{Rewarded: false}, nil
	}
	if count > DailyCapPosts {
		return &EngagementReward{Rewarded: false}, nil
	}

	balance, err := s.ledger.Grant(userID, RewardPostCreate, models.ActionPostCreate, models.RefPost, postID,
		fmt.Sprintf("Daily post reward (%d/%d)", count, DailyCapPosts))
	if err != nil {
		return nil, err
	}
	return &EngagementReward{Rewarded: true, Amount: RewardPostCreate, NewBalance: balance}, nil
}

// AwardCommentCaps rewards a new comment, up to the daily comment cap.
func (s *EngagementService) AwardCommentCaps(ctx context.Context, userID, commentID uint) (*EngagementReward, error) {
	count, err := s.guard.BumpDailyAction(ctx, userID, "comments")
	if err != nil {
		log.Printf("reward guard unavailable, skipping comment reward for user %d: %v", userID, err)
		return &EngagementReward{Rewarded: false}, nil
	}
	if count > DailyCapComments {
		return &EngagementReward{Rewarded: false}, nil
	}

	balance, err := s.ledger.Grant(userID, RewardComment, models.ActionComment, models.RefComment, commentID,
		fmt.Sprintf("Daily comment reward (%d/%d)", count, DailyCapComments))
	if err != nil {
		return nil, err
	}
	return &EngagementReward{Rewarded: true, Amount: RewardComment, NewBalance: balance}, nil
}

// AwardRatingCaps rewards a vendor rating, up to the daily rating cap. A
// rating with photos earns the larger amount.
func (s *EngagementService) AwardRatingCaps(ctx context.Context, userID, ratingID uint, hasPhotos bool) (*EngagementReward, error) {
	count, err := s.guard.BumpDailyAction(ctx, userID, "ratings")
	if err != nil {
		log.Printf("reward guard unavailable, skipping rating reward for user %d: %v", userID, err)
		return &EngagementReward{Rewarded: false}, nil
	}
	if count > DailyCapRatings {
		return &EngagementReward{Rewarded: false}, nil
	}

	amount := RewardRatingText
	action := models.ActionRatingText
	if hasPhotos {
		amount = RewardRatingWithPhoto
		action = models.ActionRatingWithPhoto
	}

	balance, err := s.ledger.Grant(userID, amount, action, models.RefRating, ratingID,
		fmt.Sprintf("Daily rating reward (%d/%d)", count, DailyCapRatings))
	if err != nil {
		return nil, err
	}
	return &EngagementReward{Rewarded: true, Amount: amount, NewBalance: balance}, nil
}
