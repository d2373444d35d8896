package routes

import (
	"github.com/murali-mp/raastaa-backend/services"
	"github.com/murali-mp/raastaa-backend/utils"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

// EngagementHandler exposes the engagement reward hooks. The content services
// call these after a post, comment or rating lands; the daily caps decide
// whether the action still pays.
type EngagementHandler struct {
	Engagement *services.EngagementService
}

func (h *EngagementHandler) RewardPost(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var input EngagementRefInput
	err := ctx.ReadJSON(&input)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	reward, err := h.Engagement.AwardPostCaps(ctx.Request().Context(), claims.ID, input.RefID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	ctx.JSON(reward)
}

func (h *EngagementHandler) RewardComment(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var input EngagementRefInput
	err := ctx.ReadJSON(&input)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	reward, err := h.Engagement.AwardCommentCaps(ctx.Request().Context(), claims.ID, input.RefID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	ctx.JSON(reward)
}

func (h *EngagementHandler) RewardRating(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var input RatingRewardInput
	err := ctx.ReadJSON(&input)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	reward, err := h.Engagement.AwardRatingCaps(ctx.Request().Context(), claims.ID, input.RefID, input.HasPhotos)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	ctx.JSON(reward)
}

type EngagementRefInput struct {
	RefID uint `json:"refID" validate:"required"`
}

type RatingRewardInput struct {
	RefID     uint `json:"refID" validate:"required"`
	HasPhotos bool `json:"hasPhotos"`
}
