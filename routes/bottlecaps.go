package routes

import (
	"github.com/murali-mp/raastaa-backend/models"
	"github.com/murali-mp/raastaa-backend/services"
	"github.com/murali-mp/raastaa-backend/utils"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

// BottleCapHandler exposes the bottle cap ledger over HTTP.
type BottleCapHandler struct {
	Ledger *services.LedgerService
}

func (h *BottleCapHandler) Balance(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	balance, err := h.Ledger.Balance(claims.ID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	ctx.JSON(iris.Map{"bottle_caps": balance})
}

func (h *BottleCapHandler) Transactions(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	actionType := models.CapActionType(ctx.URLParam("action_type"))
	cursor := ctx.URLParam("cursor")
	limit := ctx.URLParamIntDefault("limit", 20)

	page, err := h.Ledger.Transactions(claims.ID, actionType, cursor, limit)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	ctx.JSON(page)
}

func (h *BottleCapHandler) Rank(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	rank, err := h.Ledger.Rank(claims.ID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	ctx.JSON(rank)
}

func (h *BottleCapHandler) Leaderboard(ctx iris.Context) {
	period := ctx.URLParamDefault("period", "all")
	limit := ctx.URLParamIntDefault("limit", 20)

	entries, err := h.Ledger.Leaderboard(period, limit)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	ctx.JSON(iris.Map{"period": period, "entries": entries})
}

func (h *BottleCapHandler) ClaimDaily(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	result, err := h.Ledger.ClaimDaily(ctx.Request().Context(), claims.ID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	ctx.JSON(result)
}

func (h *BottleCapHandler) DailyStatus(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	status, err := h.Ledger.DailyStatus(ctx.Request().Context(), claims.ID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	ctx.JSON(status)
}

func (h *BottleCapHandler) AdminGrant(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var input AdminAdjustInput
	err := ctx.ReadJSON(&input)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	result, err := h.Ledger.AdminGrant(claims.ID, input.UserID, input.Amount, input.Reason, ctx.RemoteAddr())
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	ctx.JSON(result)
}

func (h *BottleCapHandler) AdminDeduct(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var input AdminAdjustInput
	err := ctx.ReadJSON(&input)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	result, err := h.Ledger.AdminDeduct(claims.ID, input.UserID, input.Amount, input.Reason, ctx.RemoteAddr())
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	ctx.JSON(result)
}

type AdminAdjustInput struct {
	UserID uint   `json:"userID" validate:"required"`
	Amount int64  `json:"amount" validate:"required,min=1"`
	Reason string `json:"reason" validate:"required,max=200"`
}
