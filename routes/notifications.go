package routes

import (
	"github.com/murali-mp/raastaa-backend/services"
	"github.com/murali-mp/raastaa-backend/utils"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

// NotificationHandler serves the in-app notification inbox.
type NotificationHandler struct {
	Notifications *services.NotificationService
}

func (h *NotificationHandler) List(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	cursor := ctx.URLParam("cursor")
	limit := ctx.URLParamIntDefault("limit", 20)

	page, err := h.Notifications.List(claims.ID, cursor, limit)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	ctx.JSON(page)
}

func (h *NotificationHandler) MarkRead(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	id := ctx.Params().GetUintDefault("id", 0)

	if err := h.Notifications.MarkRead(claims.ID, id); err != nil {
		handleServiceError(ctx, err)
		return
	}
	ctx.JSON(iris.Map{"read": true})
}
