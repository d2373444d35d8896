package routes

import (
	"github.com/murali-mp/raastaa-backend/services"
	"github.com/murali-mp/raastaa-backend/utils"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

// VendorHandler covers the vendor live-presence endpoints.
type VendorHandler struct {
	Presence *services.VendorPresenceService
}

func (h *VendorHandler) Ping(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	id := ctx.Params().GetUintDefault("id", 0)

	if err := h.Presence.Ping(ctx.Request().Context(), claims.ID, id); err != nil {
		handleServiceError(ctx, err)
		return
	}
	ctx.JSON(iris.Map{"live": true})
}

func (h *VendorHandler) Live(ctx iris.Context) {
	vendors, err := h.Presence.LiveVendors(ctx.Request().Context())
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	ctx.JSON(iris.Map{"items": vendors})
}
