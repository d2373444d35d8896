package routes

import (
	"errors"

	"github.com/murali-mp/raastaa-backend/services"
	"github.com/murali-mp/raastaa-backend/utils"

	"github.com/kataras/iris/v12"
)

// handleServiceError translates service sentinels into HTTP responses. Every
// handler funnels its service errors through here so the mapping lives in one
// place.
func handleServiceError(ctx iris.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		utils.CreateError(iris.StatusNotFound, "Not Found", err.Error(), ctx)
	case errors.Is(err, services.ErrForbidden):
		utils.CreateError(iris.StatusForbidden, "Forbidden", err.Error(), ctx)
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrInvalidState),
		errors.Is(err, services.ErrCapacityExceeded),
		errors.Is(err, services.ErrInsufficientFunds):
		utils.CreateError(iris.StatusBadRequest, "Bad Request", err.Error(), ctx)
	default:
		utils.CreateInternalServerError(ctx)
	}
}
