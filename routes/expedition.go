package routes

import (
	"time"

	"github.com/murali-mp/raastaa-backend/models"
	"github.com/murali-mp/raastaa-backend/services"
	"github.com/murali-mp/raastaa-backend/utils"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

// ExpeditionHandler exposes the expedition lifecycle over HTTP.
type ExpeditionHandler struct {
	Expeditions *services.ExpeditionService
}

func (h *ExpeditionHandler) Create(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var input CreateExpeditionInput
	err := ctx.ReadJSON(&input)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	plannedDate, err := time.Parse("2006-01-02", input.PlannedDate)
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "plannedDate must be YYYY-MM-DD", ctx)
		return
	}

	expedition, err := h.Expeditions.Create(claims.ID, services.CreateExpeditionInput{
		Type:            models.ExpeditionType(input.Type),
		Title:           input.Title,
		Description:     input.Description,
		PlannedDate:     plannedDate,
		StartTime:       input.StartTime,
		CoverImage:      input.CoverImage,
		MaxParticipants: input.MaxParticipants,
		IsPublic:        input.IsPublic,
		VendorIDs:       input.VendorIDs,
	})
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(expedition)
}

// Get serves the expedition detail. Works without a token; anonymous
// viewers only get through the privacy check on public expeditions.
func (h *ExpeditionHandler) Get(ctx iris.Context) {
	var viewerID uint
	if claims, ok := jwt.Get(ctx).(*utils.AccessToken); ok {
		viewerID = claims.ID
	}
	id := ctx.Params().GetUintDefault("id", 0)

	detail, err := h.Expeditions.GetByID(viewerID, id)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	ctx.JSON(detail)
}

func (h *ExpeditionHandler) Update(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	id := ctx.Params().GetUintDefault("id", 0)

	var input UpdateExpeditionInput
	err := ctx.ReadJSON(&input)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	update := services.UpdateExpeditionInput{
		Title:           input.Title,
		Description:     input.Description,
		StartTime:       input.StartTime,
		CoverImage:      input.CoverImage,
		MaxParticipants: input.MaxParticipants,
		IsPublic:        input.IsPublic,
	}
	if input.PlannedDate != nil {
		plannedDate, err := time.Parse("2006-01-02", *input.PlannedDate)
		if err != nil {
			utils.CreateError(iris.StatusBadRequest, "Bad Request", "plannedDate must be YYYY-MM-DD", ctx)
			return
		}
		update.PlannedDate = &plannedDate
	}

	expedition, err := h.Expeditions.Update(claims.ID, id, update)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	ctx.JSON(expedition)
}

func (h *ExpeditionHandler) Publish(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	id := ctx.Params().GetUintDefault("id", 0)

	expedition, err := h.Expeditions.Publish(claims.ID, id)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	ctx.JSON(expedition)
}

func (h *ExpeditionHandler) Start(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	id := ctx.Params().GetUintDefault("id", 0)

	expedition, err := h.Expeditions.Start(claims.ID, id)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	ctx.JSON(expedition)
}

func (h *ExpeditionHandler) Cancel(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	id := ctx.Params().GetUintDefault("id", 0)

	expedition, err := h.Expeditions.Cancel(claims.ID, id)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	ctx.JSON(expedition)
}

func (h *ExpeditionHandler) CheckIn(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	id := ctx.Params().GetUintDefault("id", 0)

	var input CheckInInput
	err := ctx.ReadJSON(&input)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	result, err := h.Expeditions.CheckIn(claims.ID, id, input.VendorID, input.Notes)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	ctx.JSON(result)
}

func (h *ExpeditionHandler) SkipVendor(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	id := ctx.Params().GetUintDefault("id", 0)
	vendorID := ctx.Params().GetUintDefault("vendorID", 0)

	if err := h.Expeditions.Skip(claims.ID, id, vendorID); err != nil {
		handleServiceError(ctx, err)
		return
	}
	ctx.JSON(iris.Map{"skipped": true})
}

func (h *ExpeditionHandler) Complete(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	id := ctx.Params().GetUintDefault("id", 0)

	var input CompleteExpeditionInput
	err := ctx.ReadJSON(&input)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	result, err := h.Expeditions.Complete(claims.ID, id, services.CompleteExpeditionInput{
		TotalSpent:           input.TotalSpent,
		DistanceWalkedMeters: input.DistanceWalkedMeters,
	})
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	ctx.JSON(result)
}

func (h *ExpeditionHandler) Invite(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	id := ctx.Params().GetUintDefault("id", 0)

	var input InviteInput
	err := ctx.ReadJSON(&input)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	result, err := h.Expeditions.Invite(claims.ID, id, input.UserIDs)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	ctx.JSON(result)
}

func (h *ExpeditionHandler) Respond(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	id := ctx.Params().GetUintDefault("id", 0)

	var input RespondInput
	err := ctx.ReadJSON(&input)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	result, err := h.Expeditions.Respond(claims.ID, id, input.Action == "accept")
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	ctx.JSON(result)
}

func (h *ExpeditionHandler) Join(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	id := ctx.Params().GetUintDefault("id", 0)

	result, err := h.Expeditions.Join(claims.ID, id)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	ctx.JSON(result)
}

func (h *ExpeditionHandler) Leave(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	id := ctx.Params().GetUintDefault("id", 0)

	if err := h.Expeditions.Leave(claims.ID, id); err != nil {
		handleServiceError(ctx, err)
		return
	}
	ctx.JSON(iris.Map{"left": true})
}

func (h *ExpeditionHandler) Mine(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	filter := services.ListFilter{
		Status: models.ExpeditionStatus(ctx.URLParam("status")),
		Type:   models.ExpeditionType(ctx.URLParam("type")),
	}
	cursor := ctx.URLParam("cursor")
	limit := ctx.URLParamIntDefault("limit", 20)

	page, err := h.Expeditions.GetUserExpeditions(claims.ID, filter, cursor, limit)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	ctx.JSON(page)
}

func (h *ExpeditionHandler) PendingInvites(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	invites, err := h.Expeditions.GetPendingInvites(claims.ID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	ctx.JSON(iris.Map{"items": invites})
}

func (h *ExpeditionHandler) Discover(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	cursor := ctx.URLParam("cursor")
	limit := ctx.URLParamIntDefault("limit", 20)

	page, err := h.Expeditions.Discover(claims.ID, cursor, limit)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	ctx.JSON(page)
}

type CreateExpeditionInput struct {
	Type            string `json:"type" validate:"required,oneof=SOLO TEAM"`
	Title           string `json:"title" validate:"required,max=100"`
	Description     string `json:"description" validate:"max=500"`
	PlannedDate     string `json:"plannedDate" validate:"required"`
	StartTime       string `json:"startTime" validate:"omitempty,len=5"`
	CoverImage      string `json:"coverImage"`
	MaxParticipants int    `json:"maxParticipants" validate:"omitempty,min=1,max=50"`
	IsPublic        *bool  `json:"isPublic"`
	VendorIDs       []uint `json:"vendorIDs" validate:"required,min=1,max=20"`
}

type UpdateExpeditionInput struct {
	Title           *string `json:"title" validate:"omitempty,max=100"`
	Description     *string `json:"description" validate:"omitempty,max=500"`
	PlannedDate     *string `json:"plannedDate"`
	StartTime       *string `json:"startTime" validate:"omitempty,len=5"`
	CoverImage      *string `json:"coverImage"`
	MaxParticipants *int    `json:"maxParticipants" validate:"omitempty,min=1,max=50"`
	IsPublic        *bool   `json:"isPublic"`
}

type CheckInInput struct {
	VendorID uint   `json:"vendorID" validate:"required"`
	Notes    string `json:"notes" validate:"omitempty,max=500"`
}

type CompleteExpeditionInput struct {
	TotalSpent           float64 `json:"totalSpent" validate:"omitempty,min=0"`
	DistanceWalkedMeters int     `json:"distanceWalkedMeters" validate:"omitempty,min=0"`
}

type InviteInput struct {
	UserIDs []uint `json:"userIDs" validate:"required,min=1,max=20"`
}

type RespondInput struct {
	Action string `json:"action" validate:"required,oneof=accept decline"`
}
