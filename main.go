package main

import (
	"os"

	"github.com/murali-mp/raastaa-backend/routes"
	"github.com/murali-mp/raastaa-backend/services"
	"github.com/murali-mp/raastaa-backend/storage"
	"github.com/murali-mp/raastaa-backend/utils"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

func main() {
	godotenv.Load()
	db := storage.InitializeDB()
	rdb := storage.InitializeRedis()

	notifications := services.NewNotificationService(db)
	ledger := services.NewLedgerService(db, rdb)
	guard := services.NewRewardGuard(rdb)
	engagement := services.NewEngagementService(ledger, guard)
	expeditions := services.NewExpeditionService(db, notifications)
	presence := services.NewVendorPresenceService(db, rdb)

	expeditionHandler := &routes.ExpeditionHandler{Expeditions: expeditions}
	capsHandler := &routes.BottleCapHandler{Ledger: ledger}
	engagementHandler := &routes.EngagementHandler{Engagement: engagement}
	notificationHandler := &routes.NotificationHandler{Notifications: notifications}
	vendorHandler := &routes.VendorHandler{Presence: presence}

	app := iris.New()
	app.Validator = validator.New()

	app.AllowMethods(iris.MethodOptions)
	app.UseRouter(func(ctx iris.Context) {
		ctx.Header("Access-Control-Allow-Origin", ctx.GetHeader("Origin"))
		ctx.Header("Vary", "Origin")
		ctx.Header("Access-Control-Allow-Credentials", "true")
		ctx.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With")
		ctx.Header("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,DELETE,OPTIONS")
		if ctx.Method() == iris.MethodOptions {
			ctx.StatusCode(iris.StatusNoContent)
			return
		}
		ctx.Next()
	})

	app.Use(iris.Compression)

	accessTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("ACCESS_TOKEN_SECRET")))
	accessTokenVerifier.WithDefaultBlocklist()
	accessTokenVerifierMiddleware := accessTokenVerifier.Verify(func() interface{} {
		return new(utils.AccessToken)
	})
	// verifies a token when one is sent but lets anonymous requests through
	optionalAccessTokenMiddleware := func(ctx iris.Context) {
		if accessTokenVerifier.RequestToken(ctx) == "" {
			ctx.Next()
			return
		}
		accessTokenVerifierMiddleware(ctx)
	}

	app.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"status": "ok"})
	})

	expedition := app.Party("/api/expeditions")
	{
		// anonymous viewers can open a public expedition
		expedition.Get("/{id:uint}", optionalAccessTokenMiddleware, expeditionHandler.Get)

		member := expedition.Party("/", accessTokenVerifierMiddleware)
		member.Get("/me", expeditionHandler.Mine)
		member.Get("/invites", expeditionHandler.PendingInvites)
		member.Get("/discover", expeditionHandler.Discover)
		member.Post("/", expeditionHandler.Create)
		member.Patch("/{id:uint}", expeditionHandler.Update)
		member.Post("/{id:uint}/publish", expeditionHandler.Publish)
		member.Post("/{id:uint}/start", expeditionHandler.Start)
		member.Post("/{id:uint}/cancel", expeditionHandler.Cancel)
		member.Post("/{id:uint}/complete", expeditionHandler.Complete)
		member.Post("/{id:uint}/check-in", expeditionHandler.CheckIn)
		member.Post("/{id:uint}/vendors/{vendorID:uint}/skip", expeditionHandler.SkipVendor)
		member.Post("/{id:uint}/invite", expeditionHandler.Invite)
		member.Post("/{id:uint}/respond", expeditionHandler.Respond)
		member.Post("/{id:uint}/join", expeditionHandler.Join)
		member.Delete("/{id:uint}/leave", expeditionHandler.Leave)
	}

	caps := app.Party("/api/caps")
	{
		caps.Get("/leaderboard", capsHandler.Leaderboard)
		caps.Get("/balance", accessTokenVerifierMiddleware, capsHandler.Balance)
		caps.Get("/transactions", accessTokenVerifierMiddleware, capsHandler.Transactions)
		caps.Get("/rank", accessTokenVerifierMiddleware, capsHandler.Rank)
		caps.Post("/daily/claim", accessTokenVerifierMiddleware, capsHandler.ClaimDaily)
		caps.Get("/daily/status", accessTokenVerifierMiddleware, capsHandler.DailyStatus)

		rewards := caps.Party("/rewards", accessTokenVerifierMiddleware)
		rewards.Post("/post", engagementHandler.RewardPost)
		rewards.Post("/comment", engagementHandler.RewardComment)
		rewards.Post("/rating", engagementHandler.RewardRating)

		admin := caps.Party("/admin", accessTokenVerifierMiddleware, utils.AdminOnlyMiddleware)
		admin.Post("/grant", capsHandler.AdminGrant)
		admin.Post("/deduct", capsHandler.AdminDeduct)
	}

	notification := app.Party("/api/notifications", accessTokenVerifierMiddleware)
	{
		notification.Get("/", notificationHandler.List)
		notification.Post("/{id:uint}/read", notificationHandler.MarkRead)
	}

	vendor := app.Party("/api/vendors")
	{
		vendor.Post("/{id:uint}/ping", accessTokenVerifierMiddleware, vendorHandler.Ping)
		vendor.Get("/live", vendorHandler.Live)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}
	app.Listen(":" + port)
}
