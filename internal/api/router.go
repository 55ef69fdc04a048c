package api

import (
	"github.com/gin-gonic/gin"

	"github.com/pkadima1/sharewizard-server/config"
	"github.com/pkadima1/sharewizard-server/internal/api/handler"
	"github.com/pkadima1/sharewizard-server/internal/api/middleware"
	"github.com/pkadima1/sharewizard-server/internal/service"
)

type Router struct {
	authHandler        *handler.AuthHandler
	userHandler        *handler.UserHandler
	entitlementHandler *handler.EntitlementHandler
	referralHandler    *handler.ReferralHandler
	checkoutHandler    *handler.CheckoutHandler
	generationHandler  *handler.GenerationHandler
	websocketHandler   *handler.WebSocketHandler
	referralService    *service.ReferralService
	entitlementService *service.EntitlementService
	cfg                *config.Config
}

func NewRouter(
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	entitlementHandler *handler.EntitlementHandler,
	referralHandler *handler.ReferralHandler,
	checkoutHandler *handler.CheckoutHandler,
	generationHandler *handler.GenerationHandler,
	websocketHandler *handler.WebSocketHandler,
	referralService *service.ReferralService,
	entitlementService *service.EntitlementService,
	cfg *config.Config,
) *Router {
	return &Router{
		authHandler:        authHandler,
		userHandler:        userHandler,
		entitlementHandler: entitlementHandler,
		referralHandler:    referralHandler,
		checkoutHandler:    checkoutHandler,
		generationHandler:  generationHandler,
		websocketHandler:   websocketHandler,
		referralService:    referralService,
		entitlementService: entitlementService,
		cfg:                cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	// 归因捕获在所有业务路由之前，webhook 除外
	referral := middleware.ReferralCapture(r.referralService, r.cfg.Referral.CookieDomain)

	api := engine.Group("/api/v1")
	{
		// WebSocket
		api.GET("/ws", r.websocketHandler.Handle)

		// 支付网关回调：不走归因，不走认证，签名校验在 handler 内完成
		api.POST("/webhook/stripe", r.checkoutHandler.Webhook)

		// 公开接口 - 认证
		auth := api.Group("/auth")
		auth.Use(referral)
		{
			auth.POST("/register", r.authHandler.Register)
			auth.POST("/login", r.authHandler.Login)
			auth.POST("/verify-email", r.authHandler.VerifyEmail)
			auth.GET("/github", r.authHandler.GithubAuth)
			auth.GET("/github/callback", r.authHandler.GithubCallback)
			// 登出只清理归因层，令牌由客户端丢弃
			auth.POST("/logout", r.referralHandler.Logout)
		}

		// 公开接口 - 目录
		public := api.Group("")
		public.Use(referral)
		{
			public.GET("/models", r.generationHandler.ListModels)
			public.GET("/plans", r.checkoutHandler.ListPlans)
			public.GET("/referral", r.referralHandler.Current)
			public.GET("/referral/validate", r.referralHandler.Validate)
		}

		// 需要认证的接口
		authenticated := api.Group("")
		authenticated.Use(referral)
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			// 用户
			user := authenticated.Group("/user")
			{
				user.GET("/profile", r.userHandler.GetProfile)
				user.PUT("/profile", r.userHandler.UpdateProfile)
				user.POST("/avatar", r.userHandler.UploadAvatar)
				user.GET("/availability", r.entitlementHandler.GetAvailability)
				user.GET("/plan-status", r.entitlementHandler.GetPlanStatus)
			}

			// 结账
			checkout := authenticated.Group("/checkout")
			{
				checkout.POST("", r.checkoutHandler.Create)
				checkout.POST("/cancel", r.checkoutHandler.Cancel)
				checkout.GET("/:id", r.checkoutHandler.Get)
			}

			// 内容生成
			generations := authenticated.Group("/generations")
			{
				// 计费操作前置额度闸门
				generations.POST("", middleware.EntitlementCheck(r.entitlementService), r.generationHandler.Create)
				generations.GET("", r.generationHandler.List)
				generations.GET("/:id", r.generationHandler.Get)
				generations.DELETE("/:id", r.generationHandler.Delete)
			}
		}
	}

	return engine
}
