package main

import (
	"context"
	"fmt"
	"log"

	"github.com/pkadima1/sharewizard-server/config"
	"github.com/pkadima1/sharewizard-server/internal/api"
	"github.com/pkadima1/sharewizard-server/internal/api/handler"
	"github.com/pkadima1/sharewizard-server/internal/database"
	"github.com/pkadima1/sharewizard-server/internal/model"
	"github.com/pkadima1/sharewizard-server/internal/pkg/cron"
	"github.com/pkadima1/sharewizard-server/internal/pkg/email"
	"github.com/pkadima1/sharewizard-server/internal/pkg/oauth"
	"github.com/pkadima1/sharewizard-server/internal/pkg/oss"
	"github.com/pkadima1/sharewizard-server/internal/pkg/payment"
	"github.com/pkadima1/sharewizard-server/internal/pkg/pubsub"
	"github.com/pkadima1/sharewizard-server/internal/pkg/queue"
	"github.com/pkadima1/sharewizard-server/internal/pkg/ws"
	"github.com/pkadima1/sharewizard-server/internal/repository"
	"github.com/pkadima1/sharewizard-server/internal/service"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	if err := db.AutoMigrate(
		&model.User{},
		&model.Partner{},
		&model.PartnerCode{},
		&model.CheckoutSession{},
		&model.Generation{},
		&model.GenerationJob{},
	); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	// 初始化 OSS（可选）
	var ossClient *oss.Client
	if cfg.OSS.Endpoint != "" && cfg.OSS.AccessKeyID != "" {
		ossClient, err = oss.NewClient(&cfg.OSS)
		if err != nil {
			log.Printf("Warning: Failed to init OSS client: %v", err)
		} else {
			log.Println("OSS client initialized")
		}
	}

	// 初始化 Queue 和 Pub/Sub
	jobQueue := queue.NewQueue(rdb, cfg.Queue.GenerationQueue)
	publisher := pubsub.NewPublisher(rdb)
	subscriber := pubsub.NewSubscriber(rdb)

	// 初始化 WebSocket Hub
	wsHub := ws.NewHub()
	log.Println("WebSocket hub started")

	// 订阅后台事件并转发给在线用户
	ctx := context.Background()
	go func() {
		err := subscriber.Subscribe(ctx, func(msg *pubsub.ProgressMessage) {
			wsHub.SendToUser(msg.UserID, &ws.Message{Type: msg.Type, Data: msg})
		})
		if err != nil && ctx.Err() == nil {
			log.Printf("Progress subscription stopped: %v", err)
		}
	}()
	go func() {
		err := subscriber.SubscribeCheckout(ctx, func(msg *pubsub.CheckoutMessage) {
			wsHub.SendToUser(msg.UserID, &ws.Message{Type: msg.Type, Data: msg})
		})
		if err != nil && ctx.Err() == nil {
			log.Printf("Checkout subscription stopped: %v", err)
		}
	}()

	// 初始化支付网关
	gateway := payment.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	partnerRepo := repository.NewPartnerRepository(db)
	checkoutRepo := repository.NewCheckoutRepository(db)
	generationRepo := repository.NewGenerationRepository(db)
	jobRepo := repository.NewJobRepository(db)
	referralStore := repository.NewReferralStore(rdb, cfg.Referral.TTLDays)

	// 初始化 Service
	emailSvc := email.NewService(&cfg.Email)
	authService := service.NewAuthService(userRepo, emailSvc, cfg)
	userService := service.NewUserService(userRepo, ossClient)
	entitlementService := service.NewEntitlementService(userRepo, cfg)
	trialService := service.NewTrialService(userRepo, emailSvc, cfg)
	referralService := service.NewReferralService(partnerRepo, referralStore)
	checkoutService := service.NewCheckoutService(checkoutRepo, userRepo, partnerRepo, trialService, gateway, publisher, cfg)
	webhookService := service.NewWebhookService(db, trialService, cfg)
	generationService := service.NewGenerationService(generationRepo, jobRepo, entitlementService, jobQueue, publisher, cfg)

	// 初始化 Handler
	stateStore := oauth.NewStateStore(rdb)
	authHandler := handler.NewAuthHandler(authService, stateStore)
	userHandler := handler.NewUserHandler(userService)
	entitlementHandler := handler.NewEntitlementHandler(entitlementService)
	referralHandler := handler.NewReferralHandler(referralService, cfg.Referral.CookieDomain)
	checkoutHandler := handler.NewCheckoutHandler(checkoutService, webhookService, gateway)
	generationHandler := handler.NewGenerationHandler(generationService, cfg)
	websocketHandler := handler.NewWebSocketHandler(wsHub, cfg.JWT.Secret)

	// 启动定时任务
	cronService := cron.NewService(trialService, checkoutRepo, 0)
	cronService.Start()
	defer cronService.Stop()

	// 初始化 Router
	router := api.NewRouter(
		authHandler,
		userHandler,
		entitlementHandler,
		referralHandler,
		checkoutHandler,
		generationHandler,
		websocketHandler,
		referralService,
		entitlementService,
		cfg,
	)
	engine := router.Setup()

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	if err := engine.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
