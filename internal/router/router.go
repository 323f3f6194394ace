package router

import (
	"time"

	"buildmart/config"
	"buildmart/internal/handler"
	"buildmart/internal/middleware"
	"buildmart/internal/repository"
	"buildmart/internal/service"
	"buildmart/internal/ws"
	"buildmart/pkg/cloudinary"
	"buildmart/pkg/payment"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func Setup(cfg *config.Config, db *gorm.DB, cloud cloudinary.Client, log *zap.Logger) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RateLimit(middleware.NewInMemoryRateLimiter(100, 60*time.Second)))

	// Repositories
	userRepo := repository.NewUserRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	phaseRepo := repository.NewPhaseRepository(db)
	withdrawalRepo := repository.NewWithdrawalRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	restrictionRepo := repository.NewRestrictionRepository(db)
	anomalyRepo := repository.NewAnomalyRepository(db)

	hub := ws.NewHub()

	// Payment provider
	var provider payment.Provider
	if cfg.Payment.BaseURL != "" {
		provider = payment.NewGatewayProvider(cfg.Payment.BaseURL, cfg.Payment.APIKey, cfg.Payment.WebhookBaseURL)
	} else {
		log.Warn("payment gateway not configured, using stub provider")
		provider = &payment.StubProvider{}
	}

	// Services
	authSvc := service.NewAuthService(cfg, userRepo)
	fcmSvc := service.NewFCMService(cfg.Firebase.ServiceAccountPath, log)
	if fcmSvc != nil {
		log.Info("push notifications enabled")
	} else {
		log.Info("push notifications disabled; set firebase.service_account_path to enable")
	}
	auditSvc := service.NewAuditService(auditRepo, log)
	notifSvc := service.NewNotificationService(notificationRepo, userRepo, fcmSvc, hub, log)
	restrictionSvc := service.NewRestrictionService(restrictionRepo, auditSvc, notifSvc, log)
	anomalySvc := service.NewAnomalyService(walletRepo, anomalyRepo, log)
	phaseSvc := service.NewPhaseService(db, phaseRepo, orderRepo, walletRepo, auditSvc, notifSvc, log)
	withdrawalSvc := service.NewWithdrawalService(db, walletRepo, withdrawalRepo, restrictionSvc, anomalySvc, auditSvc, notifSvc, log)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc, auditSvc, log)
	walletHandler := handler.NewWalletHandler(walletRepo)
	orderHandler := handler.NewOrderHandler(orderRepo)
	phaseHandler := handler.NewPhaseHandler(phaseSvc, orderRepo, cloud, &cfg.Escrow, log)
	withdrawalHandler := handler.NewWithdrawalHandler(withdrawalSvc, withdrawalRepo, log)
	paymentHandler := handler.NewPaymentHandler(cfg, paymentRepo, phaseSvc, provider, log)
	webhookHandler := handler.NewPaymentWebhookHandler(paymentRepo, orderRepo, walletRepo, phaseSvc, provider, notifSvc, cfg.Payment.WebhookSecret, log)
	notificationHandler := handler.NewNotificationHandler(notifSvc)
	adminHandler := handler.NewAdminHandler(restrictionSvc, withdrawalSvc, anomalySvc, auditSvc, withdrawalRepo, log)

	// Daily delivery reminders for phases inside the configured horizon.
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if n := phaseSvc.SendDeliveryReminders(cfg.Escrow.ReminderDays); n > 0 {
				log.Info("delivery reminders sent", zap.Int("count", n))
			}
		}
	}()

	authMw := middleware.AuthRequired(&cfg.JWT)

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.PATCH("/change-password", authMw, authHandler.ChangePassword)
		}

		me := api.Group("/me")
		me.Use(authMw)
		{
			me.GET("/wallet", walletHandler.GetBalance)
			me.GET("/wallet/transactions", walletHandler.GetTransactions)
			me.POST("/withdrawals", withdrawalHandler.Create)
			me.GET("/withdrawals", withdrawalHandler.ListMine)
			me.GET("/notifications", notificationHandler.List)
			me.PUT("/notifications/:id/read", notificationHandler.MarkRead)
			me.POST("/fcm-token", authHandler.RegisterFCMToken)
			me.GET("/orders", orderHandler.ListMine)
		}

		orders := api.Group("/orders")
		orders.Use(authMw)
		{
			orders.POST("", middleware.RequireRole("CUSTOMER"), orderHandler.Create)
			orders.GET("/:order_id", orderHandler.Get)
			orders.POST("/:order_id/phases", middleware.RequireRole("CUSTOMER", "CONTRACTOR", "ADMIN"), phaseHandler.Create)
			orders.GET("/:order_id/phases", phaseHandler.ListByOrder)
		}

		phases := api.Group("/phases")
		phases.Use(authMw)
		{
			phases.GET("/upcoming", phaseHandler.Upcoming)
			phases.GET("/:id", phaseHandler.Get)
			phases.PATCH("/:id/status", middleware.RequireRole("CONTRACTOR", "SUPPLIER", "ADMIN"), phaseHandler.UpdateStatus)
			phases.POST("/:id/confirm", middleware.RequireRole("CUSTOMER"), phaseHandler.ConfirmDelivery)
			phases.POST("/:id/proof", middleware.RequireRole("CONTRACTOR", "SUPPLIER"), phaseHandler.UploadProof)
		}

		payments := api.Group("/payments")
		payments.Use(authMw)
		{
			payments.POST("/deposit", middleware.RequireRole("CUSTOMER"), paymentHandler.InitiateDeposit)
			payments.GET("/:reference", paymentHandler.Get)
		}

		admin := api.Group("/admin")
		admin.Use(authMw, middleware.AdminRequired())
		{
			admin.POST("/restrictions", adminHandler.ApplyRestriction)
			admin.POST("/restrictions/:id/lift", adminHandler.LiftRestriction)
			admin.GET("/users/:user_id/restrictions", adminHandler.ListUserRestrictions)
			admin.GET("/withdrawals/pending", adminHandler.PendingWithdrawals)
			admin.POST("/withdrawals/:id/complete", adminHandler.CompleteWithdrawal)
			admin.POST("/withdrawals/:id/fail", adminHandler.FailWithdrawal)
			admin.GET("/alerts", adminHandler.OpenAlerts)
			admin.POST("/alerts/:id/resolve", adminHandler.ResolveAlert)
			admin.GET("/audit", adminHandler.AuditTrail)
			admin.GET("/wallets/:id/reconcile", walletHandler.Reconcile)
		}

		api.POST("/webhooks/payment", webhookHandler.Handle)
	}

	r.GET("/ws/events", ws.UpgradeEventsWS(&cfg.JWT, hub))

	return r
}
