package routes

import (
	"github.com/campushub/loyalty-be/config"
	"github.com/campushub/loyalty-be/controllers"
	"github.com/campushub/loyalty-be/middleware"
	"github.com/campushub/loyalty-be/models"
	"github.com/campushub/loyalty-be/websocket"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func SetupRoutes() *gin.Engine {
	r := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	r.Use(cors.New(corsConfig))

	// Uploaded avatars are served as static files
	r.Static("/uploads", "./uploads")

	// Initialize controllers
	authController := controllers.NewAuthController()
	userController := controllers.NewUserController()
	transactionController := controllers.NewTransactionController()
	eventController := controllers.NewEventController()
	promotionController := controllers.NewPromotionController()

	// Public routes
	public := r.Group("/auth")
	{
		public.POST("/tokens", authController.Login)
		public.POST("/resets", authController.RequestPasswordReset)
		public.POST("/resets/:resetToken", authController.ResetPassword)
	}

	auth := middleware.AuthMiddleware()

	users := r.Group("/users")
	users.Use(auth)
	{
		users.POST("", middleware.RequireRole(models.RoleCashier), userController.Register)
		users.GET("", middleware.RequireRole(models.RoleManager), userController.GetAllUsers)

		// Self-service endpoints must come before the :userId routes
		users.GET("/me", userController.GetCurrentUser)
		users.PATCH("/me", userController.UpdateCurrentUser)
		users.PATCH("/me/password", userController.UpdateMyPassword)
		users.POST("/me/transactions", transactionController.CreateRedemption)
		users.GET("/me/transactions", transactionController.GetMyTransactions)

		users.GET("/:userId", middleware.RequireRole(models.RoleCashier), userController.GetUserByID)
		users.PATCH("/:userId", middleware.RequireRole(models.RoleManager), userController.UpdateUserByID)
		users.POST("/:userId/transactions", transactionController.CreateTransfer)
	}

	transactions := r.Group("/transactions")
	transactions.Use(auth)
	{
		transactions.POST("", middleware.RequireRole(models.RoleCashier), transactionController.CreateTransaction)
		transactions.GET("", middleware.RequireRole(models.RoleManager), transactionController.GetTransactions)
		transactions.GET("/:transactionId", middleware.RequireRole(models.RoleManager), transactionController.GetTransactionByID)
		transactions.PATCH("/:transactionId/suspicious", middleware.RequireRole(models.RoleManager), transactionController.PatchSuspicious)
		transactions.PATCH("/:transactionId/processed", middleware.RequireRole(models.RoleCashier), transactionController.PatchProcessed)
	}

	events := r.Group("/events")
	events.Use(auth)
	{
		events.POST("", middleware.RequireRole(models.RoleManager), eventController.CreateEvent)
		events.GET("", eventController.GetEvents)
		events.GET("/:eventId", eventController.GetEventByID)
		events.PATCH("/:eventId", eventController.UpdateEventByID)
		events.DELETE("/:eventId", middleware.RequireRole(models.RoleManager), eventController.DeleteEventByID)

		events.POST("/:eventId/organizers", middleware.RequireRole(models.RoleManager), eventController.AddOrganizer)
		events.DELETE("/:eventId/organizers/:userId", middleware.RequireRole(models.RoleManager), eventController.RemoveOrganizer)

		events.POST("/:eventId/guests", eventController.AddGuest)
		events.DELETE("/:eventId/guests/:userId", middleware.RequireRole(models.RoleManager), eventController.RemoveGuest)
		events.POST("/:eventId/guests/me", eventController.JoinEvent)
		events.DELETE("/:eventId/guests/me", eventController.LeaveEvent)

		events.POST("/:eventId/transactions", eventController.CreateEventTransaction)
	}

	promotions := r.Group("/promotions")
	promotions.Use(auth)
	{
		promotions.POST("", middleware.RequireRole(models.RoleManager), promotionController.CreatePromotion)
		promotions.GET("", promotionController.GetPromotions)
		promotions.GET("/:promotionId", promotionController.GetPromotionByID)
		promotions.PATCH("/:promotionId", middleware.RequireRole(models.RoleManager), promotionController.UpdatePromotionByID)
		promotions.DELETE("/:promotionId", middleware.RequireRole(models.RoleManager), promotionController.DeletePromotionByID)
	}

	// Staff activity feed
	r.GET("/ws", auth, middleware.RequireRole(models.RoleCashier), websocket.HandleWebSocket(config.WSHub))

	return r
}
