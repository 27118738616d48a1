package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"

	"github.com/gigflow-app/gigflow-backend/internal/config"
	"github.com/gigflow-app/gigflow-backend/internal/db"
	"github.com/gigflow-app/gigflow-backend/internal/handlers"
	"github.com/gigflow-app/gigflow-backend/internal/middleware"
	"github.com/gigflow-app/gigflow-backend/internal/models"
	"github.com/gigflow-app/gigflow-backend/internal/realtime"
	"github.com/gigflow-app/gigflow-backend/internal/services/assistant"
	"github.com/gigflow-app/gigflow-backend/internal/services/hire"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}

	rdb := realtime.NewRedis()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Redis not reachable:", err)
	}

	hub := realtime.NewHub()
	go hub.Run()

	if err := gdb.AutoMigrate(
		&models.User{},
		&models.Gig{},
		&models.Bid{},
		&models.Conversation{},
		&models.Message{},
	); err != nil {
		log.Fatal(err)
	}

	hireSvc := hire.NewService(gdb, hub, rdb)
	assistantSvc := assistant.NewService(cfg.GeminiAPIKey)

	authH := &handlers.AuthHandler{
		DB:        gdb,
		JWTSecret: cfg.JWTSecret,
		Expires:   cfg.JWTExpiresMin,
	}
	gigH := handlers.NewGigHandler(gdb, hub)
	bidH := handlers.NewBidHandler(gdb, hub, hireSvc)
	chatH := handlers.NewChatHandler(gdb, hub, rdb)
	assistantH := handlers.NewAssistantHandler(gdb, assistantSvc)

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "Content-Length",
		AllowCredentials: true,
	}))

	api := app.Group("/api")

	// public
	api.Post("/auth/register", authH.Register)
	api.Post("/auth/login", authH.Login)
	api.Post("/auth/logout", authH.Logout)
	api.Get("/gigs", gigH.ListGigs)

	jwtAuth := middleware.JWTFromCookie(cfg.JWTSecret)
	jwtLocals := middleware.AttachJWTLocals()

	// static segments before the :id catch-alls
	api.Get("/gigs/my/posted", jwtAuth, jwtLocals, gigH.MyPostedGigs)
	api.Get("/gigs/:id", gigH.GetGig)

	// protected (JWT cookie)
	protected := api.Group("/", jwtAuth, jwtLocals)

	protected.Get("/me", authH.Me)

	protected.Post("/gigs", middleware.RequireRoles("client", "both"), gigH.CreateGig)
	protected.Delete("/gigs/:id", gigH.DeleteGig)

	protected.Post("/bids", middleware.RequireRoles("freelancer", "both"), bidH.CreateBid)
	protected.Get("/bids/my/submitted", bidH.MyBids)
	protected.Get("/bids/:gigId", bidH.GetBidsForGig)
	protected.Patch("/bids/:bidId/hire", bidH.HireBid)

	messages := protected.Group("/messages")
	messages.Post("/conversations", chatH.StartConversation)
	messages.Get("/conversations", chatH.GetConversations)
	messages.Get("/unread/total", chatH.GetUnreadTotal)
	messages.Get("/:id", chatH.GetMessages)
	messages.Post("/:id", chatH.SendMessage)

	protected.Post("/chatbot", assistantH.Chat)

	// WebSocket endpoint; the client announces its user id after connect
	app.Get("/ws", websocket.New(chatH.WebSocketHandler))

	log.Fatal(app.Listen(":" + cfg.AppPort))
}
