package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gigflow-app/gigflow-backend/internal/models"
	"github.com/gigflow-app/gigflow-backend/internal/realtime"
	"github.com/gigflow-app/gigflow-backend/internal/services/hire"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Gig{},
		&models.Bid{},
		&models.Conversation{},
		&models.Message{},
	); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)

	return db
}

// newTestApp wires the handlers onto a fiber app with a test shim that reads
// the acting user from the X-Test-User header instead of the JWT cookie.
func newTestApp(t *testing.T, db *gorm.DB) (*fiber.App, *realtime.Hub) {
	hub := realtime.NewHub()
	go hub.Run()

	hireSvc := hire.NewService(db, hub, nil)
	gigH := NewGigHandler(db, hub)
	bidH := NewBidHandler(db, hub, hireSvc)
	chatH := NewChatHandler(db, hub, nil)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if uid := c.Get("X-Test-User"); uid != "" {
			c.Locals("userId", uid)
		}
		return c.Next()
	})

	app.Get("/api/gigs", gigH.ListGigs)
	app.Get("/api/gigs/my/posted", gigH.MyPostedGigs)
	app.Get("/api/gigs/:id", gigH.GetGig)
	app.Post("/api/gigs", gigH.CreateGig)
	app.Delete("/api/gigs/:id", gigH.DeleteGig)

	app.Post("/api/bids", bidH.CreateBid)
	app.Get("/api/bids/my/submitted", bidH.MyBids)
	app.Get("/api/bids/:gigId", bidH.GetBidsForGig)
	app.Patch("/api/bids/:bidId/hire", bidH.HireBid)

	app.Post("/api/messages/conversations", chatH.StartConversation)
	app.Get("/api/messages/conversations", chatH.GetConversations)
	app.Get("/api/messages/unread/total", chatH.GetUnreadTotal)
	app.Get("/api/messages/:id", chatH.GetMessages)
	app.Post("/api/messages/:id", chatH.SendMessage)

	return app, hub
}

func doRequest(t *testing.T, app *fiber.App, method, path, asUser string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if asUser != "" {
		req.Header.Set("X-Test-User", asUser)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	var out map[string]interface{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp, out
}

func seedUser(t *testing.T, db *gorm.DB, name string, role models.Role) *models.User {
	u := &models.User{
		ID:       uuid.New(),
		Name:     name,
		Email:    name + "@example.com",
		Password: "x",
		Role:     role,
		IsActive: true,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return u
}

func seedGig(t *testing.T, db *gorm.DB, owner *models.User, title string, budget float64) *models.Gig {
	g := &models.Gig{
		ID:          uuid.New(),
		OwnerID:     owner.ID,
		Title:       title,
		Description: "seeded gig description",
		Budget:      budget,
		Status:      models.GigStatusOpen,
	}
	if err := db.Create(g).Error; err != nil {
		t.Fatalf("failed to create gig: %v", err)
	}
	return g
}
