package handlers

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/gigflow-app/gigflow-backend/internal/models"
	"github.com/gigflow-app/gigflow-backend/internal/services/assistant"
)

type AssistantHandler struct {
	DB      *gorm.DB
	Service *assistant.Service
}

func NewAssistantHandler(db *gorm.DB, svc *assistant.Service) *AssistantHandler {
	return &AssistantHandler{DB: db, Service: svc}
}

type ChatTurn struct {
	Role    string `json:"role"` // user / assistant
	Content string `json:"content"`
}

type AssistantReq struct {
	Message string     `json:"message"`
	History []ChatTurn `json:"conversation_history"`
}

const systemPrompt = `You are an AI assistant for GigFlow, a freelance marketplace platform.
Your role is to help freelancers with:
- Finding the right gigs to bid on
- Writing compelling bid proposals
- Pricing their services competitively
- Managing their freelance career
- Understanding platform features
- Best practices for winning projects

Be helpful, professional, and concise. If asked about specific gigs or user data,
remind users to check their dashboard. Focus on general advice and guidance.`

// Chat proxies one assistant turn for the authenticated user.
func (h *AssistantHandler) Chat(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userUUID).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "User not found"})
	}

	var req AssistantReq
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Please provide a message"})
	}

	var b strings.Builder
	b.WriteString(systemPrompt)
	fmt.Fprintf(&b, "\n\nUser: %s\nUser Email: %s\n\n", user.Name, user.Email)
	for _, turn := range req.History {
		role := "Assistant"
		if turn.Role == "user" {
			role = "User"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, turn.Content)
	}
	fmt.Fprintf(&b, "User: %s\nAssistant:", req.Message)

	reply, err := h.Service.Generate(b.String())
	if err != nil {
		log.Println("Assistant error:", err)

		if errors.Is(err, assistant.ErrMissingAPIKey) {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Assistant is not configured",
			})
		}

		var apiErr *assistant.ApiError
		if errors.As(err, &apiErr) && apiErr.StatusCode == fiber.StatusTooManyRequests {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"message": "Assistant is temporarily unavailable due to high traffic. Please try again later.",
			})
		}

		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"message": "Assistant is currently unavailable",
		})
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"message":   reply,
		"timestamp": time.Now(),
	})
}
