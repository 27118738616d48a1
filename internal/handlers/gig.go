package handlers

import (
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gigflow-app/gigflow-backend/internal/models"
	"github.com/gigflow-app/gigflow-backend/internal/realtime"
)

type GigHandler struct {
	DB  *gorm.DB
	Hub *realtime.Hub
}

func NewGigHandler(db *gorm.DB, hub *realtime.Hub) *GigHandler {
	return &GigHandler{DB: db, Hub: hub}
}

type GigResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Budget      float64    `json:"budget"`
	Category    string     `json:"category"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`

	OwnerID           string  `json:"owner_id"`
	HiredFreelancerID *string `json:"hired_freelancer_id,omitempty"`

	Owner           *models.UserMini `json:"owner,omitempty"`
	HiredFreelancer *models.UserMini `json:"hired_freelancer,omitempty"`
}

func toGigResponse(g *models.Gig) GigResponse {
	out := GigResponse{
		ID:          g.ID.String(),
		Title:       g.Title,
		Description: g.Description,
		Budget:      g.Budget,
		Category:    g.Category,
		Deadline:    g.Deadline,
		Status:      string(g.Status),
		CreatedAt:   g.CreatedAt,
		OwnerID:     g.OwnerID.String(),
		Owner:       g.Owner.Mini(),
	}
	if g.HiredFreelancerID != uuid.Nil {
		s := g.HiredFreelancerID.String()
		out.HiredFreelancerID = &s
		out.HiredFreelancer = g.HiredFreelancer.Mini()
	}
	return out
}

// ListGigs returns open gigs with optional search, category and budget
// filters.
func (h *GigHandler) ListGigs(c *fiber.Ctx) error {
	q := h.DB.Preload("Owner").Where("status = ?", models.GigStatusOpen)

	if search := c.Query("search"); search != "" {
		like := "%" + search + "%"
		q = q.Where("title LIKE ? OR description LIKE ?", like, like)
	}
	if category := c.Query("category"); category != "" {
		q = q.Where("category = ?", category)
	}
	if min := c.Query("min_budget"); min != "" {
		if v, err := strconv.ParseFloat(min, 64); err == nil {
			q = q.Where("budget >= ?", v)
		}
	}
	if max := c.Query("max_budget"); max != "" {
		if v, err := strconv.ParseFloat(max, 64); err == nil {
			q = q.Where("budget <= ?", v)
		}
	}

	switch c.Query("sort") {
	case "budget_asc":
		q = q.Order("budget ASC")
	case "budget_desc":
		q = q.Order("budget DESC")
	case "oldest":
		q = q.Order("created_at ASC")
	default:
		q = q.Order("created_at DESC")
	}

	var gigs []models.Gig
	if err := q.Find(&gigs).Error; err != nil {
		log.Println("Error fetching gigs:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to fetch gigs"})
	}

	out := make([]GigResponse, 0, len(gigs))
	for i := range gigs {
		out = append(out, toGigResponse(&gigs[i]))
	}

	return c.JSON(fiber.Map{"success": true, "count": len(out), "data": out})
}

// GetGig returns a single gig with owner and hired freelancer resolved.
func (h *GigHandler) GetGig(c *fiber.Ctx) error {
	gigUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid gig ID"})
	}

	var gig models.Gig
	if err := h.DB.Preload("Owner").Preload("HiredFreelancer").First(&gig, "id = ?", gigUUID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "Gig not found"})
	}

	return c.JSON(fiber.Map{"success": true, "data": toGigResponse(&gig)})
}

type CreateGigReq struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Budget      float64    `json:"budget"`
	Category    string     `json:"category"`
	Deadline    *time.Time `json:"deadline"`
}

func (h *GigHandler) CreateGig(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userUUID).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "User not found"})
	}

	if !user.Role.CanPost() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"success": false, "message": "Only clients can post jobs"})
	}

	var req CreateGigReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid request body"})
	}

	errs := FieldErrors{}
	if req.Title == "" {
		errs.Add("title", "Title is required")
	}
	if req.Description == "" {
		errs.Add("description", "Description is required")
	}
	if req.Budget <= 0 {
		errs.Add("budget", "Budget must be positive")
	}
	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	category := req.Category
	if category == "" {
		category = "General"
	}

	gig := models.Gig{
		ID:          uuid.New(),
		OwnerID:     userUUID,
		Title:       req.Title,
		Description: req.Description,
		Budget:      req.Budget,
		Category:    category,
		Deadline:    req.Deadline,
		Status:      models.GigStatusOpen,
	}

	if err := h.DB.Create(&gig).Error; err != nil {
		log.Println("Error creating gig:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to create gig"})
	}

	gig.Owner = &user

	// Everyone currently online sees the new posting except its owner.
	h.Hub.BroadcastExcept(userUUID, fiber.Map{
		"type": "new_job",
		"gig":  toGigResponse(&gig),
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Gig created successfully",
		"data":    toGigResponse(&gig),
	})
}

// MyPostedGigs returns gigs owned by the current user.
func (h *GigHandler) MyPostedGigs(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var gigs []models.Gig
	if err := h.DB.Preload("HiredFreelancer").
		Where("owner_id = ?", userUUID).
		Order("created_at DESC").
		Find(&gigs).Error; err != nil {
		log.Println("Error fetching posted gigs:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to fetch gigs"})
	}

	out := make([]GigResponse, 0, len(gigs))
	for i := range gigs {
		out = append(out, toGigResponse(&gigs[i]))
	}

	return c.JSON(fiber.Map{"success": true, "count": len(out), "data": out})
}

// DeleteGig removes an open gig owned by the caller. Assigned gigs cannot be
// deleted.
func (h *GigHandler) DeleteGig(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	gigUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid gig ID"})
	}

	var gig models.Gig
	if err := h.DB.First(&gig, "id = ?", gigUUID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "Gig not found"})
	}

	if gig.OwnerID != userUUID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"success": false, "message": "Not authorized to delete this gig"})
	}

	if gig.Status == models.GigStatusAssigned {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"success": false, "message": "Cannot delete an assigned gig"})
	}

	if err := h.DB.Delete(&gig).Error; err != nil {
		log.Println("Error deleting gig:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to delete gig"})
	}

	return c.JSON(fiber.Map{"success": true, "message": "Gig deleted successfully"})
}
