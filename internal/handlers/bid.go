package handlers

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gigflow-app/gigflow-backend/internal/models"
	"github.com/gigflow-app/gigflow-backend/internal/realtime"
	"github.com/gigflow-app/gigflow-backend/internal/services/hire"
)

type BidHandler struct {
	DB   *gorm.DB
	Hub  *realtime.Hub
	Hire *hire.Service
}

func NewBidHandler(db *gorm.DB, hub *realtime.Hub, hireSvc *hire.Service) *BidHandler {
	return &BidHandler{DB: db, Hub: hub, Hire: hireSvc}
}

type BidResponse struct {
	ID           string    `json:"id"`
	GigID        string    `json:"gig_id"`
	FreelancerID string    `json:"freelancer_id"`
	Proposal     string    `json:"proposal"`
	Price        float64   `json:"price"`
	DeliveryDays int       `json:"delivery_days"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`

	Freelancer *models.UserMini `json:"freelancer,omitempty"`
	Gig        *GigResponse     `json:"gig,omitempty"`
}

func toBidResponse(b *models.Bid) BidResponse {
	out := BidResponse{
		ID:           b.ID.String(),
		GigID:        b.GigID.String(),
		FreelancerID: b.FreelancerID.String(),
		Proposal:     b.Proposal,
		Price:        b.Price,
		DeliveryDays: b.DeliveryDays,
		Status:       string(b.Status),
		CreatedAt:    b.CreatedAt,
		Freelancer:   b.Freelancer.Mini(),
	}
	if b.Gig != nil {
		g := toGigResponse(b.Gig)
		out.Gig = &g
	}
	return out
}

type CreateBidReq struct {
	GigID        string  `json:"gig_id"`
	Proposal     string  `json:"proposal"`
	Price        float64 `json:"price"`
	DeliveryDays int     `json:"delivery_days"`
}

// CreateBid submits a pending bid on an open gig and notifies the owner.
func (h *BidHandler) CreateBid(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userUUID).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "User not found"})
	}

	if !user.Role.CanBid() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"success": false, "message": "Only freelancers can submit bids"})
	}

	var req CreateBidReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid request body"})
	}

	errs := FieldErrors{}
	if strings.TrimSpace(req.GigID) == "" {
		errs.Add("gig_id", "Gig ID is required")
	}
	if strings.TrimSpace(req.Proposal) == "" {
		errs.Add("proposal", "Proposal is required")
	}
	if req.Price <= 0 {
		errs.Add("price", "Price must be positive")
	}
	if req.DeliveryDays <= 0 {
		errs.Add("delivery_days", "Delivery time must be at least 1 day")
	}
	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	gigUUID, err := uuid.Parse(req.GigID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid gig ID"})
	}

	var gig models.Gig
	if err := h.DB.First(&gig, "id = ?", gigUUID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "Gig not found"})
	}

	if gig.Status != models.GigStatusOpen {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"success": false, "message": "This gig is no longer accepting bids"})
	}

	if gig.OwnerID == userUUID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"success": false, "message": "You cannot bid on your own gig"})
	}

	var existing models.Bid
	if err := h.DB.Where("gig_id = ? AND freelancer_id = ?", gigUUID, userUUID).First(&existing).Error; err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"success": false, "message": "You have already submitted a bid for this gig"})
	} else if err != gorm.ErrRecordNotFound {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Internal server error"})
	}

	bid := models.Bid{
		ID:           uuid.New(),
		GigID:        gigUUID,
		FreelancerID: userUUID,
		Proposal:     strings.TrimSpace(req.Proposal),
		Price:        req.Price,
		DeliveryDays: req.DeliveryDays,
		Status:       models.BidStatusPending,
	}

	if err := h.DB.Create(&bid).Error; err != nil {
		// The unique (gig, freelancer) index catches the race the pre-check
		// above cannot.
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(strings.ToLower(err.Error()), "unique") {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"success": false, "message": "You have already submitted a bid for this gig"})
		}
		log.Println("Error creating bid:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to submit bid"})
	}

	bid.Freelancer = &user

	h.Hub.SendToUser(gig.OwnerID, fiber.Map{
		"type": "new_bid",
		"bid":  toBidResponse(&bid),
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Bid submitted successfully",
		"data":    toBidResponse(&bid),
	})
}

// GetBidsForGig returns every bid on a gig, visible only to the gig owner.
func (h *BidHandler) GetBidsForGig(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	gigUUID, err := uuid.Parse(c.Params("gigId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid gig ID"})
	}

	var gig models.Gig
	if err := h.DB.First(&gig, "id = ?", gigUUID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "Gig not found"})
	}

	if gig.OwnerID != userUUID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"success": false, "message": "Only the gig owner can view bids"})
	}

	var bids []models.Bid
	if err := h.DB.Preload("Freelancer").
		Where("gig_id = ?", gigUUID).
		Order("created_at DESC").
		Find(&bids).Error; err != nil {
		log.Println("Error fetching bids:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to fetch bids"})
	}

	out := make([]BidResponse, 0, len(bids))
	for i := range bids {
		out = append(out, toBidResponse(&bids[i]))
	}

	return c.JSON(fiber.Map{"success": true, "count": len(out), "data": out})
}

// MyBids returns the current user's submitted bids with their gigs resolved.
func (h *BidHandler) MyBids(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var bids []models.Bid
	if err := h.DB.Preload("Gig").Preload("Gig.Owner").
		Where("freelancer_id = ?", userUUID).
		Order("created_at DESC").
		Find(&bids).Error; err != nil {
		log.Println("Error fetching bids:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to fetch bids"})
	}

	out := make([]BidResponse, 0, len(bids))
	for i := range bids {
		out = append(out, toBidResponse(&bids[i]))
	}

	return c.JSON(fiber.Map{"success": true, "count": len(out), "data": out})
}

// HireBid accepts a bid on behalf of the gig owner.
func (h *BidHandler) HireBid(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	bidUUID, err := uuid.Parse(c.Params("bidId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid bid ID"})
	}

	result, err := h.Hire.Hire(bidUUID, userUUID)
	if err != nil {
		return fiberErrJSON(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Freelancer hired successfully",
		"bid":     toBidResponse(&result.Bid),
		"gig":     toGigResponse(&result.Gig),
	})
}
