package hire

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/gigflow-app/gigflow-backend/internal/models"
	"github.com/gigflow-app/gigflow-backend/internal/realtime"
)

// Service runs the hire transaction: one bid accepted, the gig closed, all
// competing bids rejected and the freelancer's counter bumped, atomically.
type Service struct {
	DB  *gorm.DB
	Hub *realtime.Hub
	RDB *redis.Client
}

func NewService(db *gorm.DB, hub *realtime.Hub, rdb *redis.Client) *Service {
	return &Service{DB: db, Hub: hub, RDB: rdb}
}

// Result carries the updated records with identities resolved for display.
type Result struct {
	Bid models.Bid
	Gig models.Gig
}

// Hire accepts the bid on behalf of the acting user. Preconditions are
// checked in order (bid, gig, ownership, gig still open); the conditional
// status update inside the transaction is the serialization point, so of two
// racing hires on the same gig exactly one commits and the other gets the
// already-assigned conflict.
func (s *Service) Hire(bidID, actorID uuid.UUID) (*Result, error) {
	var bid models.Bid
	if err := s.DB.First(&bid, "id = ?", bidID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fiber.NewError(fiber.StatusNotFound, "Bid not found")
		}
		return nil, err
	}

	var gig models.Gig
	if err := s.DB.First(&gig, "id = ?", bid.GigID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fiber.NewError(fiber.StatusNotFound, "Gig not found")
		}
		return nil, err
	}

	if gig.OwnerID != actorID {
		return nil, fiber.NewError(fiber.StatusForbidden, "Only the gig owner can hire freelancers")
	}

	if gig.Status != models.GigStatusOpen {
		return nil, fiber.NewError(fiber.StatusConflict, "This gig has already been assigned")
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// 1. Close the gig. The status guard in the WHERE clause decides the
		// race: zero rows means someone else hired first.
		res := tx.Model(&models.Gig{}).
			Where("id = ? AND status = ?", gig.ID, models.GigStatusOpen).
			Updates(map[string]interface{}{
				"status":              models.GigStatusAssigned,
				"hired_freelancer_id": bid.FreelancerID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fiber.NewError(fiber.StatusConflict, "This gig has already been assigned")
		}

		// 2. Mark the winning bid.
		if err := tx.Model(&models.Bid{}).
			Where("id = ?", bid.ID).
			Update("status", models.BidStatusHired).Error; err != nil {
			return err
		}

		// 3. Reject every other still-pending bid. Already-rejected bids
		// stay untouched.
		if err := tx.Model(&models.Bid{}).
			Where("gig_id = ? AND id <> ? AND status = ?", gig.ID, bid.ID, models.BidStatusPending).
			Update("status", models.BidStatusRejected).Error; err != nil {
			return err
		}

		// 4. Bump the freelancer's completed-gig counter.
		if err := tx.Model(&models.User{}).
			Where("id = ?", bid.FreelancerID).
			UpdateColumn("completed_gigs", gorm.Expr("completed_gigs + 1")).Error; err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	// Reload with identities resolved for the response.
	if err := s.DB.Preload("Freelancer").First(&bid, "id = ?", bid.ID).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Preload("Owner").Preload("HiredFreelancer").First(&gig, "id = ?", gig.ID).Error; err != nil {
		return nil, err
	}

	// 5. Best-effort push to the hired freelancer. Delivery problems never
	// undo the committed transition; the freelancer sees the new state on
	// next fetch either way.
	s.notifyHired(&bid, &gig)

	return &Result{Bid: bid, Gig: gig}, nil
}

func (s *Service) notifyHired(bid *models.Bid, gig *models.Gig) {
	payload := map[string]interface{}{
		"type":      "hired",
		"message":   fmt.Sprintf("You have been hired for %q!", gig.Title),
		"gig_id":    gig.ID.String(),
		"timestamp": time.Now(),
	}

	if s.Hub != nil {
		s.Hub.SendToUser(bid.FreelancerID, payload)
	}

	if s.RDB != nil {
		b, _ := json.Marshal(payload)
		if err := s.RDB.Publish(context.Background(), "notifications:"+bid.FreelancerID.String(), b).Err(); err != nil {
			log.Printf("Error publishing hire notification: %v", err)
		}
	}
}
