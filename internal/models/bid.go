package models

import (
	"time"

	"github.com/google/uuid"
)

type BidStatus string

const (
	BidStatusPending  BidStatus = "pending"
	BidStatusHired    BidStatus = "hired"
	BidStatusRejected BidStatus = "rejected"
)

// Bid is a freelancer's proposal against a gig. One bid per
// (gig, freelancer) pair; hired/rejected are terminal.
type Bid struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GigID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_bids_gig_freelancer;index:idx_bids_gig_status" json:"gig_id"`
	FreelancerID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_bids_gig_freelancer;index" json:"freelancer_id"`

	Proposal     string  `gorm:"not null" json:"proposal"`
	Price        float64 `gorm:"not null" json:"price"`
	DeliveryDays int     `gorm:"not null" json:"delivery_days"`

	Status BidStatus `gorm:"type:varchar(20);not null;default:'pending';index:idx_bids_gig_status" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Gig        *Gig  `gorm:"foreignKey:GigID" json:"gig,omitempty"`
	Freelancer *User `gorm:"foreignKey:FreelancerID" json:"freelancer,omitempty"`
}
