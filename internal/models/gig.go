package models

import (
	"time"

	"github.com/google/uuid"
)

type GigStatus string

const (
	GigStatusOpen     GigStatus = "open"
	GigStatusAssigned GigStatus = "assigned"
)

type Gig struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`

	Title       string  `gorm:"not null" json:"title"`
	Description string  `gorm:"not null" json:"description"`
	Budget      float64 `gorm:"not null" json:"budget"`
	Category    string  `gorm:"default:'General'" json:"category"`

	Deadline *time.Time `json:"deadline,omitempty"`

	// Status moves open -> assigned exactly once, never back.
	// HiredFreelancerID is uuid.Nil until that transition and is set only
	// alongside it.
	Status            GigStatus `gorm:"type:varchar(20);not null;default:'open';index" json:"status"`
	HiredFreelancerID uuid.UUID `gorm:"type:uuid;default:null" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Owner           *User `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	HiredFreelancer *User `gorm:"foreignKey:HiredFreelancerID" json:"hired_freelancer,omitempty"`
}
