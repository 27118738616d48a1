package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Role string

const (
	RoleClient     Role = "client"
	RoleFreelancer Role = "freelancer"
	RoleBoth       Role = "both"
)

// CanBid reports whether the role is allowed to submit bids.
func (r Role) CanBid() bool {
	return r == RoleFreelancer || r == RoleBoth
}

// CanPost reports whether the role is allowed to post gigs.
func (r Role) CanPost() bool {
	return r == RoleClient || r == RoleBoth
}

type User struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name  string    `gorm:"not null" json:"name"`
	Email string    `gorm:"uniqueIndex;not null" json:"email"`

	Password string `gorm:"not null" json:"-"`
	Role     Role   `gorm:"type:varchar(20);not null;index;default:'both'" json:"role"`

	Bio          string         `json:"bio"`
	ProfileImage string         `json:"profile_image"`
	Skills       datatypes.JSON `json:"skills"` // ["react", "golang", ...]

	Rating float64 `gorm:"default:0" json:"rating"`
	// CompletedGigs is incremented only by the hire transaction.
	CompletedGigs int  `gorm:"default:0" json:"completed_gigs"`
	IsActive      bool `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserMini is the identity shape attached to populated responses and
// realtime payloads.
type UserMini struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	Rating        float64 `json:"rating"`
	CompletedGigs int     `json:"completed_gigs"`
}

func (u *User) Mini() *UserMini {
	if u == nil {
		return nil
	}
	return &UserMini{
		ID:            u.ID.String(),
		Name:          u.Name,
		Email:         u.Email,
		Rating:        u.Rating,
		CompletedGigs: u.CompletedGigs,
	}
}
