package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is a durable two-party channel, optionally scoped to a gig.
// The participant pair is stored normalized (ParticipantA < ParticipantB by
// uuid ordering) so the unique index makes find-or-create race-safe; GigID
// stays uuid.Nil for conversations not tied to a specific gig so it can take
// part in the same index.
type Conversation struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	ParticipantA uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_conversations_pair_gig;index" json:"participant_a"`
	ParticipantB uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_conversations_pair_gig;index" json:"participant_b"`
	GigID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_conversations_pair_gig" json:"-"`

	LastMessageID uuid.UUID `gorm:"type:uuid" json:"-"`
	LastMessageAt time.Time `json:"last_message_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizePair orders two participant ids into the stored (A, B) form.
func NormalizePair(x, y uuid.UUID) (uuid.UUID, uuid.UUID) {
	if x.String() > y.String() {
		return y, x
	}
	return x, y
}

// HasParticipant reports whether the user is one of the two parties.
func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	return c.ParticipantA == userID || c.ParticipantB == userID
}

// OtherParticipant returns the counterpart of the given user.
func (c *Conversation) OtherParticipant(userID uuid.UUID) uuid.UUID {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}

// Message is append-only; only the read flag ever changes, and only through
// the recipient's fetch.
type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index" json:"conversation_id"`
	SenderID       uuid.UUID `gorm:"type:uuid;not null;index" json:"sender_id"`

	Content string     `gorm:"not null" json:"content"`
	IsRead  bool       `gorm:"default:false" json:"is_read"`
	ReadAt  *time.Time `json:"read_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}
