package handlers

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/gigflow-app/gigflow-backend/internal/models"
	"github.com/gigflow-app/gigflow-backend/internal/realtime"
)

type ChatHandler struct {
	DB  *gorm.DB
	Hub *realtime.Hub
	RDB *redis.Client
}

func NewChatHandler(db *gorm.DB, hub *realtime.Hub, rdb *redis.Client) *ChatHandler {
	return &ChatHandler{DB: db, Hub: hub, RDB: rdb}
}

type MessageResponse struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	Content        string     `json:"content"`
	IsRead         bool       `json:"is_read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toMessageResponse(m *models.Message) MessageResponse {
	return MessageResponse{
		ID:             m.ID.String(),
		ConversationID: m.ConversationID.String(),
		SenderID:       m.SenderID.String(),
		Content:        m.Content,
		IsRead:         m.IsRead,
		ReadAt:         m.ReadAt,
		CreatedAt:      m.CreatedAt,
	}
}

type ConversationOut struct {
	ID            string    `json:"id"`
	GigID         *string   `json:"gig_id,omitempty"`
	GigTitle      string    `json:"gig_title,omitempty"`
	LastMessageAt time.Time `json:"last_message_at"`
	UnreadCount   int64     `json:"unread_count"`

	Peer        *models.UserMini `json:"peer,omitempty"`
	LastMessage *MessageResponse `json:"last_message,omitempty"`
}

type StartConversationReq struct {
	RecipientID string `json:"recipient_id"`
	GigID       string `json:"gig_id"`
}

// StartConversation finds or creates the conversation between the caller and
// the recipient, optionally scoped to a gig. Repeated and concurrent calls
// for the same (pair, gig) always resolve to the same conversation: the
// normalized-pair unique index rejects a duplicate insert and the loser
// re-reads the winner's row.
func (h *ChatHandler) StartConversation(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var req StartConversationReq
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.RecipientID) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Recipient ID is required"})
	}

	recipientUUID, err := uuid.Parse(req.RecipientID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid recipient ID"})
	}

	if recipientUUID == userUUID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Cannot start a conversation with yourself"})
	}

	var recipient models.User
	if err := h.DB.First(&recipient, "id = ?", recipientUUID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "Recipient not found"})
	}

	gigUUID := uuid.Nil
	if strings.TrimSpace(req.GigID) != "" {
		gigUUID, err = uuid.Parse(req.GigID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid gig ID"})
		}
		var gig models.Gig
		if err := h.DB.First(&gig, "id = ?", gigUUID).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "Gig not found"})
		}
	}

	pa, pb := models.NormalizePair(userUUID, recipientUUID)

	var conv models.Conversation
	err = h.DB.
		Where("participant_a = ? AND participant_b = ? AND gig_id = ?", pa, pb, gigUUID).
		First(&conv).Error

	created := false
	if err == gorm.ErrRecordNotFound {
		conv = models.Conversation{
			ID:            uuid.New(),
			ParticipantA:  pa,
			ParticipantB:  pb,
			GigID:         gigUUID,
			LastMessageAt: time.Now(),
		}
		if cerr := h.DB.Create(&conv).Error; cerr != nil {
			// Lost the create race; the unique index guarantees the other
			// row is the one to use.
			if ferr := h.DB.
				Where("participant_a = ? AND participant_b = ? AND gig_id = ?", pa, pb, gigUUID).
				First(&conv).Error; ferr != nil {
				log.Println("Error creating conversation:", cerr)
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to create conversation"})
			}
		} else {
			created = true
		}
	} else if err != nil {
		log.Println("Error fetching conversation:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to fetch conversation"})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"created": created,
		"data":    h.conversationOut(&conv, userUUID),
	})
}

// GetConversations returns the caller's conversations newest-activity first.
func (h *ChatHandler) GetConversations(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var convs []models.Conversation
	if err := h.DB.
		Where("participant_a = ? OR participant_b = ?", userUUID, userUUID).
		Order("last_message_at DESC").
		Find(&convs).Error; err != nil {
		log.Println("Error fetching conversations:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to fetch conversations"})
	}

	out := make([]ConversationOut, 0, len(convs))
	for i := range convs {
		out = append(out, h.conversationOut(&convs[i], userUUID))
	}

	return c.JSON(fiber.Map{"success": true, "count": len(out), "data": out})
}

func (h *ChatHandler) conversationOut(conv *models.Conversation, userUUID uuid.UUID) ConversationOut {
	out := ConversationOut{
		ID:            conv.ID.String(),
		LastMessageAt: conv.LastMessageAt,
	}

	if conv.GigID != uuid.Nil {
		s := conv.GigID.String()
		out.GigID = &s
		var gig models.Gig
		if err := h.DB.Select("title").First(&gig, "id = ?", conv.GigID).Error; err == nil {
			out.GigTitle = gig.Title
		}
	}

	var peer models.User
	if err := h.DB.First(&peer, "id = ?", conv.OtherParticipant(userUUID)).Error; err == nil {
		out.Peer = peer.Mini()
	}

	h.DB.Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id != ? AND is_read = false", conv.ID, userUUID).
		Count(&out.UnreadCount)

	var last models.Message
	if err := h.DB.
		Where("conversation_id = ?", conv.ID).
		Order("created_at DESC").
		Limit(1).
		First(&last).Error; err == nil {
		resp := toMessageResponse(&last)
		out.LastMessage = &resp
	}

	return out
}

// loadParticipantConversation fetches the conversation iff the user belongs
// to it. Non-participants get the same "not found" as a missing id so the
// conversation's existence is not leaked.
func (h *ChatHandler) loadParticipantConversation(c *fiber.Ctx, userUUID uuid.UUID) (*models.Conversation, error) {
	convUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid conversation ID")
	}

	var conv models.Conversation
	if err := h.DB.First(&conv, "id = ?", convUUID).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusNotFound, "Conversation not found")
	}

	if !conv.HasParticipant(userUUID) {
		return nil, fiber.NewError(fiber.StatusNotFound, "Conversation not found")
	}

	return &conv, nil
}

// GetMessages returns the conversation's messages oldest first and marks the
// caller's unread incoming messages as read. Re-fetching changes nothing
// further.
func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	conv, err := h.loadParticipantConversation(c, userUUID)
	if err != nil {
		return fiberErrJSON(c, err)
	}

	var messages []models.Message
	if err := h.DB.
		Where("conversation_id = ?", conv.ID).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		log.Println("Error fetching messages:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to fetch messages"})
	}

	if err := h.DB.Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id != ? AND is_read = false", conv.ID, userUUID).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": time.Now(),
		}).Error; err != nil {
		// advisory only, the fetch itself already succeeded
		log.Println("Error marking messages as read:", err)
	}

	out := make([]MessageResponse, 0, len(messages))
	for i := range messages {
		out = append(out, toMessageResponse(&messages[i]))
	}

	return c.JSON(fiber.Map{"success": true, "count": len(out), "data": out})
}

type SendMessageReq struct {
	Content string `json:"content"`
}

// SendMessage appends a message, bumps the conversation's last-message
// pointer and pushes new_message to the other participant.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	conv, err := h.loadParticipantConversation(c, userUUID)
	if err != nil {
		return fiberErrJSON(c, err)
	}

	var req SendMessageReq
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Content is required"})
	}

	msg := models.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       userUUID,
		Content:        req.Content,
		IsRead:         false,
	}

	if err := h.DB.Create(&msg).Error; err != nil {
		log.Println("Error creating message:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to send message"})
	}

	if err := h.DB.Model(&models.Conversation{}).
		Where("id = ?", conv.ID).
		Updates(map[string]interface{}{
			"last_message_id": msg.ID,
			"last_message_at": msg.CreatedAt,
		}).Error; err != nil {
		log.Println("Error updating conversation:", err)
	}

	// Sender name travels on the event only, resolved here from the
	// authenticated sender; the stored message stays normalized.
	senderName := ""
	var sender models.User
	if err := h.DB.Select("name").First(&sender, "id = ?", userUUID).Error; err == nil {
		senderName = sender.Name
	}

	recipientID := conv.OtherParticipant(userUUID)
	msgResp := toMessageResponse(&msg)

	h.Hub.SendToUser(recipientID, fiber.Map{
		"type":        "new_message",
		"message":     msgResp,
		"sender_name": senderName,
	})

	if h.RDB != nil {
		notif := map[string]interface{}{
			"type":            "new_message",
			"conversation_id": conv.ID.String(),
			"sender_id":       userUUID.String(),
			"sender_name":     senderName,
			"content":         req.Content,
		}
		payload, _ := json.Marshal(notif)
		if err := h.RDB.Publish(context.Background(), "notifications:"+recipientID.String(), payload).Err(); err != nil {
			log.Println("Error publishing message notification:", err)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": msgResp})
}

// GetUnreadTotal returns the count of unread incoming messages across all of
// the caller's conversations.
func (h *ChatHandler) GetUnreadTotal(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var count int64
	err = h.DB.Model(&models.Message{}).
		Joins("JOIN conversations ON messages.conversation_id = conversations.id").
		Where("(conversations.participant_a = ? OR conversations.participant_b = ?) AND messages.sender_id != ? AND messages.is_read = false",
			userUUID, userUUID, userUUID).
		Count(&count).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to count unread messages"})
	}

	return c.JSON(fiber.Map{"success": true, "data": count})
}

type joinFrame struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}

// WebSocketHandler keeps one hub registration per connection. The client
// announces its user id (query param, or a first {"type":"join"} frame) and
// is addressable until the transport drops.
func (h *ChatHandler) WebSocketHandler(c *websocket.Conn) {
	userID := c.Query("user_id")
	if userID == "" {
		var join joinFrame
		if err := c.ReadJSON(&join); err != nil || join.Type != "join" || join.UserID == "" {
			log.Println("WebSocket: client never announced a user id")
			c.Close()
			return
		}
		userID = join.UserID
	}

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		log.Println("WebSocket: invalid user_id:", userID, "error:", err)
		c.Close()
		return
	}

	log.Printf("WebSocket: user %s connected\n", userID)

	client := &realtime.Client{
		ID:     uuid.New().String(),
		UserID: userUUID,
		Conn:   realtime.NewWebSocketConn(c),
		Send:   make(chan []byte, 256),
	}

	h.Hub.RegisterClient(client)
	defer func() {
		h.Hub.UnregisterClient(client)
		log.Printf("WebSocket: user %s disconnected\n", userID)
	}()

	go func() {
		for msg := range client.Send {
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Println("WebSocket write error:", err)
				return
			}
		}
	}()

	for {
		var payload map[string]interface{}
		if err := c.ReadJSON(&payload); err != nil {
			break
		}

		if msgType, ok := payload["type"].(string); ok && msgType == "pong" {
			continue
		}
	}
}
