package handlers

import (
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gigflow-app/gigflow-backend/internal/models"
)

func TestStartConversation_FindOrCreate(t *testing.T) {
	db := setupTestDB(t)
	app, _ := newTestApp(t, db)

	alice := seedUser(t, db, "alice", models.RoleClient)
	bob := seedUser(t, db, "bob", models.RoleFreelancer)

	resp, body := doRequest(t, app, "POST", "/api/messages/conversations", alice.ID.String(),
		map[string]string{"recipient_id": bob.ID.String()})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["created"])
	firstID := body["data"].(map[string]interface{})["id"].(string)

	// same pair again, including from the other side
	resp, body = doRequest(t, app, "POST", "/api/messages/conversations", alice.ID.String(),
		map[string]string{"recipient_id": bob.ID.String()})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["created"])
	assert.Equal(t, firstID, body["data"].(map[string]interface{})["id"].(string))

	resp, body = doRequest(t, app, "POST", "/api/messages/conversations", bob.ID.String(),
		map[string]string{"recipient_id": alice.ID.String()})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["created"])
	assert.Equal(t, firstID, body["data"].(map[string]interface{})["id"].(string))

	var count int64
	db.Model(&models.Conversation{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestStartConversation_GigScopedIsSeparate(t *testing.T) {
	db := setupTestDB(t)
	app, _ := newTestApp(t, db)

	alice := seedUser(t, db, "alice", models.RoleClient)
	bob := seedUser(t, db, "bob", models.RoleFreelancer)
	gig := seedGig(t, db, alice, "Scoped gig", 100)

	_, plain := doRequest(t, app, "POST", "/api/messages/conversations", alice.ID.String(),
		map[string]string{"recipient_id": bob.ID.String()})
	_, scoped := doRequest(t, app, "POST", "/api/messages/conversations", alice.ID.String(),
		map[string]string{"recipient_id": bob.ID.String(), "gig_id": gig.ID.String()})

	plainID := plain["data"].(map[string]interface{})["id"].(string)
	scopedID := scoped["data"].(map[string]interface{})["id"].(string)
	assert.NotEqual(t, plainID, scopedID)

	// each scope is individually idempotent
	_, again := doRequest(t, app, "POST", "/api/messages/conversations", bob.ID.String(),
		map[string]string{"recipient_id": alice.ID.String(), "gig_id": gig.ID.String()})
	assert.Equal(t, scopedID, again["data"].(map[string]interface{})["id"].(string))

	var count int64
	db.Model(&models.Conversation{}).Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestStartConversation_ConcurrentDuplicates(t *testing.T) {
	db := setupTestDB(t)
	app, _ := newTestApp(t, db)

	alice := seedUser(t, db, "alice", models.RoleClient)
	bob := seedUser(t, db, "bob", models.RoleFreelancer)

	const n = 8
	ids := make([]string, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			caller, recipient := alice, bob
			if i%2 == 1 {
				caller, recipient = bob, alice
			}
			_, body := doRequest(t, app, "POST", "/api/messages/conversations", caller.ID.String(),
				map[string]string{"recipient_id": recipient.ID.String()})
			ids[i] = body["data"].(map[string]interface{})["id"].(string)
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Equal(t, ids[0], ids[i])
	}

	var count int64
	db.Model(&models.Conversation{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestSendAndFetchMessages_ReadMarking(t *testing.T) {
	db := setupTestDB(t)
	app, _ := newTestApp(t, db)

	alice := seedUser(t, db, "alice", models.RoleClient)
	bob := seedUser(t, db, "bob", models.RoleFreelancer)

	_, body := doRequest(t, app, "POST", "/api/messages/conversations", alice.ID.String(),
		map[string]string{"recipient_id": bob.ID.String()})
	convID := body["data"].(map[string]interface{})["id"].(string)

	resp, sent := doRequest(t, app, "POST", "/api/messages/"+convID, alice.ID.String(),
		map[string]string{"content": "hello bob"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, false, sent["data"].(map[string]interface{})["is_read"])

	// sender's own fetch does not mark its message
	_, fetched := doRequest(t, app, "GET", "/api/messages/"+convID, alice.ID.String(), nil)
	msgs := fetched["data"].([]interface{})
	assert.Len(t, msgs, 1)
	assert.Equal(t, false, msgs[0].(map[string]interface{})["is_read"])

	// recipient's fetch marks it read
	_, fetched = doRequest(t, app, "GET", "/api/messages/"+convID, bob.ID.String(), nil)
	msgs = fetched["data"].([]interface{})
	assert.Len(t, msgs, 1)

	var stored models.Message
	assert.NoError(t, db.First(&stored, "conversation_id = ?", convID).Error)
	assert.True(t, stored.IsRead)
	assert.NotNil(t, stored.ReadAt)
	firstReadAt := *stored.ReadAt

	// idempotent: a second fetch changes nothing
	_, _ = doRequest(t, app, "GET", "/api/messages/"+convID, bob.ID.String(), nil)
	assert.NoError(t, db.First(&stored, "conversation_id = ?", convID).Error)
	assert.True(t, stored.IsRead)
	assert.Equal(t, firstReadAt.UnixNano(), stored.ReadAt.UnixNano())

	// conversation pointer was bumped
	var conv models.Conversation
	assert.NoError(t, db.First(&conv, "id = ?", convID).Error)
	assert.Equal(t, stored.ID, conv.LastMessageID)
	assert.Equal(t, stored.CreatedAt.UnixNano(), conv.LastMessageAt.UnixNano())
}

func TestMessages_NonParticipantGets404(t *testing.T) {
	db := setupTestDB(t)
	app, _ := newTestApp(t, db)

	alice := seedUser(t, db, "alice", models.RoleClient)
	bob := seedUser(t, db, "bob", models.RoleFreelancer)
	eve := seedUser(t, db, "eve", models.RoleBoth)

	_, body := doRequest(t, app, "POST", "/api/messages/conversations", alice.ID.String(),
		map[string]string{"recipient_id": bob.ID.String()})
	convID := body["data"].(map[string]interface{})["id"].(string)

	// existence is hidden: outsiders see 404, not 403
	resp, _ := doRequest(t, app, "GET", "/api/messages/"+convID, eve.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doRequest(t, app, "POST", "/api/messages/"+convID, eve.ID.String(),
		map[string]string{"content": "let me in"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var count int64
	db.Model(&models.Message{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestMessages_OrderAndUnreadTotal(t *testing.T) {
	db := setupTestDB(t)
	app, _ := newTestApp(t, db)

	alice := seedUser(t, db, "alice", models.RoleClient)
	bob := seedUser(t, db, "bob", models.RoleFreelancer)

	_, body := doRequest(t, app, "POST", "/api/messages/conversations", alice.ID.String(),
		map[string]string{"recipient_id": bob.ID.String()})
	convID := body["data"].(map[string]interface{})["id"].(string)

	for i := 0; i < 3; i++ {
		resp, _ := doRequest(t, app, "POST", "/api/messages/"+convID, alice.ID.String(),
			map[string]string{"content": fmt.Sprintf("msg %d", i)})
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	_, total := doRequest(t, app, "GET", "/api/messages/unread/total", bob.ID.String(), nil)
	assert.Equal(t, float64(3), total["data"])

	// ascending order
	_, fetched := doRequest(t, app, "GET", "/api/messages/"+convID, bob.ID.String(), nil)
	msgs := fetched["data"].([]interface{})
	assert.Len(t, msgs, 3)
	assert.Equal(t, "msg 0", msgs[0].(map[string]interface{})["content"])
	assert.Equal(t, "msg 2", msgs[2].(map[string]interface{})["content"])

	// everything read now
	_, total = doRequest(t, app, "GET", "/api/messages/unread/total", bob.ID.String(), nil)
	assert.Equal(t, float64(0), total["data"])

	// the sender never had unread messages of their own
	_, total = doRequest(t, app, "GET", "/api/messages/unread/total", alice.ID.String(), nil)
	assert.Equal(t, float64(0), total["data"])
}

func TestGetConversations_PeerAndUnread(t *testing.T) {
	db := setupTestDB(t)
	app, _ := newTestApp(t, db)

	alice := seedUser(t, db, "alice", models.RoleClient)
	bob := seedUser(t, db, "bob", models.RoleFreelancer)

	_, body := doRequest(t, app, "POST", "/api/messages/conversations", alice.ID.String(),
		map[string]string{"recipient_id": bob.ID.String()})
	convID := body["data"].(map[string]interface{})["id"].(string)

	doRequest(t, app, "POST", "/api/messages/"+convID, alice.ID.String(),
		map[string]string{"content": "ping"})

	_, list := doRequest(t, app, "GET", "/api/messages/conversations", bob.ID.String(), nil)
	convs := list["data"].([]interface{})
	assert.Len(t, convs, 1)

	conv := convs[0].(map[string]interface{})
	assert.Equal(t, convID, conv["id"])
	assert.Equal(t, float64(1), conv["unread_count"])
	assert.Equal(t, "alice", conv["peer"].(map[string]interface{})["name"])
	assert.Equal(t, "ping", conv["last_message"].(map[string]interface{})["content"])
}
