package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gigflow-app/gigflow-backend/internal/models"
)

func TestCreateBid_HappyPath(t *testing.T) {
	db := setupTestDB(t)
	app, _ := newTestApp(t, db)

	client := seedUser(t, db, "client", models.RoleClient)
	freelancer := seedUser(t, db, "freelancer", models.RoleFreelancer)
	gig := seedGig(t, db, client, "Build an API", 500)

	resp, body := doRequest(t, app, "POST", "/api/bids", freelancer.ID.String(), map[string]interface{}{
		"gig_id":        gig.ID.String(),
		"proposal":      "I have done this before",
		"price":         400,
		"delivery_days": 5,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "pending", data["status"])
	assert.Equal(t, "freelancer", data["freelancer"].(map[string]interface{})["name"])
}

func TestCreateBid_DuplicateIsConflict(t *testing.T) {
	db := setupTestDB(t)
	app, _ := newTestApp(t, db)

	client := seedUser(t, db, "client", models.RoleClient)
	freelancer := seedUser(t, db, "freelancer", models.RoleFreelancer)
	gig := seedGig(t, db, client, "Build an API", 500)

	payload := map[string]interface{}{
		"gig_id":        gig.ID.String(),
		"proposal":      "first proposal",
		"price":         400,
		"delivery_days": 5,
	}

	resp, _ := doRequest(t, app, "POST", "/api/bids", freelancer.ID.String(), payload)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	payload["proposal"] = "second attempt"
	resp, _ = doRequest(t, app, "POST", "/api/bids", freelancer.ID.String(), payload)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// the original bid is unchanged
	var bid models.Bid
	assert.NoError(t, db.First(&bid, "gig_id = ? AND freelancer_id = ?", gig.ID, freelancer.ID).Error)
	assert.Equal(t, "first proposal", bid.Proposal)

	var count int64
	db.Model(&models.Bid{}).Where("gig_id = ?", gig.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestCreateBid_Validation(t *testing.T) {
	db := setupTestDB(t)
	app, _ := newTestApp(t, db)

	client := seedUser(t, db, "client", models.RoleClient)
	freelancer := seedUser(t, db, "freelancer", models.RoleFreelancer)
	gig := seedGig(t, db, client, "Build an API", 500)

	resp, body := doRequest(t, app, "POST", "/api/bids", freelancer.ID.String(), map[string]interface{}{
		"gig_id":        gig.ID.String(),
		"price":         -5,
		"delivery_days": 0,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	errs := body["errors"].(map[string]interface{})
	assert.Contains(t, errs, "proposal")
	assert.Contains(t, errs, "price")
	assert.Contains(t, errs, "delivery_days")
}

func TestCreateBid_Preconditions(t *testing.T) {
	db := setupTestDB(t)
	app, _ := newTestApp(t, db)

	client := seedUser(t, db, "client", models.RoleClient)
	clientOnly := seedUser(t, db, "clientonly", models.RoleClient)
	both := seedUser(t, db, "both", models.RoleBoth)
	gig := seedGig(t, db, client, "Build an API", 500)

	payload := map[string]interface{}{
		"gig_id":        gig.ID.String(),
		"proposal":      "pick me",
		"price":         100,
		"delivery_days": 3,
	}

	// client-only role cannot bid
	resp, _ := doRequest(t, app, "POST", "/api/bids", clientOnly.ID.String(), payload)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// "both" can
	resp, _ = doRequest(t, app, "POST", "/api/bids", both.ID.String(), payload)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// owner cannot bid on their own gig
	ownGig := seedGig(t, db, both, "Own gig", 100)
	resp, _ = doRequest(t, app, "POST", "/api/bids", both.ID.String(), map[string]interface{}{
		"gig_id":        ownGig.ID.String(),
		"proposal":      "myself",
		"price":         50,
		"delivery_days": 1,
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// assigned gig no longer accepts bids
	assert.NoError(t, db.Model(&models.Gig{}).Where("id = ?", gig.ID).
		Updates(map[string]interface{}{"status": models.GigStatusAssigned, "hired_freelancer_id": both.ID}).Error)
	late := seedUser(t, db, "late", models.RoleFreelancer)
	resp, _ = doRequest(t, app, "POST", "/api/bids", late.ID.String(), payload)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestHireEndpoint_FullFlow(t *testing.T) {
	db := setupTestDB(t)
	app, _ := newTestApp(t, db)

	client := seedUser(t, db, "client", models.RoleClient)
	f1 := seedUser(t, db, "f1", models.RoleFreelancer)
	f2 := seedUser(t, db, "f2", models.RoleFreelancer)
	gig := seedGig(t, db, client, "Big project", 500)

	var bidID string
	for _, f := range []*models.User{f1, f2} {
		resp, body := doRequest(t, app, "POST", "/api/bids", f.ID.String(), map[string]interface{}{
			"gig_id":        gig.ID.String(),
			"proposal":      "proposal from " + f.Name,
			"price":         400,
			"delivery_days": 7,
		})
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		if f == f1 {
			bidID = body["data"].(map[string]interface{})["id"].(string)
		}
	}

	// only the owner may hire
	resp, _ := doRequest(t, app, "PATCH", "/api/bids/"+bidID+"/hire", f2.ID.String(), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := doRequest(t, app, "PATCH", "/api/bids/"+bidID+"/hire", client.ID.String(), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hired", body["bid"].(map[string]interface{})["status"])
	assert.Equal(t, "assigned", body["gig"].(map[string]interface{})["status"])
	assert.Equal(t, f1.ID.String(), body["gig"].(map[string]interface{})["hired_freelancer_id"])

	// second hire on the same gig conflicts
	resp, _ = doRequest(t, app, "PATCH", "/api/bids/"+bidID+"/hire", client.ID.String(), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var winner models.User
	assert.NoError(t, db.First(&winner, "id = ?", f1.ID).Error)
	assert.Equal(t, 1, winner.CompletedGigs)
}

func TestGetBidsForGig_OwnerOnly(t *testing.T) {
	db := setupTestDB(t)
	app, _ := newTestApp(t, db)

	client := seedUser(t, db, "client", models.RoleClient)
	freelancer := seedUser(t, db, "freelancer", models.RoleFreelancer)
	gig := seedGig(t, db, client, "Build an API", 500)

	doRequest(t, app, "POST", "/api/bids", freelancer.ID.String(), map[string]interface{}{
		"gig_id":        gig.ID.String(),
		"proposal":      "pick me",
		"price":         100,
		"delivery_days": 3,
	})

	resp, _ := doRequest(t, app, "GET", "/api/bids/"+gig.ID.String(), freelancer.ID.String(), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := doRequest(t, app, "GET", "/api/bids/"+gig.ID.String(), client.ID.String(), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])
}
