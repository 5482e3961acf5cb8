package controllers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/campushub/loyalty-be/config"
	"github.com/campushub/loyalty-be/models"
	"github.com/stretchr/testify/require"
)

func createPromotion(t *testing.T, opts ...func(*models.Promotion)) *models.Promotion {
	t.Helper()
	promo := &models.Promotion{
		Name:        "Double points",
		Description: "Limited time",
		Type:        models.PromotionTypeAutomatic,
		StartTime:   time.Now().Add(-time.Hour),
		EndTime:     time.Now().Add(time.Hour),
		Points:      10,
	}
	for _, opt := range opts {
		opt(promo)
	}
	require.NoError(t, config.DB.Create(promo).Error)
	return promo
}

func oneTime() func(*models.Promotion) {
	return func(p *models.Promotion) { p.Type = models.PromotionTypeOneTime }
}

func notStarted() func(*models.Promotion) {
	return func(p *models.Promotion) {
		p.StartTime = time.Now().Add(time.Hour)
		p.EndTime = time.Now().Add(2 * time.Hour)
	}
}

func finished() func(*models.Promotion) {
	return func(p *models.Promotion) {
		p.StartTime = time.Now().Add(-2 * time.Hour)
		p.EndTime = time.Now().Add(-time.Hour)
	}
}

func TestCreatePromotion(t *testing.T) {
	r := setupRouter(t)
	token := authToken(t, createUser(t, "manager1", models.RoleManager))

	start := time.Now().Add(time.Hour).Format(time.RFC3339)
	end := time.Now().Add(2 * time.Hour).Format(time.RFC3339)

	w := do(t, r, http.MethodPost, "/promotions", token, map[string]interface{}{
		"name":        "Double points",
		"description": "Limited time",
		"type":        "automatic",
		"startTime":   start,
		"endTime":     end,
		"rate":        0.02,
		"minSpending": 5.0,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	require.EqualValues(t, 0.02, decode(t, w)["rate"])

	// Start in the past
	w = do(t, r, http.MethodPost, "/promotions", token, map[string]interface{}{
		"name":        "Retroactive",
		"description": "x",
		"type":        "automatic",
		"startTime":   time.Now().Add(-time.Hour).Format(time.RFC3339),
		"endTime":     end,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// End before start
	w = do(t, r, http.MethodPost, "/promotions", token, map[string]interface{}{
		"name":        "Backwards",
		"description": "x",
		"type":        "automatic",
		"startTime":   end,
		"endTime":     start,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/promotions", token, map[string]interface{}{
		"name":        "Mystery",
		"description": "x",
		"type":        "recurring",
		"startTime":   start,
		"endTime":     end,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/promotions", token, map[string]interface{}{
		"name":        "Negative",
		"description": "x",
		"type":        "automatic",
		"startTime":   start,
		"endTime":     end,
		"minSpending": -3.0,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/promotions", authToken(t, createUser(t, "alice123", models.RoleRegular)), nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestPromotionVisibility(t *testing.T) {
	r := setupRouter(t)
	manager := createUser(t, "manager1", models.RoleManager)
	cashier := createUser(t, "cashier1", models.RoleCashier)
	member := createUser(t, "alice123", models.RoleRegular)

	active := createPromotion(t)
	used := createPromotion(t, oneTime())
	createPromotion(t, notStarted())
	createPromotion(t, finished())

	// Consume the one_time promotion for the member
	w := do(t, r, http.MethodPost, "/transactions", authToken(t, cashier), map[string]interface{}{
		"utorid":       member.Utorid,
		"type":         "purchase",
		"spent":        10.0,
		"promotionIds": []uint{used.ID},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// Member sees active promotions minus the one already used, without
	// start times
	w = do(t, r, http.MethodGet, "/promotions", authToken(t, member), nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.EqualValues(t, 1, body["count"])
	first := body["results"].([]interface{})[0].(map[string]interface{})
	require.EqualValues(t, active.ID, first["id"])
	require.NotContains(t, first, "startTime")

	// Managers see everything
	w = do(t, r, http.MethodGet, "/promotions", authToken(t, manager), nil)
	body = decode(t, w)
	require.EqualValues(t, 4, body["count"])
	first = body["results"].([]interface{})[0].(map[string]interface{})
	require.Contains(t, first, "startTime")

	w = do(t, r, http.MethodGet, "/promotions?started=false", authToken(t, manager), nil)
	require.EqualValues(t, 1, decode(t, w)["count"])

	w = do(t, r, http.MethodGet, "/promotions?ended=true", authToken(t, manager), nil)
	require.EqualValues(t, 1, decode(t, w)["count"])

	w = do(t, r, http.MethodGet, "/promotions?started=true&ended=true", authToken(t, manager), nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPromotionByID(t *testing.T) {
	r := setupRouter(t)
	manager := createUser(t, "manager1", models.RoleManager)
	member := createUser(t, "alice123", models.RoleRegular)

	upcoming := createPromotion(t, notStarted())
	active := createPromotion(t)

	// Inactive promotions do not exist for members
	w := do(t, r, http.MethodGet, "/promotions/"+itoa(upcoming.ID), authToken(t, member), nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, "/promotions/"+itoa(active.ID), authToken(t, member), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotContains(t, decode(t, w), "startTime")

	w = do(t, r, http.MethodGet, "/promotions/"+itoa(upcoming.ID), authToken(t, manager), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, decode(t, w), "startTime")

	w = do(t, r, http.MethodGet, "/promotions/9999", authToken(t, manager), nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdatePromotion(t *testing.T) {
	r := setupRouter(t)
	token := authToken(t, createUser(t, "manager1", models.RoleManager))

	upcoming := createPromotion(t, notStarted())
	w := do(t, r, http.MethodPatch, "/promotions/"+itoa(upcoming.ID), token,
		map[string]interface{}{"name": "Triple points", "points": 30})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.Equal(t, "Triple points", body["name"])
	require.EqualValues(t, 30, body["points"])

	// Once started, only the end time may move
	running := createPromotion(t)
	w = do(t, r, http.MethodPatch, "/promotions/"+itoa(running.ID), token,
		map[string]interface{}{"name": "Too late"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPatch, "/promotions/"+itoa(running.ID), token,
		map[string]interface{}{"endTime": time.Now().Add(3 * time.Hour).Format(time.RFC3339)})
	require.Equal(t, http.StatusOK, w.Code)

	// Once ended, nothing may change
	over := createPromotion(t, finished())
	w = do(t, r, http.MethodPatch, "/promotions/"+itoa(over.ID), token,
		map[string]interface{}{"endTime": time.Now().Add(3 * time.Hour).Format(time.RFC3339)})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// No rewinding times into the past
	w = do(t, r, http.MethodPatch, "/promotions/"+itoa(upcoming.ID), token,
		map[string]interface{}{"startTime": time.Now().Add(-time.Hour).Format(time.RFC3339)})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeletePromotion(t *testing.T) {
	r := setupRouter(t)
	token := authToken(t, createUser(t, "manager1", models.RoleManager))

	upcoming := createPromotion(t, notStarted())
	w := do(t, r, http.MethodDelete, "/promotions/"+itoa(upcoming.ID), token, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	running := createPromotion(t)
	w = do(t, r, http.MethodDelete, "/promotions/"+itoa(running.ID), token, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodDelete, "/promotions/9999", token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}
