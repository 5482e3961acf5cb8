package controllers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/campushub/loyalty-be/config"
	"github.com/campushub/loyalty-be/models"
	"github.com/stretchr/testify/require"
)

func createEvent(t *testing.T, opts ...func(*models.Event)) *models.Event {
	t.Helper()
	capacity := 10
	event := &models.Event{
		Name:         "Orientation",
		Description:  "Welcome night",
		Location:     "BA 1190",
		StartTime:    time.Now().Add(24 * time.Hour),
		EndTime:      time.Now().Add(26 * time.Hour),
		Capacity:     &capacity,
		PointsRemain: 100,
		Published:    true,
	}
	for _, opt := range opts {
		opt(event)
	}
	require.NoError(t, config.DB.Create(event).Error)
	return event
}

func withCapacity(n int) func(*models.Event) {
	return func(e *models.Event) { e.Capacity = &n }
}

func unpublished() func(*models.Event) {
	return func(e *models.Event) { e.Published = false }
}

func alreadyStarted() func(*models.Event) {
	return func(e *models.Event) { e.StartTime = time.Now().Add(-time.Hour) }
}

func alreadyEnded() func(*models.Event) {
	return func(e *models.Event) {
		e.StartTime = time.Now().Add(-2 * time.Hour)
		e.EndTime = time.Now().Add(-time.Hour)
	}
}

func addGuestRow(t *testing.T, event *models.Event, user *models.User) {
	t.Helper()
	require.NoError(t, config.DB.Create(&models.RSVP{UserID: user.ID, EventID: event.ID}).Error)
}

func addOrganizerRow(t *testing.T, event *models.Event, user *models.User) {
	t.Helper()
	require.NoError(t, config.DB.Create(&models.Organizer{UserID: user.ID, EventID: event.ID}).Error)
}

func TestCreateEvent(t *testing.T) {
	r := setupRouter(t)
	token := authToken(t, createUser(t, "manager1", models.RoleManager))

	start := time.Now().Add(24 * time.Hour).Format(time.RFC3339)
	end := time.Now().Add(26 * time.Hour).Format(time.RFC3339)

	w := do(t, r, http.MethodPost, "/events", token, map[string]interface{}{
		"name":        "Orientation",
		"description": "Welcome night",
		"location":    "BA 1190",
		"startTime":   start,
		"endTime":     end,
		"capacity":    50,
		"points":      500,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	body := decode(t, w)
	require.EqualValues(t, 500, body["pointsRemain"])
	require.EqualValues(t, 0, body["pointsAwarded"])
	require.Equal(t, false, body["published"])

	// End before start
	w = do(t, r, http.MethodPost, "/events", token, map[string]interface{}{
		"name":        "Backwards",
		"description": "x",
		"location":    "x",
		"startTime":   end,
		"endTime":     start,
		"points":      10,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/events", token, map[string]interface{}{
		"name":        "Free",
		"description": "x",
		"location":    "x",
		"startTime":   start,
		"endTime":     end,
		"points":      0,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Managers only
	w = do(t, r, http.MethodPost, "/events", authToken(t, createUser(t, "alice123", models.RoleRegular)), nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestEventVisibility(t *testing.T) {
	r := setupRouter(t)
	manager := createUser(t, "manager1", models.RoleManager)
	member := createUser(t, "alice123", models.RoleRegular)
	organizer := createUser(t, "orgnzr12", models.RoleRegular)

	hidden := createEvent(t, unpublished())
	createEvent(t)
	addOrganizerRow(t, hidden, organizer)

	memberToken := authToken(t, member)

	// Unpublished events are invisible to members
	w := do(t, r, http.MethodGet, "/events", memberToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 1, decode(t, w)["count"])

	w = do(t, r, http.MethodGet, "/events/"+itoa(hidden.ID), memberToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	// ...but not to their organizers or managers
	w = do(t, r, http.MethodGet, "/events/"+itoa(hidden.ID), authToken(t, organizer), nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.Equal(t, false, body["published"])
	require.Contains(t, body, "guests")

	w = do(t, r, http.MethodGet, "/events", authToken(t, manager), nil)
	require.EqualValues(t, 2, decode(t, w)["count"])

	// Member view carries no budget fields
	published := decode(t, do(t, r, http.MethodGet, "/events", memberToken, nil))
	first := published["results"].([]interface{})[0].(map[string]interface{})
	require.NotContains(t, first, "pointsRemain")

	// started and ended are mutually exclusive
	w = do(t, r, http.MethodGet, "/events?started=true&ended=true", memberToken, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventCapacityAndRSVP(t *testing.T) {
	r := setupRouter(t)
	event := createEvent(t, withCapacity(2))
	alice := createUser(t, "alice123", models.RoleRegular)
	bob := createUser(t, "bobby456", models.RoleRegular)
	carol := createUser(t, "carol789", models.RoleRegular)

	path := "/events/" + itoa(event.ID) + "/guests/me"

	w := do(t, r, http.MethodPost, path, authToken(t, alice), nil)
	require.Equal(t, http.StatusCreated, w.Code)
	require.EqualValues(t, 1, decode(t, w)["numGuests"])

	// Joining twice is rejected
	w = do(t, r, http.MethodPost, path, authToken(t, alice), nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, path, authToken(t, bob), nil)
	require.Equal(t, http.StatusCreated, w.Code)

	// Full
	w = do(t, r, http.MethodPost, path, authToken(t, carol), nil)
	require.Equal(t, http.StatusGone, w.Code)

	w = do(t, r, http.MethodDelete, path, authToken(t, alice), nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	// Leaving frees a seat
	w = do(t, r, http.MethodPost, path, authToken(t, carol), nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, r, http.MethodDelete, path, authToken(t, bob), nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, r, http.MethodDelete, path, authToken(t, bob), nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	// Staff do not self-RSVP
	w = do(t, r, http.MethodPost, path, authToken(t, createUser(t, "cashier1", models.RoleCashier)), nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestJoinGuards(t *testing.T) {
	r := setupRouter(t)
	member := createUser(t, "alice123", models.RoleRegular)
	token := authToken(t, member)

	hidden := createEvent(t, unpublished())
	w := do(t, r, http.MethodPost, "/events/"+itoa(hidden.ID)+"/guests/me", token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	over := createEvent(t, alreadyEnded())
	w = do(t, r, http.MethodPost, "/events/"+itoa(over.ID)+"/guests/me", token, nil)
	require.Equal(t, http.StatusGone, w.Code)
}

func TestOrganizerManagement(t *testing.T) {
	r := setupRouter(t)
	manager := createUser(t, "manager1", models.RoleManager)
	person := createUser(t, "orgnzr12", models.RoleRegular)
	event := createEvent(t)
	token := authToken(t, manager)

	w := do(t, r, http.MethodPost, "/events/"+itoa(event.ID)+"/organizers", token,
		map[string]string{"utorid": person.Utorid})
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, decode(t, w)["organizers"], 1)

	// Organizers cannot also be guests
	w = do(t, r, http.MethodPost, "/events/"+itoa(event.ID)+"/guests", token,
		map[string]string{"utorid": person.Utorid})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// ...and guests cannot be made organizers
	guest := createUser(t, "guest123", models.RoleRegular)
	addGuestRow(t, event, guest)
	w = do(t, r, http.MethodPost, "/events/"+itoa(event.ID)+"/organizers", token,
		map[string]string{"utorid": guest.Utorid})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodDelete, "/events/"+itoa(event.ID)+"/organizers/"+itoa(person.ID), token, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, r, http.MethodDelete, "/events/"+itoa(event.ID)+"/organizers/"+itoa(person.ID), token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	over := createEvent(t, alreadyEnded())
	w = do(t, r, http.MethodPost, "/events/"+itoa(over.ID)+"/organizers", token,
		map[string]string{"utorid": person.Utorid})
	require.Equal(t, http.StatusGone, w.Code)
}

func TestOrganizerAddsGuest(t *testing.T) {
	r := setupRouter(t)
	organizer := createUser(t, "orgnzr12", models.RoleRegular)
	guest := createUser(t, "guest123", models.RoleRegular)
	event := createEvent(t)
	addOrganizerRow(t, event, organizer)

	w := do(t, r, http.MethodPost, "/events/"+itoa(event.ID)+"/guests", authToken(t, organizer),
		map[string]string{"utorid": guest.Utorid})
	require.Equal(t, http.StatusCreated, w.Code)
	require.EqualValues(t, 1, decode(t, w)["numGuests"])

	// Random members cannot add guests
	rando := createUser(t, "rando999", models.RoleRegular)
	w = do(t, r, http.MethodPost, "/events/"+itoa(event.ID)+"/guests", authToken(t, rando),
		map[string]string{"utorid": rando.Utorid})
	require.Equal(t, http.StatusForbidden, w.Code)

	// Manager removes a guest
	manager := createUser(t, "manager1", models.RoleManager)
	w = do(t, r, http.MethodDelete, "/events/"+itoa(event.ID)+"/guests/"+itoa(guest.ID),
		authToken(t, manager), nil)
	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestUpdateEvent(t *testing.T) {
	r := setupRouter(t)
	manager := createUser(t, "manager1", models.RoleManager)
	token := authToken(t, manager)

	event := createEvent(t, unpublished())
	path := "/events/" + itoa(event.ID)

	w := do(t, r, http.MethodPatch, path, token, map[string]interface{}{"name": "Orientation 2.0"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Orientation 2.0", decode(t, w)["name"])

	// Raising the budget adjusts the remainder
	w = do(t, r, http.MethodPatch, path, token, map[string]interface{}{"points": 150})
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 150, decode(t, w)["pointsRemain"])

	// Publishing is one-way
	w = do(t, r, http.MethodPatch, path, token, map[string]interface{}{"published": false})
	require.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, r, http.MethodPatch, path, token, map[string]interface{}{"published": true})
	require.Equal(t, http.StatusOK, w.Code)

	// Organizers cannot touch points or published
	organizer := createUser(t, "orgnzr12", models.RoleRegular)
	var fresh models.Event
	require.NoError(t, config.DB.First(&fresh, event.ID).Error)
	addOrganizerRow(t, &fresh, organizer)
	w = do(t, r, http.MethodPatch, path, authToken(t, organizer), map[string]interface{}{"points": 300})
	require.Equal(t, http.StatusForbidden, w.Code)

	// Frozen fields once started
	started := createEvent(t, alreadyStarted())
	w = do(t, r, http.MethodPatch, "/events/"+itoa(started.ID), token,
		map[string]interface{}{"name": "Too late"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateEventCapacityGuard(t *testing.T) {
	r := setupRouter(t)
	token := authToken(t, createUser(t, "manager1", models.RoleManager))
	event := createEvent(t, withCapacity(5))

	addGuestRow(t, event, createUser(t, "alice123", models.RoleRegular))
	addGuestRow(t, event, createUser(t, "bobby456", models.RoleRegular))

	w := do(t, r, http.MethodPatch, "/events/"+itoa(event.ID), token,
		map[string]interface{}{"capacity": 1})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPatch, "/events/"+itoa(event.ID), token,
		map[string]interface{}{"capacity": 2})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestDeleteEvent(t *testing.T) {
	r := setupRouter(t)
	token := authToken(t, createUser(t, "manager1", models.RoleManager))

	draft := createEvent(t, unpublished())
	w := do(t, r, http.MethodDelete, "/events/"+itoa(draft.ID), token, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	live := createEvent(t)
	w = do(t, r, http.MethodDelete, "/events/"+itoa(live.ID), token, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventAwardAllGuests(t *testing.T) {
	r := setupRouter(t)
	manager := createUser(t, "manager1", models.RoleManager)
	alice := createUser(t, "alice123", models.RoleRegular)
	bob := createUser(t, "bobby456", models.RoleRegular)

	event := createEvent(t)
	event.PointsRemain = 10
	require.NoError(t, config.DB.Save(event).Error)
	addGuestRow(t, event, alice)
	addGuestRow(t, event, bob)

	token := authToken(t, manager)
	w := do(t, r, http.MethodPost, "/events/"+itoa(event.ID)+"/transactions", token,
		map[string]interface{}{"type": "event", "amount": 5})
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, decodeList(t, w), 2)

	require.Equal(t, 5, reload(t, alice).Points)
	require.Equal(t, 5, reload(t, bob).Points)

	var fresh models.Event
	require.NoError(t, config.DB.First(&fresh, event.ID).Error)
	require.Equal(t, 0, fresh.PointsRemain)
	require.Equal(t, 10, fresh.PointsAwarded)

	// Budget exhausted: nothing moves
	w = do(t, r, http.MethodPost, "/events/"+itoa(event.ID)+"/transactions", token,
		map[string]interface{}{"type": "event", "amount": 5})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, 5, reload(t, alice).Points)
}

func TestEventAwardSingleGuest(t *testing.T) {
	r := setupRouter(t)
	organizer := createUser(t, "orgnzr12", models.RoleRegular)
	alice := createUser(t, "alice123", models.RoleRegular)

	event := createEvent(t)
	addOrganizerRow(t, event, organizer)
	addGuestRow(t, event, alice)

	token := authToken(t, organizer)
	w := do(t, r, http.MethodPost, "/events/"+itoa(event.ID)+"/transactions", token,
		map[string]interface{}{"type": "event", "amount": 20, "utorid": alice.Utorid})
	require.Equal(t, http.StatusCreated, w.Code)

	body := decode(t, w)
	require.Equal(t, alice.Utorid, body["recipient"])
	require.EqualValues(t, 20, body["awarded"])
	require.EqualValues(t, event.ID, body["relatedId"])
	require.Equal(t, 20, reload(t, alice).Points)

	// Non-guests get nothing
	w = do(t, r, http.MethodPost, "/events/"+itoa(event.ID)+"/transactions", token,
		map[string]interface{}{"type": "event", "amount": 20, "utorid": organizer.Utorid})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Wrong type
	w = do(t, r, http.MethodPost, "/events/"+itoa(event.ID)+"/transactions", token,
		map[string]interface{}{"type": "purchase", "amount": 20, "utorid": alice.Utorid})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Only organizers and managers award
	w = do(t, r, http.MethodPost, "/events/"+itoa(event.ID)+"/transactions", authToken(t, alice),
		map[string]interface{}{"type": "event", "amount": 20, "utorid": alice.Utorid})
	require.Equal(t, http.StatusForbidden, w.Code)
}
