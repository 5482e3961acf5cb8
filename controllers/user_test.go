package controllers_test

import (
	"net/http"
	"testing"

	"github.com/campushub/loyalty-be/models"
	"github.com/stretchr/testify/require"
)

func TestRegisterUser(t *testing.T) {
	r := setupRouter(t)
	cashier := createUser(t, "cashier1", models.RoleCashier)
	token := authToken(t, cashier)

	w := do(t, r, http.MethodPost, "/users", token, map[string]string{
		"utorid": "newkid99",
		"name":   "New Kid",
		"email":  "new.kid@mail.utoronto.ca",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	body := decode(t, w)
	require.Equal(t, "newkid99", body["utorid"])
	require.Equal(t, false, body["verified"])
	require.NotEmpty(t, body["resetToken"])

	// Duplicate utorid
	w = do(t, r, http.MethodPost, "/users", token, map[string]string{
		"utorid": "newkid99",
		"name":   "New Kid",
		"email":  "other.kid@mail.utoronto.ca",
	})
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestRegisterUserValidation(t *testing.T) {
	r := setupRouter(t)
	token := authToken(t, createUser(t, "cashier1", models.RoleCashier))

	// utorid must be exactly 8 alphanumerics
	w := do(t, r, http.MethodPost, "/users", token, map[string]string{
		"utorid": "bad-id",
		"name":   "Bad",
		"email":  "bad@mail.utoronto.ca",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// non-UofT email
	w = do(t, r, http.MethodPost, "/users", token, map[string]string{
		"utorid": "newkid99",
		"name":   "New Kid",
		"email":  "kid@gmail.com",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterRequiresCashier(t *testing.T) {
	r := setupRouter(t)
	token := authToken(t, createUser(t, "regular1", models.RoleRegular))

	w := do(t, r, http.MethodPost, "/users", token, map[string]string{
		"utorid": "newkid99",
		"name":   "New Kid",
		"email":  "new.kid@mail.utoronto.ca",
	})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodPost, "/users", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListUsers(t *testing.T) {
	r := setupRouter(t)
	manager := createUser(t, "manager1", models.RoleManager)
	createUser(t, "cashier1", models.RoleCashier)
	createUser(t, "alice123", models.RoleRegular, unverified())
	token := authToken(t, manager)

	w := do(t, r, http.MethodGet, "/users", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 3, decode(t, w)["count"])

	w = do(t, r, http.MethodGet, "/users?role=cashier", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 1, decode(t, w)["count"])

	w = do(t, r, http.MethodGet, "/users?verified=false", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 1, decode(t, w)["count"])

	// Nobody has logged in yet
	w = do(t, r, http.MethodGet, "/users?activated=true", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 0, decode(t, w)["count"])

	w = do(t, r, http.MethodGet, "/users?limit=2", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.EqualValues(t, 3, body["count"])
	require.Len(t, body["results"], 2)

	w = do(t, r, http.MethodGet, "/users?role=wizard", token, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Cashiers cannot list users
	w = do(t, r, http.MethodGet, "/users", authToken(t, createUser(t, "cashier2", models.RoleCashier)), nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetUserViews(t *testing.T) {
	r := setupRouter(t)
	target := createUser(t, "alice123", models.RoleRegular, withPoints(42))
	cashier := createUser(t, "cashier1", models.RoleCashier)
	manager := createUser(t, "manager1", models.RoleManager)

	path := "/users/" + itoa(target.ID)

	w := do(t, r, http.MethodGet, path, authToken(t, cashier), nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.EqualValues(t, 42, body["points"])
	_, hasEmail := body["email"]
	require.False(t, hasEmail)

	w = do(t, r, http.MethodGet, path, authToken(t, manager), nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	require.Equal(t, target.Email, body["email"])
	require.Equal(t, false, body["suspicious"])

	w = do(t, r, http.MethodGet, "/users/99999", authToken(t, manager), nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateUserByManager(t *testing.T) {
	r := setupRouter(t)
	target := createUser(t, "alice123", models.RoleRegular, unverified(), flaggedSuspicious())
	token := authToken(t, createUser(t, "manager1", models.RoleManager))
	path := "/users/" + itoa(target.ID)

	w := do(t, r, http.MethodPatch, path, token, map[string]interface{}{"verified": true})
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, reload(t, target).Verified)

	// Verification never goes back
	w = do(t, r, http.MethodPatch, path, token, map[string]interface{}{"verified": false})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Promotion to cashier clears the suspicious flag
	w = do(t, r, http.MethodPatch, path, token, map[string]interface{}{"role": "cashier"})
	require.Equal(t, http.StatusOK, w.Code)
	fresh := reload(t, target)
	require.Equal(t, models.RoleCashier, fresh.Role)
	require.False(t, fresh.Suspicious)

	// Managers cannot mint managers
	w = do(t, r, http.MethodPatch, path, token, map[string]interface{}{"role": "manager"})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodPatch, path, token, map[string]interface{}{})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateUserBySuperuser(t *testing.T) {
	r := setupRouter(t)
	target := createUser(t, "alice123", models.RoleRegular)
	token := authToken(t, createUser(t, "super123", models.RoleSuperuser))

	w := do(t, r, http.MethodPatch, "/users/"+itoa(target.ID), token, map[string]interface{}{"role": "manager"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, models.RoleManager, reload(t, target).Role)
}

func TestCurrentUser(t *testing.T) {
	r := setupRouter(t)
	user := createUser(t, "alice123", models.RoleRegular, withPoints(15))
	token := authToken(t, user)

	w := do(t, r, http.MethodGet, "/users/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.Equal(t, "alice123", body["utorid"])
	require.Equal(t, "regular", body["role"])
	require.EqualValues(t, 15, body["points"])

	w = do(t, r, http.MethodPatch, "/users/me", token, map[string]string{
		"name":     "Alice Liddell",
		"birthday": "1999-04-02",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Alice Liddell", decode(t, w)["name"])

	w = do(t, r, http.MethodPatch, "/users/me", token, map[string]string{"birthday": "April 2"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPatch, "/users/me", token, map[string]string{})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Email must stay unique
	createUser(t, "other987", models.RoleRegular)
	w = do(t, r, http.MethodPatch, "/users/me", token, map[string]string{
		"email": "other987@mail.utoronto.ca",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChangePassword(t *testing.T) {
	r := setupRouter(t)
	user := createUser(t, "alice123", models.RoleRegular)
	token := authToken(t, user)

	w := do(t, r, http.MethodPatch, "/users/me/password", token, map[string]string{
		"old": "WrongPass1!",
		"new": "NewPass99!",
	})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodPatch, "/users/me/password", token, map[string]string{
		"old": testPassword,
		"new": "weak",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPatch, "/users/me/password", token, map[string]string{
		"old": testPassword,
		"new": "NewPass99!",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodPost, "/auth/tokens", "", map[string]string{
		"utorid":   user.Utorid,
		"password": "NewPass99!",
	})
	require.Equal(t, http.StatusOK, w.Code)
}
