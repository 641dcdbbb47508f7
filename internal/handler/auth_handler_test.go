package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edt-api/internal/models"
)

func TestAuthLogin(t *testing.T) {
	api := newTestAPI(nil)

	w := api.do(t, http.MethodPost, "/api/v1/auth/login", `{"email":"chef@ista.ma","password":"secret"}`, "", 0)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"access_token":"access"`)
	assert.Equal(t, "chef@ista.ma", api.auth.loginReq.Email)
	assert.NotEmpty(t, api.auth.loginReq.IP)

	w = api.do(t, http.MethodPost, "/api/v1/auth/login", `{"email":"chef@ista.ma","password":"wrong"}`, "", 0)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMeAndLogout(t *testing.T) {
	api := newTestAPI(nil)

	w := api.do(t, http.MethodGet, "/api/v1/auth/me", "", models.RoleDepartmentHead, 100)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(100), api.auth.meID)

	w = api.do(t, http.MethodPost, "/api/v1/auth/logout", `{"refresh_token":"rt-1"}`, models.RoleDepartmentHead, 100)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "rt-1", api.auth.logout)

	w = api.do(t, http.MethodPost, "/api/v1/auth/logout", `{}`, models.RoleDepartmentHead, 100)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProbes(t *testing.T) {
	api := newTestAPI(pingerStub{})
	assert.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/health", "", "", 0).Code)
	assert.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/ready", "", "", 0).Code)

	down := newTestAPI(pingerStub{err: errBoom})
	w := down.do(t, http.MethodGet, "/ready", "", "", 0)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "unavailable")
}
