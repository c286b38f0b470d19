package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-account-identity/internal/application"
	"github.com/oksasatya/go-account-identity/internal/domain/apperror"
	"github.com/oksasatya/go-account-identity/pkg/helpers"
)

type stubLookup struct {
	summary *application.AccountSummary
	err     error
}

func (s stubLookup) GetCurrentUser(context.Context, string) (*application.AccountSummary, error) {
	return s.summary, s.err
}

func newAuthRouter(lookup application.AccountLookup) (*gin.Engine, *helpers.JWTManager) {
	gin.SetMode(gin.TestMode)
	jwtm := helpers.NewJWTManager("secret")
	guard := application.NewAccessGuard(jwtm, lookup, helpers.NewDiscardLogger())

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/me", Auth(guard), func(c *gin.Context) {
		p, ok := PrincipalFrom(c.Request.Context())
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": p.AccountID, "username": p.Username})
	})
	return r, jwtm
}

func doGet(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_Allows(t *testing.T) {
	r, jwtm := newAuthRouter(stubLookup{summary: &application.AccountSummary{ID: "a1", Username: "alice", Confirmed: true}})
	token, err := jwtm.Sign("a1", "alice")
	require.NoError(t, err)

	w := doGet(r, "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "a1", body["id"])
	assert.Equal(t, "alice", body["username"])
}

func TestAuth_Rejects(t *testing.T) {
	confirmed := stubLookup{summary: &application.AccountSummary{ID: "a1", Username: "alice", Confirmed: true}}
	unconfirmed := stubLookup{summary: &application.AccountSummary{ID: "a1", Username: "alice"}}
	missing := stubLookup{err: apperror.New(apperror.KindNotFound, "user does not exist")}

	cases := []struct {
		name   string
		lookup stubLookup
		header func(*helpers.JWTManager) string
		status int
	}{
		{"no header", confirmed, func(*helpers.JWTManager) string { return "" }, http.StatusUnauthorized},
		{"bad token", confirmed, func(*helpers.JWTManager) string { return "Bearer junk" }, http.StatusUnauthorized},
		{"unknown account", missing, func(j *helpers.JWTManager) string {
			tok, _ := j.Sign("a1", "alice")
			return "Bearer " + tok
		}, http.StatusUnauthorized},
		{"unconfirmed", unconfirmed, func(j *helpers.JWTManager) string {
			tok, _ := j.Sign("a1", "alice")
			return "Bearer " + tok
		}, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, jwtm := newAuthRouter(tc.lookup)
			w := doGet(r, tc.header(jwtm))
			assert.Equal(t, tc.status, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["request_id"])
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(apperror.Validation(map[string]string{"email": "is required"})))
	assert.Equal(t, http.StatusConflict, StatusFor(apperror.ErrDuplicateIdentity))
	assert.Equal(t, http.StatusNotFound, StatusFor(apperror.ErrNotFound))
	assert.Equal(t, http.StatusUnauthorized, StatusFor(apperror.ErrInvalidCredentials))
	assert.Equal(t, http.StatusConflict, StatusFor(apperror.ErrAlreadyConfirmed))
	assert.Equal(t, http.StatusUnauthorized, StatusFor(apperror.ErrUnauthenticated))
	assert.Equal(t, http.StatusForbidden, StatusFor(apperror.ErrForbidden))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(assert.AnError))
}

func TestRequestID_ReusesInbound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Body.String())
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Body.String())
}
