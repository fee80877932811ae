package handlers

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/brandonhuynh1/signage-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var adminCols = []string{"id", "name", "email", "password_hash", "created_at", "updated_at"}

func newAuthRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock, *services.TokenManager) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })

	tm := newTokenManager(t, time.Minute)
	svc := services.NewAuthService(sqlx.NewDb(raw, "postgres"), tm, bcrypt.MinCost, zerolog.Nop())

	r := gin.New()
	RegisterAuthHandlers(r, svc, zerolog.Nop())
	return r, mock, tm
}

func postJSON(r http.Handler, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func expectHasAdmin(mock sqlmock.Sqlmock, exists bool) {
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM admin_users)`)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(exists))
}

func TestCreateFirstAdminIsOpen(t *testing.T) {
	r, mock, _ := newAuthRouter(t)
	now := time.Now()

	expectHasAdmin(mock, false)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO admin_users (name, email, password_hash)`)).
		WithArgs("Ada", "ada@example.com", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(adminCols).AddRow(1, "Ada", "ada@example.com", "hash", now, now))

	w := postJSON(r, "/api/auth/create-admin-user", `{"email":"Ada@Example.com","name":"Ada","password":"password1"}`, "")

	assert.Equal(t, http.StatusCreated, w.Code)
	user := decode(t, w)["user"].(map[string]interface{})
	assert.Equal(t, "ada@example.com", user["email"])
	assert.NotContains(t, w.Body.String(), "hash")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAdminNeedsTokenOnceBootstrapped(t *testing.T) {
	r, mock, _ := newAuthRouter(t)

	expectHasAdmin(mock, true)

	w := postJSON(r, "/api/auth/create-admin-user", `{"email":"bob@example.com","name":"Bob","password":"password1"}`, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAdminValidatesPasswordLength(t *testing.T) {
	r, mock, tm := newAuthRouter(t)
	pair := issue(t, tm)

	expectHasAdmin(mock, true)

	w := postJSON(r, "/api/auth/create-admin-user", `{"email":"bob@example.com","name":"Bob","password":"short"}`, pair.AccessToken)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request data", decode(t, w)["error"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password1"), bcrypt.MinCost)
	require.NoError(t, err)
	now := time.Now()

	tests := []struct {
		name     string
		password string
		status   int
	}{
		{"valid credentials", "password1", http.StatusOK},
		{"wrong password", "password2", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, mock, tm := newAuthRouter(t)
			mock.ExpectQuery(regexp.QuoteMeta(`FROM admin_users WHERE email = $1`)).
				WithArgs("ada@example.com").
				WillReturnRows(sqlmock.NewRows(adminCols).AddRow(1, "Ada", "ada@example.com", string(hash), now, now))

			w := postJSON(r, "/api/auth/login", `{"email":"ada@example.com","password":"`+tt.password+`"}`, "")

			assert.Equal(t, tt.status, w.Code)
			body := decode(t, w)
			if tt.status == http.StatusOK {
				claims, err := tm.ParseAccess(body["accessToken"].(string))
				require.NoError(t, err)
				assert.EqualValues(t, 1, claims.UserID)
				assert.NotEmpty(t, body["refreshToken"])
			} else {
				assert.Equal(t, "Invalid email or password", body["error"])
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRefreshToken(t *testing.T) {
	r, mock, tm := newAuthRouter(t)
	pair := issue(t, tm)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM admin_users WHERE id = $1`)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(adminCols).AddRow(7, "Ada", "ada@example.com", "hash", now, now))

	w := postJSON(r, "/api/auth/refresh-token", `{"refreshToken":"`+pair.RefreshToken+`"}`, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode(t, w)["accessToken"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshTokenRejectsAccessToken(t *testing.T) {
	r, _, tm := newAuthRouter(t)
	pair := issue(t, tm)

	w := postJSON(r, "/api/auth/refresh-token", `{"refreshToken":"`+pair.AccessToken+`"}`, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, true, decode(t, w)["malformed"])
}
