package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/brandonhuynh1/signage-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"service error", services.NotFound("Player not found"), http.StatusNotFound, "Player not found"},
		{"wrapped service error", errors.Join(errors.New("ctx"), services.BadRequest("Invalid kind")), http.StatusBadRequest, "Invalid kind"},
		{"unexpected", errors.New("connection reset"), http.StatusInternalServerError, "An unexpected error occurred"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			respondError(c, zerolog.Nop(), tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.message, decode(t, w)["error"])
		})
	}
}

func TestBindErrorListsFields(t *testing.T) {
	r := gin.New()
	r.POST("/folders", func(c *gin.Context) {
		var req folderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/folders", strings.NewReader(`{"name":"ab"}`)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Invalid request data", body["error"])
	details, ok := body["details"].([]interface{})
	require.True(t, ok)
	require.Len(t, details, 1)
	assert.Equal(t, "name", details[0].(map[string]interface{})["field"])
	assert.Equal(t, "failed on min=3", details[0].(map[string]interface{})["message"])
}

func TestBindErrorMalformedJSON(t *testing.T) {
	r := gin.New()
	r.POST("/folders", func(c *gin.Context) {
		var req folderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
		}
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/folders", strings.NewReader(`{"name":`)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request data", decode(t, w)["error"])
}

func TestParamID(t *testing.T) {
	r := gin.New()
	r.GET("/players/:playerId", func(c *gin.Context) {
		id, ok := paramID(c, "playerId")
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id})
	})

	for path, status := range map[string]int{
		"/players/12":  http.StatusOK,
		"/players/0":   http.StatusBadRequest,
		"/players/-4":  http.StatusBadRequest,
		"/players/abc": http.StatusBadRequest,
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, status, w.Code, path)
	}
}

func TestOptionalTime(t *testing.T) {
	empty := "  "
	day := "2024-03-01"
	bad := "yesterday"

	got, err := optionalTime(nil)
	assert.NoError(t, err)
	assert.Nil(t, got)

	got, err = optionalTime(&empty)
	assert.NoError(t, err)
	assert.Nil(t, got)

	got, err = optionalTime(&day)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", got.Format("2006-01-02"))

	_, err = optionalTime(&bad)
	svcErr, ok := services.AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, svcErr.Status)
}
