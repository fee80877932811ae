package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/brandonhuynh1/signage-api/internal/services"
	"github.com/brandonhuynh1/signage-api/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// respondError maps service errors onto their status and hides everything else
func respondError(c *gin.Context, logger zerolog.Logger, err error) {
	if svcErr, ok := services.AsError(err); ok {
		c.JSON(svcErr.Status, gin.H{"error": svcErr.Message})
		return
	}

	logger.Error().Err(err).Str("request_id", c.GetString("request_id")).Msg("Request failed")
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "An unexpected error occurred"})
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// bindError reports a failed ShouldBind* call
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": []fieldError{{Field: "body", Message: err.Error()}},
		})
		return
	}

	details := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg := "failed on " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		details = append(details, fieldError{Field: lowerFirst(fe.Field()), Message: msg})
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": details})
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// paramID reads a positive integer path parameter, answering 400 when it is not one
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return def
	}
	return v
}

func queryIntPtr(c *gin.Context, name string) *int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return nil
	}
	return &v
}

func queryInt64Ptr(c *gin.Context, name string) *int64 {
	v, err := strconv.ParseInt(c.Query(name), 10, 64)
	if err != nil || v <= 0 {
		return nil
	}
	return &v
}

func queryTime(c *gin.Context, name string) *time.Time {
	return utils.ParseTimeMaybe(c.Query(name))
}

// optionalTime parses a body date, where empty means unset
func optionalTime(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	t := utils.ParseTimeMaybe(*raw)
	if t == nil {
		return nil, services.BadRequest("Invalid date: %s", *raw)
	}
	return t, nil
}

func sortOrder(c *gin.Context, def services.SortOrder) services.SortOrder {
	return services.ParseSortOrder(c.Query("sortOrder"), def)
}
