package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// parseTimeParam accepts RFC3339 timestamps or bare dates (YYYY-MM-DD).
// An empty value is valid and yields nil.
func parseTimeParam(raw string) (*time.Time, bool) {
	if raw == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, true
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t, true
	}
	return nil, false
}

// pageParams reads page/limit query values with the listing defaults.
func pageParams(c *gin.Context) (int, int) {
	page := 1
	limit := 50
	if v, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil && v > 0 {
		limit = v
	}
	return page, limit
}
