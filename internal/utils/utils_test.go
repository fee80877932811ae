package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUTCDay(t *testing.T) {
	r, ok := ParseUTCDay("2024-03-10")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), r.Start)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), r.End)
	assert.True(t, r.Contains(time.Date(2024, 3, 10, 23, 59, 59, 0, time.UTC)))
	assert.False(t, r.Contains(r.End))

	for _, bad := range []string{"", "2024-3-10", "2024-13-01", "yesterday"} {
		_, ok := ParseUTCDay(bad)
		assert.False(t, ok, bad)
	}
}

func TestParseLocalRange(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	now := time.Date(2024, 2, 14, 10, 0, 0, 0, loc)

	r := ParseLocalRange("2024-02-01", "2024-02-03", now, loc)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, loc), r.Start)
	assert.Equal(t, time.Date(2024, 2, 4, 0, 0, 0, 0, loc), r.End)

	month := ParseLocalRange("", "2024-02-03", now, loc)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, loc), month.Start)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, loc), month.End)

	reversed := ParseLocalRange("2024-02-05", "2024-02-01", now, loc)
	assert.Equal(t, month, reversed)
}

func TestLabels(t *testing.T) {
	ts := time.Date(2024, 7, 4, 15, 4, 0, 0, time.UTC)
	assert.Equal(t, "04/07/2024", DayLabel(ts))
	assert.Equal(t, "3:04 PM", ClockLabel(ts))
	assert.Equal(t, int64(90), DiffSec(ts.Add(90*time.Second), ts))
	assert.Equal(t, int64(0), DiffSec(ts, ts.Add(time.Minute)))
}

func TestSanitizeSegment(t *testing.T) {
	assert.Equal(t, "summer-sale-2024.mp4", SanitizeSegment("  Summer Sale  2024!.mp4 "))
	assert.Equal(t, "a_b-c.png", SanitizeSegment("a_b-c.png"))
	assert.Equal(t, "Acme_Co_", FolderPrefix("Acme Co."))
}

func TestMatchesFileType(t *testing.T) {
	assert.True(t, MatchesFileType("image/png", ""))
	assert.True(t, MatchesFileType("image/png", "image"))
	assert.True(t, MatchesFileType("image/png", "image/png"))
	assert.False(t, MatchesFileType("image/png", "image/jpeg"))
	assert.False(t, MatchesFileType("video/mp4", "image"))
	assert.True(t, IsVideo("video/quicktime"))
	assert.True(t, IsImage("image/webp"))
}

func TestBuckets(t *testing.T) {
	mb := int64(1024 * 1024)
	assert.True(t, MatchesSizeBucket(10*mb, "0-10"))
	assert.False(t, MatchesSizeBucket(10*mb+1, "0-10"))
	assert.True(t, MatchesSizeBucket(50*mb, "10-100"))
	assert.True(t, MatchesSizeBucket(101*mb, "100+"))
	assert.True(t, MatchesSizeBucket(1, "whatever"))

	assert.True(t, MatchesDurationBucket(180, "0-3"))
	assert.False(t, MatchesDurationBucket(181, "0-3"))
	assert.False(t, MatchesDurationBucket(299, "5-10"))
	assert.True(t, MatchesDurationBucket(600, "5-10"))
	assert.True(t, MatchesDurationBucket(600, "10+"))
	assert.False(t, MatchesDurationBucket(599, "10+"))
}

func TestNextAvailableName(t *testing.T) {
	used := map[string]bool{"promo.mp4": true, "promo (1).mp4": true}
	taken := func(n string) bool { return used[n] }
	fallback := func() string { return "1700000000000" }

	assert.Equal(t, "fresh.mp4", NextAvailableName("fresh.mp4", taken, fallback))
	assert.Equal(t, "promo (2).mp4", NextAvailableName("promo.mp4", taken, fallback))
	assert.Equal(t, "promo (2).mp4", NextAvailableName("promo (1).mp4", taken, fallback))

	all := func(string) bool { return true }
	assert.Equal(t, "Client (1700000000000)", NextAvailableName("Client", all, fallback))
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, generated)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get(RequestIDHeader))
}
