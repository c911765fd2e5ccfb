package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestCheckParticipantLimit(t *testing.T) {
	rl := NewRateLimiter(3, 0, time.Minute)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if !rl.CheckParticipantLimit("5511999990001") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.CheckParticipantLimit("5511999990001") {
		t.Error("fourth request should be rejected")
	}
	if !rl.CheckParticipantLimit("5511999990002") {
		t.Error("other participants have their own budget")
	}
	if got := rl.GetParticipantRemaining("5511999990001"); got != 0 {
		t.Errorf("remaining = %d, want 0", got)
	}
	if got := rl.GetParticipantRemaining("unknown"); got != 3 {
		t.Errorf("remaining for unknown = %d, want 3", got)
	}
}

func TestCheckParticipantLimit_WindowExpires(t *testing.T) {
	rl := NewRateLimiter(1, 0, 20*time.Millisecond)
	defer rl.Stop()

	if !rl.CheckParticipantLimit("p") {
		t.Fatal("first request should be allowed")
	}
	if rl.CheckParticipantLimit("p") {
		t.Fatal("second request in window should be rejected")
	}
	time.Sleep(30 * time.Millisecond)
	if !rl.CheckParticipantLimit("p") {
		t.Error("request after window should be allowed")
	}
}

func TestZeroMaxDisablesLimit(t *testing.T) {
	rl := NewRateLimiter(0, 0, time.Minute)
	defer rl.Stop()

	for i := 0; i < 100; i++ {
		if !rl.CheckIPLimit("10.0.0.1") {
			t.Fatal("disabled limit should always allow")
		}
	}
}

func TestIPLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(0, 2, time.Minute)
	defer rl.Stop()

	r := gin.New()
	r.Use(rl.IPLimit())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d: status = %d, want %d", i+1, codes[i], want[i])
		}
	}
}
