package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mroshb/group_quiz_bot/internal/security"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func authRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", AdminAuth(testSecret), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(OperatorKey))
	})
	return r
}

func TestAdminAuth(t *testing.T) {
	valid, err := security.GenerateAdminJWT("ops", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAdminJWT: %v", err)
	}
	expired, _ := security.GenerateAdminJWT("ops", testSecret, -time.Minute)
	foreign, _ := security.GenerateAdminJWT("ops", "another-secret-another-secret-xx", time.Hour)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + valid, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"other secret", "Bearer " + foreign, http.StatusUnauthorized},
	}

	r := authRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.want == http.StatusOK && w.Body.String() != "ops" {
				t.Errorf("operator = %q, want ops", w.Body.String())
			}
		})
	}
}
