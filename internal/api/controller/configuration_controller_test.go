package controller

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/proenglish/go_proenglish/internal/config"
)

func TestConfigurationController_GetConfiguration(t *testing.T) {
	tests := []struct {
		name     string
		payment  config.PaymentConfig
		expected ConfigurationResponse
	}{
		{
			name:    "memory provider",
			payment: config.PaymentConfig{Provider: "memory", Currency: "AOA"},
			expected: ConfigurationResponse{
				PaymentProvider: "memory", Currency: "AOA", MaxHearts: 5, LeaderboardSize: 20,
				CheckoutSteps: []string{"details", "payment", "completion"},
				Roles:         []string{"student", "teacher", "admin"},
			},
		},
		{
			name:    "stripe exposes only the publishable key",
			payment: config.PaymentConfig{Provider: "stripe", SecretKey: "sk_live_hidden", PublishableKey: "pk_live_1", Currency: "USD"},
			expected: ConfigurationResponse{
				PaymentProvider: "stripe", StripePublishableKey: "pk_live_1", Currency: "USD", MaxHearts: 5, LeaderboardSize: 20,
				CheckoutSteps: []string{"details", "payment", "completion"},
				Roles:         []string{"student", "teacher", "admin"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				Payment:  tt.payment,
				Auth:     config.AuthConfig{JWTSecret: "jwt-hidden"},
				Practice: config.PracticeConfig{MaxHearts: 5, LeaderboardSize: 20},
			}
			cc := NewConfigurationController(cfg)

			r := gin.New()
			r.GET("/api/v1/configuration", cc.GetConfiguration)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/configuration", nil))

			if w.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", w.Code)
			}
			for _, secret := range []string{"sk_live_hidden", "jwt-hidden"} {
				if strings.Contains(w.Body.String(), secret) {
					t.Errorf("response leaks %s", secret)
				}
			}
			var got ConfigurationResponse
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if got.PaymentProvider != tt.expected.PaymentProvider ||
				got.StripePublishableKey != tt.expected.StripePublishableKey ||
				got.Currency != tt.expected.Currency ||
				got.MaxHearts != tt.expected.MaxHearts ||
				got.LeaderboardSize != tt.expected.LeaderboardSize ||
				strings.Join(got.CheckoutSteps, ",") != strings.Join(tt.expected.CheckoutSteps, ",") ||
				strings.Join(got.Roles, ",") != strings.Join(tt.expected.Roles, ",") {
				t.Errorf("expected %+v, got %+v", tt.expected, got)
			}
		})
	}
}
