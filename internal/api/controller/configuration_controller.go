package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/proenglish/go_proenglish/internal/auth"
	"github.com/proenglish/go_proenglish/internal/checkout"
	"github.com/proenglish/go_proenglish/internal/config"
)

// ConfigurationResponse is the public client configuration.
type ConfigurationResponse struct {
	PaymentProvider      string   `json:"paymentProvider"`
	StripePublishableKey string   `json:"stripePublishableKey,omitempty"`
	Currency             string   `json:"currency"`
	MaxHearts            int      `json:"maxHearts"`
	LeaderboardSize      int      `json:"leaderboardSize"`
	CheckoutSteps        []string `json:"checkoutSteps"`
	Roles                []string `json:"roles"`
}

// ConfigurationController handles configuration-related API endpoints.
type ConfigurationController struct {
	config *config.Config
}

// NewConfigurationController creates a new ConfigurationController.
func NewConfigurationController(cfg *config.Config) *ConfigurationController {
	return &ConfigurationController{config: cfg}
}

// GetConfiguration returns what the frontend needs before signing in.
// Secrets never leave the server.
func (cc *ConfigurationController) GetConfiguration(c *gin.Context) {
	roles := make([]string, len(auth.Roles))
	for i, r := range auth.Roles {
		roles[i] = r.String()
	}
	c.JSON(http.StatusOK, ConfigurationResponse{
		PaymentProvider:      cc.config.Payment.Provider,
		StripePublishableKey: cc.config.Payment.PublishableKey,
		Currency:             cc.config.Payment.Currency,
		MaxHearts:            cc.config.Practice.MaxHearts,
		LeaderboardSize:      cc.config.Practice.LeaderboardSize,
		CheckoutSteps:        []string{checkout.StepDetails.String(), checkout.StepPayment.String(), checkout.StepCompletion.String()},
		Roles:                roles,
	})
}
