// Package payment is the boundary to the card payment provider.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	ProviderStripe = "stripe"
	ProviderMemory = "memory"
)

var (
	ErrIntentNotFound = errors.New("payment: intent not found")
	ErrInvalidAmount  = errors.New("payment: amount must be positive")
	ErrInvalidRequest = errors.New("payment: invalid intent request")
)

// Status mirrors the provider's payment intent lifecycle.
type Status string

const (
	StatusRequiresPaymentMethod Status = "requires_payment_method"
	StatusRequiresConfirmation  Status = "requires_confirmation"
	StatusRequiresAction        Status = "requires_action"
	StatusProcessing            Status = "processing"
	StatusSucceeded             Status = "succeeded"
	StatusCanceled              Status = "canceled"
)

// IntentRequest describes the charge for one course purchase.
type IntentRequest struct {
	Amount    decimal.Decimal
	Currency  string
	Email     string
	CourseID  string
	SessionID string
}

func (r IntentRequest) validate() error {
	if !r.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if len(strings.TrimSpace(r.Currency)) != 3 {
		return fmt.Errorf("%w: currency %q", ErrInvalidRequest, r.Currency)
	}
	if r.CourseID == "" {
		return fmt.Errorf("%w: course id is required", ErrInvalidRequest)
	}
	return nil
}

// Intent is a provider payment intent.
type Intent struct {
	ID           string            `json:"id"`
	ClientSecret string            `json:"clientSecret,omitempty"`
	Amount       decimal.Decimal   `json:"amount"`
	Currency     string            `json:"currency"`
	Status       Status            `json:"status"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Succeeded reports whether the intent was paid.
func (i Intent) Succeeded() bool { return i.Status == StatusSucceeded }

// Provider creates and inspects payment intents.
type Provider interface {
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
	GetIntent(ctx context.Context, id string) (Intent, error)
}

// ToMinorUnits converts an amount to the provider's integer minor units.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(units int64) decimal.Decimal {
	return decimal.New(units, -2)
}

func metadataFor(req IntentRequest) map[string]string {
	md := map[string]string{"course_id": req.CourseID}
	if req.SessionID != "" {
		md["checkout_session"] = req.SessionID
	}
	if req.Email != "" {
		md["email"] = req.Email
	}
	return md
}
