package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/proenglish/go_proenglish/internal/logger"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

// StripeProvider talks to the Stripe PaymentIntents API.
type StripeProvider struct {
	client paymentintent.Client
	log    *logrus.Entry
}

// NewStripeProvider creates a provider authenticated with secretKey.
func NewStripeProvider(secretKey string) (*StripeProvider, error) {
	if secretKey == "" {
		return nil, errors.New("payment: stripe secret key is required")
	}
	return &StripeProvider{
		client: paymentintent.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey},
		log:    logger.WithComponent("stripe"),
	}, nil
}

// CreateIntent creates a payment intent with automatic payment methods.
func (p *StripeProvider) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	if err := req.validate(); err != nil {
		return Intent{}, err
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(ToMinorUnits(req.Amount)),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.Email != "" {
		params.ReceiptEmail = stripe.String(req.Email)
	}
	for k, v := range metadataFor(req) {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	pi, err := p.client.New(params)
	if err != nil {
		p.log.Warnf("create payment intent for course %s failed: %v", req.CourseID, err)
		return Intent{}, fmt.Errorf("payment: create intent: %w", err)
	}
	return fromStripe(pi), nil
}

// GetIntent fetches the current state of an intent.
func (p *StripeProvider) GetIntent(ctx context.Context, id string) (Intent, error) {
	if id == "" {
		return Intent{}, ErrIntentNotFound
	}
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := p.client.Get(id, params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.HTTPStatusCode == http.StatusNotFound {
			return Intent{}, fmt.Errorf("%w: %s", ErrIntentNotFound, id)
		}
		return Intent{}, fmt.Errorf("payment: get intent %s: %w", id, err)
	}
	return fromStripe(pi), nil
}

func fromStripe(pi *stripe.PaymentIntent) Intent {
	return Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       FromMinorUnits(pi.Amount),
		Currency:     strings.ToUpper(string(pi.Currency)),
		Status:       Status(pi.Status),
		Metadata:     pi.Metadata,
	}
}
