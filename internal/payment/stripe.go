// Package payment creates Stripe payment intents and verifies Stripe webhooks.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"byteshop/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/paymentintent"
	"github.com/stripe/stripe-go/v83/webhook"
)

const orderIDKey = "order_id"

var ErrIgnoredEvent = errors.New("payment: event ignored")

type StripeGateway struct {
	currency      string
	webhookSecret string
	create        func(*stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

func NewStripeGateway(secretKey, webhookSecret, currency string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{
		currency:      strings.ToLower(currency),
		webhookSecret: webhookSecret,
		create:        paymentintent.New,
	}
}

// MinorUnits converts an amount to cents.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func (g *StripeGateway) CreatePaymentIntent(_ context.Context, order *models.Order, customer *models.User) (*models.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(MinorUnits(order.TotalAmount)),
		Currency: stripe.String(g.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{
			orderIDKey: order.ID,
			"user_id":  order.UserID,
		},
	}
	if customer != nil && customer.Email != "" {
		params.ReceiptEmail = stripe.String(customer.Email)
	}
	params.SetIdempotencyKey("order-" + order.ID)

	pi, err := g.create(params)
	if err != nil {
		return nil, fmt.Errorf("stripe payment intent: %w", err)
	}
	return &models.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       decimal.New(pi.Amount, -2),
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
	}, nil
}

// PaidOrder verifies a webhook delivery and returns the order id of a
// succeeded payment. Other event types yield ErrIgnoredEvent.
func (g *StripeGateway) PaidOrder(payload []byte, signature string) (string, error) {
	event, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return "", fmt.Errorf("stripe webhook: %w", err)
	}
	if event.Type != stripe.EventTypePaymentIntentSucceeded {
		return "", ErrIgnoredEvent
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return "", fmt.Errorf("decode payment intent: %w", err)
	}
	orderID := pi.Metadata[orderIDKey]
	if orderID == "" {
		return "", ErrIgnoredEvent
	}
	return orderID, nil
}
