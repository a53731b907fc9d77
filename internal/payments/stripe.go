package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	stripe "github.com/stripe/stripe-go/v82"
	session "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

var ErrBadSignature = errors.New("stripe signature verification failed")

type Config struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	Currency      string
}

// Checkout creates Stripe Checkout sessions for resource purchases and reads their webhooks
type Checkout struct {
	cfg        Config
	newSession func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// NewCheckout returns nil when no secret key is configured; purchases then complete
// without a payment step.
func NewCheckout(cfg Config) *Checkout {
	if cfg.SecretKey == "" {
		return nil
	}
	if cfg.Currency == "" {
		cfg.Currency = string(stripe.CurrencyUSD)
	}
	stripe.Key = cfg.SecretKey
	return &Checkout{cfg: cfg, newSession: session.New}
}

type SessionRequest struct {
	TransactionID string
	PostID        string
	Title         string
	Amount        int64
}

type Session struct {
	ID  string
	URL string
}

func (c *Checkout) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(c.cfg.Currency),
					UnitAmount: stripe.Int64(req.Amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Title),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(c.cfg.SuccessURL),
		CancelURL:         stripe.String(c.cfg.CancelURL),
		ClientReferenceID: stripe.String(req.TransactionID),
	}
	params.Context = ctx
	params.AddMetadata("post_id", req.PostID)

	s, err := c.newSession(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &Session{ID: s.ID, URL: s.URL}, nil
}

// CompletedCheckout is a paid checkout session reported by the webhook
type CompletedCheckout struct {
	SessionID     string
	TransactionID string
}

// ParseWebhook verifies the payload and returns the paid checkout it reports. Other event
// types yield nil without error.
func (c *Checkout) ParseWebhook(payload []byte, signature string) (*CompletedCheckout, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, c.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		return nil, nil
	}
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	if cs.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return nil, nil
	}
	return &CompletedCheckout{SessionID: cs.ID, TransactionID: cs.ClientReferenceID}, nil
}
